package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/scanning"
)

// DocumentScanner turns an uploaded file into invoice fields
type DocumentScanner interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
	Classify(ctx context.Context, text string) string
	ExtractFields(ctx context.Context, text string) (*scanning.InvoiceFields, error)
}

// Pusher sends a saved invoice to the external ledger
type Pusher interface {
	Push(ctx context.Context, inv *Invoice) (LedgerResult, error)
}

// IDGenerator generates unique IDs for documents
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the ingestion pipeline and serves a user's documents and invoices
type Service struct {
	store       Store
	documents   DocumentDB
	storage     Storage
	scanner     DocumentScanner
	pusher      Pusher
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with uuid document IDs and the wall clock
func NewService(store Store, documents DocumentDB, storage Storage, scanner DocumentScanner, pusher Pusher) *Service {
	return NewServiceWithDeps(store, documents, storage, scanner, pusher, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, documents DocumentDB, storage Storage, scanner DocumentScanner, pusher Pusher, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		documents:   documents,
		storage:     storage,
		scanner:     scanner,
		pusher:      pusher,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and shortens long scanner or phone filenames
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(filenameSpaces.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	if ext == "." {
		ext = ""
	}
	return base + ext
}

// ProcessDocument stores an upload, checks that it is an invoice, extracts and
// validates its fields, saves it for the user and pushes it to the ledger.
func (s *Service) ProcessDocument(ctx context.Context, userID int64, filename string, data []byte, contentType string) (*ProcessResult, error) {
	now := s.timeSource.Now()
	doc := &Document{
		ID:          s.idGenerator.Generate(),
		UserID:      userID,
		Filename:    sanitizeFilename(filename),
		ContentType: contentType,
		Status:      StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	key, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", doc.ID, doc.Filename), data, contentType)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	doc.StorageKey = key

	if err := s.documents.SaveDocument(doc); err != nil {
		s.storage.Delete(ctx, key)
		return nil, fmt.Errorf("saving document record: %w", err)
	}
	slog.Info("Document received", "document_id", doc.ID, "user_id", userID, "filename", doc.Filename, "content_type", contentType)

	text, err := s.scanner.ExtractText(ctx, data, contentType)
	if err != nil {
		return nil, s.fail(doc, fmt.Errorf("extracting text: %w", err))
	}

	doc.DocType = s.scanner.Classify(ctx, text)
	slog.Info("Document classified", "document_id", doc.ID, "doc_type", doc.DocType)
	if doc.DocType != scanning.DocTypeInvoice {
		err := fmt.Errorf("%w: document type is %s", ErrNotInvoice, doc.DocType)
		s.finish(doc, StatusRejected, err.Error())
		return nil, err
	}

	fields, err := s.scanner.ExtractFields(ctx, text)
	if err != nil {
		return nil, s.fail(doc, err)
	}

	inv, err := Validate(fields)
	if err != nil {
		return nil, s.fail(doc, err)
	}
	inv.UserID = userID
	inv.DocumentID = doc.ID
	inv.CreatedAt = now

	if _, err := s.store.SaveInvoice(ctx, inv); err != nil {
		return nil, s.fail(doc, fmt.Errorf("saving invoice: %w", err))
	}
	doc.InvoiceID = inv.ID
	slog.Info("Invoice saved", "document_id", doc.ID, "invoice_id", inv.ID, "total", inv.Total)

	result, err := s.pusher.Push(ctx, inv)
	if err != nil {
		slog.Warn("Ledger push failed", "invoice_id", inv.ID, "error", err)
		result = LedgerResult{Status: LedgerFailed}
		doc.Error = err.Error()
	}
	doc.LedgerStatus = result.Status
	doc.LedgerRef = result.Ref
	s.finish(doc, StatusSaved, doc.Error)

	return &ProcessResult{
		Status:     "success",
		InvoiceID:  inv.ID,
		DocumentID: doc.ID,
		SavedToDB:  true,
		PushToERP:  result.Status == LedgerPushed,
		Data:       inv,
	}, nil
}

// fail marks the document failed and returns err
func (s *Service) fail(doc *Document, err error) error {
	slog.Error("Document processing failed", "document_id", doc.ID, "error", err)
	s.finish(doc, StatusFailed, err.Error())
	return err
}

func (s *Service) finish(doc *Document, status, message string) {
	doc.Status = status
	doc.Error = message
	doc.UpdatedAt = s.timeSource.Now()
	if err := s.documents.SaveDocument(doc); err != nil {
		slog.Error("Failed to update document record", "document_id", doc.ID, "status", status, "error", err)
	}
}

// Classify returns the detected document type without saving anything
func (s *Service) Classify(ctx context.Context, data []byte, contentType string) (string, error) {
	text, err := s.scanner.ExtractText(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	return s.scanner.Classify(ctx, text), nil
}

// ListDocuments returns the user's uploads, newest first
func (s *Service) ListDocuments(userID int64) ([]*Document, error) {
	docs, err := s.documents.ListDocuments(userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// GetDocument retrieves one of the user's uploads
func (s *Service) GetDocument(userID int64, id string) (*Document, error) {
	doc, err := s.documents.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return doc, nil
}

// GetDocumentFile retrieves the original file of one of the user's uploads
func (s *Service) GetDocumentFile(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	doc, err := s.GetDocument(userID, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}
	return data, doc.ContentType, nil
}

// DeleteDocument removes an upload, its file and the invoice saved from it
func (s *Service) DeleteDocument(ctx context.Context, userID int64, id string) error {
	doc, err := s.GetDocument(userID, id)
	if err != nil {
		return err
	}

	if doc.InvoiceID != 0 {
		if err := s.store.DeleteInvoice(ctx, userID, doc.InvoiceID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("deleting invoice: %w", err)
		}
	}

	if err := s.storage.Delete(ctx, doc.StorageKey); err != nil {
		slog.Warn("Failed to delete file", "storage_key", doc.StorageKey, "error", err)
	}

	if err := s.documents.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document record: %w", err)
	}
	return nil
}

// ListInvoices returns the user's invoices
func (s *Service) ListInvoices(ctx context.Context, userID int64) ([]*Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoice retrieves one of the user's invoices
func (s *Service) GetInvoice(ctx context.Context, userID, id int64) (*Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

package invoice

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotInvoice     = errors.New("uploaded document is not an invoice")
	ErrInvalidInvoice = errors.New("invalid invoice data")
)

// Document processing states
const (
	StatusProcessing = "processing"
	StatusRejected   = "rejected"
	StatusFailed     = "failed"
	StatusSaved      = "saved"
)

// Ledger push outcomes
const (
	LedgerPushed  = "pushed"
	LedgerSkipped = "skipped"
	LedgerFailed  = "failed"
)

// Invoice is a validated invoice owned by a user
type Invoice struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	DocumentID      string    `json:"document_id,omitempty"`
	InvoiceNumber   string    `json:"invoice_number"`
	ReferenceNumber string    `json:"reference_number"`
	CustomerName    string    `json:"customer_name"`
	Email           string    `json:"email,omitempty"`
	InvoiceDate     string    `json:"invoice_date"`
	Total           float64   `json:"total"`
	Items           []Item    `json:"line_items"`
	CreatedAt       time.Time `json:"created_at"`
}

// Item is a single invoice line
type Item struct {
	ID          int64   `json:"id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

// Document records an upload and what happened to it
type Document struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Filename     string    `json:"filename"`
	StorageKey   string    `json:"storage_key"`
	ContentType  string    `json:"content_type"`
	Status       string    `json:"status"`
	DocType      string    `json:"doc_type,omitempty"`
	InvoiceID    int64     `json:"invoice_id,omitempty"`
	LedgerStatus string    `json:"ledger_status,omitempty"`
	LedgerRef    string    `json:"ledger_ref,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LedgerResult is the outcome of pushing an invoice to the external ledger
type LedgerResult struct {
	Status string
	Ref    string
}

// ProcessResult is returned to the uploader once an invoice is saved
type ProcessResult struct {
	Status     string   `json:"status"`
	InvoiceID  int64    `json:"invoice_id"`
	DocumentID string   `json:"document_id"`
	SavedToDB  bool     `json:"saved_to_db"`
	PushToERP  bool     `json:"push_to_erp"`
	Data       *Invoice `json:"data"`
}

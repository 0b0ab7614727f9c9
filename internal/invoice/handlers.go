package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/auth"
)

// maxUploadSize covers multi-page scans and high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an {"error": message} response with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// handleRegister creates a user account
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.auth.Register(r.Context(), req.Username, req.Password, req.Email)
	switch {
	case errors.Is(err, auth.ErrMissingField):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		jsonError(w, "Username already exists", http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("Error registering user", "username", req.Username, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "user_id": id})
}

// handleLogin exchanges credentials for an access token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		jsonError(w, err.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		slog.Error("Error logging in", "username", req.Username, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "access_token": token})
}

type upload struct {
	filename    string
	data        []byte
	contentType string
}

// readUpload reads the multipart "file" field, writing the error response itself on failure
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "File is too large. Maximum size is 50MB."
		}
		jsonError(w, message, http.StatusBadRequest)
		return nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return nil, false
	}

	return &upload{
		filename:    header.Filename,
		data:        data,
		contentType: detectContentType(header.Filename, header.Header.Get("Content-Type")),
	}, true
}

// detectContentType prefers the declared type and falls back to the file extension
func detectContentType(filename, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// handleProcessInvoice runs an uploaded document through the ingestion pipeline
func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	up, ok := readUpload(w, r)
	if !ok {
		return
	}

	result, err := s.service.ProcessDocument(r.Context(), user.ID, up.filename, up.data, up.contentType)
	if err != nil {
		slog.Error("Error processing invoice", "filename", up.filename, "user_id", user.ID, "error", err)
		code := http.StatusInternalServerError
		if errors.Is(err, ErrNotInvoice) || errors.Is(err, ErrInvalidInvoice) {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, code, map[string]string{"status": "failed", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleClassifyDocument reports the detected type of an uploaded document
func (s *Server) handleClassifyDocument(w http.ResponseWriter, r *http.Request) {
	up, ok := readUpload(w, r)
	if !ok {
		return
	}

	docType, err := s.service.Classify(r.Context(), up.data, up.contentType)
	if err != nil {
		slog.Error("Error classifying document", "filename", up.filename, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "document_type": docType})
}

// handleListDocuments returns the caller's uploads
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	docs, err := s.service.ListDocuments(user.ID)
	if err != nil {
		slog.Error("Error listing documents", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument returns a single upload record
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	doc, err := s.service.GetDocument(user.ID, r.PathValue("id"))
	if err != nil {
		jsonError(w, "Document not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentFile returns the original uploaded file
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	data, contentType, err := s.service.GetDocumentFile(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		jsonError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteDocument deletes an upload and the invoice saved from it
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	err := s.service.DeleteDocument(r.Context(), user.ID, r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		jsonError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error deleting document", "error", err)
		jsonError(w, "Error deleting document", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleListInvoices returns the caller's invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	invoices, err := s.service.ListInvoices(r.Context(), user.ID)
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invoices)
}

// handleGetInvoice returns a single invoice with its line items
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}

	inv, err := s.service.GetInvoice(r.Context(), user.ID, id)
	if errors.Is(err, ErrNotFound) {
		jsonError(w, "Invoice not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting invoice", "invoice_id", id, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// handleChatbotQuery answers a question about the caller's invoices
func (s *Server) handleChatbotQuery(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "Question is required", http.StatusBadRequest)
		return
	}

	resp := s.answerer.Answer(r.Context(), req.Question, user.ID)
	if !resp.OK {
		jsonError(w, "Chatbot crashed: "+resp.Error, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"answer":   resp.Answer,
		"sql":      resp.SQL,
		"data":     resp.Result,
		"fallback": resp.Fallback,
	})
}

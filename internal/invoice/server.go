package invoice

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/auth"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/query"
)

// Authenticator registers users, issues tokens and resolves them back to users
type Authenticator interface {
	Register(ctx context.Context, username, password, email string) (int64, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// Answerer answers a natural-language question over the user's invoices
type Answerer interface {
	Answer(ctx context.Context, question string, userID int64) query.Response
}

// Server handles HTTP requests for invoices, documents and questions
type Server struct {
	service  *Service
	auth     Authenticator
	answerer Answerer
	mux      *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, authenticator Authenticator, answerer Answerer) *Server {
	return NewServerWithMux(service, authenticator, answerer, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, authenticator Authenticator, answerer Answerer, mux *http.ServeMux) *Server {
	s := &Server{
		service:  service,
		auth:     authenticator,
		answerer: answerer,
		mux:      mux,
	}
	s.registerRoutes()
	return s
}

type userKey struct{}

// userFromContext returns the user attached by requireAuth
func userFromContext(ctx context.Context) *auth.User {
	user, _ := ctx.Value(userKey{}).(*auth.User)
	return user
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth resolves the bearer token to a user that still exists
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			jsonError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			jsonError(w, "Invalid Authorization format", http.StatusUnauthorized)
			return
		}

		user, err := s.auth.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			slog.Warn("Rejected token", "path", r.URL.Path, "error", err)
			jsonError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)

	s.mux.HandleFunc("POST /process-invoice", s.requireAuth(s.handleProcessInvoice))
	s.mux.HandleFunc("POST /process-invoice/", s.requireAuth(s.handleProcessInvoice))
	s.mux.HandleFunc("POST /classify-document", s.handleClassifyDocument)
	s.mux.HandleFunc("POST /classify-document/", s.handleClassifyDocument)

	s.mux.HandleFunc("GET /api/documents/{id}/file", s.requireAuth(s.handleGetDocumentFile))
	s.mux.HandleFunc("GET /api/documents/{id}", s.requireAuth(s.handleGetDocument))
	s.mux.HandleFunc("DELETE /api/documents/{id}", s.requireAuth(s.handleDeleteDocument))
	s.mux.HandleFunc("GET /api/documents", s.requireAuth(s.handleListDocuments))

	s.mux.HandleFunc("GET /api/invoices/{id}", s.requireAuth(s.handleGetInvoice))
	s.mux.HandleFunc("GET /api/invoices", s.requireAuth(s.handleListInvoices))

	// both spellings so clients with a trailing slash are not redirected
	s.mux.HandleFunc("POST /chatbot/query", s.requireAuth(s.handleChatbotQuery))
	s.mux.HandleFunc("POST /chatbot/query/", s.requireAuth(s.handleChatbotQuery))
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux.ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

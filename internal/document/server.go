package document

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/submitready/submitready/internal/payment"
)

// ServerConfig holds the HTTP-level upload policy.
type ServerConfig struct {
	// MaxUploadBytes is the largest accepted receipt upload.
	MaxUploadBytes int64

	// AllowedTypes is the MIME allow-list for uploads.
	AllowedTypes map[string]bool
}

// DefaultServerConfig returns the standard upload policy.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxUploadBytes: 10 << 20,
		AllowedTypes: map[string]bool{
			"image/jpeg":      true,
			"image/png":       true,
			"image/heic":      true,
			"image/heif":      true,
			"application/pdf": true,
		},
	}
}

// Server handles HTTP requests for documents
type Server struct {
	service  *Service
	payments payment.Processor
	limiter  *RateLimiter
	mux      *http.ServeMux
	cfg      ServerConfig
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, payments payment.Processor, limiter *RateLimiter, cfg ServerConfig) *Server {
	return NewServerWithMux(service, payments, limiter, cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, payments payment.Processor, limiter *RateLimiter, cfg ServerConfig, mux *http.ServeMux) *Server {
	s := &Server{
		service:  service,
		payments: payments,
		limiter:  limiter,
		mux:      mux,
		cfg:      cfg,
	}
	s.registerRoutes()
	return s
}

// rateLimited rejects callers that exhausted their upload window.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(clientIP(r)) {
			jsonError(w, "Too many uploads. Please wait a minute and try again.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientIP resolves the caller identity, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/upload", s.rateLimited(s.handleUpload))
	s.mux.HandleFunc("GET /api/documents/{token}", s.handleGetDocument)
	s.mux.HandleFunc("POST /api/documents/{token}/update", s.handleUpdateDocument)
	s.mux.HandleFunc("GET /api/documents/{token}/preview.pdf", s.handlePreviewPDF)
	s.mux.HandleFunc("GET /api/files/{token}", s.handleGetAttachment)
	s.mux.HandleFunc("POST /api/checkout/session", s.handleCreateCheckout)
	s.mux.HandleFunc("POST /api/stripe/webhook", s.handleWebhook)
	s.mux.HandleFunc("GET /api/download/{token}", s.handleDownload)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/submitready/submitready/internal/extraction"
	"github.com/submitready/submitready/internal/payment"
)

// jsonError writes a JSON error body with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// serviceError maps service failures to HTTP statuses. Internal details never
// reach the client on a 500.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPrecondition),
		errors.Is(err, extraction.ErrUnreadableInput),
		errors.Is(err, payment.ErrSignatureInvalid):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "Not found", http.StatusNotFound)
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleUpload accepts a receipt file and starts the extraction pipeline
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		jsonError(w, fmt.Sprintf("File is too large. Maximum size is %dMB.", s.cfg.MaxUploadBytes>>20), http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("receipt")
	if err != nil {
		jsonError(w, "No file was selected. Please choose a receipt to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("File is too large. Maximum size is %dMB.", s.cfg.MaxUploadBytes>>20), http.StatusBadRequest)
		return
	}

	contentType := sniffContentType(header.Header.Get("Content-Type"), header.Filename)
	if !s.cfg.AllowedTypes[contentType] {
		jsonError(w, "Unsupported file type. Upload a JPEG, PNG, HEIC or PDF receipt.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading upload", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	doc, err := s.service.ProcessUpload(r.Context(), data, contentType)
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"token": doc.PublicToken}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// sniffContentType falls back to the file extension when the part carries no
// usable type.
func sniffContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		if mediaType, _, ok := strings.Cut(contentType, ";"); ok {
			return strings.TrimSpace(mediaType)
		}
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// handleGetDocument returns the editable view of a document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetByPublicToken(r.PathValue("token"))
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.service.ViewOf(doc)); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUpdateDocument applies user field corrections
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vendor *string `json:"vendor"`
		Date   *string `json:"date"`
		Total  *string `json:"total"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := s.service.UpdateFields(r.Context(), r.PathValue("token"), FieldPatch{
		Vendor: req.Vendor,
		Date:   req.Date,
		Total:  req.Total,
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.service.ViewOf(doc)); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handlePreviewPDF streams the watermark-gated preview
func (s *Server) handlePreviewPDF(w http.ResponseWriter, r *http.Request) {
	pdf, err := s.service.PreviewPDF(r.Context(), r.PathValue("token"))
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(pdf)
}

// handleGetAttachment streams the normalized receipt image
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetAttachment(r.Context(), r.PathValue("token"))
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleCreateCheckout starts a payment session
func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.CreateCheckout(r.Context(), req.Token, req.Email)
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleWebhook verifies and applies payment processor events
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		jsonError(w, "Missing signature header", http.StatusBadRequest)
		return
	}

	event, err := s.payments.VerifyEvent(payload, signature)
	if err != nil {
		serviceError(w, err)
		return
	}

	if _, err := s.service.CompletePayment(r.Context(), event); err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// handleDownload streams the final PDF for a valid download token
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	pdf, filename, err := s.service.DownloadPDF(r.Context(), r.PathValue("token"))
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(pdf)
}

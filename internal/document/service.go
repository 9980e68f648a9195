package document

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/submitready/submitready/internal/extraction"
	"github.com/submitready/submitready/internal/payment"
)

// Extractor runs the receipt extraction pipeline for one upload.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*extraction.Extraction, error)
}

// Renderer produces the reimbursement PDF from a document and its attachment.
type Renderer interface {
	Render(doc *Document, attachment []byte, watermark bool) ([]byte, error)
}

// Notifier delivers the download link after payment. Best effort: a delivery
// failure must never fail payment completion.
type Notifier interface {
	SendDownloadLink(ctx context.Context, to, downloadURL string) error
}

// IDGenerator generates unique document IDs.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config holds the service's tuning knobs.
type Config struct {
	// BaseURL is the externally reachable root used to build checkout
	// redirect and download URLs.
	BaseURL string

	// DownloadTokenTTL is the validity window of a minted download token.
	DownloadTokenTTL time.Duration

	// ReviewThreshold is the confidence cutoff for field edit gating and
	// status derivation.
	ReviewThreshold float64
}

func (c Config) withDefaults() Config {
	if c.DownloadTokenTTL <= 0 {
		c.DownloadTokenTTL = 24 * time.Hour
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = DefaultReviewThreshold
	}
	return c
}

// Service is the document lifecycle engine: upload, correction, checkout,
// payment completion and token-gated access.
type Service struct {
	db        DB
	storage   Storage
	extractor Extractor
	payments  payment.Processor
	renderer  Renderer
	notifier  Notifier

	tokens      TokenSource
	idGenerator IDGenerator
	timeSource  TimeSource
	cfg         Config
}

// NewService creates a Service with default token, ID and time sources.
func NewService(db DB, storage Storage, extractor Extractor, payments payment.Processor, renderer Renderer, notifier Notifier, cfg Config) *Service {
	return NewServiceWithDeps(db, storage, extractor, payments, renderer, notifier, cfg,
		randomTokenSource{}, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom sources for testing.
func NewServiceWithDeps(db DB, storage Storage, extractor Extractor, payments payment.Processor, renderer Renderer, notifier Notifier, cfg Config, tokens TokenSource, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		payments:    payments,
		renderer:    renderer,
		notifier:    notifier,
		tokens:      tokens,
		idGenerator: idGen,
		timeSource:  timeSrc,
		cfg:         cfg.withDefaults(),
	}
}

// ProcessUpload stores the original file, runs extraction, stores the
// normalized attachment and persists the new document. The returned document
// is already re-evaluated past the transient UPLOADED state.
func (s *Service) ProcessUpload(ctx context.Context, data []byte, mimeType string) (*Document, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	publicToken := s.tokens.PublicToken()

	ext := "bin"
	if mimeType == "application/pdf" {
		ext = "pdf"
	}
	originalKey := fmt.Sprintf("receipts/%s/original.%s", publicToken, ext)
	if err := s.storage.Put(ctx, originalKey, data, mimeType); err != nil {
		return nil, fmt.Errorf("storing original: %w", err)
	}

	res, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	attachmentKey := fmt.Sprintf("receipts/%s/attachment.png", publicToken)
	if err := s.storage.Put(ctx, attachmentKey, res.Attachment, res.AttachmentMimeType); err != nil {
		return nil, fmt.Errorf("storing attachment: %w", err)
	}

	slog.Info("extraction complete",
		"token", publicToken,
		"overall_confidence", res.OverallConfidence,
		"requires_review", res.RequiresReview,
	)

	doc := &Document{
		ID:                 id,
		PublicToken:        publicToken,
		ReceiptKey:         originalKey,
		ReceiptMimeType:    mimeType,
		AttachmentKey:      attachmentKey,
		AttachmentMimeType: res.AttachmentMimeType,
		Vendor:             res.Fields.Vendor,
		Date:               res.Fields.Date,
		TotalCents:         res.Fields.TotalCents,
		Currency:           res.Fields.Currency,
		Category:           res.Fields.Category,
		VendorConfidence:   res.Confidence.Vendor,
		DateConfidence:     res.Confidence.Date,
		TotalConfidence:    res.Confidence.Total,
		ExtractionRaw:      res.RawText,
		Status:             s.deriveStatus(res),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}

func (s *Service) deriveStatus(res *extraction.Extraction) Status {
	return DetermineStatus(StatusInput{
		Vendor:           res.Fields.Vendor,
		Date:             res.Fields.Date,
		TotalCents:       res.Fields.TotalCents,
		VendorConfidence: res.Confidence.Vendor,
		DateConfidence:   res.Confidence.Date,
		TotalConfidence:  res.Confidence.Total,
	}, s.cfg.ReviewThreshold)
}

// GetByPublicToken retrieves a document for preview or editing.
func (s *Service) GetByPublicToken(token string) (*Document, error) {
	doc, err := s.db.FindByPublicToken(token)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}
	return doc, nil
}

// FieldPatch carries user corrections; nil members are left untouched.
type FieldPatch struct {
	Vendor *string
	Date   *string
	Total  *string // decimal amount, e.g. "42.75"
}

var (
	dateRE  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	totalRE = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

const maxTotalCents = 5_000_000

// UpdateFields applies user corrections. Only fields whose confidence sits
// below the review threshold may be edited, and paid documents reject every
// edit. An accepted correction is trusted: the field's confidence is promoted
// and the status re-derived.
func (s *Service) UpdateFields(_ context.Context, token string, patch FieldPatch) (*Document, error) {
	doc, err := s.db.FindByPublicToken(token)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}
	if doc.Status == StatusPaid {
		return nil, fmt.Errorf("%w: paid documents cannot be edited", ErrPrecondition)
	}

	// Validate the whole patch before touching the document; a rejected
	// patch applies no mutation at all.
	var (
		vendor     string
		totalCents int64
	)
	if patch.Vendor != nil {
		vendor = strings.TrimSpace(*patch.Vendor)
		if vendor == "" || len(vendor) > 140 {
			return nil, fmt.Errorf("%w: vendor must be 1-140 characters", ErrValidation)
		}
		if !FieldEditable(doc.VendorConfidence, s.cfg.ReviewThreshold) {
			return nil, fmt.Errorf("%w: vendor is locked by a confident extraction", ErrPrecondition)
		}
	}
	if patch.Date != nil {
		if !dateRE.MatchString(*patch.Date) {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
		if _, err := time.Parse("2006-01-02", *patch.Date); err != nil {
			return nil, fmt.Errorf("%w: invalid date", ErrValidation)
		}
		if !FieldEditable(doc.DateConfidence, s.cfg.ReviewThreshold) {
			return nil, fmt.Errorf("%w: date is locked by a confident extraction", ErrPrecondition)
		}
	}
	if patch.Total != nil {
		total := strings.TrimSpace(*patch.Total)
		if !totalRE.MatchString(total) {
			return nil, fmt.Errorf("%w: total must be a valid monetary amount", ErrValidation)
		}
		value, err := strconv.ParseFloat(total, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: total must be a valid monetary amount", ErrValidation)
		}
		totalCents = int64(math.Round(value * 100))
		if totalCents <= 0 || totalCents > maxTotalCents {
			return nil, fmt.Errorf("%w: total must be greater than 0 and below 50,000", ErrValidation)
		}
		if !FieldEditable(doc.TotalConfidence, s.cfg.ReviewThreshold) {
			return nil, fmt.Errorf("%w: total is locked by a confident extraction", ErrPrecondition)
		}
	}

	if patch.Vendor != nil {
		doc.Vendor = vendor
		doc.VendorConfidence = PromotedConfidence
	}
	if patch.Date != nil {
		doc.Date = *patch.Date
		doc.DateConfidence = PromotedConfidence
	}
	if patch.Total != nil {
		doc.TotalCents = totalCents
		doc.TotalConfidence = PromotedConfidence
	}

	doc.Status = DetermineStatus(StatusInput{
		Vendor:           doc.Vendor,
		Date:             doc.Date,
		TotalCents:       doc.TotalCents,
		VendorConfidence: doc.VendorConfidence,
		DateConfidence:   doc.DateConfidence,
		TotalConfidence:  doc.TotalConfidence,
	}, s.cfg.ReviewThreshold)
	doc.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}

// CheckoutResult is the outcome of a checkout initiation.
type CheckoutResult struct {
	URL           string `json:"url,omitempty"`
	AlreadyPaid   bool   `json:"already_paid,omitempty"`
	DownloadToken string `json:"download_token,omitempty"`
}

// CreateCheckout starts a payment attempt for a document. All three core
// fields must exist, and a document that is already paid short-circuits with
// its existing download token instead of opening a second session.
func (s *Service) CreateCheckout(ctx context.Context, token, email string) (*CheckoutResult, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	doc, err := s.db.FindByPublicToken(token)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}
	if !doc.HasCoreFields() {
		return nil, fmt.Errorf("%w: vendor, date and total are required before checkout", ErrPrecondition)
	}
	if doc.Status == StatusPaid && doc.DownloadToken != "" {
		return &CheckoutResult{AlreadyPaid: true, DownloadToken: doc.DownloadToken}, nil
	}

	sess, err := s.payments.CreateCheckoutSession(ctx, payment.CheckoutParams{
		Email:         email,
		DocumentID:    doc.ID,
		DocumentToken: doc.PublicToken,
		SuccessURL:    s.cfg.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.BaseURL + "/preview/" + doc.PublicToken,
	})
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}

	doc.Email = email
	doc.CheckoutSessionID = sess.ID
	doc.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	return &CheckoutResult{URL: sess.URL}, nil
}

// CompletePayment handles a verified completion event. Completion events are
// delivered at least once; the conditional store update makes re-delivery a
// no-op that observes the originally minted token, and the notification is
// dispatched only by the first writer.
func (s *Service) CompletePayment(ctx context.Context, event *payment.Event) (string, error) {
	if event.Type != payment.EventCheckoutCompleted {
		return "", nil
	}
	if event.DocumentID == "" {
		return "", fmt.Errorf("%w: completion event is missing document metadata", ErrValidation)
	}

	now := s.timeSource.Now()
	grant := PaymentGrant{
		DownloadToken:   s.tokens.DownloadToken(),
		ExpiresAt:       now.Add(s.cfg.DownloadTokenTTL),
		PaidAt:          now,
		PaymentIntentID: event.PaymentIntentID,
	}

	doc, first, err := s.db.MarkPaid(event.DocumentID, grant)
	if err != nil {
		return "", fmt.Errorf("marking document paid: %w", err)
	}
	if !first {
		slog.Info("duplicate completion event ignored", "document_id", doc.ID)
		return doc.DownloadToken, nil
	}

	if doc.Email != "" {
		downloadURL := s.cfg.BaseURL + "/download/" + doc.DownloadToken
		if err := s.notifier.SendDownloadLink(ctx, doc.Email, downloadURL); err != nil {
			slog.Warn("failed to send download notification", "document_id", doc.ID, "error", err)
		}
	}
	return doc.DownloadToken, nil
}

// PreviewPDF renders the reimbursement PDF for a public token, watermarked
// until the document is paid.
func (s *Service) PreviewPDF(ctx context.Context, token string) ([]byte, error) {
	doc, err := s.db.FindByPublicToken(token)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}
	if !doc.HasCoreFields() {
		return nil, fmt.Errorf("%w: document is not ready for preview", ErrPrecondition)
	}
	return s.render(ctx, doc, doc.Status != StatusPaid)
}

// DownloadPDF renders the final PDF for a valid download token. Lookup miss
// and expiry are indistinguishable to the caller.
func (s *Service) DownloadPDF(ctx context.Context, token string) ([]byte, string, error) {
	doc, err := s.db.FindByDownloadToken(token)
	if err != nil {
		return nil, "", fmt.Errorf("finding document: %w", err)
	}
	if !doc.DownloadValid(s.timeSource.Now()) {
		return nil, "", ErrNotFound
	}
	pdf, err := s.render(ctx, doc, false)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("submitready-%s.pdf", doc.ID), nil
}

func (s *Service) render(ctx context.Context, doc *Document, watermark bool) ([]byte, error) {
	attachment, err := s.storage.Get(ctx, doc.AttachmentKey)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	pdf, err := s.renderer.Render(doc, attachment, watermark)
	if err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return pdf, nil
}

// GetAttachment returns the normalized attachment image for a public token.
func (s *Service) GetAttachment(ctx context.Context, token string) ([]byte, string, error) {
	doc, err := s.db.FindByPublicToken(token)
	if err != nil {
		return nil, "", fmt.Errorf("finding document: %w", err)
	}
	data, err := s.storage.Get(ctx, doc.AttachmentKey)
	if err != nil {
		return nil, "", fmt.Errorf("reading attachment: %w", err)
	}
	return data, doc.AttachmentMimeType, nil
}

// View is the public shape of a document handed to preview/edit clients.
type View struct {
	Token            string  `json:"token"`
	Status           Status  `json:"status"`
	Vendor           string  `json:"vendor,omitempty"`
	Date             string  `json:"date,omitempty"`
	TotalCents       int64   `json:"total_cents,omitempty"`
	Currency         string  `json:"currency"`
	Category         string  `json:"category,omitempty"`
	VendorConfidence float64 `json:"vendor_confidence"`
	DateConfidence   float64 `json:"date_confidence"`
	TotalConfidence  float64 `json:"total_confidence"`
	VendorEditable   bool    `json:"vendor_editable"`
	DateEditable     bool    `json:"date_editable"`
	TotalEditable    bool    `json:"total_editable"`
}

// ViewOf builds the client view, computing per-field editability.
func (s *Service) ViewOf(doc *Document) View {
	editable := func(conf float64) bool {
		return doc.Status != StatusPaid && FieldEditable(conf, s.cfg.ReviewThreshold)
	}
	return View{
		Token:            doc.PublicToken,
		Status:           doc.Status,
		Vendor:           doc.Vendor,
		Date:             doc.Date,
		TotalCents:       doc.TotalCents,
		Currency:         doc.Currency,
		Category:         doc.Category,
		VendorConfidence: doc.VendorConfidence,
		DateConfidence:   doc.DateConfidence,
		TotalConfidence:  doc.TotalConfidence,
		VendorEditable:   editable(doc.VendorConfidence),
		DateEditable:     editable(doc.DateConfidence),
		TotalEditable:    editable(doc.TotalConfidence),
	}
}

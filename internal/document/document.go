package document

import "time"

// Status is the lifecycle state of a document. UPLOADED is transient: a fresh
// extraction is re-evaluated before the document is ever at rest.
type Status string

const (
	StatusUploaded    Status = "UPLOADED"
	StatusNeedsReview Status = "NEEDS_REVIEW"
	StatusReady       Status = "READY"
	StatusPaid        Status = "PAID"
)

// Document is one receipt upload and everything derived from it. Vendor, Date
// and TotalCents use zero values for "not extracted". The three tokens are
// independent namespaces: PublicToken grants preview/edit access and never
// rotates, CheckoutSessionID correlates the asynchronous payment event, and
// DownloadToken grants paid-content access until its expiry. DownloadToken is
// set exactly once, on the first successful payment.
type Document struct {
	ID          string `json:"id"`
	PublicToken string `json:"public_token"`

	ReceiptKey         string `json:"receipt_key"`
	ReceiptMimeType    string `json:"receipt_mime_type"`
	AttachmentKey      string `json:"attachment_key"`
	AttachmentMimeType string `json:"attachment_mime_type"`

	Vendor     string `json:"vendor,omitempty"`
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	TotalCents int64  `json:"total_cents,omitempty"`
	Currency   string `json:"currency"`
	Category   string `json:"category,omitempty"`

	VendorConfidence float64 `json:"vendor_confidence"`
	DateConfidence   float64 `json:"date_confidence"`
	TotalConfidence  float64 `json:"total_confidence"`
	ExtractionRaw    string  `json:"extraction_raw,omitempty"`

	Status Status `json:"status"`
	Email  string `json:"email,omitempty"`

	CheckoutSessionID      string    `json:"checkout_session_id,omitempty"`
	PaymentIntentID        string    `json:"payment_intent_id,omitempty"`
	DownloadToken          string    `json:"download_token,omitempty"`
	DownloadTokenExpiresAt time.Time `json:"download_token_expires_at,omitempty"`
	PaidAt                 time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCoreFields reports whether vendor, date and total were all captured.
func (d *Document) HasCoreFields() bool {
	return d.Vendor != "" && d.Date != "" && d.TotalCents > 0
}

// DownloadValid reports whether the download token grants access at now.
// Expiry is a hard boundary; there is no grace period or renewal path.
func (d *Document) DownloadValid(now time.Time) bool {
	return d.Status == StatusPaid && d.DownloadToken != "" && now.Before(d.DownloadTokenExpiresAt)
}

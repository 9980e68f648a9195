package document

// DefaultReviewThreshold is the confidence below which a field is unreliable
// and remains user-editable.
const DefaultReviewThreshold = 0.75

// PromotedConfidence is assigned to a field after a human correction; a
// person's answer is trusted over OCR.
const PromotedConfidence = 0.8

// StatusInput is what the status policy evaluates.
type StatusInput struct {
	Vendor           string
	Date             string
	TotalCents       int64
	VendorConfidence float64
	DateConfidence   float64
	TotalConfidence  float64
}

// DetermineStatus maps field completeness and confidence to a lifecycle
// status. Pure and total. PAID is never produced here; only the payment
// completion event moves a document to PAID, and nothing moves it back.
func DetermineStatus(in StatusInput, threshold float64) Status {
	if in.Vendor == "" || in.Date == "" || in.TotalCents <= 0 {
		return StatusNeedsReview
	}
	if in.VendorConfidence >= threshold && in.DateConfidence >= threshold && in.TotalConfidence >= threshold {
		return StatusReady
	}
	return StatusNeedsReview
}

// FieldEditable reports whether a field may still be corrected by the user.
func FieldEditable(confidence, threshold float64) bool {
	return confidence < threshold
}

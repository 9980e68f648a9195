package extraction

import (
	"context"
	"log/slog"
)

// Extraction pairs a parse result with the normalized attachment bitmap that
// will be persisted alongside the document.
type Extraction struct {
	Result
	Attachment         []byte
	AttachmentMimeType string
}

// Pipeline runs normalize, recognize, parse for one upload. Invocations are
// independent and stateless across requests.
type Pipeline struct {
	provider Provider

	// ReviewThreshold is the confidence cutoff for RequiresReview.
	ReviewThreshold float64
}

// NewPipeline creates a pipeline over the selected provider.
func NewPipeline(provider Provider) *Pipeline {
	return &Pipeline{provider: provider, ReviewThreshold: DefaultReviewThreshold}
}

// Extract converts an uploaded file into fields plus confidences. A broken
// upload is terminal (ErrUnreadableInput); an OCR failure degrades to a
// zero-confidence, fields-absent result that still carries the attachment.
func (p *Pipeline) Extract(ctx context.Context, data []byte, mimeType string) (*Extraction, error) {
	bm, err := Normalize(data, mimeType)
	if err != nil {
		return nil, err
	}

	rec, err := p.provider.Recognize(ctx, bm)
	if err != nil {
		slog.Error("ocr recognition failed",
			"mime_type", mimeType,
			"input_size", len(data),
			"error", err,
		)
		return &Extraction{
			Result:             degradedResult(),
			Attachment:         bm.PNG,
			AttachmentMimeType: bm.MimeType(),
		}, nil
	}

	return &Extraction{
		Result:             ParseFields(rec.Text, rec.Confidence, p.ReviewThreshold),
		Attachment:         bm.PNG,
		AttachmentMimeType: bm.MimeType(),
	}, nil
}

// degradedResult is the canonical all-absent outcome used when no provider
// output is available.
func degradedResult() Result {
	return Result{
		Fields:         Fields{Currency: "USD"},
		RequiresReview: true,
	}
}

package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract is the fully self-hosted engine. Each call acquires its own
// worker client and releases it on every exit path; recognition races the
// context deadline, and a timeout is a failure rather than a partial result.
type Tesseract struct {
	language string
	timeout  time.Duration
}

// NewTesseract creates the local provider.
func NewTesseract(language string, timeout time.Duration) *Tesseract {
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tesseract{language: language, timeout: timeout}
}

// Recognize extracts text from the bitmap, bounded by the configured timeout.
func (t *Tesseract) Recognize(ctx context.Context, bm *Bitmap) (*Recognition, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		rec *Recognition
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := t.recognize(bm)
		done <- outcome{rec: rec, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: tesseract: %v", ErrOCRFailed, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: tesseract: %v", ErrOCRFailed, out.err)
		}
		return out.rec, nil
	}
}

func (t *Tesseract) recognize(bm *Bitmap) (*Recognition, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetImageFromBytes(bm.PNG); err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	return &Recognition{Text: text, Confidence: t.confidence(client, text)}, nil
}

// confidence averages tesseract's per-word confidences (reported 0-100) and
// scales them to [0,1].
func (t *Tesseract) confidence(client *gosseract.Client, text string) float64 {
	if text == "" {
		return 0
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return fallbackConfidence
	}

	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
	}
	avg := sum / float64(len(boxes)) / 100
	if avg < 0 {
		return 0
	}
	if avg > 1 {
		return 1
	}
	return avg
}

// Close releases resources; workers are per-call, so nothing is held.
func (t *Tesseract) Close() error {
	return nil
}

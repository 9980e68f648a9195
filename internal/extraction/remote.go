package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultPayloadLimit matches the hosted endpoint's 1 MiB upload ceiling.
const DefaultPayloadLimit = 1 << 20

// Re-encode schedule for fitting a bitmap under the remote payload ceiling.
// Shrinking terminates within encodeAttempts tries plus one aggressive
// floor encoding, regardless of input size.
const (
	encodeMaxDimension   = 2200
	encodeStartQuality   = 85
	encodeShrinkFactor   = 0.85
	encodeQualityStep    = 10
	encodeMinQuality     = 40
	encodeAttempts       = 6
	encodeFloorDimension = 800
	encodeFloorQuality   = 30
)

// Remote sends bitmaps to a hosted OCR endpoint as a multipart upload.
type Remote struct {
	url          string
	apiKey       string
	payloadLimit int
	client       *http.Client
}

// NewRemote creates the remote provider.
func NewRemote(url, apiKey string, payloadLimit int, timeout time.Duration) *Remote {
	if payloadLimit <= 0 {
		payloadLimit = DefaultPayloadLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{
		url:          url,
		apiKey:       apiKey,
		payloadLimit: payloadLimit,
		client:       &http.Client{Timeout: timeout},
	}
}

type remoteWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
}

type remoteResponse struct {
	Text  string       `json:"text"`
	Words []remoteWord `json:"words"`
}

// Recognize uploads a JPEG encoding of the bitmap and parses the endpoint's
// text/word response. Any transport or protocol failure is ErrOCRFailed.
func (r *Remote) Recognize(ctx context.Context, bm *Bitmap) (*Recognition, error) {
	payload, err := encodeWithinLimit(bm.Image, r.payloadLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "receipt.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: building upload: %v", ErrOCRFailed, err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: building upload: %v", ErrOCRFailed, err)
	}
	if err := writer.WriteField("language", "eng"); err != nil {
		return nil, fmt.Errorf("%w: building upload: %v", ErrOCRFailed, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: building upload: %v", ErrOCRFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrOCRFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if r.apiKey != "" {
		req.Header.Set("X-Api-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling ocr endpoint: %v", ErrOCRFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: ocr endpoint status %d: %s", ErrOCRFailed, resp.StatusCode, detail)
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrOCRFailed, err)
	}

	return &Recognition{Text: parsed.Text, Confidence: wordConfidence(parsed)}, nil
}

// Close is a no-op for the HTTP client.
func (r *Remote) Close() error {
	return nil
}

// wordConfidence averages reported per-word confidences scaled to [0,1]. A
// non-empty result without word data gets a conservative fixed score; empty
// text is zero.
func wordConfidence(resp remoteResponse) float64 {
	if resp.Text == "" {
		return 0
	}
	if len(resp.Words) == 0 {
		return fallbackConfidence
	}
	var sum float64
	for _, w := range resp.Words {
		sum += w.Confidence
	}
	avg := sum / float64(len(resp.Words)) / 100
	if avg < 0 {
		return 0
	}
	if avg > 1 {
		return 1
	}
	return avg
}

// encodeWithinLimit re-encodes img as JPEG under limit bytes: start large and
// sharp, then shrink the long edge and drop quality each attempt. The floor
// encoding is the last resort for pathological inputs.
func encodeWithinLimit(img image.Image, limit int) ([]byte, error) {
	dimension := encodeMaxDimension
	quality := encodeStartQuality

	for attempt := 0; attempt < encodeAttempts; attempt++ {
		payload, err := encodeJPEG(img, dimension, quality)
		if err != nil {
			return nil, err
		}
		if len(payload) <= limit {
			return payload, nil
		}
		dimension = int(float64(dimension) * encodeShrinkFactor)
		quality -= encodeQualityStep
		if quality < encodeMinQuality {
			quality = encodeMinQuality
		}
	}

	return encodeJPEG(img, encodeFloorDimension, encodeFloorQuality)
}

func encodeJPEG(img image.Image, maxDimension, quality int) ([]byte, error) {
	fitted := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

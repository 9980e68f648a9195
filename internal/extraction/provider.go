package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrOCRFailed marks a provider timeout or error. The pipeline recovers from
// it by degrading to a zero-confidence result; it is never a hard failure of
// the upload.
var ErrOCRFailed = errors.New("ocr failed")

// DefaultTimeout bounds a single recognition call.
const DefaultTimeout = 20 * time.Second

// fallbackConfidence is substituted when an engine returns text but no usable
// per-word confidences.
const fallbackConfidence = 0.65

// Recognition is the raw output of one OCR pass over a bitmap.
type Recognition struct {
	Text       string
	Confidence float64 // [0,1]
}

// Provider extracts text from a bitmap. Exactly one provider is selected per
// extraction call; a failure propagates as ErrOCRFailed and never silently
// retries a different provider.
type Provider interface {
	Recognize(ctx context.Context, bm *Bitmap) (*Recognition, error)
	Close() error
}

// Mode names a provider selection option.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
	ModeNone   Mode = "none"
)

// ProviderConfig is everything provider selection depends on. Selection is a
// pure function of this struct: same config, same provider.
type ProviderConfig struct {
	Mode         Mode
	Timeout      time.Duration
	Language     string
	RemoteURL    string
	RemoteAPIKey string
	// PayloadLimit is the remote endpoint's upload ceiling in bytes.
	PayloadLimit int
	// Constrained marks hosting environments where the local engine's worker
	// subsystem cannot run (managed/ephemeral runtimes).
	Constrained bool
}

// ResolveMode reduces auto to a concrete mode. Constrained environments get
// the remote engine when a credential is configured and degrade to none
// otherwise; everything else runs the local engine.
func ResolveMode(cfg ProviderConfig) Mode {
	if cfg.Mode != ModeAuto {
		return cfg.Mode
	}
	if cfg.Constrained {
		if cfg.RemoteURL != "" && cfg.RemoteAPIKey != "" {
			return ModeRemote
		}
		return ModeNone
	}
	return ModeLocal
}

// SelectProvider constructs the provider for cfg.
func SelectProvider(cfg ProviderConfig) (Provider, error) {
	switch ResolveMode(cfg) {
	case ModeNone:
		return NewDisabled(), nil
	case ModeLocal:
		return NewTesseract(cfg.Language, cfg.Timeout), nil
	case ModeRemote:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("remote ocr endpoint is not configured")
		}
		return NewRemote(cfg.RemoteURL, cfg.RemoteAPIKey, cfg.PayloadLimit, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", cfg.Mode)
	}
}

// disabled returns empty text and zero confidence; used when OCR is turned
// off or unsupported in the hosting environment.
type disabled struct{}

// NewDisabled returns the no-op provider.
func NewDisabled() Provider {
	return disabled{}
}

func (disabled) Recognize(context.Context, *Bitmap) (*Recognition, error) {
	return &Recognition{}, nil
}

func (disabled) Close() error {
	return nil
}

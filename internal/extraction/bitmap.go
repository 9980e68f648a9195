package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrUnreadableInput marks a corrupt or unsupported upload. There is no
// fallback for this stage; callers surface it to the uploader.
var ErrUnreadableInput = errors.New("unreadable input")

const (
	// rasterDPI bounds memory and OCR cost when rasterizing the first page
	// of a paged document.
	rasterDPI = 220

	// contrastBoost is the percentage applied after grayscale conversion;
	// photographed receipts with uneven lighting OCR noticeably better.
	contrastBoost = 12
)

// Bitmap is the canonical single-page image every upload is reduced to. The
// decoded image feeds the OCR providers (the remote one re-encodes it at
// various sizes) and the PNG bytes become the document's attachment.
type Bitmap struct {
	Image image.Image
	PNG   []byte
}

// MimeType returns the attachment MIME type; normalization always emits PNG.
func (b *Bitmap) MimeType() string {
	return "image/png"
}

// Normalize converts an uploaded file into a Bitmap. PDFs contribute only
// their first page; photographic inputs are orientation-corrected, converted
// to grayscale and contrast-boosted before encoding.
func Normalize(data []byte, mimeType string) (*Bitmap, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	var (
		img image.Image
		err error
	)
	switch {
	case mimeType == "application/pdf":
		img, err = rasterizeFirstPage(data)
	case isHEIC(data) || isHEICMimeType(mimeType):
		img, err = decodeHEIC(data)
	default:
		img, err = decodePhoto(data)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encoding png: %v", ErrUnreadableInput, err)
	}

	return &Bitmap{Image: img, PNG: buf.Bytes()}, nil
}

// rasterizeFirstPage renders page 0 of a PDF. Receipts are single page; later
// pages are ignored.
func rasterizeFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pdf: %v", ErrUnreadableInput, err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(0, rasterDPI)
	if err != nil {
		return nil, fmt.Errorf("%w: rendering pdf page: %v", ErrUnreadableInput, err)
	}
	return img, nil
}

func decodeHEIC(data []byte) (image.Image, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding heic image: %v", ErrUnreadableInput, err)
	}
	return cleanupPhoto(img), nil
}

func decodePhoto(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrUnreadableInput, err)
	}
	return cleanupPhoto(img), nil
}

func cleanupPhoto(img image.Image) image.Image {
	return imaging.AdjustContrast(imaging.Grayscale(img), contrastBoost)
}

// isHEIC checks the ftyp box for HEIC/HEIF brands; Go's standard image
// package cannot decode the format common on iPhones.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

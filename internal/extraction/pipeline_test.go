package extraction

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pngBytes encodes a small solid image for use as upload data.
func pngBytes(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var _ = Describe("Normalize", func() {
	When("the upload is a PNG photo", func() {
		It("produces a bitmap with PNG attachment bytes", func() {
			bm, err := Normalize(pngBytes(40, 30), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(bm.Image).NotTo(BeNil())
			Expect(bm.MimeType()).To(Equal("image/png"))

			decoded, err := png.Decode(bytes.NewReader(bm.PNG))
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded.Bounds().Dx()).To(Equal(40))
			Expect(decoded.Bounds().Dy()).To(Equal(30))
		})
	})

	When("the upload is garbage", func() {
		It("returns ErrUnreadableInput", func() {
			_, err := Normalize([]byte("definitely not an image"), "image/jpeg")
			Expect(err).To(MatchError(ErrUnreadableInput))
		})
	})

	When("the upload claims to be a PDF but is not", func() {
		It("returns ErrUnreadableInput", func() {
			_, err := Normalize([]byte("not a pdf"), "application/pdf")
			Expect(err).To(MatchError(ErrUnreadableInput))
		})
	})
})

var _ = Describe("isHEIC", func() {
	It("detects the ftyp heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 8)...)
		Expect(isHEIC(data)).To(BeTrue())
	})

	It("rejects short or unrelated data", func() {
		Expect(isHEIC([]byte("tiny"))).To(BeFalse())
		Expect(isHEIC(pngBytes(4, 4))).To(BeFalse())
	})
})

// stubProvider is a canned Provider for pipeline tests
type stubProvider struct {
	recognition *Recognition
	err         error
}

func (s *stubProvider) Recognize(context.Context, *Bitmap) (*Recognition, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.recognition, nil
}

func (s *stubProvider) Close() error {
	return nil
}

var _ = Describe("Pipeline", func() {
	var (
		provider   *stubProvider
		pipeline   *Pipeline
		data       []byte
		mimeType   string
		extraction *Extraction
		err        error
	)

	BeforeEach(func() {
		provider = &stubProvider{
			recognition: &Recognition{
				Text:       "COFFEE HOUSE\n2024-03-15\nTotal $11.20",
				Confidence: 0.9,
			},
		}
		data = pngBytes(40, 30)
		mimeType = "image/png"
	})

	JustBeforeEach(func() {
		pipeline = NewPipeline(provider)
		extraction, err = pipeline.Extract(context.Background(), data, mimeType)
	})

	When("recognition succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("parses fields from the recognized text", func() {
			Expect(extraction.Fields.Vendor).To(Equal("COFFEE HOUSE"))
			Expect(extraction.Fields.TotalCents).To(Equal(int64(1120)))
		})

		It("carries the PNG attachment", func() {
			Expect(extraction.Attachment).NotTo(BeEmpty())
			Expect(extraction.AttachmentMimeType).To(Equal("image/png"))
		})
	})

	When("the input is unreadable", func() {
		BeforeEach(func() {
			data = []byte("garbage")
		})

		It("fails hard", func() {
			Expect(err).To(MatchError(ErrUnreadableInput))
		})
	})

	When("recognition fails", func() {
		BeforeEach(func() {
			provider.err = errors.New("engine crashed")
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("degrades to an all-absent result", func() {
			Expect(extraction.Fields.Vendor).To(BeEmpty())
			Expect(extraction.Fields.TotalCents).To(BeZero())
			Expect(extraction.Fields.Currency).To(Equal("USD"))
		})

		It("requires review", func() {
			Expect(extraction.RequiresReview).To(BeTrue())
		})

		It("still carries the attachment", func() {
			Expect(extraction.Attachment).NotTo(BeEmpty())
		})
	})
})

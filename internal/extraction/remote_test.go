package extraction

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// noisyImage produces an incompressible bitmap so the encoder actually has to
// shrink to meet a payload limit.
func noisyImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	seed := uint32(2463534242)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			img.Set(x, y, color.RGBA{uint8(seed), uint8(seed >> 8), uint8(seed >> 16), 255})
		}
	}
	return img
}

var _ = Describe("Remote", func() {
	Describe("Recognize", func() {
		var (
			server      *httptest.Server
			handler     http.HandlerFunc
			gotAPIKey   string
			gotLanguage string
			recognition *Recognition
			err         error
		)

		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(remoteResponse{
					Text: "COFFEE HOUSE\nTotal 11.20",
					Words: []remoteWord{
						{Text: "COFFEE", Confidence: 90},
						{Text: "HOUSE", Confidence: 80},
					},
				})
			}
		})

		JustBeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				gotAPIKey = r.Header.Get("X-Api-Key")
				Expect(r.ParseMultipartForm(32 << 20)).To(Succeed())
				gotLanguage = r.FormValue("language")
				handler(w, r)
			}))
			DeferCleanup(server.Close)

			remote := NewRemote(server.URL, "secret-key", DefaultPayloadLimit, 5*time.Second)
			bm := &Bitmap{Image: noisyImage(64, 64)}
			recognition, err = remote.Recognize(context.Background(), bm)
		})

		When("the endpoint returns words with confidences", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns the recognized text", func() {
				Expect(recognition.Text).To(Equal("COFFEE HOUSE\nTotal 11.20"))
			})

			It("averages word confidences to [0,1]", func() {
				Expect(recognition.Confidence).To(BeNumerically("~", 0.85, 1e-9))
			})

			It("sends the API key header", func() {
				Expect(gotAPIKey).To(Equal("secret-key"))
			})

			It("sends the language field", func() {
				Expect(gotLanguage).To(Equal("eng"))
			})
		})

		When("the endpoint returns text without word data", func() {
			BeforeEach(func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					json.NewEncoder(w).Encode(remoteResponse{Text: "some text"})
				}
			})

			It("falls back to a fixed confidence", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(recognition.Confidence).To(Equal(0.65))
			})
		})

		When("the endpoint returns empty text", func() {
			BeforeEach(func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					json.NewEncoder(w).Encode(remoteResponse{})
				}
			})

			It("reports zero confidence", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(recognition.Confidence).To(BeZero())
			})
		})

		When("the endpoint rejects the request", func() {
			BeforeEach(func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, "quota exceeded", http.StatusTooManyRequests)
				}
			})

			It("returns ErrOCRFailed", func() {
				Expect(err).To(MatchError(ErrOCRFailed))
			})
		})

		When("the endpoint returns malformed JSON", func() {
			BeforeEach(func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte("not json"))
				}
			})

			It("returns ErrOCRFailed", func() {
				Expect(err).To(MatchError(ErrOCRFailed))
			})
		})
	})

	Describe("encodeWithinLimit", func() {
		When("the image fits easily", func() {
			It("returns a payload within the limit", func() {
				payload, err := encodeWithinLimit(noisyImage(64, 64), DefaultPayloadLimit)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(payload)).To(BeNumerically("<=", DefaultPayloadLimit))
			})
		})

		When("a large noisy image exceeds the default limit", func() {
			It("shrinks until the payload fits", func() {
				payload, err := encodeWithinLimit(noisyImage(1600, 1600), DefaultPayloadLimit)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(payload)).To(BeNumerically("<=", DefaultPayloadLimit))
			})

			It("re-encodes smaller than the unconstrained encoding", func() {
				img := noisyImage(1600, 1600)
				loose, err := encodeWithinLimit(img, 64<<20)
				Expect(err).NotTo(HaveOccurred())

				tight, err := encodeWithinLimit(img, 64<<10)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(tight)).To(BeNumerically("<", len(loose)))
			})
		})

		It("terminates even with an impossible limit", func() {
			payload, err := encodeWithinLimit(noisyImage(400, 400), 1)
			Expect(err).NotTo(HaveOccurred())
			// Floor encoding is returned as-is even when it exceeds the limit.
			Expect(payload).NotTo(BeEmpty())
		})
	})
})

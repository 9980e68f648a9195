package extraction

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveMode", func() {
	var cfg ProviderConfig

	BeforeEach(func() {
		cfg = ProviderConfig{Mode: ModeAuto}
	})

	When("an explicit mode is set", func() {
		BeforeEach(func() {
			cfg.Mode = ModeLocal
			cfg.Constrained = true
		})

		It("wins over everything else", func() {
			Expect(ResolveMode(cfg)).To(Equal(ModeLocal))
		})
	})

	When("auto runs on an unconstrained host", func() {
		It("selects the local engine", func() {
			Expect(ResolveMode(cfg)).To(Equal(ModeLocal))
		})
	})

	When("auto runs on a constrained host with remote credentials", func() {
		BeforeEach(func() {
			cfg.Constrained = true
			cfg.RemoteURL = "https://ocr.example.com/v1/recognize"
			cfg.RemoteAPIKey = "key"
		})

		It("selects the remote engine", func() {
			Expect(ResolveMode(cfg)).To(Equal(ModeRemote))
		})
	})

	When("auto runs on a constrained host without credentials", func() {
		BeforeEach(func() {
			cfg.Constrained = true
			cfg.RemoteURL = "https://ocr.example.com/v1/recognize"
		})

		It("degrades to none", func() {
			Expect(ResolveMode(cfg)).To(Equal(ModeNone))
		})
	})

	It("is deterministic for the same config", func() {
		cfg.Constrained = true
		cfg.RemoteURL = "https://ocr.example.com"
		cfg.RemoteAPIKey = "key"
		first := ResolveMode(cfg)
		for i := 0; i < 10; i++ {
			Expect(ResolveMode(cfg)).To(Equal(first))
		}
	})
})

var _ = Describe("SelectProvider", func() {
	When("the mode is none", func() {
		It("returns the disabled provider", func() {
			provider, err := SelectProvider(ProviderConfig{Mode: ModeNone})
			Expect(err).NotTo(HaveOccurred())

			rec, err := provider.Recognize(context.Background(), &Bitmap{})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Text).To(BeEmpty())
			Expect(rec.Confidence).To(BeZero())
		})
	})

	When("the mode is remote without an endpoint", func() {
		It("returns an error", func() {
			_, err := SelectProvider(ProviderConfig{Mode: ModeRemote})
			Expect(err).To(HaveOccurred())
		})
	})

	When("the mode is unknown", func() {
		It("returns an error", func() {
			_, err := SelectProvider(ProviderConfig{Mode: Mode("carrier-pigeon")})
			Expect(err).To(HaveOccurred())
		})
	})
})

package document

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DetermineStatus", func() {
	var in StatusInput

	BeforeEach(func() {
		in = StatusInput{
			Vendor:           "Coffee House",
			Date:             "2024-03-15",
			TotalCents:       1120,
			VendorConfidence: 0.9,
			DateConfidence:   0.82,
			TotalConfidence:  0.8,
		}
	})

	When("all fields are present and confident", func() {
		It("returns READY", func() {
			Expect(DetermineStatus(in, DefaultReviewThreshold)).To(Equal(StatusReady))
		})
	})

	When("the vendor is missing", func() {
		It("returns NEEDS_REVIEW", func() {
			in.Vendor = ""
			Expect(DetermineStatus(in, DefaultReviewThreshold)).To(Equal(StatusNeedsReview))
		})
	})

	When("the date is missing", func() {
		It("returns NEEDS_REVIEW", func() {
			in.Date = ""
			Expect(DetermineStatus(in, DefaultReviewThreshold)).To(Equal(StatusNeedsReview))
		})
	})

	When("the total is zero", func() {
		It("returns NEEDS_REVIEW", func() {
			in.TotalCents = 0
			Expect(DetermineStatus(in, DefaultReviewThreshold)).To(Equal(StatusNeedsReview))
		})
	})

	When("a single confidence sits below the threshold", func() {
		It("returns NEEDS_REVIEW", func() {
			in.DateConfidence = 0.74
			Expect(DetermineStatus(in, DefaultReviewThreshold)).To(Equal(StatusNeedsReview))
		})
	})

	When("a confidence sits exactly at the threshold", func() {
		It("returns READY", func() {
			in.VendorConfidence = DefaultReviewThreshold
			in.DateConfidence = DefaultReviewThreshold
			in.TotalConfidence = DefaultReviewThreshold
			Expect(DetermineStatus(in, DefaultReviewThreshold)).To(Equal(StatusReady))
		})
	})

	When("a custom threshold is configured", func() {
		It("gates against it instead of the default", func() {
			Expect(DetermineStatus(in, 0.95)).To(Equal(StatusNeedsReview))
			Expect(DetermineStatus(in, 0.5)).To(Equal(StatusReady))
		})
	})
})

var _ = Describe("FieldEditable", func() {
	It("allows editing below the threshold", func() {
		Expect(FieldEditable(0.74, DefaultReviewThreshold)).To(BeTrue())
	})

	It("locks the field at the threshold", func() {
		Expect(FieldEditable(0.75, DefaultReviewThreshold)).To(BeFalse())
	})

	It("locks the field above the threshold", func() {
		Expect(FieldEditable(0.9, DefaultReviewThreshold)).To(BeFalse())
	})
})

var _ = Describe("Document", func() {
	Describe("HasCoreFields", func() {
		It("requires vendor, date and total", func() {
			doc := &Document{Vendor: "A", Date: "2024-01-01", TotalCents: 100}
			Expect(doc.HasCoreFields()).To(BeTrue())

			Expect((&Document{Date: "2024-01-01", TotalCents: 100}).HasCoreFields()).To(BeFalse())
			Expect((&Document{Vendor: "A", TotalCents: 100}).HasCoreFields()).To(BeFalse())
			Expect((&Document{Vendor: "A", Date: "2024-01-01"}).HasCoreFields()).To(BeFalse())
		})
	})
})

var _ = Describe("TokenSource", func() {
	var source randomTokenSource

	It("mints 36-character public tokens", func() {
		Expect(source.PublicToken()).To(HaveLen(36))
	})

	It("mints 48-character download tokens", func() {
		Expect(source.DownloadToken()).To(HaveLen(48))
	})

	It("mints distinct tokens", func() {
		Expect(source.PublicToken()).NotTo(Equal(source.PublicToken()))
	})
})

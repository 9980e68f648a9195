package document

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RateLimiter", func() {
	var (
		clock   *mockTimeSource
		limiter *RateLimiter
	)

	BeforeEach(func() {
		clock = &mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
		limiter = NewRateLimiterWithTime(time.Minute, 3, clock)
	})

	It("allows calls up to the limit", func() {
		Expect(limiter.Allow("1.2.3.4")).To(BeTrue())
		Expect(limiter.Allow("1.2.3.4")).To(BeTrue())
		Expect(limiter.Allow("1.2.3.4")).To(BeTrue())
	})

	It("denies the call past the limit", func() {
		for i := 0; i < 3; i++ {
			limiter.Allow("1.2.3.4")
		}
		Expect(limiter.Allow("1.2.3.4")).To(BeFalse())
	})

	It("tracks callers independently", func() {
		for i := 0; i < 3; i++ {
			limiter.Allow("1.2.3.4")
		}
		Expect(limiter.Allow("1.2.3.4")).To(BeFalse())
		Expect(limiter.Allow("5.6.7.8")).To(BeTrue())
	})

	It("resets once the window passes", func() {
		for i := 0; i < 4; i++ {
			limiter.Allow("1.2.3.4")
		}
		Expect(limiter.Allow("1.2.3.4")).To(BeFalse())

		clock.now = clock.now.Add(time.Minute)
		Expect(limiter.Allow("1.2.3.4")).To(BeTrue())
	})

	It("keeps denying just before the window boundary", func() {
		for i := 0; i < 3; i++ {
			limiter.Allow("1.2.3.4")
		}
		clock.now = clock.now.Add(time.Minute - time.Second)
		Expect(limiter.Allow("1.2.3.4")).To(BeFalse())
	})
})

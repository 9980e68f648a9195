package document

import (
	"sync"
	"time"
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter keyed by caller identity. Windows are
// created lazily and replaced once their reset time passes.
type RateLimiter struct {
	mu         sync.Mutex
	windows    map[string]*rateWindow
	window     time.Duration
	limit      int
	timeSource TimeSource
}

// NewRateLimiter creates a limiter allowing limit calls per window.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return NewRateLimiterWithTime(window, limit, defaultTimeSource{})
}

// NewRateLimiterWithTime creates a limiter with a custom clock for testing.
func NewRateLimiterWithTime(window time.Duration, limit int, timeSource TimeSource) *RateLimiter {
	return &RateLimiter{
		windows:    make(map[string]*rateWindow),
		window:     window,
		limit:      limit,
		timeSource: timeSource,
	}
}

// Allow records one call for caller and reports whether it fits in the
// current window.
func (r *RateLimiter) Allow(caller string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeSource.Now()
	w, ok := r.windows[caller]
	if !ok || !now.Before(w.resetAt) {
		r.windows[caller] = &rateWindow{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if w.count >= r.limit {
		return false
	}
	w.count++
	return true
}

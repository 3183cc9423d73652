package safety

import (
	"sync"
	"time"
)

// counter tracks submissions for one key within a rolling window.
type counter struct {
	windowStart time.Time
	count       int
}

// RateLimiter enforces a ceiling on submissions per key within a rolling
// window. Counting is sliding in the strict sense: an attempt made while
// the key is blocked re-anchors the window at that attempt, so the block
// only lifts after a full quiet window. The counter is owned by whoever
// constructs it; there is no package-level state.
type RateLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	ceiling  int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing ceiling submissions per key
// per window.
func NewRateLimiter(ceiling int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counters: make(map[string]*counter),
		ceiling:  ceiling,
		window:   window,
		now:      time.Now,
	}
}

// Allow records one submission attempt for key and reports whether it is
// within the ceiling. The read-increment-check is one critical section so
// two concurrent attempts can never both observe room under the ceiling.
// Denied attempts still count, per the sliding-window contract.
func (r *RateLimiter) Allow(key string) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[key]
	if !ok {
		c = &counter{windowStart: now}
		r.counters[key] = c
	}

	if now.Sub(c.windowStart) >= r.window {
		c.windowStart = now
		c.count = 0
	}

	c.count++
	if c.count > r.ceiling {
		// Re-anchor so the block extends from the most recent attempt.
		c.windowStart = now
		return false
	}
	return true
}

// Count returns the current count for key, zero when the key is unknown
// or its window has elapsed.
func (r *RateLimiter) Count(key string) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[key]
	if !ok || now.Sub(c.windowStart) >= r.window {
		return 0
	}
	return c.count
}

// Reset clears all counters. Intended for process start and tests.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]*counter)
}

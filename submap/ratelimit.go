package submap

import (
	"time"

	"github.com/benbjohnson/clock"
)

// RateLimiter gates an operation to at most once per interval. It records
// when the operation last actually ran; callers check DueNow before running
// and call Reset only when they did run, so skipped attempts never push the
// schedule back.
type RateLimiter struct {
	clk         clock.Clock
	minInterval time.Duration
	lastRun     time.Time
	ran         bool
}

// NewRateLimiter returns a limiter reading time from clk. An operation that
// has never run is always due.
func NewRateLimiter(clk clock.Clock, minInterval time.Duration) *RateLimiter {
	return &RateLimiter{clk: clk, minInterval: minInterval}
}

// DueNow reports whether at least the minimum interval has elapsed since
// the last recorded run.
func (r *RateLimiter) DueNow() bool {
	if !r.ran {
		return true
	}
	return r.clk.Now().Sub(r.lastRun) >= r.minInterval
}

// Reset records a run at the current time.
func (r *RateLimiter) Reset() {
	r.lastRun = r.clk.Now()
	r.ran = true
}

// SetInterval replaces the minimum interval without touching the recorded
// last run.
func (r *RateLimiter) SetInterval(minInterval time.Duration) {
	r.minInterval = minInterval
}

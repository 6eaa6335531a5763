package port

import (
	"context"
	"time"
)

// RateWindow is a sliding window as seen by one Take call.
type RateWindow struct {
	// Count includes the current attempt when it was admitted.
	Count   int
	Allowed bool
	// Reset is when the oldest counted attempt leaves the window.
	Reset time.Time
}

// RetryAfter is how long a rejected caller should wait, never negative.
func (w RateWindow) RetryAfter(now time.Time) time.Duration {
	if d := w.Reset.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RateLimitStore admits attempts against named sliding windows. Take trims,
// counts and records in one step so concurrent instances agree on the count.
type RateLimitStore interface {
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (RateWindow, error)
}

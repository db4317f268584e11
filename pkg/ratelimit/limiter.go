// Package ratelimit caps how many requests a client may make per window.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of consuming one point for a key.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter consumes one point for key or rejects the request when the key's
// budget for the current window is exhausted.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Package ratelimit implements the Rate Limiter (spec.md §4.5): a
// token-bucket limiter capping the rate at which steps move from a ready
// queue into dispatch, independent of the concurrency bound.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter behind the spec's
// acquire(deadline) contract. Capacity equals the refill rate (a burst of
// one second), and the limiter is safe for concurrent acquirers — both
// guaranteed by the underlying rate.Limiter.
type Limiter struct {
	inner *rate.Limiter
}

// New builds a limiter refilling at ratePerSecond tokens/second. A
// non-positive rate means "no limit": Acquire always succeeds immediately.
func New(ratePerSecond float64) *Limiter {
	if ratePerSecond <= 0 {
		return &Limiter{}
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Acquire blocks until a token is available or deadline expires, whichever
// comes first, reporting failure (a non-nil error) on expiry or context
// cancellation.
func (l *Limiter) Acquire(ctx context.Context, deadline time.Time) error {
	if l == nil || l.inner == nil {
		return nil
	}
	waitCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	return l.inner.Wait(waitCtx)
}

package scrape

import (
	"context"
	"math/rand/v2"
	"time"
)

// RateLimiter injects a human-looking pause before every UI interaction.
// The pause is sampled uniformly from [min, max]. This is an
// anti-detection requirement, not a tunable: every interaction path in
// the engine goes through Wait.
type RateLimiter struct {
	min time.Duration
	max time.Duration
}

// NewRateLimiter builds a limiter for the inclusive [min, max] window.
// Bounds are swapped if given in the wrong order.
func NewRateLimiter(min, max time.Duration) *RateLimiter {
	if min > max {
		min, max = max, min
	}
	return &RateLimiter{min: min, max: max}
}

// Wait sleeps for one sampled delay, returning early only on context
// cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	d := r.sample()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sample returns one delay within [min, max] inclusive.
func (r *RateLimiter) sample() time.Duration {
	if r.max == r.min {
		return r.min
	}
	return r.min + time.Duration(rand.Int64N(int64(r.max-r.min)+1))
}

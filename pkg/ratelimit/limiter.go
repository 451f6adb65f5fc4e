package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Wait blocks until the next request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// Adaptive is a Limiter that can slow down when the server pushes back
type Adaptive interface {
	Limiter
	// Throttle lowers the allowed rate and returns the new requests per second
	Throttle() float64
}

const (
	throttleFactor = 0.9
	minRate        = 0.1
)

// Pacer sleeps a fixed delay on every Wait. The crawl loop calls it between
// pages.
type Pacer struct {
	delay time.Duration
}

// NewPacer creates a fixed-delay pacer. A zero delay never blocks.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait sleeps for the pacer's delay, returning early with ctx.Err() if ctx is
// cancelled first.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimiter caps the request rate with a token bucket
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps requests per second with the given burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// UpdateLimit changes the allowed rate
func (rl *RateLimiter) UpdateLimit(rps float64) {
	rl.limiter.SetLimit(rate.Limit(rps))
}

// Throttle drops the rate to 90% of its current value, never below 0.1
// requests per second. The crawler calls it after a rate_limit response.
func (rl *RateLimiter) Throttle() float64 {
	next := float64(rl.limiter.Limit()) * throttleFactor
	if next < minRate {
		next = minRate
	}
	rl.UpdateLimit(next)
	return next
}

// Unlimited never blocks
type Unlimited struct{}

// Wait returns immediately unless ctx is already done
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// New builds the request limiter for a requests-per-second cap; zero or
// negative caps disable limiting.
func New(rps float64, burst int) Limiter {
	if rps <= 0 {
		return Unlimited{}
	}
	return NewRateLimiter(rps, burst)
}

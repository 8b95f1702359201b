// Package ratelimit provides the gate shared by every price fetch of a run.
//
// A single Limiter instance is injected into all providers so parallel trade
// replays draw from one token bucket instead of each holding its own.
package ratelimit

import (
	"context"

	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"golang.org/x/time/rate"
)

// Limiter blocks until a request may be sent.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config configures a TokenBucket.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	// Burst is the bucket size. Defaults to 1.
	Burst int `yaml:"burst" validate:"gte=0"`
}

// TokenBucket is a thread-safe token bucket.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token bucket limiter.
func NewTokenBucket(requestsPerSecond float64, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}

	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// New returns a TokenBucket for a positive rate and a Noop limiter otherwise.
func New(cfg Config) Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return Noop{}
	}

	return NewTokenBucket(cfg.RequestsPerSecond, cfg.Burst)
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeRateLimited, "rate limiter wait aborted", err)
	}

	return nil
}

// Allow reports whether a request may be sent right now without waiting.
func (b *TokenBucket) Allow() bool {
	return b.limiter.Allow()
}

// Noop never blocks.
type Noop struct{}

// Wait returns immediately unless ctx is already done.
func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}

package resilience

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/carfix-labs/carfix/pkg/fn"
)

// LimiterOpts configures a token bucket.
type LimiterOpts struct {
	// Rate is the number of tokens added per second.
	Rate float64
	// Burst is the maximum number of tokens (bucket capacity).
	Burst int
	// MaxKeys bounds how many per-key buckets KeyedLimiter keeps.
	MaxKeys int
}

// KeyedLimiter keeps one token bucket per key, such as a client address.
// The least recently seen keys are evicted once MaxKeys is reached.
type KeyedLimiter struct {
	opts    LimiterOpts
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewKeyedLimiter creates a per-key limiter.
func NewKeyedLimiter(opts LimiterOpts) (*KeyedLimiter, error) {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 10000
	}
	buckets, err := lru.New[string, *rate.Limiter](opts.MaxKeys)
	if err != nil {
		return nil, fmt.Errorf("resilience: limiter buckets: %w", err)
	}
	return &KeyedLimiter{opts: opts, buckets: buckets}, nil
}

// Limiter returns the bucket for key, creating it on first use.
func (k *KeyedLimiter) Limiter(key string) *rate.Limiter {
	if l, ok := k.buckets.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(k.opts.Rate), k.opts.Burst)
	if prev, ok, _ := k.buckets.PeekOrAdd(key, l); ok {
		return prev
	}
	return l
}

// Allow reports whether key may proceed now (non-blocking).
func (k *KeyedLimiter) Allow(key string) bool {
	return k.Limiter(key).Allow()
}

// Wait blocks until key has a token or ctx is cancelled.
func (k *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return k.Limiter(key).Wait(ctx)
}

// LimiterStageWait holds each call until l grants a token or ctx ends.
func LimiterStageWait[In, Out any](l *rate.Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}

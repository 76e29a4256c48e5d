package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures exponential backoff.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Jitter scales each wait by a random factor in [0.5, 1.5).
	Jitter bool
}

// DefaultRetry is used for batch work such as indexing.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// SingleAttempt disables retries. Request-path adapters default to it.
var SingleAttempt = RetryOpts{MaxAttempts: 1}

// backoff returns the wait after the given zero-based attempt. MaxWait <= 0
// leaves the wait uncapped.
func (o RetryOpts) backoff(attempt int) time.Duration {
	wait := o.InitialWait << min(attempt, 30)
	if o.MaxWait > 0 && (wait <= 0 || wait > o.MaxWait) {
		wait = o.MaxWait
	}
	if o.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if o.MaxWait > 0 {
		wait = min(wait, o.MaxWait)
	}
	return wait
}

// Retry calls f until it succeeds, MaxAttempts is reached or ctx is done.
// MaxAttempts <= 0 means one attempt. The last failure is returned.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	var r Result[T]
	for attempt := range attempts {
		if r = f(ctx); r.IsOk() || attempt == attempts-1 {
			return r
		}
		t := time.NewTimer(opts.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
	}
	return r
}

// RetryStage retries stage with opts.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}

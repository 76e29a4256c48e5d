package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/pkg/fn"
	"github.com/carfix-labs/carfix/pkg/resilience"
)

// ErrMalformed is returned when a provider answer has no usable result.
var ErrMalformed = errors.New("malformed generated diagnosis")

// Options bounds provider calls.
type Options struct {
	Timeout time.Duration
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
}

// DefaultOptions returns an 8s timeout, one attempt and the default breaker.
func DefaultOptions() Options {
	return Options{
		Timeout: 8 * time.Second,
		Retry:   fn.SingleAttempt,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Adapter wraps a Generator with a timeout, optional retries and a circuit
// breaker. None of its methods return errors.
type Adapter struct {
	gen     Generator
	breaker *resilience.Breaker
	opts    Options
	logger  *slog.Logger
}

// NewAdapter wraps gen. A nil gen behaves like Offline.
func NewAdapter(gen Generator, logger *slog.Logger, opts Options) *Adapter {
	if gen == nil {
		gen = Offline{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = func(from, to resilience.State) {
			logger.Warn("fallback: provider circuit", "from", from, "to", to)
		}
	}
	return &Adapter{
		gen:     gen,
		breaker: resilience.NewBreaker(opts.Breaker),
		opts:    opts,
		logger:  logger,
	}
}

// BreakerState exposes the provider circuit state for health checks.
func (a *Adapter) BreakerState() resilience.State { return a.breaker.State() }

// Generate returns the provider's diagnosis, or Degraded on any failure.
// Generated results are tagged with the query vehicle and SourceGenerative.
func (a *Adapter) Generate(ctx context.Context, query, brand, model string) Generated {
	g, err := call(a, ctx, func(ctx context.Context) (Generated, error) {
		g, err := a.gen.Generate(ctx, query, brand, model)
		if err != nil {
			return Generated{}, err
		}
		return g, checkGenerated(g)
	})
	if err != nil {
		a.logger.Warn("fallback: generate failed, returning degraded diagnosis", "brand", brand, "model", model, "err", err)
		return Degraded(brand, model)
	}
	for i := range g.Results {
		g.Results[i].Source = domain.SourceGenerative
		g.Results[i].Score = 0
		if g.Results[i].Brand == "" {
			g.Results[i].Brand = brand
		}
		if g.Results[i].Model == "" {
			g.Results[i].Model = model
		}
	}
	return g
}

// MaintenanceTips returns tips for v, or an empty slice on failure.
func (a *Adapter) MaintenanceTips(ctx context.Context, v domain.Vehicle) []string {
	tips, err := call(a, ctx, func(ctx context.Context) ([]string, error) {
		return a.gen.MaintenanceTips(ctx, v)
	})
	if err != nil {
		a.logger.Warn("fallback: maintenance tips failed", "brand", v.Brand, "model", v.Model, "err", err)
		return []string{}
	}
	out := fn.Filter(tips, func(s string) bool { return strings.TrimSpace(s) != "" })
	if out == nil {
		return []string{}
	}
	return out
}

// RelatedIssues returns issues related to primary, or an empty slice on failure.
func (a *Adapter) RelatedIssues(ctx context.Context, brand, model, primary string) []RelatedIssue {
	related, err := call(a, ctx, func(ctx context.Context) ([]RelatedIssue, error) {
		return a.gen.RelatedIssues(ctx, brand, model, primary)
	})
	if err != nil {
		a.logger.Warn("fallback: related issues failed", "brand", brand, "model", model, "err", err)
		return []RelatedIssue{}
	}
	out := fn.Filter(related, func(r RelatedIssue) bool { return strings.TrimSpace(r.Issue) != "" })
	if out == nil {
		return []RelatedIssue{}
	}
	return out
}

// Insights bundles the two auxiliary enrichments.
type Insights struct {
	Tips    []string       `json:"maintenance_tips"`
	Related []RelatedIssue `json:"related_issues"`
}

// Enrich fetches tips and related issues concurrently.
func (a *Adapter) Enrich(ctx context.Context, v domain.Vehicle, primary string) Insights {
	var ins Insights
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ins.Tips = a.MaintenanceTips(ctx, v)
		return nil
	})
	g.Go(func() error {
		if strings.TrimSpace(primary) == "" {
			ins.Related = []RelatedIssue{}
			return nil
		}
		ins.Related = a.RelatedIssues(ctx, v.Brand, v.Model, primary)
		return nil
	})
	_ = g.Wait()
	return ins
}

func call[T any](a *Adapter, ctx context.Context, f func(context.Context) (T, error)) (T, error) {
	r := fn.Retry(ctx, a.opts.Retry, func(ctx context.Context) fn.Result[T] {
		return resilience.CallResult(a.breaker, ctx, func(ctx context.Context) fn.Result[T] {
			ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
			defer cancel()
			return guarded(ctx, f)
		})
	})
	return r.Unwrap()
}

func guarded[T any](ctx context.Context, f func(context.Context) (T, error)) (res fn.Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = fn.Err[T](fmt.Errorf("fallback: provider panic: %v", rec))
		}
	}()
	return fn.FromPair(f(ctx))
}

func checkGenerated(g Generated) error {
	if len(g.Results) == 0 {
		return ErrMalformed
	}
	for _, r := range g.Results {
		if strings.TrimSpace(r.Problem) == "" || strings.TrimSpace(r.Solution) == "" {
			return ErrMalformed
		}
	}
	return nil
}

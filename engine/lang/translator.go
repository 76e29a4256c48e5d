package lang

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/pkg/fn"
)

// Translator converts text into the target language.
type Translator interface {
	Translate(ctx context.Context, text string, target domain.Language) (string, error)
}

// TranslatorFunc adapts a plain function to Translator.
type TranslatorFunc func(ctx context.Context, text string, target domain.Language) (string, error)

func (f TranslatorFunc) Translate(ctx context.Context, text string, target domain.Language) (string, error) {
	return f(ctx, text, target)
}

// PassThrough is the offline translator. It returns text unchanged.
type PassThrough struct{}

func (PassThrough) Translate(_ context.Context, text string, _ domain.Language) (string, error) {
	return text, nil
}

// SafeOptions bounds calls made through Safe.
type SafeOptions struct {
	Timeout time.Duration
	Retry   fn.RetryOpts
}

// DefaultSafeOptions returns an 8s timeout and a single attempt.
func DefaultSafeOptions() SafeOptions {
	return SafeOptions{Timeout: 8 * time.Second, Retry: fn.SingleAttempt}
}

// Safe wraps a Translator so that Translate never fails. Errors, panics,
// timeouts and empty outputs all yield the original text.
type Safe struct {
	next   Translator
	opts   SafeOptions
	logger *slog.Logger
}

// NewSafe wraps next. A nil next behaves like PassThrough.
func NewSafe(next Translator, logger *slog.Logger, opts SafeOptions) *Safe {
	if next == nil {
		next = PassThrough{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSafeOptions().Timeout
	}
	return &Safe{next: next, opts: opts, logger: logger}
}

// Translate always returns a nil error.
func (s *Safe) Translate(ctx context.Context, text string, target domain.Language) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	r := fn.Retry(ctx, s.opts.Retry, func(ctx context.Context) fn.Result[string] {
		return s.attempt(ctx, text, target)
	})
	out, err := r.Unwrap()
	if err != nil {
		s.logger.Warn("lang: translation failed, using original text", "target", target, "err", err)
		return text, nil
	}
	return out, nil
}

func (s *Safe) attempt(ctx context.Context, text string, target domain.Language) (res fn.Result[string]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = fn.Errf[string]("lang: translator panic: %v", rec)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.next.Translate(ctx, text, target)
	if err != nil {
		return fn.Err[string](fmt.Errorf("lang: translate: %w", err))
	}
	if strings.TrimSpace(out) == "" {
		return fn.Errf[string]("lang: translate: empty output")
	}
	return fn.Ok(out)
}

// Package diagnose turns a free-text car problem into ranked solutions.
// A query is triaged for vagueness, translated to English when needed,
// reduced to keywords and matched against the issues recorded for the
// vehicle. When nothing matches, a generative fallback may fill in.
package diagnose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/fallback"
	"github.com/carfix-labs/carfix/engine/knowledge"
	"github.com/carfix-labs/carfix/engine/lang"
	"github.com/carfix-labs/carfix/pkg/fn"
	"github.com/carfix-labs/carfix/pkg/vehiclenlp"
)

var tracer = otel.Tracer("engine/diagnose")

// KeywordExtractor reduces text to its significant words.
type KeywordExtractor interface {
	Extract(text string) []string
}

// Fallback produces results when the knowledge base has none.
// *fallback.Adapter satisfies it.
type Fallback interface {
	Generate(ctx context.Context, query, brand, model string) fallback.Generated
}

// Options configures matching behaviour.
type Options struct {
	Policy          Policy
	Threshold       float64 // used by PolicyThresholded
	MaxResults      int     // <= 0 keeps every match
	VagueTokenLimit int     // triage only applies below this many tokens
	AlwaysEnrich    bool    // append generated results even when matches exist
	InferVehicle    bool    // fill a missing brand/model from the query text
	AdapterTimeout  time.Duration
	TranslateRetry  fn.RetryOpts
	Workers         int // concurrent back-translations
	TriageRules     []TriageRule
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Policy:          PolicyNormalized,
		Threshold:       0.3,
		MaxResults:      5,
		VagueTokenLimit: 5,
		AdapterTimeout:  8 * time.Second,
		TranslateRetry:  fn.SingleAttempt,
		Workers:         4,
		TriageRules:     TriageRules,
	}
}

// Service is the diagnosis service.
type Service struct {
	store      knowledge.IssueStore
	extractor  KeywordExtractor
	translator *lang.Safe
	fallback   Fallback
	metrics    *Metrics
	opts       Options
	logger     *slog.Logger
}

// New creates a Service. translator may be nil for English-only use and
// fb may be nil to disable generated results.
func New(store knowledge.IssueStore, extractor KeywordExtractor, translator lang.Translator, fb Fallback, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Policy == "" {
		opts.Policy = PolicyNormalized
	}
	if opts.VagueTokenLimit <= 0 {
		opts.VagueTokenLimit = DefaultOptions().VagueTokenLimit
	}
	if opts.TriageRules == nil {
		opts.TriageRules = TriageRules
	}
	return &Service{
		store:      store,
		extractor:  extractor,
		translator: lang.NewSafe(translator, logger, lang.SafeOptions{Timeout: opts.AdapterTimeout, Retry: opts.TranslateRetry}),
		fallback:   fb,
		opts:       opts,
		logger:     logger,
	}
}

// WithMetrics attaches metrics and returns s.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// Diagnose answers q. The only errors are input errors from domain
// validation and domain.ErrServiceFailure when the store fails; a failing
// translator or generator degrades the answer instead.
func (s *Service) Diagnose(ctx context.Context, q domain.Query) (domain.Diagnosis, error) {
	ctx, span := tracer.Start(ctx, "diagnose")
	defer span.End()
	start := time.Now()

	if err := domain.ValidateQuery(q); err != nil {
		span.SetStatus(codes.Error, "invalid query")
		return domain.Diagnosis{}, err
	}

	raw := strings.TrimSpace(q.Text)
	language := lang.Detect(raw)
	out := domain.Diagnosis{Results: []domain.Result{}, Language: language}
	span.SetAttributes(attribute.String("lang", string(language)))

	if question, ok := Triage(s.opts.TriageRules, raw, s.opts.VagueTokenLimit); ok {
		out.FollowUp = question
		out.Message = NeedMoreDetails
		s.metrics.observe(language, outcomeTriaged, start)
		s.logger.Info("diagnose triaged", "lang", language)
		return out, nil
	}

	text := raw
	if language == domain.LangArabic {
		text, _ = s.translator.Translate(ctx, raw, domain.LangEnglish)
	}

	brand, model := strings.TrimSpace(q.Brand), strings.TrimSpace(q.Model)
	requested := brand
	if c := domain.CanonicalMake(brand); c != "" {
		brand = c
	}
	if s.opts.InferVehicle && brand == "" && model == "" {
		if m := vehiclenlp.ExtractBest(text); m != nil {
			brand, model = m.Make, m.Model
			s.logger.Debug("diagnose inferred vehicle", "brand", brand, "model", model)
		}
	}

	kws := s.extractor.Extract(text)
	candidates, err := s.store.FindByBrandModel(ctx, brand, model)
	if err == nil && len(candidates) == 0 && requested != "" && !strings.EqualFold(requested, brand) {
		// Records may carry the alias spelling the caller used.
		candidates, err = s.store.FindByBrandModel(ctx, requested, model)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve")
		s.metrics.observe(language, outcomeFailed, start)
		s.logger.Error("diagnose retrieve failed", "brand", brand, "model", model, "err", err)
		return domain.Diagnosis{}, fmt.Errorf("diagnose: retrieve: %w: %w", domain.ErrServiceFailure, err)
	}
	span.SetAttributes(attribute.Int("keywords", len(kws)), attribute.Int("candidates", len(candidates)))

	out.Results = Rank(kws, candidates, s.opts.Policy, s.opts.Threshold, s.opts.MaxResults)
	if language == domain.LangArabic {
		out.Results = s.localize(ctx, out.Results, language)
	}

	outcome := outcomeMatched
	if s.fallback != nil && (len(out.Results) == 0 || s.opts.AlwaysEnrich) {
		gen := s.fallback.Generate(ctx, raw, brand, model)
		if gen.Degraded && len(out.Results) > 0 {
			s.logger.Warn("diagnose enrichment degraded, keeping knowledge results", "results", len(out.Results))
			gen = fallback.Generated{}
		}
		results, followUps := gen.Results, gen.FollowUpQuestions
		if language == domain.LangArabic {
			results = s.localize(ctx, results, language)
			followUps = s.localizeAll(ctx, followUps, language)
		}
		for i := range results {
			results[i].Source = domain.SourceGenerative
			results[i].Score = 0
			results[i].MatchCount = 0
		}
		if len(results) > 0 && len(out.Results) == 0 {
			outcome = outcomeGenerated
		}
		out.Results = append(out.Results, results...)
		if len(followUps) > 0 {
			out.FollowUpQuestions = followUps
		}
	}

	if len(out.Results) == 0 {
		outcome = outcomeNoMatch
		out.Message = NoResults
		if len(out.FollowUpQuestions) == 0 {
			out.FollowUpQuestions = append([]string(nil), fallback.HumanFollowUps...)
		}
	}

	s.metrics.observe(language, outcome, start)
	s.logger.Info("diagnose done",
		"lang", language,
		"keywords", len(kws),
		"candidates", len(candidates),
		"results", len(out.Results),
		"outcome", outcome,
		"elapsed", time.Since(start),
	)
	return out, nil
}

// localize translates the problem and solution of each result.
func (s *Service) localize(ctx context.Context, results []domain.Result, target domain.Language) []domain.Result {
	return fn.ParMap(results, s.opts.Workers, func(r domain.Result) domain.Result {
		r.Problem, _ = s.translator.Translate(ctx, r.Problem, target)
		r.Solution, _ = s.translator.Translate(ctx, r.Solution, target)
		return r
	})
}

func (s *Service) localizeAll(ctx context.Context, texts []string, target domain.Language) []string {
	return fn.ParMap(texts, s.opts.Workers, func(t string) string {
		out, _ := s.translator.Translate(ctx, t, target)
		return out
	})
}

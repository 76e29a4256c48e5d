// Package ingest indexes knowledge-base issues into the similar-issue vector
// index. Records flow through validation, embedding and upsert stages.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/semantic"
	"github.com/carfix-labs/carfix/pkg/fn"
	"github.com/carfix-labs/carfix/pkg/resilience"
)

// EmbedBatchSize is the max records per embedding request.
const EmbedBatchSize = 32

// Embedder turns texts into vectors. *ollama.EmbedClient satisfies it.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index stores issue vectors. *semantic.IssueIndex satisfies it.
type Index interface {
	Upsert(ctx context.Context, vectors []semantic.IssueVector) error
}

// Deps holds the external dependencies for the indexing pipeline.
type Deps struct {
	Embedder Embedder
	Index    Index
	Logger   *slog.Logger
	// Retry applies to each batch's embed and upsert calls.
	Retry fn.RetryOpts
	// EmbedLimit, when set, paces embedding requests across all workers.
	EmbedLimit *rate.Limiter
	// Breaker, when set, stops calling the embedder after repeated failures
	// so the remaining batches fail fast.
	Breaker *resilience.Breaker
}

// Stats summarizes a Run.
type Stats struct {
	Indexed int
	Skipped int
	Failed  int
}

// --- Pipeline Stages ---

// Validate checks an issue record via domain validation.
var Validate fn.Stage[domain.IssueRecord, domain.IssueRecord] = func(_ context.Context, rec domain.IssueRecord) fn.Result[domain.IssueRecord] {
	if err := domain.ValidateIssue(rec); err != nil {
		return fn.Err[domain.IssueRecord](err)
	}
	return fn.Ok(rec)
}

// NewEmbed creates a stage that embeds a batch of records in one request.
func NewEmbed(e Embedder) fn.Stage[[]domain.IssueRecord, []semantic.IssueVector] {
	return func(ctx context.Context, recs []domain.IssueRecord) fn.Result[[]semantic.IssueVector] {
		texts := fn.Map(recs, semantic.Text)
		embeddings, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return fn.Err[[]semantic.IssueVector](fmt.Errorf("embed batch: %w", err))
		}
		if len(embeddings) != len(recs) {
			return fn.Errf[[]semantic.IssueVector]("embed batch: got %d vectors for %d texts", len(embeddings), len(recs))
		}
		out := make([]semantic.IssueVector, len(recs))
		for i, rec := range recs {
			out[i] = semantic.IssueVector{Issue: rec, Embedding: embeddings[i]}
		}
		return fn.Ok(out)
	}
}

// NewUpsert creates a stage that writes vectors to the index and reports
// how many were written.
func NewUpsert(x Index) fn.Stage[[]semantic.IssueVector, int] {
	return func(ctx context.Context, vs []semantic.IssueVector) fn.Result[int] {
		if err := x.Upsert(ctx, vs); err != nil {
			return fn.Err[int](fmt.Errorf("vector upsert: %w", err))
		}
		return fn.Ok(len(vs))
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the batch pipeline: Embed → Upsert.
// Records are expected to have passed Validate.
func NewPipeline(deps Deps) fn.Stage[[]domain.IssueRecord, int] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	embedOnce := NewEmbed(deps.Embedder)
	if deps.EmbedLimit != nil {
		embedOnce = resilience.LimiterStageWait(deps.EmbedLimit, embedOnce)
	}
	if deps.Breaker != nil {
		embedOnce = resilience.BreakerStage(deps.Breaker, embedOnce)
	}
	embed := fn.RetryStage(deps.Retry, embedOnce)
	upsert := fn.RetryStage(deps.Retry, NewUpsert(deps.Index))

	embedded := fn.Then(LoggedTap[[]domain.IssueRecord]("embed", log), fn.TracedStage("ingest.embed", embed))
	return fn.Then(embedded, fn.Then(LoggedTap[[]semantic.IssueVector]("upsert", log), fn.TracedStage("ingest.upsert", upsert)))
}

// Run validates recs, then embeds and upserts them in batches with up to
// workers batches in flight. progress, when set, receives the number of
// records handled so far after each batch. A failed batch does not stop
// the others; its error is joined into the returned error.
func Run(ctx context.Context, deps Deps, recs []domain.IssueRecord, workers int, progress func(done int)) (Stats, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}

	var stats Stats
	valid := make([]domain.IssueRecord, 0, len(recs))
	for _, rec := range recs {
		if _, err := Validate(ctx, rec).Unwrap(); err != nil {
			log.Warn("ingest: skipping record", "id", rec.ID, "error", err)
			stats.Skipped++
			continue
		}
		valid = append(valid, rec)
	}

	pipeline := NewPipeline(deps)
	var done atomic.Int64
	done.Add(int64(stats.Skipped))
	results := fn.ParMapResult(fn.Chunk(valid, EmbedBatchSize), workers, func(batch []domain.IssueRecord) fn.Result[int] {
		r := pipeline(ctx, batch)
		n := done.Add(int64(len(batch)))
		if progress != nil {
			progress(int(n))
		}
		if r.IsErr() {
			_, err := r.Unwrap()
			return fn.Err[int](fmt.Errorf("batch starting %s: %w", batch[0].ID, err))
		}
		return r
	})

	var errs []error
	for i, r := range results {
		n, err := r.Unwrap()
		if err != nil {
			stats.Failed += min(EmbedBatchSize, len(valid)-i*EmbedBatchSize)
			errs = append(errs, err)
			continue
		}
		stats.Indexed += n
	}
	log.Info("ingest: done", "indexed", stats.Indexed, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, errors.Join(errs...)
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/carfix-labs/carfix/engine/ingest"
	"github.com/carfix-labs/carfix/engine/semantic"
	"github.com/carfix-labs/carfix/pkg/fn"
	"github.com/carfix-labs/carfix/pkg/ollama"
	"github.com/carfix-labs/carfix/pkg/resilience"
)

func indexCmd() *cobra.Command {
	var (
		ollamaURL, embedModel string
		qdrantURL, collection string
		workers               int
		embedRPS              float64
		recreate              bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed knowledge issues and upsert them into the Qdrant similar-issue index",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog()
			if err != nil {
				return err
			}
			if len(c.Issues) == 0 {
				return fmt.Errorf("catalog has no issues")
			}
			ctx := cmd.Context()

			embedder := ollama.NewEmbedClient(ollamaURL, embedModel)
			probe, err := embedder.Embed(ctx, semantic.Text(c.Issues[0]))
			if err != nil {
				return fmt.Errorf("probe embedding: %w", err)
			}

			idx, err := semantic.New(qdrantURL, collection)
			if err != nil {
				return err
			}
			defer idx.Close()
			if recreate {
				if err := idx.DeleteCollection(ctx); err != nil {
					logger.Warn("delete collection", "err", err)
				}
			}
			if err := idx.EnsureCollection(ctx, len(probe)); err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(c.Issues),
				progressbar.OptionSetDescription("indexing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("issues"),
				progressbar.OptionShowIts(),
				progressbar.OptionClearOnFinish(),
			)
			deps := ingest.Deps{
				Embedder: embedder,
				Index:    idx,
				Logger:   logger,
				Retry:    fn.DefaultRetry,
				Breaker: resilience.NewBreaker(resilience.BreakerOpts{
					OnStateChange: func(from, to resilience.State) {
						logger.Warn("index: embedder circuit", "from", from, "to", to)
					},
				}),
			}
			if embedRPS > 0 {
				deps.EmbedLimit = rate.NewLimiter(rate.Limit(embedRPS), max(1, workers))
			}
			stats, err := ingest.Run(ctx, deps, c.Issues, workers, func(done int) { _ = bar.Set(done) })
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d, failed %d into %s\n",
				stats.Indexed, stats.Skipped, stats.Failed, collection)
			return err
		},
	}

	cmd.Flags().StringVar(&ollamaURL, "ollama-url", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
	cmd.Flags().StringVar(&embedModel, "embed-model", envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"), "embedding model")
	cmd.Flags().StringVar(&qdrantURL, "qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
	cmd.Flags().StringVar(&collection, "collection", envOr("QDRANT_COLLECTION", "carfix_issues"), "Qdrant collection")
	cmd.Flags().IntVar(&workers, "workers", 4, "batches embedded concurrently")
	cmd.Flags().Float64Var(&embedRPS, "embed-rps", 0, "max embedding requests per second (0 = unlimited)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop the collection first")
	return cmd
}

func unindexCmd() *cobra.Command {
	var qdrantURL, collection string

	cmd := &cobra.Command{
		Use:   "unindex ISSUE_ID...",
		Short: "Remove issues from the similar-issue index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := semantic.New(qdrantURL, collection)
			if err != nil {
				return err
			}
			defer idx.Close()

			var errs []error
			for _, id := range args {
				if err := idx.DeleteIssue(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&qdrantURL, "qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
	cmd.Flags().StringVar(&collection, "collection", envOr("QDRANT_COLLECTION", "carfix_issues"), "Qdrant collection")
	return cmd
}

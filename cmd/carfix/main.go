// Command carfix is the operator CLI: ad-hoc diagnoses and nearest lookups,
// seeding the SQLite and Neo4j stores, building the similar-issue index and
// browsing the query log.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/carfix-labs/carfix/engine/knowledge"
)

var (
	logger  *slog.Logger
	kbFile  string
	verbose bool
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "carfix",
		Short:         "carfix: car problem diagnosis and service lookup",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	root.PersistentFlags().StringVar(&kbFile, "kb", os.Getenv("KB_FILE"), "knowledge YAML file (default: built-in catalog)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(diagnoseCmd())
	root.AddCommand(nearestCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(unindexCmd())
	root.AddCommand(historyCmd())
	return root
}

func loadCatalog() (*knowledge.Catalog, error) {
	if kbFile != "" {
		return knowledge.LoadFile(kbFile)
	}
	return knowledge.Seed()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

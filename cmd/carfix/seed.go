package main

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"github.com/carfix-labs/carfix/engine/graph"
	"github.com/carfix-labs/carfix/engine/sqlstore"
)

func seedCmd() *cobra.Command {
	var (
		target                  string
		sqlitePath              string
		neo4jURL, user, password string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the knowledge catalog into SQLite or Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch target {
			case "sqlite":
				db, err := sqlstore.Open(sqlitePath, logger)
				if err != nil {
					return err
				}
				defer db.Close()
				stats, err := db.Import(ctx, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sqlite %s: %d issues, %d centers, %d tow operators\n",
					sqlitePath, stats.Issues, stats.Centers, stats.TowOperators)
				return nil

			case "neo4j":
				driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(user, password, ""))
				if err != nil {
					return fmt.Errorf("neo4j driver: %w", err)
				}
				defer driver.Close(ctx)
				g := graph.New(driver, logger)
				if err := g.EnsureSchema(ctx); err != nil {
					return err
				}
				stats, err := g.Seed(ctx, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "neo4j %s: %d issues, %d entities\n", neo4jURL, stats.Issues, stats.Entities)
				return nil
			}
			return fmt.Errorf("unknown target %q (want sqlite or neo4j)", target)
		},
	}

	cmd.Flags().StringVar(&target, "target", "sqlite", "sqlite or neo4j")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", envOr("SQLITE_PATH", "carfix.db"), "SQLite database path")
	cmd.Flags().StringVar(&neo4jURL, "neo4j-url", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j URL")
	cmd.Flags().StringVar(&user, "neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j user")
	cmd.Flags().StringVar(&password, "neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
	return cmd
}

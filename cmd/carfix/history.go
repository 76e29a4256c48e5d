package main

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/carfix-labs/carfix/engine/sqlstore"
)

func historyCmd() *cobra.Command {
	var (
		sqlitePath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent logged diagnoses",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlstore.Open(sqlitePath, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			logs, err := db.RecentQueries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"When", "Lang", "Vehicle", "Query", "Results"})
			table.SetAutoWrapText(true)
			for _, l := range logs {
				table.Append([]string{
					l.At.Local().Format("2006-01-02 15:04"),
					string(l.Language),
					l.Brand + " " + l.Model,
					l.Query,
					strconv.Itoa(l.Results),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&sqlitePath, "sqlite", envOr("SQLITE_PATH", "carfix.db"), "SQLite database path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "rows to show")
	return cmd
}

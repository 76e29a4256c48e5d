package main

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/geo"
	"github.com/carfix-labs/carfix/engine/knowledge"
)

func nearestCmd() *cobra.Command {
	var (
		lat, lon float64
		k        int
		tow      bool
	)

	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "List the maintenance centers (or tow operator) closest to a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog()
			if err != nil {
				return err
			}
			finder := geo.NewFinder(knowledge.NewMemory(c))

			var ranked []domain.RankedLocation
			if tow {
				rl, err := finder.NearestTowOperator(cmd.Context(), lat, lon)
				if err != nil {
					return err
				}
				ranked = []domain.RankedLocation{rl}
			} else if ranked, err = finder.NearestCenters(cmd.Context(), lat, lon, k); err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Name", "Phone", "Rating", "Distance (km)"})
			for _, rl := range ranked {
				table.Append([]string{
					rl.Entity.Name,
					rl.Entity.Phone,
					strconv.FormatFloat(rl.Entity.Rating, 'f', 1, 64),
					strconv.FormatFloat(geo.RoundKm(rl.DistanceKm), 'f', 2, 64),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().IntVarP(&k, "count", "k", 5, "number of centers (0 = all)")
	cmd.Flags().BoolVar(&tow, "tow", false, "find the nearest tow operator instead")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

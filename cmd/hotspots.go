package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safecity/crimewatch-cli/internal/hotspot"
	"github.com/safecity/crimewatch-cli/internal/store"
)

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Rank grid cells by recent incident density",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		top, _ := cmd.Flags().GetInt("top")
		lookback, _ := cmd.Flags().GetDuration("lookback")
		category, _ := cmd.Flags().GetString("category")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		now := time.Now()
		incidents, err := st.ListIncidents(ctx, store.Filter{
			Category: category,
			Since:    now.Add(-lookback),
		})
		if err != nil {
			return eris.Wrap(err, "list incidents")
		}

		recent := hotspot.FilterWindow(incidents, now, lookback)
		cells := hotspot.Aggregate(recent, hotspot.GridSize)
		spots := hotspot.TopHotspots(cells, top, hotspot.NewStaticResolver())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(spots)
	},
}

func init() {
	hotspotsCmd.Flags().Int("top", 10, "number of hotspots to report")
	hotspotsCmd.Flags().Duration("lookback", 7*24*time.Hour, "trailing window to aggregate")
	hotspotsCmd.Flags().String("category", "", "filter by crime category")
	rootCmd.AddCommand(hotspotsCmd)
}

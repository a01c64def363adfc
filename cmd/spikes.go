package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safecity/crimewatch-cli/internal/hotspot"
	"github.com/safecity/crimewatch-cli/internal/store"
)

var spikesCmd = &cobra.Command{
	Use:   "spikes",
	Short: "Detect cells with unusual 24-hour incident volume",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		threshold, _ := cmd.Flags().GetInt("threshold")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		incidents, err := st.ListIncidents(ctx, store.Filter{
			Since: time.Now().Add(-hotspot.SpikeWindow),
		})
		if err != nil {
			return eris.Wrap(err, "list incidents")
		}

		spikes := hotspot.DetectSpikes(incidents, threshold)
		if len(spikes) == 0 {
			fmt.Fprintln(os.Stderr, "No spikes detected.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(spikes)
	},
}

func init() {
	spikesCmd.Flags().Int("threshold", hotspot.SpikeThreshold, "minimum 24h incident count per cell")
	rootCmd.AddCommand(spikesCmd)
}

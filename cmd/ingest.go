package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safecity/crimewatch-cli/internal/store"
)

var ingestCSVPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load incident records from CSV into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(ingestCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		incidents, skipped, err := store.DecodeIncidentsCSV(f)
		if err != nil {
			return eris.Wrap(err, "decode csv")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		inserted, err := st.InsertIncidents(ctx, incidents)
		if err != nil {
			return eris.Wrap(err, "insert incidents")
		}

		zap.L().Info("ingest complete",
			zap.String("csv", ingestCSVPath),
			zap.Int("inserted", inserted),
			zap.Int("duplicates", len(incidents)-inserted),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVPath, "csv", "", "path to CSV file (required)")
	_ = ingestCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(ingestCmd)
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safecity/crimewatch-cli/internal/forecast"
	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/store"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast daily incident counts",
	Long:  "Fits an ARIMA model over the trailing incident history and prints per-day predictions with 95% bounds. Sparse histories fall back to a moving average.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		days, _ := cmd.Flags().GetInt("days")
		category, _ := cmd.Flags().GetString("category")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetFloat64("radius")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		incidents, err := st.ListIncidents(ctx, store.Filter{
			Category: category,
			Since:    time.Now().AddDate(0, 0, -forecast.LookbackDays),
		})
		if err != nil {
			return eris.Wrap(err, "list incidents")
		}

		req := forecast.Request{
			Horizon:  days,
			Category: category,
			RadiusKM: radius,
		}
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
			req.Location = &geo.Point{Lat: lat, Lng: lng}
		}

		fitCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Forecast.FitTimeoutSecs)*time.Second)
		defer cancel()

		result, err := forecast.NewEngine().Forecast(fitCtx, incidents, req)
		if err != nil {
			return eris.Wrap(err, "forecast")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	forecastCmd.Flags().Int("days", 7, "forecast horizon in days (1-30)")
	forecastCmd.Flags().String("category", "", "filter by crime category")
	forecastCmd.Flags().Float64("lat", 0, "center latitude for a location filter")
	forecastCmd.Flags().Float64("lng", 0, "center longitude for a location filter")
	forecastCmd.Flags().Float64("radius", 0, "location filter radius in km (default 5)")
	rootCmd.AddCommand(forecastCmd)
}

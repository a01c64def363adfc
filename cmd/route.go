package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/route"
	"github.com/safecity/crimewatch-cli/internal/store"
)

// buildPlanner enables the OSRM external router when configured.
func buildPlanner() *route.Planner {
	if cfg.Route.OSRMBaseURL != "" {
		return route.NewPlannerWith(route.NewOSRMRouter(cfg.Route.OSRMBaseURL), nil)
	}
	return route.NewPlanner()
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Plan a route that detours around recent incident clusters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fromLat, _ := cmd.Flags().GetFloat64("from-lat")
		fromLng, _ := cmd.Flags().GetFloat64("from-lng")
		toLat, _ := cmd.Flags().GetFloat64("to-lat")
		toLng, _ := cmd.Flags().GetFloat64("to-lng")
		radius, _ := cmd.Flags().GetFloat64("radius")
		compare, _ := cmd.Flags().GetBool("compare")
		asGeoJSON, _ := cmd.Flags().GetBool("geojson")

		recency := cfg.Route.RecencyDays
		req := route.Request{
			Start:         geo.Point{Lat: fromLat, Lng: fromLng},
			End:           geo.Point{Lat: toLat, Lng: toLng},
			AvoidRadiusKM: radius,
			RecencyDays:   recency,
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if recency <= 0 {
			recency = route.DefaultRecencyDays
		}
		incidents, err := st.ListIncidents(ctx, store.Filter{
			Since: time.Now().AddDate(0, 0, -recency),
		})
		if err != nil {
			return eris.Wrap(err, "list incidents")
		}

		planner := buildPlanner()

		if compare {
			plan, comparison, err := planner.Compare(ctx, incidents, req)
			if err != nil {
				return eris.Wrap(err, "compare routes")
			}
			out := struct {
				Plan       *route.Plan       `json:"plan"`
				Comparison *route.Comparison `json:"comparison"`
			}{plan, comparison}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		plan, err := planner.Plan(ctx, incidents, req)
		if err != nil {
			return eris.Wrap(err, "plan route")
		}

		if asGeoJSON {
			data, err := plan.GeoJSON()
			if err != nil {
				return eris.Wrap(err, "encode geojson")
			}
			fmt.Println(string(data))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	},
}

func init() {
	routeCmd.Flags().Float64("from-lat", 0, "start latitude")
	routeCmd.Flags().Float64("from-lng", 0, "start longitude")
	routeCmd.Flags().Float64("to-lat", 0, "end latitude")
	routeCmd.Flags().Float64("to-lng", 0, "end longitude")
	routeCmd.Flags().Float64("radius", 0, "avoidance radius in km (default 0.5)")
	routeCmd.Flags().Bool("compare", false, "also compute a direct baseline and recommendation")
	routeCmd.Flags().Bool("geojson", false, "print the plan as GeoJSON")
	_ = routeCmd.MarkFlagRequired("from-lat")
	_ = routeCmd.MarkFlagRequired("from-lng")
	_ = routeCmd.MarkFlagRequired("to-lat")
	_ = routeCmd.MarkFlagRequired("to-lng")
	rootCmd.AddCommand(routeCmd)
}

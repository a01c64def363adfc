// Package hotspot buckets incidents into a uniform geographic grid, ranks
// cells by density, and flags short-window density spikes. All entry points
// are pure functions over the incident snapshot they are handed.
package hotspot

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/safecity/crimewatch-cli/internal/model"
)

// GridSize is the grid resolution in degrees (~1.1 km cells).
const GridSize = 0.01

// Severity cutoffs: a cell with more than HighSeverityCount incidents is
// "high", more than MediumSeverityCount is "medium", anything else "low".
const (
	HighSeverityCount   = 50
	MediumSeverityCount = 20
)

// predictedIncreaseRate is the naive linear growth factor applied to a cell
// count to produce its "predicted increase".
const predictedIncreaseRate = 0.1

// CellKey identifies a grid cell by its rounded center coordinates.
type CellKey struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Cell is a populated grid cell: its count and member incidents.
type Cell struct {
	Key     CellKey          `json:"key"`
	Count   int              `json:"count"`
	Members []model.Incident `json:"-"`
}

// Hotspot is a ranked cell enriched with an area label, a severity tier, and
// a naive predicted increase.
type Hotspot struct {
	Area              string  `json:"area"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Count             int     `json:"count"`
	PredictedIncrease float64 `json:"predicted_increase"`
	Severity          string  `json:"severity"`
}

// KeyFor returns the grid cell key for a coordinate pair at the given grid
// resolution: each axis is rounded to the nearest multiple of gridSize.
func KeyFor(lat, lng, gridSize float64) CellKey {
	return CellKey{
		Lat: math.Round(lat/gridSize) * gridSize,
		Lng: math.Round(lng/gridSize) * gridSize,
	}
}

// Aggregate buckets incidents into grid cells of the given resolution.
// Identical inputs always yield identical keys and membership; an empty
// incident list yields an empty map.
func Aggregate(incidents []model.Incident, gridSize float64) map[CellKey]*Cell {
	cells := make(map[CellKey]*Cell, len(incidents)/4+1)
	for _, in := range incidents {
		key := KeyFor(in.Latitude, in.Longitude, gridSize)
		c, ok := cells[key]
		if !ok {
			c = &Cell{Key: key}
			cells[key] = c
		}
		c.Count++
		c.Members = append(c.Members, in)
	}
	return cells
}

// AreaResolver converts a coordinate pair into a human-readable area label.
// It is an optional collaborator: a nil resolver is valid and falls back to a
// coordinate label.
type AreaResolver interface {
	Resolve(lat, lng float64) string
}

// TopHotspots ranks cells by count descending and returns at most k of them.
// Ties are broken by cell key ascending (lat, then lng) so output order is
// deterministic. The resolver may be nil.
func TopHotspots(cells map[CellKey]*Cell, k int, resolver AreaResolver) []Hotspot {
	ranked := make([]*Cell, 0, len(cells))
	for _, c := range cells {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if ranked[i].Key.Lat != ranked[j].Key.Lat {
			return ranked[i].Key.Lat < ranked[j].Key.Lat
		}
		return ranked[i].Key.Lng < ranked[j].Key.Lng
	})

	if k < 0 {
		k = 0
	}
	if k < len(ranked) {
		ranked = ranked[:k]
	}

	out := make([]Hotspot, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, Hotspot{
			Area:              resolveArea(resolver, c.Key.Lat, c.Key.Lng),
			Latitude:          c.Key.Lat,
			Longitude:         c.Key.Lng,
			Count:             c.Count,
			PredictedIncrease: math.Round(float64(c.Count)*predictedIncreaseRate*10) / 10,
			Severity:          SeverityFor(c.Count),
		})
	}
	return out
}

// SeverityFor maps a cell count onto the fixed severity tiers.
func SeverityFor(count int) string {
	switch {
	case count > HighSeverityCount:
		return "high"
	case count > MediumSeverityCount:
		return "medium"
	default:
		return "low"
	}
}

// FilterWindow returns the incidents that occurred at or after the cutoff
// implied by now minus the lookback.
func FilterWindow(incidents []model.Incident, now time.Time, lookback time.Duration) []model.Incident {
	cutoff := now.Add(-lookback)
	out := make([]model.Incident, 0, len(incidents))
	for _, in := range incidents {
		if !in.OccurredAt.Before(cutoff) {
			out = append(out, in)
		}
	}
	return out
}

func resolveArea(r AreaResolver, lat, lng float64) string {
	if r != nil {
		if label := r.Resolve(lat, lng); label != "" {
			return label
		}
	}
	return fmt.Sprintf("(%.4f, %.4f)", lat, lng)
}

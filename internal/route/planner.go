// Package route scores and adjusts a path between two points to reduce
// exposure to recent incident concentrations. Routing works on straight-line
// geometry, not a street graph; the output is a waypoint path plus distance,
// duration, and a 0-100 safety score.
package route

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/model"
)

// DefaultRecencyDays is the default incident recency window considered when
// planning.
const DefaultRecencyDays = 30

// CorridorPadDegrees is the bounding-box padding around the start/end pair
// that bounds the candidate danger points.
const CorridorPadDegrees = 0.1

// DefaultAvoidRadiusKM is the avoidance radius when the caller does not
// supply one.
const DefaultAvoidRadiusKM = 0.5

// Assumed travel speeds for duration estimates.
const (
	safeSpeedKMH   = 40.0
	directSpeedKMH = 50.0
)

// Safety score deduction weights.
const (
	zonePenalty   = 5.0
	detourPenalty = 10.0
)

// Waypoint roles.
const (
	RoleStart  = "start"
	RoleDetour = "detour"
	RoleEnd    = "end"
)

// SourceGeometric marks plans produced by the built-in detour algorithm.
const SourceGeometric = "geometric"

// Waypoint is one point of a planned route.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Role      string  `json:"role"`
}

// Plan is a computed route: an ordered waypoint path beginning with the start
// and ending with the end, plus derived metrics.
type Plan struct {
	Waypoints       []Waypoint `json:"waypoints"`
	DistanceKM      float64    `json:"distance_km"`
	DurationMinutes float64    `json:"duration_minutes"`
	SafetyScore     float64    `json:"safety_score"`
	AvoidedZones    int        `json:"avoided_crime_zones"`
	Source          string     `json:"source"` // "geometric" or the external router's name
}

// Request describes one route computation.
type Request struct {
	Start         geo.Point
	End           geo.Point
	AvoidRadiusKM float64 // 0 means the 0.5 km default
	RecencyDays   int     // 0 means the 30 day default
}

// ExternalRouter is an optional collaborator that may override the geometric
// algorithm. Attempt returns (nil, nil) when the service has no result; any
// error is treated the same way and never fails the computation.
type ExternalRouter interface {
	Name() string
	Attempt(ctx context.Context, req Request) (*Plan, error)
}

// Planner computes safe routes over incident snapshots.
type Planner struct {
	external ExternalRouter
	clock    clockwork.Clock
}

// NewPlanner returns a Planner with no external router, on the real clock.
func NewPlanner() *Planner {
	return &Planner{clock: clockwork.NewRealClock()}
}

// NewPlannerWith returns a Planner with an optional external router and
// clock. Either may be nil.
func NewPlannerWith(external ExternalRouter, clock clockwork.Clock) *Planner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Planner{external: external, clock: clock}
}

// Plan produces a route between the request endpoints biased away from
// recent incident concentrations. If an external router is configured its
// result wins; its absence or failure silently falls back to the geometric
// algorithm. The only errors returned are input validation failures.
func (p *Planner) Plan(ctx context.Context, incidents []model.Incident, req Request) (*Plan, error) {
	if err := model.ValidateCoords(req.Start.Lat, req.Start.Lng); err != nil {
		return nil, err
	}
	if err := model.ValidateCoords(req.End.Lat, req.End.Lng); err != nil {
		return nil, err
	}
	if req.AvoidRadiusKM == 0 {
		req.AvoidRadiusKM = DefaultAvoidRadiusKM
	}
	if err := model.ValidateAvoidRadius(req.AvoidRadiusKM); err != nil {
		return nil, err
	}
	if req.RecencyDays <= 0 {
		req.RecencyDays = DefaultRecencyDays
	}

	if p.external != nil {
		plan, err := p.external.Attempt(ctx, req)
		if err != nil {
			zap.L().Debug("external router unavailable, using geometric fallback",
				zap.String("router", p.external.Name()), zap.Error(err))
		} else if plan != nil {
			plan.Source = p.external.Name()
			return plan, nil
		}
	}

	return p.geometric(incidents, req), nil
}

// geometric implements the waypoint-offset algorithm over the filtered
// danger points.
func (p *Planner) geometric(incidents []model.Incident, req Request) *Plan {
	dangers := p.dangerPoints(incidents, req)

	waypoints := []Waypoint{{Latitude: req.Start.Lat, Longitude: req.Start.Lng, Role: RoleStart}}
	avoided := 0

	for _, d := range dangers {
		// Proximity to the straight start-end line, approximated as the
		// distance to the segment midpoint. This intentionally matches the
		// established behavior; it is not a true point-to-segment projection.
		mid := geo.Midpoint(req.Start, req.End)
		if geo.Distance(d, mid) >= req.AvoidRadiusKM {
			continue
		}
		avoided++

		wp := geo.PerpendicularOffset(req.Start, req.End, d, req.AvoidRadiusKM)
		if wp == d {
			// Degenerate start==end segment has no perpendicular.
			continue
		}
		candidate := Waypoint{Latitude: wp.Lat, Longitude: wp.Lng, Role: RoleDetour}
		if !containsWaypoint(waypoints, candidate) {
			waypoints = append(waypoints, candidate)
		}
	}

	waypoints = append(waypoints, Waypoint{Latitude: req.End.Lat, Longitude: req.End.Lng, Role: RoleEnd})

	total := pathDistanceKM(waypoints)
	direct := geo.Distance(req.Start, req.End)

	detourFactor := 1.0
	if direct > 0 {
		detourFactor = total / direct
	}
	score := 100 - float64(avoided)*zonePenalty - (detourFactor-1)*detourPenalty
	score = math.Max(0, math.Min(100, score))

	return &Plan{
		Waypoints:       waypoints,
		DistanceKM:      round2(total),
		DurationMinutes: round1(total / safeSpeedKMH * 60),
		SafetyScore:     round1(score),
		AvoidedZones:    avoided,
		Source:          SourceGeometric,
	}
}

// dangerPoints filters the incident corpus to the recency window and the
// padded corridor bounding box, preserving input order.
func (p *Planner) dangerPoints(incidents []model.Incident, req Request) []geo.Point {
	cutoff := p.clock.Now().Add(-time.Duration(req.RecencyDays) * 24 * time.Hour)

	var out []geo.Point
	for _, in := range incidents {
		if in.OccurredAt.Before(cutoff) {
			continue
		}
		if !geo.WithinBBox(in.Latitude, in.Longitude, req.Start, req.End, CorridorPadDegrees) {
			continue
		}
		out = append(out, geo.Point{Lat: in.Latitude, Lng: in.Longitude})
	}
	return out
}

func containsWaypoint(waypoints []Waypoint, w Waypoint) bool {
	for _, existing := range waypoints {
		if existing.Latitude == w.Latitude && existing.Longitude == w.Longitude {
			return true
		}
	}
	return false
}

func pathDistanceKM(waypoints []Waypoint) float64 {
	total := 0.0
	for i := 1; i < len(waypoints); i++ {
		total += geo.DistanceKM(
			waypoints[i-1].Latitude, waypoints[i-1].Longitude,
			waypoints[i].Latitude, waypoints[i].Longitude,
		)
	}
	return total
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

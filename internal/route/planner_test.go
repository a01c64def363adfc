package route

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/model"
)

var plannerNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testPlanner() *Planner {
	return NewPlannerWith(nil, clockwork.NewFakeClockAt(plannerNow))
}

func recentIncident(lat, lng float64) model.Incident {
	return model.Incident{
		Category:   "ROBBERY",
		Latitude:   lat,
		Longitude:  lng,
		OccurredAt: plannerNow.Add(-48 * time.Hour),
	}
}

func TestPlan_NoIncidentsDirectPath(t *testing.T) {
	p := testPlanner()
	plan, err := p.Plan(context.Background(), nil, Request{
		Start: geo.Point{Lat: 41.88, Lng: -87.63},
		End:   geo.Point{Lat: 41.90, Lng: -87.62},
	})
	require.NoError(t, err)

	require.Len(t, plan.Waypoints, 2)
	assert.Equal(t, RoleStart, plan.Waypoints[0].Role)
	assert.Equal(t, RoleEnd, plan.Waypoints[1].Role)
	assert.Equal(t, 0, plan.AvoidedZones)
	assert.Equal(t, "geometric", plan.Source)
}

func TestPlan_SingleDangerForcedAvoidance(t *testing.T) {
	p := testPlanner()
	// Incident at the midpoint of (0,0)->(0,1) with the radius at its 5 km
	// cap, so the danger sits well inside the avoidance distance.
	incidents := []model.Incident{recentIncident(0, 0.5)}

	plan, err := p.Plan(context.Background(), incidents, Request{
		Start:         geo.Point{Lat: 0, Lng: 0},
		End:           geo.Point{Lat: 0, Lng: 1},
		AvoidRadiusKM: 5.0,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, plan.AvoidedZones)
	require.Len(t, plan.Waypoints, 3)
	assert.Equal(t, RoleDetour, plan.Waypoints[1].Role)

	direct := geo.DistanceKM(0, 0, 0, 1)
	assert.Greater(t, plan.DistanceKM, direct)
}

func TestPlan_FarIncidentIgnored(t *testing.T) {
	p := testPlanner()
	// Inside the corridor bbox but more than the avoidance radius from the
	// midpoint.
	incidents := []model.Incident{recentIncident(0.05, 0.5)}

	plan, err := p.Plan(context.Background(), incidents, Request{
		Start:         geo.Point{Lat: 0, Lng: 0},
		End:           geo.Point{Lat: 0, Lng: 1},
		AvoidRadiusKM: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.AvoidedZones)
	assert.Len(t, plan.Waypoints, 2)
}

func TestPlan_StaleIncidentIgnored(t *testing.T) {
	p := testPlanner()
	stale := recentIncident(0, 0.5)
	stale.OccurredAt = plannerNow.AddDate(0, 0, -45)

	plan, err := p.Plan(context.Background(), []model.Incident{stale}, Request{
		Start:         geo.Point{Lat: 0, Lng: 0},
		End:           geo.Point{Lat: 0, Lng: 1},
		AvoidRadiusKM: 5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.AvoidedZones)
}

func TestPlan_OutsideCorridorIgnored(t *testing.T) {
	p := testPlanner()
	// Outside the 0.1 degree padded bbox around the endpoints.
	incidents := []model.Incident{recentIncident(0.5, 0.5)}

	plan, err := p.Plan(context.Background(), incidents, Request{
		Start:         geo.Point{Lat: 0, Lng: 0},
		End:           geo.Point{Lat: 0, Lng: 1},
		AvoidRadiusKM: 5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.AvoidedZones)
}

func TestPlan_DuplicateDangerSingleWaypoint(t *testing.T) {
	p := testPlanner()
	incidents := []model.Incident{
		recentIncident(0, 0.5),
		recentIncident(0, 0.5),
	}

	plan, err := p.Plan(context.Background(), incidents, Request{
		Start:         geo.Point{Lat: 0, Lng: 0},
		End:           geo.Point{Lat: 0, Lng: 1},
		AvoidRadiusKM: 5.0,
	})
	require.NoError(t, err)

	// Both count as avoided, but identical offset waypoints collapse to one.
	assert.Equal(t, 2, plan.AvoidedZones)
	assert.Len(t, plan.Waypoints, 3)
}

func TestPlan_SafetyScoreDeductions(t *testing.T) {
	p := testPlanner()
	incidents := []model.Incident{recentIncident(0, 0.5)}

	plan, err := p.Plan(context.Background(), incidents, Request{
		Start:         geo.Point{Lat: 0, Lng: 0},
		End:           geo.Point{Lat: 0, Lng: 1},
		AvoidRadiusKM: 5.0,
	})
	require.NoError(t, err)

	// One avoided zone costs 5 points plus the detour factor deduction.
	assert.Less(t, plan.SafetyScore, 95.0+1e-9)
	assert.GreaterOrEqual(t, plan.SafetyScore, 0.0)
}

func TestPlan_DurationUsesFixedSpeed(t *testing.T) {
	p := testPlanner()
	plan, err := p.Plan(context.Background(), nil, Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0, Lng: 1},
	})
	require.NoError(t, err)

	// ~111.19 km at 40 km/h.
	assert.InDelta(t, plan.DistanceKM/40*60, plan.DurationMinutes, 0.1)
}

func TestPlan_InvalidInputs(t *testing.T) {
	p := testPlanner()
	tests := []struct {
		name string
		req  Request
	}{
		{"bad start lat", Request{Start: geo.Point{Lat: 91}, End: geo.Point{}}},
		{"bad end lng", Request{Start: geo.Point{}, End: geo.Point{Lng: 181}}},
		{"radius too small", Request{Start: geo.Point{}, End: geo.Point{Lat: 1}, AvoidRadiusKM: 0.05}},
		{"radius too large", Request{Start: geo.Point{}, End: geo.Point{Lat: 1}, AvoidRadiusKM: 5.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(context.Background(), nil, tt.req)
			require.Error(t, err)
		})
	}
}

func TestPlan_IdenticalEndpoints(t *testing.T) {
	p := testPlanner()
	point := geo.Point{Lat: 41.88, Lng: -87.63}
	incidents := []model.Incident{recentIncident(41.88, -87.63)}

	plan, err := p.Plan(context.Background(), incidents, Request{
		Start: point, End: point, AvoidRadiusKM: 5.0,
	})
	require.NoError(t, err)

	// The incident counts as avoided but the degenerate segment yields no
	// detour waypoint, and the zero direct distance must not divide by zero.
	assert.Equal(t, 1, plan.AvoidedZones)
	assert.Len(t, plan.Waypoints, 2)
	assert.Equal(t, 0.0, plan.DistanceKM)
}

// stubRouter is a canned ExternalRouter for override tests.
type stubRouter struct {
	plan *Plan
	err  error
}

func (s *stubRouter) Name() string { return "stub" }
func (s *stubRouter) Attempt(_ context.Context, _ Request) (*Plan, error) {
	return s.plan, s.err
}

func TestPlan_ExternalRouterOverride(t *testing.T) {
	override := &Plan{
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0, Role: RoleStart},
			{Latitude: 0, Longitude: 1, Role: RoleEnd},
		},
		DistanceKM: 120, SafetyScore: 80,
	}
	p := NewPlannerWith(&stubRouter{plan: override}, clockwork.NewFakeClockAt(plannerNow))

	plan, err := p.Plan(context.Background(), nil, Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0, Lng: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "stub", plan.Source)
	assert.Equal(t, 120.0, plan.DistanceKM)
}

func TestPlan_ExternalRouterErrorFallsBack(t *testing.T) {
	p := NewPlannerWith(&stubRouter{err: eris.New("service down")}, clockwork.NewFakeClockAt(plannerNow))

	plan, err := p.Plan(context.Background(), nil, Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0, Lng: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "geometric", plan.Source)
}

func TestPlan_ExternalRouterNoResultFallsBack(t *testing.T) {
	p := NewPlannerWith(&stubRouter{}, clockwork.NewFakeClockAt(plannerNow))

	plan, err := p.Plan(context.Background(), nil, Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0, Lng: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "geometric", plan.Source)
}

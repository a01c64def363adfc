package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/crimewatch-cli/internal/geo"
)

func osrmFixture(code string, routes string) string {
	return `{"code":"` + code + `","routes":[` + routes + `]}`
}

func TestOSRMRouter_Attempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/route/v1/foot/")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(osrmFixture("Ok",
			`{"distance":1500,"duration":900,"geometry":{"coordinates":[[0,0],[0.005,0.005],[0.01,0.01]]}}`)))
	}))
	defer srv.Close()

	router := NewOSRMRouter(srv.URL)
	plan, err := router.Attempt(context.Background(), Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0.01, Lng: 0.01},
	})
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "osrm", plan.Source)
	assert.InDelta(t, 1.5, plan.DistanceKM, 1e-9)
	assert.InDelta(t, 15.0, plan.DurationMinutes, 1e-9)
	require.Len(t, plan.Waypoints, 3)
	assert.Equal(t, RoleStart, plan.Waypoints[0].Role)
	assert.Equal(t, RoleDetour, plan.Waypoints[1].Role)
	assert.Equal(t, RoleEnd, plan.Waypoints[2].Role)
	// OSRM coordinates arrive lng-first.
	assert.Equal(t, 0.005, plan.Waypoints[1].Latitude)
}

func TestOSRMRouter_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(osrmFixture("NoRoute", "")))
	}))
	defer srv.Close()

	plan, err := NewOSRMRouter(srv.URL).Attempt(context.Background(), Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0.01, Lng: 0.01},
	})
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestOSRMRouter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOSRMRouter(srv.URL).Attempt(context.Background(), Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0.01, Lng: 0.01},
	})
	require.Error(t, err)
}

func TestOSRMRouter_FallsBackThroughPlanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	planner := NewPlannerWith(NewOSRMRouter(srv.URL), nil)
	plan, err := planner.Plan(context.Background(), nil, Request{
		Start: geo.Point{Lat: 0, Lng: 0},
		End:   geo.Point{Lat: 0, Lng: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceGeometric, plan.Source)
}

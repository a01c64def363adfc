package route

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// osrmRequestsPerSecond caps calls against a shared OSRM instance.
const osrmRequestsPerSecond = 5

// osrmRouteResponse is the JSON response from the OSRM route service.
type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// OSRMRouter resolves routes against an OSRM HTTP instance. It satisfies
// ExternalRouter; the planner treats any failure as "no result" and falls
// back to the geometric algorithm.
type OSRMRouter struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOSRMRouter returns a router against the given OSRM base URL, e.g.
// "https://router.project-osrm.org".
func NewOSRMRouter(baseURL string) *OSRMRouter {
	return &OSRMRouter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(osrmRequestsPerSecond), osrmRequestsPerSecond),
	}
}

func (o *OSRMRouter) Name() string { return "osrm" }

// Attempt fetches a walking route from OSRM. A response with no routes maps
// to (nil, nil).
func (o *OSRMRouter) Attempt(ctx context.Context, req Request) (*Plan, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "osrm: rate limit")
	}

	// OSRM takes lng,lat pairs.
	reqURL := fmt.Sprintf("%s/route/v1/foot/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.baseURL, req.Start.Lng, req.Start.Lat, req.End.Lng, req.End.Lat)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: build request")
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("osrm: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: read body")
	}

	var osrmResp osrmRouteResponse
	if err := json.Unmarshal(body, &osrmResp); err != nil {
		return nil, eris.Wrap(err, "osrm: parse response")
	}

	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		return nil, nil
	}

	r := osrmResp.Routes[0]
	waypoints := make([]Waypoint, 0, len(r.Geometry.Coordinates))
	for i, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		role := RoleDetour
		switch i {
		case 0:
			role = RoleStart
		case len(r.Geometry.Coordinates) - 1:
			role = RoleEnd
		}
		waypoints = append(waypoints, Waypoint{Latitude: c[1], Longitude: c[0], Role: role})
	}
	if len(waypoints) < 2 {
		return nil, nil
	}

	return &Plan{
		Waypoints:       waypoints,
		DistanceKM:      round2(r.Distance / 1000.0),
		DurationMinutes: round1(r.Duration / 60.0),
		SafetyScore:     neutralSafetyScore,
		Source:          o.Name(),
	}, nil
}

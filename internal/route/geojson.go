package route

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSON encodes a plan's waypoint path as a GeoJSON LineString feature
// collection: one LineString for the path plus one Point feature per
// waypoint carrying its role.
func (p *Plan) GeoJSON() ([]byte, error) {
	coords := make([]geom.Coord, 0, len(p.Waypoints))
	for _, w := range p.Waypoints {
		coords = append(coords, geom.Coord{w.Longitude, w.Latitude})
	}

	line, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "route: build linestring")
	}

	features := []*geojson.Feature{{
		Geometry: line,
		Properties: map[string]any{
			"distance_km":      p.DistanceKM,
			"duration_minutes": p.DurationMinutes,
			"safety_score":     p.SafetyScore,
			"avoided_zones":    p.AvoidedZones,
			"source":           p.Source,
		},
	}}
	for _, w := range p.Waypoints {
		features = append(features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{w.Longitude, w.Latitude}),
			Properties: map[string]any{"role": w.Role},
		})
	}

	fc := geojson.FeatureCollection{Features: features}
	out, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "route: marshal geojson")
	}
	return out, nil
}

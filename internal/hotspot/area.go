package hotspot

import "fmt"

// areaBounds is a named rectangular neighborhood.
type areaBounds struct {
	name                           string
	latMin, latMax, lngMin, lngMax float64
}

// StaticResolver resolves coordinates to neighborhood labels from a fixed
// bounding-box table. It stands in for an external geocoding service when
// none is configured; the lookup never fails, falling through to a city or
// coordinate label.
type StaticResolver struct {
	areas []areaBounds
}

// chicagoAreas covers the central neighborhoods present in the reference
// dataset.
var chicagoAreas = []areaBounds{
	{"Loop", 41.875, 41.885, -87.635, -87.625},
	{"Lincoln Park", 41.910, 41.935, -87.650, -87.630},
	{"Hyde Park", 41.785, 41.810, -87.610, -87.585},
	{"South Loop", 41.855, 41.870, -87.635, -87.620},
	{"West Loop", 41.880, 41.895, -87.655, -87.640},
	{"Wicker Park", 41.905, 41.915, -87.680, -87.665},
}

// hyderabadAreas covers the Hyderabad localities in the reference dataset.
var hyderabadAreas = []areaBounds{
	{"Madhapur", 17.445, 17.455, 78.385, 78.400},
	{"Gachibowli", 17.435, 17.445, 78.345, 78.360},
	{"Hitech City", 17.445, 17.455, 78.370, 78.390},
	{"Begumpet", 17.440, 17.450, 78.460, 78.475},
	{"Secunderabad", 17.435, 17.445, 78.495, 78.510},
	{"Banjara Hills", 17.410, 17.425, 78.440, 78.455},
	{"Kukatpally", 17.485, 17.500, 78.390, 78.405},
	{"Jubilee Hills", 17.420, 17.435, 78.405, 78.420},
	{"Ameerpet", 17.435, 17.445, 78.440, 78.455},
	{"Kondapur", 17.460, 17.475, 78.355, 78.370},
}

// NewStaticResolver builds a resolver over the built-in neighborhood tables.
func NewStaticResolver() *StaticResolver {
	areas := make([]areaBounds, 0, len(hyderabadAreas)+len(chicagoAreas))
	areas = append(areas, hyderabadAreas...)
	areas = append(areas, chicagoAreas...)
	return &StaticResolver{areas: areas}
}

// Resolve implements AreaResolver.
func (r *StaticResolver) Resolve(lat, lng float64) string {
	for _, a := range r.areas {
		if lat >= a.latMin && lat <= a.latMax && lng >= a.lngMin && lng <= a.lngMax {
			return a.name
		}
	}
	// City-level fallback for points inside a known metro but outside any
	// named neighborhood box.
	if lat >= 17.2 && lat <= 17.6 && lng >= 78.2 && lng <= 78.7 {
		return fmt.Sprintf("Hyderabad (%.3f, %.3f)", lat, lng)
	}
	if lat >= 41.6 && lat <= 42.1 && lng >= -87.9 && lng <= -87.5 {
		return fmt.Sprintf("Chicago (%.3f, %.3f)", lat, lng)
	}
	return ""
}

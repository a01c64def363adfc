// Package geo provides great-circle distance and bounding-box primitives used
// by the aggregation, forecasting, and routing packages. All functions are
// pure; malformed coordinates are a caller precondition, not checked here.
package geo

import "math"

// EarthRadiusKM is the mean Earth radius used by the haversine formula.
const EarthRadiusKM = 6371.0

// DegreesPerKM is an approximate conversion factor for degrees to kilometers.
// At mid-latitudes, 1 degree is approximately 111 km.
const DegreesPerKM = 1.0 / 111.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKM returns the great-circle distance in kilometers between two
// points given in degrees, using the haversine formula on a spherical Earth.
func DistanceKM(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return EarthRadiusKM * c
}

// Distance returns the great-circle distance in kilometers between two points.
func Distance(a, b Point) float64 {
	return DistanceKM(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Midpoint returns the arithmetic midpoint of two points in degree space.
// This is a flat-earth approximation adequate for the short corridors the
// route planner works with.
func Midpoint(a, b Point) Point {
	return Point{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BBoxAround builds the bounding box spanned by two corner points, expanded
// symmetrically by pad degrees on every side. The corners may be given in any
// order.
func BBoxAround(a, b Point, padDegrees float64) BBox {
	return BBox{
		MinLat: math.Min(a.Lat, b.Lat) - padDegrees,
		MaxLat: math.Max(a.Lat, b.Lat) + padDegrees,
		MinLng: math.Min(a.Lng, b.Lng) - padDegrees,
		MaxLng: math.Max(a.Lng, b.Lng) + padDegrees,
	}
}

// Contains reports whether the point lies inside the box, edges inclusive.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// WithinBBox reports whether (lat, lng) falls inside the padded box spanned by
// two corner points. It is a cheap pre-filter used before exact distance
// checks.
func WithinBBox(lat, lng float64, cornerA, cornerB Point, padDegrees float64) bool {
	return BBoxAround(cornerA, cornerB, padDegrees).Contains(lat, lng)
}

// PerpendicularOffset moves from a point along the direction perpendicular to
// the start->end vector so that the offset distance is approximately
// distanceKM. Returns the input point unchanged when start and end coincide,
// since there is no defined perpendicular.
func PerpendicularOffset(start, end, from Point, distanceKM float64) Point {
	dLat := end.Lat - start.Lat
	dLng := end.Lng - start.Lng

	// Perpendicular direction in degree space.
	perpLat := -dLng
	perpLng := dLat

	norm := math.Hypot(perpLat, perpLng)
	if norm == 0 {
		return from
	}

	offsetDeg := distanceKM * DegreesPerKM
	return Point{
		Lat: from.Lat + perpLat/norm*offsetDeg,
		Lng: from.Lng + perpLng/norm*offsetDeg,
	}
}

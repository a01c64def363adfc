// Package model holds the core domain records shared across the analytics
// packages. An Incident is read-only once ingested; every derived structure
// (grid cells, forecasts, route plans) is pure function output over a
// snapshot of incidents.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Incident is a single reported event with location and timestamp.
type Incident struct {
	ID         int64     `json:"id"`
	CaseID     string    `json:"case_id"`
	Category   string    `json:"category"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	OccurredAt time.Time `json:"occurred_at"`
	Arrest     bool      `json:"arrest"`
	Domestic   bool      `json:"domestic"`
}

// Forecast horizon bounds in days.
const (
	MinHorizonDays = 1
	MaxHorizonDays = 30
)

// Route avoidance radius bounds in kilometers.
const (
	MinAvoidRadiusKM = 0.1
	MaxAvoidRadiusKM = 5.0
)

// ValidateCoords checks that a lat/lng pair is within geographic bounds.
func ValidateCoords(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return eris.Errorf("model: latitude %.4f out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return eris.Errorf("model: longitude %.4f out of range [-180, 180]", lng)
	}
	return nil
}

// ValidateHorizon checks the requested forecast horizon.
func ValidateHorizon(days int) error {
	if days < MinHorizonDays || days > MaxHorizonDays {
		return eris.Errorf("model: horizon %d out of range [%d, %d]", days, MinHorizonDays, MaxHorizonDays)
	}
	return nil
}

// ValidateAvoidRadius checks the route avoidance radius.
func ValidateAvoidRadius(km float64) error {
	if km < MinAvoidRadiusKM || km > MaxAvoidRadiusKM {
		return eris.Errorf("model: avoidance radius %.2f out of range [%.1f, %.1f]", km, MinAvoidRadiusKM, MaxAvoidRadiusKM)
	}
	return nil
}

// NormalizeCategory canonicalizes a category string for matching: trimmed,
// upper-cased. Empty input stays empty (meaning "all categories").
func NormalizeCategory(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MatchesCategory reports whether an incident's category matches the filter.
// An empty filter matches everything; otherwise matching is a case-insensitive
// substring test, mirroring the upstream feed's ILIKE semantics.
func (in Incident) MatchesCategory(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(NormalizeCategory(in.Category), NormalizeCategory(filter))
}

// Package forecast fits a time-series model to daily incident counts and
// produces multi-day forecasts with confidence bounds. The primary path is an
// ARIMA(1,1,1) fit; any numerical failure, insufficient history, or timeout
// degrades transparently to a moving-average fallback.
package forecast

import (
	"time"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/model"
)

// LookbackDays is the fixed historical window used to build the daily series.
const LookbackDays = 365

// DefaultRadiusKM is the location filter radius applied when a location is
// given without an explicit radius.
const DefaultRadiusKM = 5.0

// Series is a gap-filled daily count series: one entry per calendar day from
// Start onward, no gaps.
type Series struct {
	Start  time.Time // UTC midnight of the first day
	Counts []float64
}

// Len returns the number of days covered.
func (s Series) Len() int { return len(s.Counts) }

// LastDay returns the UTC midnight of the final day in the series, or the
// zero time for an empty series.
func (s Series) LastDay() time.Time {
	if len(s.Counts) == 0 {
		return time.Time{}
	}
	return s.Start.AddDate(0, 0, len(s.Counts)-1)
}

// NonZeroDays counts the days with at least one incident.
func (s Series) NonZeroDays() int {
	n := 0
	for _, c := range s.Counts {
		if c > 0 {
			n++
		}
	}
	return n
}

// TailMean returns the mean of the trailing n entries, or of the whole series
// when it is shorter than n. Zero for an empty series.
func (s Series) TailMean(n int) float64 {
	if len(s.Counts) == 0 {
		return 0
	}
	tail := s.Counts
	if len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	sum := 0.0
	for _, c := range tail {
		sum += c
	}
	return sum / float64(len(tail))
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildDailySeries aggregates incidents into a contiguous daily count series
// spanning the first through the last incident day. Days with no incidents
// are filled with zero. An empty input yields an empty series.
func BuildDailySeries(incidents []model.Incident) Series {
	if len(incidents) == 0 {
		return Series{}
	}

	counts := make(map[time.Time]float64, len(incidents))
	var first, last time.Time
	for i, in := range incidents {
		day := dayOf(in.OccurredAt)
		counts[day]++
		if i == 0 || day.Before(first) {
			first = day
		}
		if i == 0 || day.After(last) {
			last = day
		}
	}

	days := int(last.Sub(first).Hours()/24) + 1
	s := Series{Start: first, Counts: make([]float64, days)}
	for day, c := range counts {
		idx := int(day.Sub(first).Hours() / 24)
		s.Counts[idx] = c
	}
	return s
}

// FilterIncidents narrows an incident snapshot to the forecast inputs: within
// the lookback window ending at now, matching the optional category filter,
// and within radiusKM of the optional location.
func FilterIncidents(incidents []model.Incident, now time.Time, category string, location *geo.Point, radiusKM float64) []model.Incident {
	if radiusKM <= 0 {
		radiusKM = DefaultRadiusKM
	}
	cutoff := now.AddDate(0, 0, -LookbackDays)

	out := make([]model.Incident, 0, len(incidents))
	for _, in := range incidents {
		if in.OccurredAt.Before(cutoff) || in.OccurredAt.After(now) {
			continue
		}
		if !in.MatchesCategory(category) {
			continue
		}
		if location != nil && geo.DistanceKM(location.Lat, location.Lng, in.Latitude, in.Longitude) > radiusKM {
			continue
		}
		out = append(out, in)
	}
	return out
}

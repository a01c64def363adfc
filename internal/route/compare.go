package route

import (
	"context"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/model"
)

// neutralSafetyScore is the fixed score assigned to the direct baseline.
const neutralSafetyScore = 50.0

// Recommendation values.
const (
	RecommendSafe   = "safe_route"
	RecommendDirect = "direct_route"
)

// RouteSummary is the comparable slice of a plan used in comparisons.
type RouteSummary struct {
	DistanceKM      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	SafetyScore     float64 `json:"safety_score"`
	AvoidedZones    int     `json:"avoided_zones"`
}

// Comparison contrasts the safe route against a direct baseline.
type Comparison struct {
	Safe   RouteSummary `json:"safe_route"`
	Direct RouteSummary `json:"direct_route"`

	ExtraDistanceKM   float64 `json:"extra_distance_km"`
	ExtraTimeMinutes  float64 `json:"extra_time_minutes"`
	SafetyImprovement float64 `json:"safety_improvement"`
	Recommendation    string  `json:"recommendation"`
}

// Compare computes the safe route and a direct-route baseline (no detours,
// fixed speed, neutral safety score) and derives the differences between
// them. The plan is returned alongside so callers can render the full path.
func (p *Planner) Compare(ctx context.Context, incidents []model.Incident, req Request) (*Plan, *Comparison, error) {
	plan, err := p.Plan(ctx, incidents, req)
	if err != nil {
		return nil, nil, err
	}

	directDistance := geo.Distance(req.Start, req.End)
	direct := RouteSummary{
		DistanceKM:      round2(directDistance),
		DurationMinutes: round1(directDistance / directSpeedKMH * 60),
		SafetyScore:     neutralSafetyScore,
		AvoidedZones:    0,
	}

	recommendation := RecommendDirect
	if plan.AvoidedZones > 0 {
		recommendation = RecommendSafe
	}

	cmp := &Comparison{
		Safe: RouteSummary{
			DistanceKM:      plan.DistanceKM,
			DurationMinutes: plan.DurationMinutes,
			SafetyScore:     plan.SafetyScore,
			AvoidedZones:    plan.AvoidedZones,
		},
		Direct:            direct,
		ExtraDistanceKM:   round2(plan.DistanceKM - direct.DistanceKM),
		ExtraTimeMinutes:  round1(plan.DurationMinutes - direct.DurationMinutes),
		SafetyImprovement: round1(plan.SafetyScore - neutralSafetyScore),
		Recommendation:    recommendation,
	}
	return plan, cmp, nil
}

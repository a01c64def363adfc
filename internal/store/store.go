// Package store persists the incident feed the analytics core reads from.
// Two backends are provided: postgres (pgx) for deployments and sqlite for
// local use and tests. The analytics packages never touch the store directly;
// they receive immutable incident snapshots listed from it.
package store

import (
	"context"
	"time"

	"github.com/safecity/crimewatch-cli/internal/model"
)

// Filter specifies criteria for listing incidents.
type Filter struct {
	Category string    // substring match, case-insensitive
	Since    time.Time // inclusive lower bound on occurred_at
	Until    time.Time // inclusive upper bound on occurred_at
	Limit    int       // 0 means no limit
}

// CategoryCount is one row of a per-category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats summarizes incident activity over a trailing window.
type Stats struct {
	Total      int             `json:"total"`
	ByCategory []CategoryCount `json:"by_category"`
	Arrests    int             `json:"arrests"`
	ArrestRate float64         `json:"arrest_rate"`
	PeriodDays int             `json:"period_days"`
}

// Store defines the incident feed persistence interface.
type Store interface {
	InsertIncidents(ctx context.Context, incidents []model.Incident) (int, error)
	ListIncidents(ctx context.Context, filter Filter) ([]model.Incident, error)
	Stats(ctx context.Context, days int) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

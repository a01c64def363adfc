package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/safecity/crimewatch-cli/internal/model"
)

// PgxPool abstracts the pgxpool methods the store uses, allowing pgxmock in
// tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresStore implements Store over pgx.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres connects a pgx pool for the given URL.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (or mock).
func NewPostgresWithPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	id          BIGSERIAL PRIMARY KEY,
	case_id     TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	arrest      BOOLEAN NOT NULL DEFAULT FALSE,
	domestic    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_incidents_occurred_at ON incidents (occurred_at);
CREATE INDEX IF NOT EXISTS idx_incidents_category ON incidents (category);
`

// Migrate creates the incidents schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "store: migrate postgres")
	}
	return nil
}

// InsertIncidents bulk-inserts incidents, skipping case_id conflicts.
// Returns the number of rows written.
func (s *PostgresStore) InsertIncidents(ctx context.Context, incidents []model.Incident) (int, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, in := range incidents {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO incidents (case_id, category, latitude, longitude, occurred_at, arrest, domestic)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (case_id) DO NOTHING`,
			in.CaseID, in.Category, in.Latitude, in.Longitude, in.OccurredAt, in.Arrest, in.Domestic,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "store: insert incident %s", in.CaseID)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListIncidents returns incidents matching the filter, ordered by occurred_at
// ascending.
func (s *PostgresStore) ListIncidents(ctx context.Context, filter Filter) ([]model.Incident, error) {
	var conds []string
	var args []any

	if filter.Category != "" {
		args = append(args, "%"+filter.Category+"%")
		conds = append(conds, fmt.Sprintf("category ILIKE $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conds = append(conds, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}

	query := "SELECT id, case_id, category, latitude, longitude, occurred_at, arrest, domestic FROM incidents"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list incidents")
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		var in model.Incident
		if err := rows.Scan(&in.ID, &in.CaseID, &in.Category, &in.Latitude, &in.Longitude, &in.OccurredAt, &in.Arrest, &in.Domestic); err != nil {
			return nil, eris.Wrap(err, "store: scan incident")
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate incidents")
	}
	return out, nil
}

// Stats summarizes incident activity over the trailing window.
func (s *PostgresStore) Stats(ctx context.Context, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	st := &Stats{PeriodDays: days}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE arrest)
		FROM incidents WHERE occurred_at >= $1`, cutoff,
	).Scan(&st.Total, &st.Arrests)
	if err != nil {
		return nil, eris.Wrap(err, "store: stats totals")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM incidents WHERE occurred_at >= $1
		GROUP BY category ORDER BY COUNT(*) DESC, category ASC`, cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: stats by category")
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "store: scan category count")
		}
		st.ByCategory = append(st.ByCategory, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate category counts")
	}

	if st.Total > 0 {
		st.ArrestRate = float64(st.Arrests) / float64(st.Total) * 100
	}
	return st, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/safecity/crimewatch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path (":memory:" works) and
// configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id     TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	occurred_at DATETIME NOT NULL,
	arrest      INTEGER NOT NULL DEFAULT 0,
	domestic    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_incidents_occurred_at ON incidents (occurred_at);
CREATE INDEX IF NOT EXISTS idx_incidents_category ON incidents (category);
`

// Migrate creates the incidents schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "store: migrate sqlite")
	}
	return nil
}

// InsertIncidents bulk-inserts incidents inside a transaction, skipping
// case_id conflicts. Returns the number of rows written.
func (s *SQLiteStore) InsertIncidents(ctx context.Context, incidents []model.Incident) (int, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO incidents (case_id, category, latitude, longitude, occurred_at, arrest, domestic)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (case_id) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare insert")
	}
	defer stmt.Close()

	inserted := 0
	for _, in := range incidents {
		res, err := stmt.ExecContext(ctx, in.CaseID, in.Category, in.Latitude, in.Longitude, in.OccurredAt.UTC(), in.Arrest, in.Domestic)
		if err != nil {
			return inserted, eris.Wrapf(err, "store: insert incident %s", in.CaseID)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "store: commit insert")
	}
	return inserted, nil
}

// ListIncidents returns incidents matching the filter, ordered by occurred_at
// ascending.
func (s *SQLiteStore) ListIncidents(ctx context.Context, filter Filter) ([]model.Incident, error) {
	var conds []string
	var args []any

	if filter.Category != "" {
		conds = append(conds, "category LIKE ? COLLATE NOCASE")
		args = append(args, "%"+filter.Category+"%")
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := "SELECT id, case_id, category, latitude, longitude, occurred_at, arrest, domestic FROM incidents"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) Stats(ctx context.Context, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	st := &Stats{PeriodDays: days}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(arrest), 0)
		FROM incidents WHERE occurred_at >= ?`, cutoff,
	).Scan(&st.Total, &st.Arrests)
	if err != nil {
		return nil, eris.Wrap(err, "store: stats totals")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM incidents WHERE occurred_at >= ?
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

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

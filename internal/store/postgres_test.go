package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/crimewatch-cli/internal/model"
)

func TestPostgres_ListIncidents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	occurred := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, case_id, category, latitude, longitude, occurred_at, arrest, domestic FROM incidents`).
		WillReturnRows(
			pgxmock.NewRows([]string{"id", "case_id", "category", "latitude", "longitude", "occurred_at", "arrest", "domestic"}).
				AddRow(int64(1), "c1", "THEFT", 41.88, -87.63, occurred, false, false),
		)

	s := NewPostgresWithPool(mock)
	got, err := s.ListIncidents(context.Background(), Filter{})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].CaseID)
	assert.Equal(t, occurred, got[0].OccurredAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListIncidents_CategoryFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`category ILIKE \$1`).
		WithArgs("%THEFT%").
		WillReturnRows(pgxmock.NewRows([]string{"id", "case_id", "category", "latitude", "longitude", "occurred_at", "arrest", "domestic"}))

	s := NewPostgresWithPool(mock)
	got, err := s.ListIncidents(context.Background(), Filter{Category: "THEFT"})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertIncidents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	in := model.Incident{CaseID: "c1", Category: "THEFT", Latitude: 1, Longitude: 2, OccurredAt: time.Now()}
	mock.ExpectExec(`INSERT INTO incidents`).
		WithArgs(in.CaseID, in.Category, in.Latitude, in.Longitude, in.OccurredAt, in.Arrest, in.Domestic).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPostgresWithPool(mock)
	n, err := s.InsertIncidents(context.Background(), []model.Incident{in})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertIncidents_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)
	n, err := s.InsertIncidents(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPostgres_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS incidents`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s := NewPostgresWithPool(mock)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Stats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE arrest\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count", "arrests"}).AddRow(10, 4))
	mock.ExpectQuery(`SELECT category, COUNT\(\*\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"category", "count"}).
			AddRow("THEFT", 6).
			AddRow("ASSAULT", 4))

	s := NewPostgresWithPool(mock)
	st, err := s.Stats(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 10, st.Total)
	assert.Equal(t, 4, st.Arrests)
	assert.InDelta(t, 40.0, st.ArrestRate, 1e-9)
	require.Len(t, st.ByCategory, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

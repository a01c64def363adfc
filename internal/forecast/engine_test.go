package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/model"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewEngineWithClock(clockwork.NewFakeClockAt(testNow))
}

// historyEndingYesterday builds incidents whose daily counts end the day
// before testNow.
func historyEndingYesterday(countsPerDay []int) []model.Incident {
	start := testNow.AddDate(0, 0, -len(countsPerDay))
	return dailyIncidents(time.Date(start.Year(), start.Month(), start.Day(), 8, 0, 0, 0, time.UTC), countsPerDay)
}

func TestForecast_InvalidHorizon(t *testing.T) {
	e := testEngine()
	for _, h := range []int{0, -1, 31} {
		_, err := e.Forecast(context.Background(), nil, Request{Horizon: h})
		require.Error(t, err)
	}
}

func TestForecast_InvalidLocation(t *testing.T) {
	e := testEngine()
	_, err := e.Forecast(context.Background(), nil, Request{
		Horizon:  7,
		Location: &geo.Point{Lat: 95, Lng: 0},
	})
	require.Error(t, err)
}

func TestForecast_EmptyHistoryAllZeros(t *testing.T) {
	e := testEngine()
	res, err := e.Forecast(context.Background(), nil, Request{Horizon: 7})
	require.NoError(t, err)

	assert.Equal(t, MethodMovingAverage, res.Method)
	assert.Equal(t, 0.0, res.Accuracy)
	require.Len(t, res.Points, 7)
	for i, p := range res.Points {
		assert.Equal(t, 0, p.Predicted)
		assert.Equal(t, 0, p.LowerBound)
		assert.Equal(t, 0, p.UpperBound)
		// Contiguous days starting the day after "now".
		want := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		assert.Equal(t, want, p.Date)
	}
}

func TestForecast_TenNonZeroDaysSelectsFallback(t *testing.T) {
	e := testEngine()
	counts := make([]int, 10)
	for i := range counts {
		counts[i] = 2
	}
	res, err := e.Forecast(context.Background(), historyEndingYesterday(counts), Request{Horizon: 5})
	require.NoError(t, err)

	assert.Equal(t, MethodMovingAverage, res.Method)
	assert.Equal(t, 50.0, res.Accuracy)
	require.Len(t, res.Points, 5)
	for _, p := range res.Points {
		assert.Equal(t, 2, p.Predicted)
		assert.Equal(t, 1, p.LowerBound) // round(2 * 0.7)
		assert.Equal(t, 3, p.UpperBound) // round(2 * 1.3)
	}
}

func TestForecast_FortyNonZeroDaysAttemptsPrimary(t *testing.T) {
	e := testEngine()
	counts := make([]int, 40)
	for i := range counts {
		counts[i] = 3 + i%5 // varying, all non-zero
	}
	res, err := e.Forecast(context.Background(), historyEndingYesterday(counts), Request{Horizon: 7})
	require.NoError(t, err)

	assert.Equal(t, MethodARIMA, res.Method)
	require.Len(t, res.Points, 7)
	assert.GreaterOrEqual(t, res.Accuracy, 0.0)
	assert.LessOrEqual(t, res.Accuracy, 100.0)

	// Dates are contiguous calendar days starting after the last history day.
	lastHistory := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	for i, p := range res.Points {
		assert.Equal(t, lastHistory.AddDate(0, 0, i+1), p.Date)
		assert.GreaterOrEqual(t, p.Predicted, 0)
		assert.GreaterOrEqual(t, p.LowerBound, 0)
		assert.LessOrEqual(t, p.LowerBound, p.UpperBound)
	}
}

func TestForecast_ConstantSeriesFallsBack(t *testing.T) {
	// 40 non-zero days clears the primary gate, but a constant series has no
	// variance after differencing: the fit must fail and the engine must
	// recover with the fallback, not surface an error.
	e := testEngine()
	counts := make([]int, 40)
	for i := range counts {
		counts[i] = 4
	}
	res, err := e.Forecast(context.Background(), historyEndingYesterday(counts), Request{Horizon: 3})
	require.NoError(t, err)

	assert.Equal(t, MethodMovingAverage, res.Method)
	assert.Equal(t, 50.0, res.Accuracy)
	for _, p := range res.Points {
		assert.Equal(t, 4, p.Predicted)
	}
}

func TestForecast_CancelledContextFallsBack(t *testing.T) {
	e := testEngine()
	counts := make([]int, 40)
	for i := range counts {
		counts[i] = 3 + i%5
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Forecast(ctx, historyEndingYesterday(counts), Request{Horizon: 5})
	require.NoError(t, err)
	assert.Equal(t, MethodMovingAverage, res.Method)
}

func TestForecast_CategoryFilterNarrowsHistory(t *testing.T) {
	e := testEngine()

	// 40 days of THEFT plus 40 days of ASSAULT; filtering to a category that
	// matches nothing leaves no history at all.
	var incidents []model.Incident
	counts := make([]int, 40)
	for i := range counts {
		counts[i] = 2
	}
	incidents = append(incidents, historyEndingYesterday(counts)...)

	res, err := e.Forecast(context.Background(), incidents, Request{Horizon: 3, Category: "NARCOTICS"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Accuracy)
	for _, p := range res.Points {
		assert.Equal(t, 0, p.Predicted)
	}
}

func TestForecast_HorizonLengthRespected(t *testing.T) {
	e := testEngine()
	for _, h := range []int{1, 15, 30} {
		res, err := e.Forecast(context.Background(), nil, Request{Horizon: h})
		require.NoError(t, err)
		assert.Len(t, res.Points, h)
		assert.Equal(t, h, res.Horizon)
	}
}

package forecast

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/model"
)

// Forecast method identifiers reported in results.
const (
	MethodARIMA         = "arima"
	MethodMovingAverage = "moving_average"
)

// minPrimaryNonZeroDays is the decision threshold between the primary ARIMA
// path and the moving-average fallback: fewer non-zero history days than this
// and the fit is not attempted.
const minPrimaryNonZeroDays = 30

// fallbackWindowDays is the trailing window the moving-average fallback
// averages over.
const fallbackWindowDays = 30

// Fallback confidence bounds as multiples of the projected mean.
const (
	fallbackLowerFactor = 0.7
	fallbackUpperFactor = 1.3
)

// accuracyWindowDays is the in-sample window the primary path scores itself
// over.
const accuracyWindowDays = 30

// Point is a single forecast day.
type Point struct {
	Date       time.Time `json:"date"`
	Predicted  int       `json:"predicted_count"`
	LowerBound int       `json:"lower_bound"`
	UpperBound int       `json:"upper_bound"`
}

// Result is a complete forecast: one Point per requested horizon day in date
// order, the method that produced it, and a 0-100 accuracy estimate.
type Result struct {
	Points   []Point `json:"predictions"`
	Accuracy float64 `json:"accuracy"`
	Method   string  `json:"method"`
	Horizon  int     `json:"horizon_days"`
}

// Request describes one forecast invocation.
type Request struct {
	Horizon  int        // days ahead, 1-30
	Category string     // optional category filter
	Location *geo.Point // optional location filter
	RadiusKM float64    // radius for the location filter; 0 means the 5 km default
}

// Engine produces forecasts over incident snapshots. It is stateless between
// invocations; the clock is injectable for deterministic tests.
type Engine struct {
	clock clockwork.Clock
}

// NewEngine returns an Engine on the real clock.
func NewEngine() *Engine {
	return &Engine{clock: clockwork.NewRealClock()}
}

// NewEngineWithClock returns an Engine on the given clock.
func NewEngineWithClock(c clockwork.Clock) *Engine {
	return &Engine{clock: c}
}

// Forecast builds the daily series for the request and produces a forecast.
// The primary ARIMA path is attempted when enough non-zero history exists;
// numerical failure or context cancellation during the fit degrades to the
// moving-average fallback rather than surfacing an error. The only errors
// returned are input validation failures.
func (e *Engine) Forecast(ctx context.Context, incidents []model.Incident, req Request) (*Result, error) {
	if err := model.ValidateHorizon(req.Horizon); err != nil {
		return nil, err
	}
	if req.Location != nil {
		if err := model.ValidateCoords(req.Location.Lat, req.Location.Lng); err != nil {
			return nil, err
		}
	}

	now := e.clock.Now().UTC()
	filtered := FilterIncidents(incidents, now, req.Category, req.Location, req.RadiusKM)
	series := BuildDailySeries(filtered)

	log := zap.L().With(
		zap.Int("horizon", req.Horizon),
		zap.String("category", req.Category),
		zap.Int("history_days", series.Len()),
		zap.Int("non_zero_days", series.NonZeroDays()),
	)

	if series.NonZeroDays() < minPrimaryNonZeroDays {
		log.Debug("insufficient history for arima, using fallback")
		return e.fallback(series, req.Horizon, now), nil
	}

	result, err := e.primary(ctx, series, req.Horizon)
	if err != nil {
		log.Warn("arima fit failed, using fallback", zap.Error(err))
		return e.fallback(series, req.Horizon, now), nil
	}

	log.Info("forecast computed", zap.String("method", result.Method), zap.Float64("accuracy", result.Accuracy))
	return result, nil
}

// primary runs the ARIMA fit in a separate goroutine so a context deadline
// can abandon a slow fit; the abandoned goroutine finishes and its result is
// discarded.
func (e *Engine) primary(ctx context.Context, series Series, horizon int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "forecast: fit cancelled")
	}

	type fitOutcome struct {
		result *Result
		err    error
	}
	ch := make(chan fitOutcome, 1)

	go func() {
		r, err := fitAndForecast(series, horizon)
		ch <- fitOutcome{result: r, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "forecast: fit cancelled")
	case out := <-ch:
		return out.result, out.err
	}
}

func fitAndForecast(series Series, horizon int) (*Result, error) {
	m, err := fitARIMA(series.Counts)
	if err != nil {
		return nil, err
	}

	point, lower, upper := m.forecast(horizon)

	points := make([]Point, horizon)
	start := series.LastDay().AddDate(0, 0, 1)
	for i := 0; i < horizon; i++ {
		points[i] = Point{
			Date:       start.AddDate(0, 0, i),
			Predicted:  roundNonNegative(point[i]),
			LowerBound: roundNonNegative(lower[i]),
			UpperBound: int(math.Round(upper[i])),
		}
	}

	return &Result{
		Points:   points,
		Accuracy: inSampleAccuracy(m, series.Counts),
		Method:   MethodARIMA,
		Horizon:  horizon,
	}, nil
}

// inSampleAccuracy scores one-step-ahead predictions over the trailing
// accuracy window: 100 - (MAE / mean * 100), clamped to [0, 100].
func inSampleAccuracy(m *arimaModel, y []float64) float64 {
	fitted := m.fittedValues(y)
	actual := y[1:]

	n := accuracyWindowDays
	if n > len(actual) {
		n = len(actual)
	}
	fitted = fitted[len(fitted)-n:]
	actual = actual[len(actual)-n:]

	var mae, mean float64
	for i := range actual {
		mae += math.Abs(actual[i] - fitted[i])
		mean += actual[i]
	}
	mae /= float64(n)
	mean /= float64(n)

	if mean == 0 {
		return 0
	}
	return clamp(100-mae/mean*100, 0, 100)
}

// fallback projects a constant trailing mean forward. With no history at all
// every prediction is zero and accuracy is 0; with history accuracy is a
// fixed 50.
func (e *Engine) fallback(series Series, horizon int, now time.Time) *Result {
	mean := series.TailMean(fallbackWindowDays)
	accuracy := 50.0
	start := series.LastDay().AddDate(0, 0, 1)
	if series.Len() == 0 {
		accuracy = 0
		start = dayOf(now).AddDate(0, 0, 1)
	}

	points := make([]Point, horizon)
	for i := range points {
		points[i] = Point{
			Date:       start.AddDate(0, 0, i),
			Predicted:  roundNonNegative(mean),
			LowerBound: roundNonNegative(mean * fallbackLowerFactor),
			UpperBound: roundNonNegative(mean * fallbackUpperFactor),
		}
	}

	return &Result{
		Points:   points,
		Accuracy: accuracy,
		Method:   MethodMovingAverage,
		Horizon:  horizon,
	}
}

func roundNonNegative(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

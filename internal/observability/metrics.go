package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the API server.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: endpoint, status
	HTTPDuration *prometheus.HistogramVec // labels: endpoint

	// Analytics metrics.
	ForecastsComputed *prometheus.CounterVec // labels: method={arima,moving_average}
	RoutesPlanned     *prometheus.CounterVec // labels: source={geometric,osrm}
	SpikesDetected    prometheus.Counter
}

// NewMetrics creates and registers all server metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crimewatch",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crimewatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request handling duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		ForecastsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crimewatch",
			Name:      "forecasts_computed_total",
			Help:      "Forecasts computed, by method actually used.",
		}, []string{"method"}),
		RoutesPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crimewatch",
			Name:      "routes_planned_total",
			Help:      "Safe routes computed, by plan source.",
		}, []string{"source"}),
		SpikesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crimewatch",
			Name:      "spikes_detected_total",
			Help:      "Crime spike alerts raised.",
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.ForecastsComputed,
		m.RoutesPlanned,
		m.SpikesDetected,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		HTTPRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crimewatch", Name: "http_requests_total"}, []string{"endpoint", "status"}),
		HTTPDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "crimewatch", Name: "http_request_duration_seconds"}, []string{"endpoint"}),
		ForecastsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crimewatch", Name: "forecasts_computed_total"}, []string{"method"}),
		RoutesPlanned:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crimewatch", Name: "routes_planned_total"}, []string{"source"}),
		SpikesDetected:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crimewatch", Name: "spikes_detected_total"}),
	}
}

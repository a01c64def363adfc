package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/safecity/crimewatch-cli/internal/forecast"
	"github.com/safecity/crimewatch-cli/internal/geo"
	"github.com/safecity/crimewatch-cli/internal/hotspot"
	"github.com/safecity/crimewatch-cli/internal/observability"
	"github.com/safecity/crimewatch-cli/internal/route"
	"github.com/safecity/crimewatch-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analytics HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		api := &apiServer{
			store:   st,
			engine:  forecast.NewEngine(),
			planner: buildPlanner(),
			areas:   hotspot.NewStaticResolver(),
			metrics: observability.NewMetrics(),
		}

		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		mux.HandleFunc("GET /api/forecast", api.instrument("forecast", api.handleForecast))
		mux.HandleFunc("GET /api/hotspots", api.instrument("hotspots", api.handleHotspots))
		mux.HandleFunc("GET /api/spikes", api.instrument("spikes", api.handleSpikes))
		mux.HandleFunc("GET /api/route", api.instrument("route", api.handleRoute))
		mux.HandleFunc("GET /api/stats", api.instrument("stats", api.handleStats))
		mux.HandleFunc("GET /api/heatmap", api.instrument("heatmap", api.handleHeatmap))
		mux.HandleFunc("GET /api/dashboard", api.instrument("dashboard", api.handleDashboard))

		limiter := newIPRateLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           limiter.middleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	store   store.Store
	engine  *forecast.Engine
	planner *route.Planner
	areas   hotspot.AreaResolver
	metrics *observability.Metrics
}

// instrument wraps a handler with request counting and duration metrics.
func (s *apiServer) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *apiServer) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days := queryInt(q.Get("days"), 7)
	category := q.Get("category")
	radius := queryFloat(q.Get("radius"), 0)

	req := forecast.Request{Horizon: days, Category: category, RadiusKM: radius}
	if q.Get("lat") != "" && q.Get("lng") != "" {
		req.Location = &geo.Point{
			Lat: queryFloat(q.Get("lat"), 0),
			Lng: queryFloat(q.Get("lng"), 0),
		}
	}

	incidents, err := s.store.ListIncidents(r.Context(), store.Filter{
		Category: category,
		Since:    time.Now().AddDate(0, 0, -forecast.LookbackDays),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	fitCtx, cancel := context.WithTimeout(r.Context(), time.Duration(cfg.Forecast.FitTimeoutSecs)*time.Second)
	defer cancel()

	result, err := s.engine.Forecast(fitCtx, incidents, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.metrics.ForecastsComputed.WithLabelValues(result.Method).Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleHotspots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spots, err := s.computeHotspots(r.Context(), queryInt(q.Get("top"), 10), queryInt(q.Get("days"), 7), q.Get("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

func (s *apiServer) computeHotspots(ctx context.Context, top, days int, category string) ([]hotspot.Hotspot, error) {
	now := time.Now()
	lookback := time.Duration(days) * 24 * time.Hour
	incidents, err := s.store.ListIncidents(ctx, store.Filter{
		Category: category,
		Since:    now.Add(-lookback),
	})
	if err != nil {
		return nil, err
	}
	recent := hotspot.FilterWindow(incidents, now, lookback)
	cells := hotspot.Aggregate(recent, hotspot.GridSize)
	return hotspot.TopHotspots(cells, top, s.areas), nil
}

func (s *apiServer) handleSpikes(w http.ResponseWriter, r *http.Request) {
	threshold := queryInt(r.URL.Query().Get("threshold"), hotspot.SpikeThreshold)

	incidents, err := s.store.ListIncidents(r.Context(), store.Filter{
		Since: time.Now().Add(-hotspot.SpikeWindow),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	spikes := hotspot.DetectSpikes(incidents, threshold)
	s.metrics.SpikesDetected.Add(float64(len(spikes)))
	writeJSON(w, http.StatusOK, spikes)
}

func (s *apiServer) handleRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := route.Request{
		Start: geo.Point{
			Lat: queryFloat(q.Get("from_lat"), 0),
			Lng: queryFloat(q.Get("from_lng"), 0),
		},
		End: geo.Point{
			Lat: queryFloat(q.Get("to_lat"), 0),
			Lng: queryFloat(q.Get("to_lng"), 0),
		},
		AvoidRadiusKM: queryFloat(q.Get("radius"), 0),
		RecencyDays:   cfg.Route.RecencyDays,
	}

	recency := req.RecencyDays
	if recency <= 0 {
		recency = route.DefaultRecencyDays
	}
	incidents, err := s.store.ListIncidents(r.Context(), store.Filter{
		Since: time.Now().AddDate(0, 0, -recency),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if q.Get("compare") == "true" {
		plan, comparison, err := s.planner.Compare(r.Context(), incidents, req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.metrics.RoutesPlanned.WithLabelValues(plan.Source).Inc()
		writeJSON(w, http.StatusOK, struct {
			Plan       *route.Plan       `json:"plan"`
			Comparison *route.Comparison `json:"comparison"`
		}{plan, comparison})
		return
	}

	plan, err := s.planner.Plan(r.Context(), incidents, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.metrics.RoutesPlanned.WithLabelValues(plan.Source).Inc()

	if q.Get("format") == "geojson" {
		data, err := plan.GeoJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r.URL.Query().Get("days"), 30)

	stats, err := s.store.Stats(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := queryInt(q.Get("days"), 30)
	limit := queryInt(q.Get("limit"), 5000)

	incidents, err := s.store.ListIncidents(r.Context(), store.Filter{
		Category: q.Get("category"),
		Since:    time.Now().AddDate(0, 0, -days),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type point struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Category  string  `json:"category"`
	}
	points := make([]point, 0, len(incidents))
	for _, in := range incidents {
		points = append(points, point{in.Latitude, in.Longitude, in.Category})
	}
	writeJSON(w, http.StatusOK, points)
}

// handleDashboard computes the landing-page aggregates concurrently.
func (s *apiServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	g, ctx := errgroup.WithContext(r.Context())

	var (
		spots     []hotspot.Hotspot
		stats     *store.Stats
		forecast7 *forecast.Result
	)

	g.Go(func() error {
		var err error
		spots, err = s.computeHotspots(ctx, 5, 7, "")
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.store.Stats(ctx, 30)
		return err
	})
	g.Go(func() error {
		incidents, err := s.store.ListIncidents(ctx, store.Filter{
			Since: time.Now().AddDate(0, 0, -forecast.LookbackDays),
		})
		if err != nil {
			return err
		}
		forecast7, err = s.engine.Forecast(ctx, incidents, forecast.Request{Horizon: 7})
		return err
	})

	if err := g.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Hotspots []hotspot.Hotspot `json:"hotspots"`
		Stats    *store.Stats      `json:"stats"`
		Forecast *forecast.Result  `json:"forecast"`
	}{spots, stats, forecast7})
}

// -- rate limiting --

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.get(ip).Allow() {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -- response helpers --

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	zap.L().Warn("request failed", zap.Int("status", code), zap.Error(err))
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"anomaly-monitor/internal/analytics"
	"anomaly-monitor/internal/cache"
	"anomaly-monitor/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	version      = "1.0.0"
	defaultLimit = 10
	maxLimit     = 1000
)

// EntrySource reads the durable event log.
type EntrySource interface {
	Recent(limit int) ([]models.LogEntry, error)
}

// Cache is the optional Redis mirror.
type Cache interface {
	RecentEntries(ctx context.Context, count int64) ([]models.LogEntry, error)
	RecentAlerts(ctx context.Context, count int64) ([]cache.Alert, error)
}

type Options struct {
	Stats    *analytics.Stats
	Store    EntrySource
	Cache    Cache
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

// Server is the read-only status API. It never writes to the event log.
type Server struct {
	router  *mux.Router
	stats   *analytics.Stats
	store   EntrySource
	cache   Cache
	logger  zerolog.Logger
	metrics *httpMetrics
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func New(opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	s := &Server{
		router: mux.NewRouter(),
		stats:  opts.Stats,
		store:  opts.Store,
		cache:  opts.Cache,
		logger: opts.Logger.With().Str("component", "http").Logger(),
		metrics: &httpMetrics{
			requests: f.NewCounterVec(prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"method", "endpoint", "status"}),
			duration: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "endpoint"}),
		},
	}

	s.router.Use(s.recovery, s.instrument)
	s.setupRoutes(reg)
	return s
}

func (s *Server) setupRoutes(reg *prometheus.Registry) {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/analytics/current", s.getAnalyticsHandler).Methods("GET")
	s.router.HandleFunc("/analytics/anomalies", s.getAnomaliesHandler).Methods("GET")
	s.router.HandleFunc("/events/recent", s.getRecentEventsHandler).Methods("GET")
	s.router.HandleFunc("/events/alerts", s.getAlertsHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version,
	})
}

func (s *Server) getAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "statistics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Current())
}

func (s *Server) getAnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.stats == nil {
		writeJSON(w, http.StatusOK, []models.LogEntry{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.RecentAnomalies(limit))
}

// getRecentEventsHandler prefers the Redis mirror and falls back to the
// durable store when the mirror is absent or failing.
func (s *Server) getRecentEventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.cache != nil {
		entries, err := s.cache.RecentEntries(r.Context(), int64(limit))
		if err == nil {
			writeJSON(w, http.StatusOK, entries)
			return
		}
		s.logger.Warn().Err(err).Msg("redis mirror unavailable, reading event log")
	}

	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "event log unavailable")
		return
	}
	entries, err := s.store.Recent(limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read event log")
		writeError(w, http.StatusInternalServerError, "failed to read event log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getAlertsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "alert mirror not configured")
		return
	}
	alerts, err := s.cache.RecentAlerts(r.Context(), int64(limit))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read alerts")
		writeError(w, http.StatusBadGateway, "failed to read alerts")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info().Msg("server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("could not gracefully shutdown the server")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("server is ready to handle requests")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	<-done
	s.logger.Info().Msg("server stopped")
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anomaly-monitor/internal/analytics"
	"anomaly-monitor/internal/cache"
	"anomaly-monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type stubStore struct {
	entries []models.LogEntry
	err     error
	limit   int
}

func (s *stubStore) Recent(limit int) ([]models.LogEntry, error) {
	s.limit = limit
	return s.entries, s.err
}

type stubCache struct {
	entries []models.LogEntry
	alerts  []cache.Alert
	err     error
}

func (c *stubCache) RecentEntries(context.Context, int64) ([]models.LogEntry, error) {
	return c.entries, c.err
}

func (c *stubCache) RecentAlerts(context.Context, int64) ([]cache.Alert, error) {
	return c.alerts, c.err
}

func newTestServer(store EntrySource, c Cache) (*Server, *analytics.Stats, *prometheus.Registry) {
	stats := analytics.NewStats("host", 10)
	reg := prometheus.NewRegistry()
	s := New(Options{Stats: stats, Store: store, Cache: c, Registry: reg, Logger: zerolog.Nop()})
	return s, stats, reg
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, reg := newTestServer(nil, nil)
	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}

	if count := testutil.CollectAndCount(reg, "http_requests_total"); count != 1 {
		t.Errorf("expected one request series, got %d", count)
	}
}

func TestAnalyticsCurrent(t *testing.T) {
	s, stats, _ := newTestServer(nil, nil)
	stats.Record(models.LogEntry{CPU: 40})
	stats.Record(models.LogEntry{CPU: 90, Anomaly: true, AnomalyType: "High CPU Usage"})

	rec := get(t, s, "/analytics/current")
	var got models.TickStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalTicks != 2 || got.TotalAnomalies != 1 || got.RollingCPU != 65 {
		t.Errorf("unexpected stats %+v", got)
	}
}

func TestAnomalies(t *testing.T) {
	s, stats, _ := newTestServer(nil, nil)
	for i := 0; i < 5; i++ {
		stats.Record(models.LogEntry{CPU: float64(86 + i), Anomaly: true})
	}

	rec := get(t, s, "/analytics/anomalies?limit=2")
	var got []models.LogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[1].CPU != 90 {
		t.Errorf("expected the two newest anomalies, got %+v", got)
	}

	if rec := get(t, s, "/analytics/anomalies?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", rec.Code)
	}
}

func TestRecentEvents_PrefersCache(t *testing.T) {
	store := &stubStore{entries: []models.LogEntry{{TopAppName: "from-store"}}}
	c := &stubCache{entries: []models.LogEntry{{TopAppName: "from-cache"}}}
	s, _, _ := newTestServer(store, c)

	rec := get(t, s, "/events/recent")
	if !strings.Contains(rec.Body.String(), "from-cache") {
		t.Errorf("expected cached entries, got %s", rec.Body.String())
	}
}

func TestRecentEvents_FallsBackToStore(t *testing.T) {
	store := &stubStore{entries: []models.LogEntry{{TopAppName: "from-store"}}}
	c := &stubCache{err: errors.New("connection refused")}
	s, _, _ := newTestServer(store, c)

	rec := get(t, s, "/events/recent?limit=5000")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "from-store") {
		t.Errorf("expected store entries, got %d %s", rec.Code, rec.Body.String())
	}
	if store.limit != maxLimit {
		t.Errorf("expected limit clamped to %d, got %d", maxLimit, store.limit)
	}
}

func TestRecentEvents_StoreError(t *testing.T) {
	s, _, _ := newTestServer(&stubStore{err: errors.New("locked")}, nil)
	if rec := get(t, s, "/events/recent"); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestAlerts(t *testing.T) {
	s, _, _ := newTestServer(nil, nil)
	if rec := get(t, s, "/events/alerts"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a mirror, got %d", rec.Code)
	}

	c := &stubCache{alerts: []cache.Alert{{Kind: "port_scan", Address: "203.0.113.9", Hits: 11, Timestamp: time.Now()}}}
	s, _, _ = newTestServer(nil, c)
	rec := get(t, s, "/events/alerts")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "203.0.113.9") {
		t.Errorf("unexpected alerts response %d %s", rec.Code, rec.Body.String())
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	s, _, reg := newTestServer(nil, nil)
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "monitor_ticks_probe",
		Help: "probe",
	}))

	get(t, s, "/health")
	rec := get(t, s, "/metrics/prometheus")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"monitor_ticks_probe", `http_requests_total{endpoint="/health",method="GET",status="200"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestRecovery(t *testing.T) {
	s, _, _ := newTestServer(nil, nil)
	s.router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := get(t, s, "/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/dropwatch/internal/api/handler"
	"github.com/albapepper/dropwatch/internal/cache"
	"github.com/albapepper/dropwatch/internal/config"
	"github.com/albapepper/dropwatch/internal/monitor"
)

type staticStatus struct{ st monitor.Status }

func (s staticStatus) Status() monitor.Status { return s.st }

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(context.Context) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins:  []string{"*"},
		RateLimitEnabled:  true,
		RateLimitRequests: 4,
		RateLimitWindow:   time.Minute,
	}
}

func newTestRouter(st monitor.Status, db handler.DBChecker, cfg *config.Config) http.Handler {
	h := handler.New(staticStatus{st}, db, cache.New(time.Hour), 15*time.Minute)
	return NewRouter(h, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(monitor.Status{}, nil, testConfig())

	rec := get(t, router, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}

func TestStatus_LastCycle(t *testing.T) {
	started := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	st := monitor.Status{Cycles: 3, Last: &monitor.Result{
		CycleID:     "abc",
		StartedAt:   started,
		ItemsListed: 10,
		Evaluated:   9,
		Notified:    2,
	}}
	router := newTestRouter(st, nil, testConfig())

	rec := get(t, router, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Running  bool    `json:"running"`
		Cycles   int     `json:"cycles"`
		Interval float64 `json:"interval_seconds"`
		Next     string  `json:"next_cycle_after"`
		Last     struct {
			CycleID  string `json:"cycle_id"`
			Notified int    `json:"notified"`
		} `json:"last_cycle"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Cycles)
	assert.Equal(t, 900.0, body.Interval)
	assert.Equal(t, "abc", body.Last.CycleID)
	assert.Equal(t, 2, body.Last.Notified)
	assert.Equal(t, "2026-06-01T12:15:00Z", body.Next)
}

func TestStatus_BeforeFirstCycle(t *testing.T) {
	router := newTestRouter(monitor.Status{Running: true}, nil, testConfig())

	rec := get(t, router, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "last_cycle")
	assert.NotContains(t, rec.Body.String(), "next_cycle_after")
}

func TestHealthDB(t *testing.T) {
	tests := []struct {
		name   string
		db     handler.DBChecker
		status int
		want   string
	}{
		{"file backend", nil, http.StatusOK, "not_configured"},
		{"reachable", fakeDB{}, http.StatusOK, "connected"},
		{"down", fakeDB{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, "DB_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestRouter(monitor.Status{}, tt.db, testConfig()), "/health/db")
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestHealthCache(t *testing.T) {
	rec := get(t, newTestRouter(monitor.Status{}, nil, testConfig()), "/health/cache")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":true`)
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(monitor.Status{}, nil, testConfig())

	// Burst is half the per-window allowance.
	assert.Equal(t, http.StatusOK, get(t, router, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/health").Code)
	rec := get(t, router, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = false
	router := newTestRouter(monitor.Status{}, nil, cfg)

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, get(t, router, "/health").Code)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestIPLimiter_EvictsIdleEntries(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	a := l.getLimiter("10.0.0.1")
	l.getLimiter("10.0.0.2")
	assert.Same(t, a, l.getLimiter("10.0.0.1"))
	require.Len(t, l.limiters, 2)

	now = now.Add(30 * time.Second)
	l.getLimiter("10.0.0.1")
	now = now.Add(45 * time.Second)
	l.getLimiter("10.0.0.3")

	assert.Len(t, l.limiters, 2, "idle 10.0.0.2 evicted")
	assert.Contains(t, l.limiters, "10.0.0.1")
	assert.Contains(t, l.limiters, "10.0.0.3")
}

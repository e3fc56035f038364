// Package handler provides HTTP handlers for the status server.
// Handlers read copies of monitor state; nothing here touches the price
// store or ledger directly.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/albapepper/dropwatch/internal/api/respond"
	"github.com/albapepper/dropwatch/internal/cache"
	"github.com/albapepper/dropwatch/internal/monitor"
)

// StatusSource reports the coordinator's last cycle.
type StatusSource interface {
	Status() monitor.Status
}

// DBChecker verifies the state database is reachable.
type DBChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	status   StatusSource
	db       DBChecker // nil with the file backend
	cache    *cache.Cache
	interval time.Duration
	started  time.Time
}

// New creates a Handler. db and c may be nil.
func New(status StatusSource, db DBChecker, c *cache.Cache, interval time.Duration) *Handler {
	return &Handler{
		status:   status,
		db:       db,
		cache:    c,
		interval: interval,
		started:  time.Now().UTC(),
	}
}

// Root serves service info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":   "dropwatch",
		"status": "running",
		"endpoints": []string{
			"/health",
			"/health/db",
			"/health/cache",
			"/api/v1/status",
		},
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":   "not_configured",
			"database": "file backend in use",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.db.HealthCheck(ctx); err != nil {
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unreachable", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"database": "connected",
	})
}

// HealthCheckCache returns history cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"cache":  h.cache.Stats(),
	})
}

type statusResponse struct {
	monitor.Status
	IntervalSeconds float64   `json:"interval_seconds"`
	StartedAt       time.Time `json:"started_at"`
	NextCycleAfter  *string   `json:"next_cycle_after,omitempty"`
}

// GetStatus returns the last cycle result.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	resp := statusResponse{
		Status:          st,
		IntervalSeconds: h.interval.Seconds(),
		StartedAt:       h.started,
	}
	if st.Last != nil && !st.Running {
		next := st.Last.StartedAt.Add(h.interval).Format(time.RFC3339)
		resp.NextCycleAfter = &next
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}

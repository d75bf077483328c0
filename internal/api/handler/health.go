package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ytgrab/ytgrab-bot/internal/session"
)

var startTime = time.Now()

// HealthHandler serves the liveness endpoint hosting platforms poll to keep
// the bot process alive.
type HealthHandler struct {
	registry     *session.Registry
	shuttingDown *atomic.Bool
}

// NewHealthHandler creates a health handler. shuttingDown is shared with the
// bot: once set, probes report the drain with 503.
func NewHealthHandler(registry *session.Registry, shuttingDown *atomic.Bool) *HealthHandler {
	return &HealthHandler{
		registry:     registry,
		shuttingDown: shuttingDown,
	}
}

// Live handles GET / and GET /health.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.shuttingDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Bot is shutting down"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Bot is Alive and Running"))
}

// StatsResponse is the JSON response for the stats endpoint.
type StatsResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ActiveUsers   int    `json:"active_users"`
}

// Stats handles GET /stats with a small operational snapshot.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.shuttingDown.Load() {
		status = "draining"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(StatsResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		ActiveUsers:   h.registry.Len(),
	})
}

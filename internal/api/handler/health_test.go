package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/ytgrab/ytgrab-bot/internal/session"
)

func newHealthHandler() (*HealthHandler, *atomic.Bool) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	flag := &atomic.Bool{}
	return NewHealthHandler(session.NewRegistry(logger), flag), flag
}

func TestLive_OK(t *testing.T) {
	h, _ := newHealthHandler()

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "Bot is Alive and Running" {
		t.Errorf("body = %q", got)
	}
}

func TestLive_Draining(t *testing.T) {
	h, flag := newHealthHandler()
	flag.Store(true)

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := rec.Body.String(); got != "Bot is shutting down" {
		t.Errorf("body = %q", got)
	}
}

func TestStats(t *testing.T) {
	h, _ := newHealthHandler()

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.ActiveUsers != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ytgrab/ytgrab-bot/internal/api/handler"
	mw "github.com/ytgrab/ytgrab-bot/internal/api/middleware"
)

// NewRouter creates the HTTP router for the liveness surface.
func NewRouter(healthHandler *handler.HealthHandler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", healthHandler.Live)
	r.Get("/health", healthHandler.Live)
	r.Get("/stats", healthHandler.Stats)

	return r
}

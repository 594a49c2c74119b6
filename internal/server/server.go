// Package server provides the HTTP server and routing for Lookout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/comparison"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/insights"
	"github.com/aristath/lookout/internal/settings"
)

// Config holds server configuration and dependencies.
type Config struct {
	Log           zerolog.Logger
	Port          int
	DevMode       bool
	Orchestrator  *comparison.Orchestrator
	Batch         *comparison.BatchScheduler
	Refresh       *comparison.RefreshSupervisor
	CacheStore    *cache.Store
	Settings      *settings.Service
	InsightEngine *insights.Engine
	EventBus      *events.Bus
}

// Server is the HTTP server exposing the comparison engine API.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates and wires the HTTP server.
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	h := newHandlers(cfg, log)
	stream := newEventsStreamHandler(cfg.EventBus, cfg.Settings, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/comparisons/batch", h.handleRunBatch)
		r.Post("/comparisons/{facet}", h.handleSubmit)
		r.Get("/comparisons/{facet}/state", h.handleFacetState)
		r.Get("/comparisons/{facet}/{comparisonID}", h.handleCachedResult)
		r.Get("/comparisons/{facet}/{comparisonID}/insights", h.handleInsights)

		r.Delete("/refresh", h.handleCancelRefresh)

		r.Get("/settings", h.handleGetSettings)
		r.Put("/settings", h.handleUpdateSettings)

		r.Post("/cache/sweep", h.handleSweepCache)
		r.Delete("/cache", h.handleClearCache)

		r.Get("/system/health", h.handleHealth)
		r.Get("/events", stream.ServeHTTP)
	})

	return &Server{
		router: r,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Router returns the chi router (used by tests).
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Package main is the entry point for the Lookout portfolio comparison engine.
// Lookout orchestrates comparison requests across analytical facets,
// caches results with time-based invalidation, runs pairwise batches under
// a rate cap, and keeps the active comparison fresh in the background.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/clients/analysis"
	"github.com/aristath/lookout/internal/comparison"
	"github.com/aristath/lookout/internal/config"
	"github.com/aristath/lookout/internal/database"
	"github.com/aristath/lookout/internal/diagnostics"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/insights"
	"github.com/aristath/lookout/internal/scheduler"
	"github.com/aristath/lookout/internal/server"
	"github.com/aristath/lookout/internal/settings"
	"github.com/aristath/lookout/pkg/logger"
)

// Background job schedules. The cache sweep period is deliberately long
// and independent of the refresh interval.
const (
	sweepSchedule       = "@every 10m"
	diagnosticsSchedule = "@every 1m"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Lookout")

	// Databases: ephemeral result cache and durable configuration.
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()
	if err := configDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate config database")
	}

	// Event bus and settings.
	bus := events.NewBus(log)

	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	settingsSvc := settings.NewService(settingsRepo, bus, log)
	if err := settingsSvc.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	// Engine components. Everything funnels through one orchestrator, so
	// the cache and concurrency policy apply uniformly.
	cacheStore := cache.NewStore(cacheDB.Conn(), settingsSvc, log)
	analysisClient := analysis.NewClient(cfg.AnalysisServiceURL, cfg.AnalysisTimeout, log)
	insightEngine := insights.NewEngine(log)
	validator := comparison.NewValidator()
	orchestrator := comparison.NewOrchestrator(validator, cacheStore, analysisClient, insightEngine, bus, log)
	batchScheduler := comparison.NewBatchScheduler(orchestrator, settingsSvc, bus, log)
	refreshSupervisor := comparison.NewRefreshSupervisor(orchestrator, log)

	// The supervisor follows every settings change and the startup state.
	settingsSvc.OnChange(refreshSupervisor.Apply)
	refreshSupervisor.Apply(settingsSvc.Get())

	// Background jobs.
	sched := scheduler.New(log)
	if err := sched.AddJob(sweepSchedule, cache.NewSweeperJob(cacheStore, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache sweeper")
	}
	if err := sched.AddJob(diagnosticsSchedule, diagnostics.NewJob(log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register diagnostics job")
	}
	sched.Start()

	// HTTP API.
	srv := server.New(server.Config{
		Log:           log,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		Orchestrator:  orchestrator,
		Batch:         batchScheduler,
		Refresh:       refreshSupervisor,
		CacheStore:    cacheStore,
		Settings:      settingsSvc,
		InsightEngine: insightEngine,
		EventBus:      bus,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	refreshSupervisor.CancelActiveRefresh()
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Lookout stopped")
}

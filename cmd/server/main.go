// Package main is the prisk HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/prisk/internal/config"
	"github.com/aristath/prisk/internal/di"
	payloadhandlers "github.com/aristath/prisk/internal/modules/payload/handlers"
	riskhandlers "github.com/aristath/prisk/internal/modules/risk/handlers"
	scenariohandlers "github.com/aristath/prisk/internal/modules/scenario/handlers"
	"github.com/aristath/prisk/internal/server"
	"github.com/aristath/prisk/pkg/logger"
)

// main is the application entry point:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires dependencies (history database, payload store, services, jobs)
// 4. Loads the payload once, then starts the scheduler and HTTP server
// 5. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting prisk")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Initial load. A failure here is not fatal: a restored snapshot or a
	// later scheduled refresh can still serve views.
	if err := container.Scheduler.RunNow(jobs.RefreshPayload); err != nil {
		log.Warn().Err(err).Msg("Initial payload refresh failed")
	}

	var publisher payloadhandlers.Publisher
	if container.Publisher != nil {
		publisher = container.Publisher
	}
	if cfg.PublishToken == "" {
		log.Warn().Msg("PUBLISH_TOKEN not set, publish endpoint disabled")
	}

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     container.Metrics,
		HistoryDB:   container.HistoryDB,
		Store:       container.Store,
		Sessions:    container.ScenarioManager,
		Scheduler:   container.Scheduler,
		Jobs:        jobs.All(),
		Risk:        riskhandlers.NewHandler(container.RiskService, log),
		Scenario:    scenariohandlers.NewHandler(container.ScenarioManager, cfg.CORSOrigins, log),
		Payload:     payloadhandlers.NewHandler(container.Store, container.SnapshotRepo, publisher, cfg.PublishToken, log),
	})

	container.Scheduler.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

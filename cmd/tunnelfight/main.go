// tunnelfight serves the encounter simulator over HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/tunnelfight/internal/config"
	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/logger"
	"github.com/lawnchairsociety/tunnelfight/internal/server"
	"github.com/lawnchairsociety/tunnelfight/internal/telemetry"
)

func main() {
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(*loggingConfig)
	if err != nil {
		log.Printf("Failed to load logging config, using defaults: %v", err)
		logConfig = logger.DefaultConfig()
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting Tunnel Fight server")

	cfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Error("Failed to load server config", "path", *serverConfigFile, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "tunnelfight", cfg.OTelEndpoint)
	if err != nil {
		logger.Warning("Tracing disabled", "endpoint", cfg.OTelEndpoint, "error", err)
	} else if cfg.OTelEndpoint != "" {
		logger.Info("Tracing enabled", "endpoint", cfg.OTelEndpoint)
	}

	var reports server.ReportStore
	if cfg.ArchiveEnabled() {
		db, err := database.OpenWithConfig(cfg.Database)
		if err != nil {
			logger.Error("Failed to open report database", "database", cfg.Database.String(), "error", err)
			os.Exit(1)
		}
		defer db.Close()
		reports = db
		logger.Info("Report archive enabled", "database", cfg.Database.String())
	}

	srv := server.NewServer(cfg, reports)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("Tunnel Fight server running",
		"address", cfg.HTTP.Addr(),
		"max_iterations", cfg.Simulation.MaxIterations,
		"workers", cfg.Simulation.Workers)
	logger.Info("Press Ctrl+C to shutdown")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err)
		}
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warning("Shutdown did not finish cleanly", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warning("Failed to flush traces", "error", err)
	}
	logger.Info("Server stopped")
}

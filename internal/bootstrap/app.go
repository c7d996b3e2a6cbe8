// Package bootstrap handles application initialization and lifecycle
// management for the song generation service.
package bootstrap

import (
	"context"
	"fmt"

	infraconfig "github.com/waghostel/LearningSong-sub001/infrastructure/config"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/infrastructure/profiling"
	"github.com/waghostel/LearningSong-sub001/internal/config"
)

const version = "dev"

// Start initializes and runs the service until it receives a shutdown signal.
func Start() error {
	// Phase 1: config and logger
	cfg, err := config.Load(infraconfig.GetConfigPath("config.yml"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: profiling (env gated)
	profiling.StartPprofServer(log)
	pyro, err := profiling.StartPyroscope(cfg.Service.Name, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", logger.Error(err))
	}
	if pyro != nil {
		defer func() { _ = pyro.Stop() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Phase 3: storage
	store, err := SetupStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to set up document store: %w", err)
	}
	defer store.Close()

	// Phase 4: services, workers and HTTP
	app, err := SetupServices(ctx, cfg, store, log)
	if err != nil {
		return fmt.Errorf("failed to set up services: %w", err)
	}
	if err = app.StartBackground(ctx); err != nil {
		return err
	}
	defer app.StopBackground()

	server := SetupHTTPServer(cfg, store, app, log)
	if runErr := server.RunWithGracefulShutdown(ctx); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}

// CreateLogger builds the service logger tagged with name and version.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	if cfg.Service.Debug {
		logCfg.Development = true
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	return log.With(
		logger.String("service", cfg.Service.Name),
		logger.String("version", version),
	), nil
}

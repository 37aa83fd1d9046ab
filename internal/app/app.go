// Package app wires configuration, storage, weather stations and controllers
// into a running process.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/observerip/internal/managers"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	registry       *prometheus.Registry
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{
		configProvider: configProvider,
		registry:       reg,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown. A station that fails
// its startup checks ends the run with that error.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("no weather stations configured")
	}

	storageManager, err := managers.NewStorageManager(ctx, &wg, &cfg.Storage, a.logger)
	if err != nil {
		return err
	}

	wsm, err := managers.NewWeatherStationManager(ctx, &wg, a.configProvider, storageManager.ReadingDistributor, a.registry, a.logger)
	if err != nil {
		return err
	}

	cm, err := managers.NewControllerManager(ctx, &wg, cfg.Controllers, storageManager, wsm, a.registry, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	if err := wsm.StartWeatherStations(); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	a.logger.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	wsm.StopWeatherStations()
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

// Package app wires the daemon together: config, container registry,
// metrics, backup pipeline, manager and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bnema/stevedore/internal/backup"
	"github.com/bnema/stevedore/internal/common"
	"github.com/bnema/stevedore/internal/httpserve"
	"github.com/bnema/stevedore/internal/manager"
	"github.com/bnema/stevedore/internal/metrics"
	"github.com/bnema/stevedore/internal/registry"
	"github.com/bnema/stevedore/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// App aggregates the daemon's long-lived components.
type App struct {
	Config     *common.Config
	Store      *metrics.Store
	Prometheus *prometheus.Registry
	Containers registry.Registry
	Manager    *manager.Manager
	Echo       *echo.Echo
	StartTime  time.Time
}

// New builds a fully wired application. The container registry is opened
// and pinged here, so a bad socket fails startup instead of the first
// scan.
func New(cfg *common.Config) (*App, error) {
	containers, err := registry.NewDockerRegistry(cfg.ContainerEngine.Sock)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to container engine: %w", err)
	}
	return NewWithRegistry(cfg, containers), nil
}

// NewWithRegistry wires the application over an existing container
// source.
func NewWithRegistry(cfg *common.Config, containers registry.Registry) *App {
	store := metrics.NewStore()
	prom := prometheus.NewRegistry()
	prom.MustRegister(metrics.NewCollector(store))

	pipeline := backup.NewPipeline(cfg.Backups.Dir, nil)
	mgr := manager.New(cfg, containers, store, pipeline)

	return &App{
		Config:     cfg,
		Store:      store,
		Prometheus: prom,
		Containers: containers,
		Manager:    mgr,
		Echo:       httpserve.NewRouter(store, prom),
		StartTime:  time.Now(),
	}
}

// Run starts the HTTP server and the backup loop, blocking until the
// context is cancelled or the server fails to serve, then shuts the
// server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", a.Config.Http.Port)
		logger.Info("metrics server listening",
			"addr", addr,
			"metrics", fmt.Sprintf("http://0.0.0.0%s/metrics", addr),
			"status", fmt.Sprintf("http://0.0.0.0%s/status", addr))
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.Manager.Run(ctx) }()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("metrics server failed: %w", err)
	case err := <-loopDone:
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minescope/minescope/internal/config"
	"github.com/minescope/minescope/internal/dispatch"
	"github.com/minescope/minescope/internal/geoip"
	"github.com/minescope/minescope/internal/httpserver"
	"github.com/minescope/minescope/internal/httpserver/deps"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/metrics"
	"github.com/minescope/minescope/internal/ping"
	"github.com/minescope/minescope/internal/probes"
	"github.com/minescope/minescope/internal/resolver"
	"github.com/minescope/minescope/internal/scheduler"
	"github.com/minescope/minescope/internal/status"
	"github.com/minescope/minescope/internal/version"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	geo     *geoip.Service
	watcher *scheduler.CredentialsWatcher
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Probe auth: credentials file with hot reload.
	credentials := probes.NewCredentialStore()
	watcher := scheduler.NewCredentialsWatcher(
		cfg.ProbesFile,
		credentials,
		loggerClient,
		cfg.CredentialsPollInterval,
	)

	// Live probe fleet and the task correlation table over it.
	registry := probes.NewRegistry(loggerClient)

	collector := metrics.NewCollector()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collector)

	dispatcher := dispatch.New(registry, cfg.TaskTimeout, loggerClient, collector)
	collector.ProbesConnected = registry.Count
	collector.TasksPending = dispatcher.Pending

	// Enrichment services.
	geo := geoip.Open(cfg.GeoIPDir, loggerClient)
	res := resolver.New(loggerClient, cfg.DNSTimeout)

	javaPinger := ping.NewJavaPinger(cfg.JavaTimeout)
	bedrockPinger := ping.NewBedrockPinger(cfg.BedrockTimeout)
	bedrockPinger.MaxRetries = cfg.BedrockMaxRetries

	orchestrator := status.New(
		res,
		geo,
		javaPinger,
		bedrockPinger,
		dispatcher,
		registry,
		loggerClient,
		collector,
	)

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Orchestrator: orchestrator,
		Registry:     registry,
		Credentials:  credentials,
		Dispatcher:   dispatcher,
		PromRegistry: promRegistry,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		server:  server,
		geo:     geo,
		watcher: watcher,
	}
}

func (a *App) Run() error {
	a.logger.Infof("Starting minescope %s on %s", version.Version, a.cfg.ListenAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load credentials and start watching the file for changes.
	if err := a.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start credentials watcher: %w", err)
	}
	a.logger.Info("credentials watcher started",
		logger.String("file", a.cfg.ProbesFile))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.watcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.geo.Close()

	a.logger.Info("minescope stopped cleanly")
	return nil
}

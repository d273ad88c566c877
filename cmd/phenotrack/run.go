package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	phenology "github.com/arborlab/phenotrack/internal"
	"github.com/arborlab/phenotrack/internal/auth"
	"github.com/arborlab/phenotrack/internal/cache"
	"github.com/arborlab/phenotrack/internal/config"
	"github.com/arborlab/phenotrack/internal/query"
	"github.com/arborlab/phenotrack/internal/ratelimit"
	"github.com/arborlab/phenotrack/internal/server"
	"github.com/arborlab/phenotrack/internal/storage"
	"github.com/arborlab/phenotrack/internal/storage/memory"
	"github.com/arborlab/phenotrack/internal/storage/sqlite"
	"github.com/arborlab/phenotrack/internal/telemetry"
	"github.com/arborlab/phenotrack/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting phenotrack", "version", version, "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend)

	// Open the metric store
	var store storage.MetricStore
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err = sqlite.New(cfg.Storage.DSN)
		if err != nil {
			return err
		}
	default:
		store = memory.New()
	}
	defer store.Close()

	// Telemetry
	var (
		metrics  *telemetry.Metrics
		registry *prometheus.Registry
	)
	if cfg.Telemetry.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(registry)
	}

	ctx := context.Background()
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	// Point-metric cache: one per process, owned here, passed by reference.
	var pointCache *query.PointCache
	if cfg.Cache.Enabled {
		var opts []cache.Option[string, phenology.Metric]
		if metrics != nil {
			opts = append(opts, cache.WithEvictionHook[string, phenology.Metric](metrics.CountEviction))
		}
		pointCache, err = cache.New[string, phenology.Metric](cfg.Cache.MaxSize, cfg.Cache.TTL, opts...)
		if err != nil {
			return err
		}
	}

	querySvc := query.New(store, pointCache, metrics)

	var limiter *ratelimit.Registry
	if cfg.Server.RateLimitRPM > 0 {
		limiter = ratelimit.NewRegistry(cfg.Server.RateLimitRPM)
	}

	handler := server.New(server.Deps{
		Query:      querySvc,
		Store:      store,
		ReadyCheck: store.Ping,
		Metrics:    metrics,
		Registry:   registry,
		Guard:      auth.NewGuard(cfg.Server.WriteKey),
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	var workers []worker.Worker
	if pointCache != nil && metrics != nil {
		workers = append(workers, worker.NewCacheStatsWorker(pointCache, metrics.CacheSize))
	}
	if limiter != nil {
		workers = append(workers, worker.NewLimiterEvictWorker(limiter, time.Minute, 10*time.Minute))
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	workersDone := make(chan struct{})
	if len(workers) > 0 {
		runner := worker.NewRunner(workers...)
		go func() {
			defer close(workersDone)
			if err := runner.Run(workerCtx); err != nil {
				slog.Error("worker stopped", "error", err)
			}
		}()
	} else {
		close(workersDone)
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("phenotrack ready", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stopWorkers()
	<-workersDone

	slog.Info("phenotrack stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/oceangate/oceangate/internal/app"
	"github.com/oceangate/oceangate/internal/dashboard"
	jobmetrics "github.com/oceangate/oceangate/internal/jobs"
	"github.com/oceangate/oceangate/internal/observability"
	"github.com/oceangate/oceangate/internal/platform/cache"
	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := app.SignalContext()
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		app.Fatal(nil, "load config", err)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))
	loc, err := cfg.Location()
	if err != nil {
		app.Fatal(logger, "load timezone", err)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		app.Fatal(logger, "connect database", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		app.Fatal(logger, "connect redis", err)
	}
	if redisClient == nil {
		app.Fatal(logger, "connect redis", errors.New("REDIS_ADDR is required by the worker"))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), dashboardCache, loc, logger)
	warmupJob := jobs.NewDashboardWarmupJob(dashboardService, logger, jobMetrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Store:   shared.NewIdempotencyStore(pool),
		Logger:  logger,
		Metrics: jobMetrics,
	}

	warmupTask, err := jobs.NewDashboardWarmupTask("cron")
	if err != nil {
		app.Fatal(logger, "build warmup task", err)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Location:    loc,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.DashboardWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: jobs.IdempotencyCleanupCron, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		app.Fatal(logger, "init worker", err)
	}

	client := jobs.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	go client.WarmOnBump(ctx, dashboardCache.Subscribe(ctx), logger)

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/oceangate/oceangate/internal/app"
	"github.com/oceangate/oceangate/internal/auth"
	"github.com/oceangate/oceangate/internal/categories"
	"github.com/oceangate/oceangate/internal/dashboard"
	"github.com/oceangate/oceangate/internal/doa"
	"github.com/oceangate/oceangate/internal/invoices"
	"github.com/oceangate/oceangate/internal/observability"
	"github.com/oceangate/oceangate/internal/platform/cache"
	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
	"github.com/oceangate/oceangate/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := app.SignalContext()
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		app.Fatal(nil, "load config", err)
	}
	logger := app.NewLogger(cfg)
	loc, err := cfg.Location()
	if err != nil {
		app.Fatal(logger, "load timezone", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			app.Fatal(logger, "migrate", err)
		}
		logger.Info("migrations applied")
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		app.Fatal(logger, "connect postgres", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, running without cache and locks", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	locker := shared.NewLocker(redisClient, shared.LockerConfig{}, logger)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), tokens, logger)

	categoryService := categories.NewService(categories.NewRepository(dbpool), dashboardCache, logger)
	stockService := stock.NewService(stock.NewRepository(dbpool), locker, dashboardCache, logger)
	doaService := doa.NewService(doa.NewRepository(dbpool), locker, dashboardCache, logger)
	invoiceService := invoices.NewService(invoices.NewRepository(dbpool), locker, dashboardCache, invoices.ServiceConfig{
		PhoneRegion: cfg.PhoneRegion,
		Location:    loc,
	}, logger)
	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), dashboardCache, loc, logger)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      auth.NewHandler(logger, authService),
		AuthMiddleware:   auth.Middleware(authService, logger),
		CategoryHandler:  categories.NewHandler(logger, categoryService),
		StockHandler:     stock.NewHandler(logger, stockService),
		DOAHandler:       doa.NewHandler(logger, doaService),
		InvoiceHandler:   invoices.NewHandler(logger, invoiceService),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService),
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Idempotency:      shared.NewIdempotencyStore(dbpool),
		Ready:            readiness(dbpool, redisClient),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		os.Exit(1)
	}
}

func readiness(pool *pgxpool.Pool, client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		if client != nil {
			return client.Ping(ctx).Err()
		}
		return nil
	}
}

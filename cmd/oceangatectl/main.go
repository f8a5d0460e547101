package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	urfave "github.com/urfave/cli/v2"

	"github.com/oceangate/oceangate/cmd/oceangatectl/cli"
	"github.com/oceangate/oceangate/internal/app"
	"github.com/oceangate/oceangate/internal/auth"
	"github.com/oceangate/oceangate/internal/dashboard"
	"github.com/oceangate/oceangate/internal/platform/cache"
	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/jobs"
)

func main() {
	ctx, stop := app.SignalContext()
	defer stop()

	application := cli.NewApp(open, os.Stdout)
	if err := application.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func open(c *urfave.Context) (*cli.Deps, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "cli"))

	if c.Command != nil && c.Command.Name == "migrate" {
		return &cli.Deps{Migrate: func() error { return db.Migrate(cfg.PGDSN) }}, nil
	}

	pool, err := db.New(c.Context, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(c.Context, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache will not be invalidated", slog.Any("error", err))
		redisClient = nil
	}

	users := auth.NewService(auth.NewRepository(pool), auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), logger)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)

	return &cli.Deps{
		Migrate: func() error { return db.Migrate(cfg.PGDSN) },
		Users:   users,
		Data:    cli.NewDataCLI(pool, users, dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)),
		Jobs:    cli.NewJobsCLI(client, inspector),
		Close: func() {
			_ = inspector.Close()
			_ = client.Close()
			if redisClient != nil {
				_ = redisClient.Close()
			}
			pool.Close()
		},
	}, nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tempus-hq/tempus/internal/app"
	"github.com/tempus-hq/tempus/internal/authz"
	"github.com/tempus-hq/tempus/internal/memberships"
	"github.com/tempus-hq/tempus/internal/platform/cache"
	"github.com/tempus-hq/tempus/internal/platform/db"
	"github.com/tempus-hq/tempus/internal/roles"
	"github.com/tempus-hq/tempus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	snapshots := authz.NewSnapshots(redisClient, cfg.SnapshotTTL)
	membershipsRepo := memberships.NewRepository(pool)
	rolesRepo := roles.NewRepository(pool)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvalidateUser, Handler: jobs.NewInvalidateUserHandler(snapshots, logger)},
			{Type: jobs.TaskTemplateChanged, Handler: jobs.NewTemplateChangedHandler(membershipsRepo, snapshots, logger)},
			{Type: jobs.TaskCatalogSync, Handler: jobs.NewCatalogSyncHandler(rolesRepo, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "10 1 * * *", Task: jobs.NewCatalogSyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

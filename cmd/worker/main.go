package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rolelink/rolelink/internal/app"
	"github.com/rolelink/rolelink/internal/bindings"
	"github.com/rolelink/rolelink/internal/groups"
	"github.com/rolelink/rolelink/internal/guilds"
	"github.com/rolelink/rolelink/internal/identity"
	jobmetrics "github.com/rolelink/rolelink/internal/jobs"
	"github.com/rolelink/rolelink/internal/platform/cache"
	"github.com/rolelink/rolelink/internal/roblox"
	"github.com/rolelink/rolelink/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	catalog, err := groups.Load()
	if err != nil {
		logger.Error("load group catalog", slog.Any("error", err))
		os.Exit(1)
	}

	iconCache := cache.NewLookup(redisClient, "rolelink:group_icon", cfg.GroupIconTTL)
	icons := groups.NewIconResolver(catalog, iconCache, cfg.RobloxAPIKey, logger)

	directory := guilds.NewDiscordDirectory(cfg.DiscordBotToken, cfg.DiscordBotID)
	robloxCloud := roblox.NewClient(cfg.RobloxAPIKey, cfg.RobloxUniverseID, cfg.RobloxDatastore)

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	identityRepo := identity.NewPGRepository(pool)
	bindingStore := bindings.NewRepository(pool)
	syncer := bindings.NewSyncer(bindingStore, directory, robloxCloud, logger).WithRecorder(metrics)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	iconJob := jobs.NewIconRefreshJob(icons, logger, metrics)
	resyncJob := jobs.NewRoleResyncJob(syncer, identityRepo, logger, metrics)
	sweepJob := jobs.NewRoleResyncSweepJob(directory, jobClient, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGroupIconRefresh, Handler: iconJob.Handle},
			{Type: jobs.TaskRoleResync, Handler: resyncJob.Handle},
			{Type: jobs.TaskRoleResyncSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 4 * * *", Task: jobs.NewGroupIconRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 4 * * *", Task: jobs.NewRoleResyncSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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

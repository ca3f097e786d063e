package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rolelink/rolelink/cmd/rolelink/cli"
	"github.com/rolelink/rolelink/internal/app"
	"github.com/rolelink/rolelink/internal/bindings"
	"github.com/rolelink/rolelink/internal/groups"
	"github.com/rolelink/rolelink/internal/guilds"
	"github.com/rolelink/rolelink/internal/identity"
	"github.com/rolelink/rolelink/internal/oauth"
	"github.com/rolelink/rolelink/internal/observability"
	"github.com/rolelink/rolelink/internal/platform/cache"
	"github.com/rolelink/rolelink/internal/platform/db"
	"github.com/rolelink/rolelink/internal/ranks"
	"github.com/rolelink/rolelink/internal/roblox"
	"github.com/rolelink/rolelink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		runJobsCommand(os.Args[2:])
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	catalog, err := groups.Load()
	if err != nil {
		logger.Error("load group catalog", slog.Any("error", err))
		os.Exit(1)
	}

	discordOAuth := oauth.NewDiscord(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURI)
	robloxOAuth := oauth.NewRoblox(cfg.RobloxClientID, cfg.RobloxClientSecret, cfg.RobloxRedirectURI)
	directory := guilds.NewDiscordDirectory(cfg.DiscordBotToken, cfg.DiscordBotID)
	robloxCloud := roblox.NewClient(cfg.RobloxAPIKey, cfg.RobloxUniverseID, cfg.RobloxDatastore)

	identityRepo := identity.NewPGRepository(pool)
	identityService := identity.NewService(identityRepo, discordOAuth, robloxOAuth, cfg.SessionTTL, logger)
	identityHandler := identity.NewHandler(logger, identityService, robloxCloud, cfg.CookieTTL)

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

	bindingStore := bindings.NewRepository(pool)
	bindingService := bindings.NewService(bindingStore, catalog, directory)
	bindingHandler := bindings.NewHandler(logger, bindingService, directory).
		WithResync(func(ctx context.Context, serverID string) error {
			_, err := jobClient.EnqueueRoleResync(ctx, serverID)
			return err
		})

	guildsHandler := guilds.NewHandler(logger, directory, identityService)

	rankService := ranks.NewService(identityRepo, catalog, robloxCloud, robloxCloud, logger)
	rankHandler := ranks.NewHandler(logger, rankService)

	iconCache := cache.NewLookup(redisClient, "rolelink:group_icon", cfg.GroupIconTTL)
	icons := groups.NewIconResolver(catalog, iconCache, cfg.RobloxAPIKey, logger)
	groupsHandler := groups.NewHandler(logger, catalog, icons)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		IdentityHandler: identityHandler,
		BindingsHandler: bindingHandler,
		GuildsHandler:   guildsHandler,
		RanksHandler:    rankHandler,
		GroupsHandler:   groupsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	}
}

func runJobsCommand(args []string) {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	trigger := fs.String("trigger", "", "job name to enqueue")
	serverID := fs.String("server", "", "server id for guild:role_resync")
	redisAddr := fs.String("redis", "127.0.0.1:6379", "redis address")
	_ = fs.Parse(args)

	jobsCLI, err := cli.NewJobsCLI(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobs cli:", err)
		os.Exit(1)
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	ctx := context.Background()
	if *trigger != "" {
		info, err := jobsCLI.Trigger(ctx, *trigger, *serverID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "trigger:", err)
			os.Exit(1)
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", *trigger, info.ID, info.Queue)
		return
	}

	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
}

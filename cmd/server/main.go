// Package main is the entrypoint for the crashbot server.
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

	"github.com/kiranshivaraju/crashbot/internal/api"
	"github.com/kiranshivaraju/crashbot/internal/api/handler"
	mw "github.com/kiranshivaraju/crashbot/internal/api/middleware"
	"github.com/kiranshivaraju/crashbot/internal/api/response"
	"github.com/kiranshivaraju/crashbot/internal/cache"
	"github.com/kiranshivaraju/crashbot/internal/config"
	"github.com/kiranshivaraju/crashbot/internal/identity"
	"github.com/kiranshivaraju/crashbot/internal/incidents"
	"github.com/kiranshivaraju/crashbot/internal/observability"
	"github.com/kiranshivaraju/crashbot/internal/slackbot"
	"github.com/kiranshivaraju/crashbot/internal/store"
	"github.com/slack-go/slack"
)

const (
	shutdownTimeout = 30 * time.Second
	envFile         = ".env"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "topic_channel", cfg.Slack.TopicChannel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Telemetry
	providers, err := observability.Setup(ctx, cfg.Telemetry, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()
	metrics, err := observability.NewMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	// 3. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 4. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 5. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 6. Slack clients: bot token for writes, user token for profile reads
	botClient := slack.New(cfg.Slack.BotToken, slack.OptionAppLevelToken(cfg.Slack.AppToken))
	userClient := slack.New(cfg.Slack.UserToken)

	// 7. Incident services
	pgStore := store.NewPostgresStore(pool)
	resolver := identity.NewResolver(slackbot.NewDirectory(userClient), redisCache, cfg.Identity.CacheTTL)
	projector := incidents.NewProjector(pgStore, resolver, cfg.Identity.MaxConcurrency)
	publisher := incidents.NewTopicPublisher(pgStore, slackbot.NewTopicSink(botClient), cfg.Slack.TopicChannel)

	dispatcher := incidents.NewDispatcher(publisher, cfg.Topic.RefreshTimeout)
	dispatcher.Start(ctx)
	dispatcher.Trigger()

	resync, err := incidents.ScheduleResync(cfg.Topic.ResyncSchedule, dispatcher)
	if err != nil {
		return fmt.Errorf("schedule resync: %w", err)
	}
	if resync != nil {
		resync.Start()
		slog.Info("topic resync scheduled", "schedule", cfg.Topic.ResyncSchedule)
	}

	recorder := incidents.NewRecorder(pgStore, dispatcher)

	// 8. Build router with dependencies
	auth, err := mw.NewAuth(cfg.Server.APIKey)
	if err != nil {
		return fmt.Errorf("create auth: %w", err)
	}
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.ListRateLimitRPM)

	router := api.NewRouter(api.Dependencies{
		Auth:              auth,
		RateLimit:         rateLimit,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,

		HealthHandler: healthHandler(pgStore, redisCache),
		ListHandler:   handler.NewListHandler(projector, metrics),
	})

	// 9. Start HTTP server and Slack bot
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	bot := slackbot.New(botClient, projector, pgStore, recorder, cfg.Slack)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := bot.Run(ctx, slackbot.NewSocketMode(botClient)); err != nil {
			errCh <- fmt.Errorf("slack bot: %w", err)
		}
	}()

	// Wait for shutdown signal or a component failure
	var runErr error
	select {
	case runErr = <-errCh:
		stop()
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}
	if resync != nil {
		<-resync.Stop().Done()
	}
	<-botDone
	dispatcher.Wait()

	if runErr != nil {
		return runErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}

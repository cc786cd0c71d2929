// Command publish runs the Publisher Worker loop described in spec section
// 4.5: claim a batch from the Queue Store, dispatch each item to the chat
// target, and drive the resulting complete/fail transitions.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgRepo "newsqueue/internal/infra/adapter/persistence/postgres"
	"newsqueue/internal/infra/cache"
	"newsqueue/internal/infra/db"
	"newsqueue/internal/infra/notifier"
	workerPkg "newsqueue/internal/infra/worker"
	"newsqueue/internal/observability/logging"
	"newsqueue/internal/observability/tracing"
	"newsqueue/internal/repository"
	"newsqueue/internal/usecase/publish"
	"newsqueue/internal/usecase/queue"
)

func main() {
	logger := initLogger()

	shutdownTracing := tracing.InitTracer("newsqueue-publish")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := publish.NewMetrics()
	cfg := publish.LoadConfigFromEnv(logger, metrics)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid publish configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("publish configuration loaded",
		slog.Int("batch_size", cfg.BatchSize),
		slog.Duration("publish_interval", cfg.PublishInterval),
		slog.Int("max_retries", cfg.MaxRetries),
		slog.Duration("clean_age", cfg.CleanAge),
		slog.Duration("stuck_threshold", cfg.StuckThreshold))

	startMetricsServer(ctx, logger)

	target := buildChatTarget(logger)

	engine := queue.New(pgRepo.NewQueueRepo(database), logger)
	publishedSet := buildPublishedSetRepo(database, logger)
	worker := publish.New(engine, target, publishedSet, cfg, metrics, logger)

	healthPort := healthPortFromEnv()
	healthAddr := fmt.Sprintf(":%d", healthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)
	logger.Info("health check server started", slog.String("addr", healthAddr))

	logger.Info("publisher worker starting")
	if err := worker.Run(ctx); err != nil {
		logger.Error("publisher worker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("publisher worker stopped")
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

func healthPortFromEnv() int {
	const defaultPort = 9092
	raw := os.Getenv("PUBLISH_HEALTH_PORT")
	if raw == "" {
		return defaultPort
	}
	var port int
	if _, err := fmt.Sscanf(raw, "%d", &port); err != nil || port < 1024 || port > 65535 {
		return defaultPort
	}
	return port
}

// buildPublishedSetRepo wraps the durable Published Set in a Redis read
// cache when REDIS_ADDR is set, since Contains is on the hot path of every
// enqueue and publish cycle while Add events are comparatively rare.
func buildPublishedSetRepo(database *sql.DB, logger *slog.Logger) repository.PublishedSetRepository {
	store := pgRepo.NewPublishedSetRepo(database)

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return store
	}
	client, err := cache.NewClient(addr)
	if err != nil {
		logger.Warn("invalid REDIS_ADDR, published set cache disabled", slog.Any("error", err))
		return store
	}
	logger.Info("published set cache enabled", slog.String("redis_addr", addr))
	return cache.NewCachedPublishedSet(store, client, 14*24*time.Hour, logger)
}

// buildChatTarget returns a notifier.NoOpTarget when Discord is not
// configured, so the worker never needs a nil check (spec section 4.5 does
// not treat "no chat target configured" as an error).
func buildChatTarget(logger *slog.Logger) notifier.Target {
	discordConfig := loadDiscordConfig(logger)
	if !discordConfig.Enabled {
		logger.Info("no chat target configured, dispatch is a no-op")
		return notifier.NewNoOpTarget()
	}
	logger.Info("discord chat target initialized")
	return notifier.NewDiscordTarget(discordConfig)
}

// loadDiscordConfig loads and validates the Discord webhook target.
//
// Environment variables:
//   - DISCORD_ENABLED: boolean flag (default false)
//   - DISCORD_WEBHOOK_URL: required if enabled; must be an https://discord.com/api/webhooks/... URL
func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	if os.Getenv("DISCORD_ENABLED") != "true" {
		return notifier.DiscordConfig{Enabled: false}
	}

	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
	if webhookURL == "" {
		logger.Warn("DISCORD_WEBHOOK_URL is empty, disabling chat target")
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil || u.Scheme != "https" || u.Host != "discord.com" || !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("invalid Discord webhook URL, disabling chat target")
		return notifier.DiscordConfig{Enabled: false}
	}

	return notifier.DiscordConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

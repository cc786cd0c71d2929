// Command crawler performs crawl cycles across every configured source,
// storing candidates in the Article Store and running the Enqueue Service to
// push newly eligible articles onto the Queue Store. With no CRON_SCHEDULE
// set it runs one cycle and exits, leaving scheduling to the caller (a
// Kubernetes CronJob, systemd timer, plain cron). Setting CRON_SCHEDULE
// switches it to a long-running process that drives its own schedule via
// WorkerConfig/WorkerMetrics, the same configuration and instrumentation
// surface the Publisher Worker's predecessor used for its own cron job.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"newsqueue/internal/domain/entity"
	pgRepo "newsqueue/internal/infra/adapter/persistence/postgres"
	"newsqueue/internal/infra/cache"
	"newsqueue/internal/infra/crawler"
	"newsqueue/internal/infra/db"
	workerPkg "newsqueue/internal/infra/worker"
	"newsqueue/internal/observability/logging"
	"newsqueue/internal/observability/tracing"
	"newsqueue/internal/repository"
	"newsqueue/internal/usecase/crawl"
	"newsqueue/internal/usecase/enqueue"
	"newsqueue/internal/usecase/queue"
)

func main() {
	logger := initLogger()

	shutdownTracing := tracing.InitTracer("newsqueue-crawler")
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

	// Presence, not value, decides the run mode: an unset CRON_SCHEDULE means
	// "run once and let the caller schedule me". The validated schedule value
	// itself comes from WorkerConfig below, loaded the same way either mode.
	workerMetrics := workerPkg.NewWorkerMetrics()
	cfg, _ := workerPkg.LoadConfigFromEnv(logger, workerMetrics)

	if os.Getenv("CRON_SCHEDULE") == "" {
		runCrawlCycle(context.Background(), logger, database, cfg, workerMetrics)
		return
	}
	runScheduled(logger, database, cfg, workerMetrics)
}

// runScheduled keeps the process alive and runs runCrawlCycle on schedule,
// grounded on the same cron.New + AddFunc pattern the Publisher Worker's
// predecessor used for its own recurring job.
func runScheduled(logger *slog.Logger, database *sql.DB, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runCrawlCycle(context.Background(), logger, database, cfg, metrics)
	})
	if err != nil {
		logger.Error("invalid cron schedule", slog.String("schedule", cfg.CronSchedule), slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	ctx := context.Background()
	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("crawler scheduler started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runCrawlCycle performs one crawl-store-enqueue pass. It logs and continues
// on job-level failure rather than exiting, since in scheduled mode a failed
// cycle must not prevent the next one from running. metrics records the
// outcome so scheduled runs are observable the same way the Publisher Worker
// is.
func runCrawlCycle(parent context.Context, logger *slog.Logger, database *sql.DB, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	start := time.Now()
	ok, feedsProcessed := doCrawlCycle(parent, logger, database, cfg)
	metrics.RecordJobDuration(time.Since(start).Seconds())
	metrics.RecordFeedsProcessed(feedsProcessed)
	if ok {
		metrics.RecordJobRun("success")
		metrics.RecordLastSuccess()
	} else {
		metrics.RecordJobRun("failure")
	}
}

func doCrawlCycle(parent context.Context, logger *slog.Logger, database *sql.DB, cfg *workerPkg.WorkerConfig) (ok bool, feedsProcessed int) {
	sourcesPath := os.Getenv("SOURCES_MANIFEST")
	if sourcesPath == "" {
		sourcesPath = "sources.yaml"
	}

	adapters, err := crawler.LoadSources(sourcesPath, crawler.DefaultHTTPClient())
	if err != nil {
		logger.Error("failed to load sources manifest", slog.String("path", sourcesPath), slog.Any("error", err))
		return false, 0
	}
	logger.Info("sources loaded", slog.Int("count", len(adapters)), slog.String("path", sourcesPath))

	ctx, cancel := context.WithTimeout(parent, cfg.CrawlTimeout)
	defer cancel()

	outcomes := crawl.RunWithConcurrency(ctx, adapters, int64(cfg.NotifyMaxConcurrent))

	articleRepo := pgRepo.NewArticleRepo(database)
	var candidates, stored, duplicates, failures int
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			logger.Error("source crawl failed", slog.String("source", outcome.Source), slog.Any("error", outcome.Err))
			failures++
			continue
		}
		candidates += len(outcome.Articles)
		for _, article := range outcome.Articles {
			if _, err := articleRepo.Insert(ctx, article); err != nil {
				if errors.Is(err, entity.ErrDuplicate) {
					duplicates++
					continue
				}
				logger.Error("failed to store article", slog.String("url", article.URL), slog.Any("error", err))
				continue
			}
			stored++
		}
	}
	logger.Info("crawl cycle completed",
		slog.Int("sources", len(adapters)),
		slog.Int("source_failures", failures),
		slog.Int("candidates", candidates),
		slog.Int("stored", stored),
		slog.Int("duplicates", duplicates))

	queueRepo := pgRepo.NewQueueRepo(database)
	publishedRepo := buildPublishedSetRepo(database, logger)
	engine := queue.New(queueRepo, logger)
	enqueueSvc := enqueue.New(articleRepo, publishedRepo, engine, logger)

	inserted, err := enqueueSvc.AddArticlesFromDB(ctx, enqueue.Filters{})
	if err != nil {
		logger.Error("enqueue pass failed", slog.Any("error", err))
		return false, len(adapters)
	}
	logger.Info("enqueue pass completed", slog.Int("inserted", inserted))
	return failures == 0, len(adapters)
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

// buildPublishedSetRepo wraps the durable Published Set in a Redis read
// cache when REDIS_ADDR is set. The Enqueue Service calls Contains once per
// crawled candidate, so a warm cache avoids a database round trip for the
// common case of re-crawling an already-published article.
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

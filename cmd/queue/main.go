// Command queue is the operator CLI over the Queue Store: status, retry,
// clean, and add, per spec section 6.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"newsqueue/internal/domain/entity"
	pgRepo "newsqueue/internal/infra/adapter/persistence/postgres"
	"newsqueue/internal/infra/db"
	"newsqueue/internal/usecase/queue"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	database := db.Open()
	defer func() { _ = database.Close() }()

	engine := queue.New(pgRepo.NewQueueRepo(database), logger)
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "status":
		err = runStatus(ctx, engine)
	case "retry":
		err = runRetry(ctx, engine, os.Args[2:])
	case "clean":
		err = runClean(ctx, engine, os.Args[2:])
	case "add":
		err = runAdd(ctx, engine, database, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: queue <status|retry|clean|add> [flags]")
}

func runStatus(ctx context.Context, engine *queue.Engine) error {
	counts, err := engine.Status(ctx)
	if err != nil {
		return err
	}
	for _, status := range []entity.Status{entity.StatusPending, entity.StatusProcessing, entity.StatusCompleted, entity.StatusFailed} {
		fmt.Printf("%-12s %d\n", status, counts[status])
	}
	return nil
}

func runRetry(ctx context.Context, engine *queue.Engine, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	maxRetries := fs.Int("max-retries", 3, "retry_count ceiling; FAILED items at or above this are left alone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := engine.Retry(ctx, *maxRetries)
	if err != nil {
		return err
	}
	fmt.Printf("retried %d item(s)\n", n)
	return nil
}

func runClean(ctx context.Context, engine *queue.Engine, args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	age := fs.Duration("age", 7*24*time.Hour, "delete COMPLETED items older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := engine.Clean(ctx, *age)
	if err != nil {
		return err
	}
	fmt.Printf("cleaned %d item(s)\n", n)
	return nil
}

func runAdd(ctx context.Context, engine *queue.Engine, database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	uniqueID := fs.String("unique-id", "", "required")
	platform := fs.String("platform", "", "required")
	title := fs.String("title", "", "required")
	url := fs.String("url", "", "required")
	content := fs.String("content", "", "")
	category := fs.String("category", "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uniqueID == "" || *platform == "" || *title == "" || *url == "" {
		return fmt.Errorf("add: --unique-id, --platform, --title, and --url are required")
	}

	articleRepo := pgRepo.NewArticleRepo(database)
	article := &entity.Article{
		UniqueID:    *uniqueID,
		Platform:    *platform,
		Title:       *title,
		URL:         *url,
		Content:     *content,
		Category:    *category,
		CollectedAt: time.Now(),
	}
	if _, err := articleRepo.Insert(ctx, article); err != nil {
		return fmt.Errorf("add: store article: %w", err)
	}

	item := entity.NewQueueItem(article, time.Now())
	ok, err := engine.Enqueue(ctx, item)
	if err != nil {
		return fmt.Errorf("add: enqueue: %w", err)
	}
	if !ok {
		fmt.Println("already queued (duplicate unique_id)")
		return nil
	}
	fmt.Println("enqueued")
	return nil
}

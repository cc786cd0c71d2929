// Package queue implements the Queue Engine: the state machine over
// QueueItems described in spec section 4.4. It never swallows a storage
// error; classification of transient vs permanent publish failures is the
// caller's responsibility (see internal/usecase/publish).
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/observability/tracing"
	"newsqueue/internal/repository"
)

// Engine wraps a QueueRepository with the operations and logging the
// publisher and CLI surfaces depend on.
type Engine struct {
	Repo   repository.QueueRepository
	Logger *slog.Logger
	Now    func() time.Time
}

// New builds an Engine. A nil logger falls back to slog.Default(); a nil
// clock falls back to time.Now.
func New(repo repository.QueueRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Repo: repo, Logger: logger, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Enqueue inserts item as PENDING. Returns (true, nil) on success,
// (false, nil) on a uniqueness conflict, and a wrapped entity.ErrStorageError
// on any other failure.
func (e *Engine) Enqueue(ctx context.Context, item *entity.QueueItem) (bool, error) {
	now := e.now()
	item.Status = entity.StatusPending
	item.CreatedAt = now
	item.UpdatedAt = now

	err := e.Repo.Insert(ctx, item)
	if err == nil {
		e.Logger.Info("queue item enqueued", slog.String("unique_id", item.UniqueID))
		return true, nil
	}
	if errors.Is(err, entity.ErrDuplicate) {
		return false, nil
	}
	return false, fmt.Errorf("Engine.Enqueue: %w: %w", entity.ErrStorageError, err)
}

// Claim performs the atomic claim protocol up to `limit` times, returning
// as soon as no PENDING candidates remain. The returned slice may be shorter
// than limit.
func (e *Engine) Claim(ctx context.Context, limit int) ([]*entity.QueueItem, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "queue.Claim")
	defer span.End()
	span.SetAttributes(attribute.Int("queue.claim_limit", limit))

	items := make([]*entity.QueueItem, 0, limit)
	for i := 0; i < limit; i++ {
		item, err := e.Repo.ClaimOne(ctx, e.now())
		if errors.Is(err, entity.ErrNotFound) {
			break
		}
		if err != nil {
			span.SetAttributes(attribute.Bool("error", true))
			return items, fmt.Errorf("Engine.Claim: %w: %w", entity.ErrStorageError, err)
		}
		items = append(items, item)
	}
	span.SetAttributes(attribute.Int("queue.claimed_count", len(items)))
	if len(items) > 0 {
		e.Logger.Info("queue items claimed", slog.Int("count", len(items)))
	}
	return items, nil
}

// Complete transitions uniqueID from PROCESSING to COMPLETED.
func (e *Engine) Complete(ctx context.Context, uniqueID string) (bool, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "queue.Complete", trace.WithAttributes(attribute.String("queue.unique_id", uniqueID)))
	defer span.End()

	ok, err := e.Repo.Complete(ctx, uniqueID, e.now())
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		return false, fmt.Errorf("Engine.Complete: %w: %w", entity.ErrStorageError, err)
	}
	if ok {
		e.Logger.Info("queue item completed", slog.String("unique_id", uniqueID))
	}
	return ok, nil
}

// Fail transitions uniqueID from PROCESSING to FAILED, truncating the
// message and incrementing retry_count.
func (e *Engine) Fail(ctx context.Context, uniqueID, errorMessage string) (bool, error) {
	ok, err := e.Repo.Fail(ctx, uniqueID, errorMessage, e.now())
	if err != nil {
		return false, fmt.Errorf("Engine.Fail: %w: %w", entity.ErrStorageError, err)
	}
	if ok {
		e.Logger.Warn("queue item failed", slog.String("unique_id", uniqueID), slog.String("error", errorMessage))
	}
	return ok, nil
}

// FailPermanent transitions uniqueID from PROCESSING to FAILED with
// retry_count pinned so it is never reopened by Retry, for chat-target
// errors classified as Permanent (spec section 7).
func (e *Engine) FailPermanent(ctx context.Context, uniqueID, errorMessage string) (bool, error) {
	ok, err := e.Repo.FailPermanent(ctx, uniqueID, errorMessage, e.now())
	if err != nil {
		return false, fmt.Errorf("Engine.FailPermanent: %w: %w", entity.ErrStorageError, err)
	}
	if ok {
		e.Logger.Warn("queue item failed permanently", slog.String("unique_id", uniqueID), slog.String("error", errorMessage))
	}
	return ok, nil
}

// Retry moves every FAILED item with retry_count < maxRetries back to
// PENDING and returns the count moved.
func (e *Engine) Retry(ctx context.Context, maxRetries int) (int64, error) {
	n, err := e.Repo.Retry(ctx, maxRetries, e.now())
	if err != nil {
		return 0, fmt.Errorf("Engine.Retry: %w: %w", entity.ErrStorageError, err)
	}
	if n > 0 {
		e.Logger.Info("queue items retried", slog.Int64("count", n))
	}
	return n, nil
}

// IsDuplicate reports whether any row (in any status) already carries uniqueID.
func (e *Engine) IsDuplicate(ctx context.Context, uniqueID string) (bool, error) {
	ok, err := e.Repo.IsDuplicate(ctx, uniqueID)
	if err != nil {
		return false, fmt.Errorf("Engine.IsDuplicate: %w: %w", entity.ErrStorageError, err)
	}
	return ok, nil
}

// Status returns a snapshot count per status.
func (e *Engine) Status(ctx context.Context) (repository.StatusCounts, error) {
	counts, err := e.Repo.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("Engine.Status: %w: %w", entity.ErrStorageError, err)
	}
	return counts, nil
}

// Clean deletes COMPLETED rows older than ageThreshold and returns the count.
func (e *Engine) Clean(ctx context.Context, ageThreshold time.Duration) (int64, error) {
	n, err := e.Repo.Clean(ctx, e.now().Add(-ageThreshold))
	if err != nil {
		return 0, fmt.Errorf("Engine.Clean: %w: %w", entity.ErrStorageError, err)
	}
	if n > 0 {
		e.Logger.Info("queue items cleaned", slog.Int64("count", n))
	}
	return n, nil
}

// SweepStuckClaims moves PROCESSING rows claimed before stuckThreshold back
// to PENDING. Supplements the spec's "SHOULD" recommendation in section 4.5.
func (e *Engine) SweepStuckClaims(ctx context.Context, stuckThreshold time.Duration) (int64, error) {
	now := e.now()
	n, err := e.Repo.SweepStuckClaims(ctx, now.Add(-stuckThreshold), now)
	if err != nil {
		return 0, fmt.Errorf("Engine.SweepStuckClaims: %w: %w", entity.ErrStorageError, err)
	}
	if n > 0 {
		e.Logger.Warn("stuck claims swept back to pending", slog.Int64("count", n))
	}
	return n, nil
}

package repository

import (
	"context"
	"time"

	"newsqueue/internal/domain/entity"
)

// StatusCounts is the result of QueueRepository.Status: an approximate
// snapshot, per spec section 4.4 ("readers MUST tolerate that individual
// counts are not mutually consistent").
type StatusCounts map[entity.Status]int64

// QueueRepository is the Queue Store contract from spec sections 4.4 and 6.
// ClaimOne is the single operation required to be linearizable; every other
// method only needs ordinary single-row write atomicity.
type QueueRepository interface {
	// Insert returns entity.ErrDuplicate on a unique_id conflict.
	Insert(ctx context.Context, item *entity.QueueItem) error
	// ClaimOne finds the oldest PENDING row and atomically transitions it to
	// PROCESSING (compare-and-swap on status). Returns entity.ErrNotFound if
	// no PENDING row currently matches.
	ClaimOne(ctx context.Context, now time.Time) (*entity.QueueItem, error)
	// Complete requires the row to be PROCESSING; returns false (no error) if
	// it is not, matching the spec's no-op-on-wrong-state contract.
	Complete(ctx context.Context, uniqueID string, now time.Time) (bool, error)
	Fail(ctx context.Context, uniqueID, errorMessage string, now time.Time) (bool, error)
	FailPermanent(ctx context.Context, uniqueID, errorMessage string, now time.Time) (bool, error)
	// Retry moves every FAILED row with retry_count < maxRetries back to
	// PENDING and returns the count moved.
	Retry(ctx context.Context, maxRetries int, now time.Time) (int64, error)
	IsDuplicate(ctx context.Context, uniqueID string) (bool, error)
	Status(ctx context.Context) (StatusCounts, error)
	// Clean deletes COMPLETED rows older than threshold and returns the count.
	Clean(ctx context.Context, olderThan time.Time) (int64, error)
	// SweepStuckClaims moves PROCESSING rows claimed before threshold back to
	// PENDING, incrementing retry_count, and returns the count swept.
	SweepStuckClaims(ctx context.Context, claimedBefore, now time.Time) (int64, error)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/repository"
)

// QueueRepo implements repository.QueueRepository. ClaimOne is the only
// operation required to be linearizable; it is implemented as a
// find-candidate-then-conditional-update loop rather than advisory locking,
// matching the compare-and-swap protocol the queue engine's contract names.
type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) repository.QueueRepository {
	return &QueueRepo{db: db}
}

func (r *QueueRepo) Insert(ctx context.Context, item *entity.QueueItem) error {
	const query = `
INSERT INTO queue_items (unique_id, article_id, platform, title, url, content, category, published_at, status, retry_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		item.UniqueID, nullString(item.ArticleID), item.Platform, item.Title, item.URL,
		nullString(item.Content), nullString(item.Category), item.PublishedAt,
		string(item.Status), item.RetryCount, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("QueueRepo.Insert: %w", entity.ErrDuplicate)
		}
		return fmt.Errorf("QueueRepo.Insert: %w", err)
	}
	return nil
}

// candidateIDs fetches up to limit ids of PENDING rows, FIFO by created_at,
// tie-broken by id ascending, per the spec's ordering rule.
func (r *QueueRepo) candidateIDs(ctx context.Context, excluded []int64, limit int) ([]int64, error) {
	query := `SELECT id FROM queue_items WHERE status = 'PENDING'`
	var args []interface{}
	if len(excluded) > 0 {
		args = append(args, pq.Array(excluded))
		query += fmt.Sprintf(" AND NOT (id = ANY($%d))", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *QueueRepo) ClaimOne(ctx context.Context, now time.Time) (*entity.QueueItem, error) {
	var excluded []int64
	for {
		ids, err := r.candidateIDs(ctx, excluded, 1)
		if err != nil {
			return nil, fmt.Errorf("QueueRepo.ClaimOne: %w", err)
		}
		if len(ids) == 0 {
			return nil, entity.ErrNotFound
		}
		candidate := ids[0]

		const update = `
UPDATE queue_items SET status = 'PROCESSING', claimed_at = $1, updated_at = $1
WHERE id = $2 AND status = 'PENDING'`
		res, err := r.db.ExecContext(ctx, update, now, candidate)
		if err != nil {
			return nil, fmt.Errorf("QueueRepo.ClaimOne: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("QueueRepo.ClaimOne: %w", err)
		}
		if affected == 0 {
			// Another worker claimed it first; try the next candidate.
			excluded = append(excluded, candidate)
			continue
		}

		item, err := r.getByID(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("QueueRepo.ClaimOne: %w", err)
		}
		return item, nil
	}
}

func (r *QueueRepo) getByID(ctx context.Context, id int64) (*entity.QueueItem, error) {
	const query = `
SELECT id, unique_id, article_id, platform, title, url, content, category, published_at, status, retry_count, error_message, created_at, updated_at, claimed_at
FROM queue_items WHERE id = $1`
	return scanQueueItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *QueueRepo) Complete(ctx context.Context, uniqueID string, now time.Time) (bool, error) {
	const query = `
UPDATE queue_items SET status = 'COMPLETED', published_at = $1, updated_at = $1, error_message = NULL
WHERE unique_id = $2 AND status = 'PROCESSING'`
	res, err := r.db.ExecContext(ctx, query, now, uniqueID)
	if err != nil {
		return false, fmt.Errorf("QueueRepo.Complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("QueueRepo.Complete: %w", err)
	}
	return n > 0, nil
}

func (r *QueueRepo) Fail(ctx context.Context, uniqueID, errorMessage string, now time.Time) (bool, error) {
	const query = `
UPDATE queue_items SET status = 'FAILED', error_message = $1, retry_count = retry_count + 1, updated_at = $2
WHERE unique_id = $3 AND status = 'PROCESSING'`
	res, err := r.db.ExecContext(ctx, query, entity.TruncateErrorMessage(errorMessage), now, uniqueID)
	if err != nil {
		return false, fmt.Errorf("QueueRepo.Fail: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("QueueRepo.Fail: %w", err)
	}
	return n > 0, nil
}

// FailPermanent marks an item FAILED with retry_count pinned to
// entity.TerminalRetryCount, so a later retry(max_retries) call can never
// reopen it. Used for Permanent chat-target errors (spec section 7).
func (r *QueueRepo) FailPermanent(ctx context.Context, uniqueID, errorMessage string, now time.Time) (bool, error) {
	const query = `
UPDATE queue_items SET status = 'FAILED', error_message = $1, retry_count = $2, updated_at = $3
WHERE unique_id = $4 AND status = 'PROCESSING'`
	res, err := r.db.ExecContext(ctx, query, entity.TruncateErrorMessage(errorMessage), entity.TerminalRetryCount, now, uniqueID)
	if err != nil {
		return false, fmt.Errorf("QueueRepo.FailPermanent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("QueueRepo.FailPermanent: %w", err)
	}
	return n > 0, nil
}

func (r *QueueRepo) Retry(ctx context.Context, maxRetries int, now time.Time) (int64, error) {
	const query = `
UPDATE queue_items SET status = 'PENDING', error_message = NULL, updated_at = $1
WHERE status = 'FAILED' AND retry_count < $2`
	res, err := r.db.ExecContext(ctx, query, now, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.Retry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.Retry: %w", err)
	}
	return n, nil
}

func (r *QueueRepo) IsDuplicate(ctx context.Context, uniqueID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM queue_items WHERE unique_id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, uniqueID).Scan(&exists); err != nil {
		return false, fmt.Errorf("QueueRepo.IsDuplicate: %w", err)
	}
	return exists, nil
}

func (r *QueueRepo) Status(ctx context.Context) (repository.StatusCounts, error) {
	const query = `SELECT status, COUNT(*) FROM queue_items GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("QueueRepo.Status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := repository.StatusCounts{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("QueueRepo.Status: %w", err)
		}
		counts[entity.Status(status)] = count
	}
	return counts, rows.Err()
}

func (r *QueueRepo) Clean(ctx context.Context, olderThan time.Time) (int64, error) {
	const query = `DELETE FROM queue_items WHERE status = 'COMPLETED' AND updated_at < $1`
	res, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.Clean: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.Clean: %w", err)
	}
	return n, nil
}

func (r *QueueRepo) SweepStuckClaims(ctx context.Context, claimedBefore, now time.Time) (int64, error) {
	const query = `
UPDATE queue_items SET status = 'PENDING', retry_count = retry_count + 1, claimed_at = NULL, updated_at = $1
WHERE status = 'PROCESSING' AND claimed_at < $2`
	res, err := r.db.ExecContext(ctx, query, now, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.SweepStuckClaims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.SweepStuckClaims: %w", err)
	}
	return n, nil
}

type queueRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueItem(s queueRowScanner) (*entity.QueueItem, error) {
	var item entity.QueueItem
	var articleID, content, category, errorMessage sql.NullString
	var publishedAt, claimedAt sql.NullTime
	var status string

	if err := s.Scan(&item.ID, &item.UniqueID, &articleID, &item.Platform, &item.Title, &item.URL,
		&content, &category, &publishedAt, &status, &item.RetryCount, &errorMessage,
		&item.CreatedAt, &item.UpdatedAt, &claimedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}

	item.ArticleID = articleID.String
	item.Content = content.String
	item.Category = category.String
	item.ErrorMessage = errorMessage.String
	item.Status = entity.Status(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		item.PublishedAt = &t
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		item.ClaimedAt = &t
	}
	return &item, nil
}

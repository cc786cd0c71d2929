package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/repository"
)

// QueueRepo is a goroutine-safe in-memory repository.QueueRepository. A
// single mutex serializes every operation, which trivially satisfies the
// linearizability requirement on ClaimOne.
type QueueRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.QueueItem
	byUID  map[string]int64
}

func NewQueueRepo() *QueueRepo {
	return &QueueRepo{
		items: make(map[int64]*entity.QueueItem),
		byUID: make(map[string]int64),
	}
}

func (r *QueueRepo) Insert(_ context.Context, item *entity.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUID[item.UniqueID]; exists {
		return entity.ErrDuplicate
	}
	r.nextID++
	id := r.nextID
	clone := *item
	clone.ID = id
	r.items[id] = &clone
	r.byUID[item.UniqueID] = id
	return nil
}

func (r *QueueRepo) ClaimOne(_ context.Context, now time.Time) (*entity.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*entity.QueueItem
	for _, it := range r.items {
		if it.Status == entity.StatusPending {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return nil, entity.ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	item := pending[0]
	item.Status = entity.StatusProcessing
	item.ClaimedAt = &now
	item.UpdatedAt = now
	clone := *item
	return &clone, nil
}

func (r *QueueRepo) Complete(_ context.Context, uniqueID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.findByUID(uniqueID)
	if !ok || item.Status != entity.StatusProcessing {
		return false, nil
	}
	item.Status = entity.StatusCompleted
	item.PublishedAt = &now
	item.UpdatedAt = now
	item.ErrorMessage = ""
	return true, nil
}

func (r *QueueRepo) Fail(_ context.Context, uniqueID, errorMessage string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.findByUID(uniqueID)
	if !ok || item.Status != entity.StatusProcessing {
		return false, nil
	}
	item.Status = entity.StatusFailed
	item.ErrorMessage = entity.TruncateErrorMessage(errorMessage)
	item.RetryCount++
	item.UpdatedAt = now
	return true, nil
}

func (r *QueueRepo) FailPermanent(_ context.Context, uniqueID, errorMessage string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.findByUID(uniqueID)
	if !ok || item.Status != entity.StatusProcessing {
		return false, nil
	}
	item.Status = entity.StatusFailed
	item.ErrorMessage = entity.TruncateErrorMessage(errorMessage)
	item.RetryCount = entity.TerminalRetryCount
	item.UpdatedAt = now
	return true, nil
}

func (r *QueueRepo) Retry(_ context.Context, maxRetries int, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moved int64
	for _, item := range r.items {
		if item.Status == entity.StatusFailed && item.RetryCount < maxRetries {
			item.Status = entity.StatusPending
			item.ErrorMessage = ""
			item.UpdatedAt = now
			moved++
		}
	}
	return moved, nil
}

func (r *QueueRepo) IsDuplicate(_ context.Context, uniqueID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUID[uniqueID]
	return ok, nil
}

func (r *QueueRepo) Status(_ context.Context) (repository.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := repository.StatusCounts{}
	for _, item := range r.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (r *QueueRepo) Clean(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, item := range r.items {
		if item.Status == entity.StatusCompleted && item.UpdatedAt.Before(olderThan) {
			delete(r.items, id)
			delete(r.byUID, item.UniqueID)
			removed++
		}
	}
	return removed, nil
}

func (r *QueueRepo) SweepStuckClaims(_ context.Context, claimedBefore, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept int64
	for _, item := range r.items {
		if item.Status == entity.StatusProcessing && item.ClaimedAt != nil && item.ClaimedAt.Before(claimedBefore) {
			item.Status = entity.StatusPending
			item.RetryCount++
			item.ClaimedAt = nil
			item.UpdatedAt = now
			swept++
		}
	}
	return swept, nil
}

func (r *QueueRepo) findByUID(uniqueID string) (*entity.QueueItem, bool) {
	id, ok := r.byUID[uniqueID]
	if !ok {
		return nil, false
	}
	return r.items[id], true
}

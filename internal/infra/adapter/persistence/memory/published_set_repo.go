package memory

import (
	"context"
	"sync"
)

// PublishedSetRepo is a goroutine-safe in-memory repository.PublishedSetRepository.
type PublishedSetRepo struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewPublishedSetRepo() *PublishedSetRepo {
	return &PublishedSetRepo{seen: make(map[string]struct{})}
}

func (r *PublishedSetRepo) Contains(_ context.Context, uniqueID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[uniqueID]
	return ok, nil
}

func (r *PublishedSetRepo) Add(_ context.Context, uniqueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[uniqueID] = struct{}{}
	return nil
}

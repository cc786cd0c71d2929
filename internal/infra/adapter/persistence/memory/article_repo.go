// Package memory provides in-memory implementations of the repository
// interfaces satisfying the same invariants as the Postgres adapters,
// including ClaimOne's compare-and-swap guarantee, for use in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/repository"
)

// ArticleRepo is a goroutine-safe in-memory repository.ArticleRepository.
type ArticleRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*entity.Article
	byUID   map[string]int64
	byURL   map[string]int64
}

func NewArticleRepo() *ArticleRepo {
	return &ArticleRepo{
		byID:  make(map[int64]*entity.Article),
		byUID: make(map[string]int64),
		byURL: make(map[string]int64),
	}
}

func (r *ArticleRepo) Insert(_ context.Context, a *entity.Article) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.UniqueID == "" || a.URL == "" {
		return 0, entity.ErrInvalidInput
	}
	if _, exists := r.byUID[a.UniqueID]; exists {
		return 0, entity.ErrDuplicate
	}
	if _, exists := r.byURL[a.URL]; exists {
		return 0, entity.ErrDuplicate
	}

	r.nextID++
	id := r.nextID
	clone := *a
	clone.ID = id
	r.byID[id] = &clone
	r.byUID[a.UniqueID] = id
	r.byURL[a.URL] = id
	return id, nil
}

func (r *ArticleRepo) FindByUniqueID(_ context.Context, uniqueID string) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUID[uniqueID]
	if !ok {
		return nil, nil
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *ArticleRepo) FindByURL(_ context.Context, url string) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byURL[url]
	if !ok {
		return nil, nil
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *ArticleRepo) Find(_ context.Context, filters repository.ArticleFilters) ([]*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*entity.Article, 0, len(r.byID))
	for _, a := range r.byID {
		if filters.Platform != nil && a.Platform != *filters.Platform {
			continue
		}
		if filters.Category != nil && a.Category != *filters.Category {
			continue
		}
		if filters.Since != nil && a.CollectedAt.Before(*filters.Since) {
			continue
		}
		clone := *a
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CollectedAt.After(matched[j].CollectedAt)
	})
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}
	return matched, nil
}

// Package repository declares the narrow storage interfaces the usecase
// layer depends on. Concrete implementations live under internal/infra.
package repository

import (
	"context"
	"time"

	"newsqueue/internal/domain/entity"
)

// ArticleFilters narrows ArticleRepository.Find. All fields are optional.
type ArticleFilters struct {
	Platform *string
	Category *string
	Since    *time.Time
	Limit    int
}

// ArticleRepository is the Article Store contract from spec section 4.1.
type ArticleRepository interface {
	// Insert fails with entity.ErrDuplicate if unique_id or url already
	// exists, and entity.ErrInvalidInput if required fields are missing.
	Insert(ctx context.Context, a *entity.Article) (int64, error)
	FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Article, error)
	FindByURL(ctx context.Context, url string) (*entity.Article, error)
	// Find returns articles ordered by collected_at descending.
	Find(ctx context.Context, filters ArticleFilters) ([]*entity.Article, error)
}

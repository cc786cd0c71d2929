package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"newsqueue/internal/repository"
)

// PublishedSetRepo implements repository.PublishedSetRepository against a
// dedicated table, per the Open Question resolution in SPEC_FULL.md section 5.
type PublishedSetRepo struct {
	db *sql.DB
}

func NewPublishedSetRepo(db *sql.DB) repository.PublishedSetRepository {
	return &PublishedSetRepo{db: db}
}

func (r *PublishedSetRepo) Contains(ctx context.Context, uniqueID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM published_articles WHERE unique_id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, uniqueID).Scan(&exists); err != nil {
		return false, fmt.Errorf("PublishedSetRepo.Contains: %w", err)
	}
	return exists, nil
}

func (r *PublishedSetRepo) Add(ctx context.Context, uniqueID string) error {
	const query = `INSERT INTO published_articles (unique_id) VALUES ($1) ON CONFLICT (unique_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uniqueID); err != nil {
		return fmt.Errorf("PublishedSetRepo.Add: %w", err)
	}
	return nil
}

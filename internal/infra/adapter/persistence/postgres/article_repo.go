// Package postgres implements the repository package's interfaces against
// PostgreSQL via database/sql and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/repository"
)

// ArticleRepo implements repository.ArticleRepository.
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo builds an ArticleRepo over an existing connection pool.
func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

func (r *ArticleRepo) Insert(ctx context.Context, a *entity.Article) (int64, error) {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return 0, fmt.Errorf("ArticleRepo.Insert: marshal metadata: %w", err)
	}

	const query = `
INSERT INTO articles (unique_id, platform, article_id, url, title, content, author, category, metadata, published_at, collected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		a.UniqueID, a.Platform, nullString(a.ArticleID), a.URL, a.Title,
		nullString(a.Content), nullString(a.Author), nullString(a.Category),
		metadata, a.PublishedAt, a.CollectedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("ArticleRepo.Insert: %w", entity.ErrDuplicate)
		}
		return 0, fmt.Errorf("ArticleRepo.Insert: %w", err)
	}
	return id, nil
}

func (r *ArticleRepo) FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Article, error) {
	const query = `
SELECT id, unique_id, platform, article_id, url, title, content, author, category, metadata, published_at, collected_at
FROM articles WHERE unique_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, uniqueID))
}

func (r *ArticleRepo) FindByURL(ctx context.Context, url string) (*entity.Article, error) {
	const query = `
SELECT id, unique_id, platform, article_id, url, title, content, author, category, metadata, published_at, collected_at
FROM articles WHERE url = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, url))
}

func (r *ArticleRepo) scanOne(row *sql.Row) (*entity.Article, error) {
	a, err := scanArticleRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ArticleRepo: %w", err)
	}
	return a, nil
}

func (r *ArticleRepo) Find(ctx context.Context, filters repository.ArticleFilters) ([]*entity.Article, error) {
	query := `
SELECT id, unique_id, platform, article_id, url, title, content, author, category, metadata, published_at, collected_at
FROM articles`
	var whereClauses []string
	var args []interface{}

	if filters.Platform != nil {
		args = append(args, *filters.Platform)
		whereClauses = append(whereClauses, fmt.Sprintf("platform = $%d", len(args)))
	}
	if filters.Category != nil {
		args = append(args, *filters.Category)
		whereClauses = append(whereClauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if filters.Since != nil {
		args = append(args, *filters.Since)
		whereClauses = append(whereClauses, fmt.Sprintf("collected_at >= $%d", len(args)))
	}
	for i, clause := range whereClauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY collected_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ArticleRepo.Find: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 32)
	for rows.Next() {
		a, err := scanArticleRows(rows)
		if err != nil {
			return nil, fmt.Errorf("ArticleRepo.Find: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ArticleRepo.Find: %w", err)
	}
	return articles, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticleRow(row *sql.Row) (*entity.Article, error)   { return scanArticle(row) }
func scanArticleRows(rows *sql.Rows) (*entity.Article, error) { return scanArticle(rows) }

func scanArticle(s scanner) (*entity.Article, error) {
	var a entity.Article
	var articleID, content, author, category sql.NullString
	var metadata []byte
	var publishedAt sql.NullTime

	if err := s.Scan(&a.ID, &a.UniqueID, &a.Platform, &articleID, &a.URL, &a.Title,
		&content, &author, &category, &metadata, &publishedAt, &a.CollectedAt); err != nil {
		return nil, err
	}

	a.ArticleID = articleID.String
	a.Content = content.String
	a.Author = author.String
	a.Category = category.String
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation matches Postgres SQLSTATE 23505 by error text, avoiding
// a hard dependency on a specific pgx error type across driver versions.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

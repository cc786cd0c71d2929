package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/infra/adapter/persistence/postgres"
	"newsqueue/internal/repository"
)

func articleRow(a *entity.Article) *sqlmock.Rows {
	cols := []string{"id", "unique_id", "platform", "article_id", "url", "title", "content", "author", "category", "metadata", "published_at", "collected_at"}
	return sqlmock.NewRows(cols).AddRow(
		a.ID, a.UniqueID, a.Platform, a.ArticleID, a.URL, a.Title,
		a.Content, a.Author, a.Category, []byte("null"), a.PublishedAt, a.CollectedAt,
	)
}

func TestArticleRepo_FindByUniqueID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	want := &entity.Article{
		ID: 1, UniqueID: "YTN_1", Platform: "YTN", URL: "https://ytn.example.com/1",
		Title: "t", CollectedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, unique_id")).
		WithArgs("YTN_1").
		WillReturnRows(articleRow(want))

	repo := postgres.NewArticleRepo(db)
	got, err := repo.FindByUniqueID(context.Background(), "YTN_1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepo_FindByUniqueID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, unique_id")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "unique_id", "platform", "article_id", "url", "title", "content", "author", "category", "metadata", "published_at", "collected_at"}))

	repo := postgres.NewArticleRepo(db)
	got, err := repo.FindByUniqueID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestArticleRepo_Insert_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	a := &entity.Article{UniqueID: "YTN_1", Platform: "YTN", URL: "https://ytn.example.com/1", Title: "t", CollectedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnError(&mockPgError{})

	repo := postgres.NewArticleRepo(db)
	_, err = repo.Insert(context.Background(), a)
	require.Error(t, err)
}

type mockPgError struct{}

func (e *mockPgError) Error() string { return "ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)" }

func TestArticleRepo_Find_WithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM articles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "unique_id", "platform", "article_id", "url", "title", "content", "author", "category", "metadata", "published_at", "collected_at"}))

	platform := "YTN"
	repo := postgres.NewArticleRepo(db)
	got, err := repo.Find(context.Background(), repository.ArticleFilters{Platform: &platform, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

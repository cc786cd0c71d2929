package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/infra/adapter/persistence/postgres"
)

func TestQueueRepo_ClaimOne_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id FROM queue_items WHERE status = 'PENDING'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("UPDATE queue_items SET status = 'PROCESSING'").
		WithArgs(now, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	cols := []string{"id", "unique_id", "article_id", "platform", "title", "url", "content", "category", "published_at", "status", "retry_count", "error_message", "created_at", "updated_at", "claimed_at"}
	mock.ExpectQuery("SELECT id, unique_id, article_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "u1", "", "YTN", "t", "https://e/1", "", "", nil, "PROCESSING", 0, "", now, now, now))

	repo := postgres.NewQueueRepo(db)
	item, err := repo.ClaimOne(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "u1", item.UniqueID)
	require.Equal(t, entity.StatusProcessing, item.Status)
}

func TestQueueRepo_ClaimOne_NoPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id FROM queue_items WHERE status = 'PENDING'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := postgres.NewQueueRepo(db)
	_, err = repo.ClaimOne(context.Background(), time.Now())
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestQueueRepo_ClaimOne_RetriesOnLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()

	mock.ExpectQuery("SELECT id FROM queue_items WHERE status = 'PENDING'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("UPDATE queue_items SET status = 'PROCESSING'").
		WithArgs(now, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT id FROM queue_items WHERE status = 'PENDING'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec("UPDATE queue_items SET status = 'PROCESSING'").
		WithArgs(now, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	cols := []string{"id", "unique_id", "article_id", "platform", "title", "url", "content", "category", "published_at", "status", "retry_count", "error_message", "created_at", "updated_at", "claimed_at"}
	mock.ExpectQuery("SELECT id, unique_id, article_id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(2), "u2", "", "YTN", "t", "https://e/2", "", "", nil, "PROCESSING", 0, "", now, now, now))

	repo := postgres.NewQueueRepo(db)
	item, err := repo.ClaimOne(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "u2", item.UniqueID)
}

func TestQueueRepo_Complete_NoOpWhenNotProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE queue_items SET status = 'COMPLETED'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := postgres.NewQueueRepo(db)
	ok, err := repo.Complete(context.Background(), "u1", time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueueRepo_Fail_IncrementsRetryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE queue_items SET status = 'FAILED'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewQueueRepo(db)
	ok, err := repo.Fail(context.Background(), "u1", "net error", time.Now())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestQueueRepo_Retry_ReturnsMovedCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE queue_items SET status = 'PENDING'").
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := postgres.NewQueueRepo(db)
	n, err := repo.Retry(context.Background(), 3, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestQueueRepo_Clean_DeletesOnlyOldCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DELETE FROM queue_items WHERE status = 'COMPLETED'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewQueueRepo(db)
	n, err := repo.Clean(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestQueueRepo_Status_AggregatesCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("PENDING", int64(3)).
			AddRow("COMPLETED", int64(5)))

	repo := postgres.NewQueueRepo(db)
	counts, err := repo.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), counts[entity.StatusPending])
	require.Equal(t, int64(5), counts[entity.StatusCompleted])
}

func TestQueueRepo_SweepStuckClaims(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE queue_items SET status = 'PENDING', retry_count").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewQueueRepo(db)
	n, err := repo.SweepStuckClaims(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

package enqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/infra/adapter/persistence/memory"
	"newsqueue/internal/usecase/enqueue"
	"newsqueue/internal/usecase/queue"
)

func setup(t *testing.T) (*enqueue.Service, *memory.ArticleRepo) {
	t.Helper()
	articles := memory.NewArticleRepo()
	published := memory.NewPublishedSetRepo()
	q := queue.New(memory.NewQueueRepo(), nil)
	return enqueue.New(articles, published, q, nil), articles
}

// S6. Publish pipeline end-to-end (enqueue half): article exists, not
// published; add_articles_from_db enqueues exactly one row; a second call
// enqueues zero once it has been marked published.
func TestAddArticlesFromDB_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, articles := setup(t)

	a := &entity.Article{Platform: "YTN", ArticleID: "1", Title: "t", URL: "https://e/1", CollectedAt: time.Now()}
	require.NoError(t, a.Validate(time.Now()))
	_, err := articles.Insert(ctx, a)
	require.NoError(t, err)

	n, err := svc.AddArticlesFromDB(ctx, enqueue.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, svc.Published.Add(ctx, a.UniqueID))

	n, err = svc.AddArticlesFromDB(ctx, enqueue.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAddArticlesFromDB_SkipsAlreadyQueued(t *testing.T) {
	ctx := context.Background()
	svc, articles := setup(t)

	a := &entity.Article{Platform: "YTN", ArticleID: "1", Title: "t", URL: "https://e/1", CollectedAt: time.Now()}
	require.NoError(t, a.Validate(time.Now()))
	_, _ = articles.Insert(ctx, a)

	n, err := svc.AddArticlesFromDB(ctx, enqueue.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Not yet published, but already in the queue: second pass must skip it
	// via is_duplicate rather than failing on the uniqueness conflict.
	n, err = svc.AddArticlesFromDB(ctx, enqueue.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAddArticlesFromDB_FiltersByPlatformAndHours(t *testing.T) {
	ctx := context.Background()
	svc, articles := setup(t)

	now := time.Now()
	old := &entity.Article{Platform: "YTN", ArticleID: "1", Title: "old", URL: "https://e/1", CollectedAt: now.Add(-48 * time.Hour)}
	recent := &entity.Article{Platform: "MBC", ArticleID: "2", Title: "recent", URL: "https://e/2", CollectedAt: now}
	require.NoError(t, old.Validate(now))
	require.NoError(t, recent.Validate(now))
	_, _ = articles.Insert(ctx, old)
	_, _ = articles.Insert(ctx, recent)

	hours := 1
	platform := "MBC"
	n, err := svc.AddArticlesFromDB(ctx, enqueue.Filters{Platform: &platform, Hours: &hours})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

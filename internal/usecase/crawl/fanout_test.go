package crawl_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/usecase/crawl"
)

type stubAdapter struct {
	name    string
	delay   time.Duration
	articles []*entity.Article
	err     error
	started *int64
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Fetch(ctx context.Context) ([]*entity.Article, error) {
	if a.started != nil {
		atomic.AddInt64(a.started, 1)
	}
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.articles, nil
}

func TestRun_OneFailureDoesNotCancelSiblings(t *testing.T) {
	var started int64
	slowOK := &stubAdapter{name: "slow-ok", delay: 30 * time.Millisecond, started: &started,
		articles: []*entity.Article{{UniqueID: "u1"}}}
	fastFail := &stubAdapter{name: "fast-fail", delay: time.Millisecond, err: errors.New("boom"), started: &started}

	outcomes := crawl.Run(context.Background(), []crawl.SourceAdapter{slowOK, fastFail})

	require := map[string]crawl.Outcome{}
	for _, o := range outcomes {
		require[o.Source] = o
	}

	assert.NoError(t, require["slow-ok"].Err)
	assert.Len(t, require["slow-ok"].Articles, 1)
	assert.Error(t, require["fast-fail"].Err)
	assert.Equal(t, int64(2), started)
}

func TestRun_ExplicitCancelStopsAllAdapters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a1 := &stubAdapter{name: "a1", delay: time.Second}
	a2 := &stubAdapter{name: "a2", delay: time.Second}

	cancel()
	outcomes := crawl.Run(ctx, []crawl.SourceAdapter{a1, a2})
	for _, o := range outcomes {
		assert.Error(t, o.Err)
	}
}

func TestRun_EmptyAdapterList(t *testing.T) {
	outcomes := crawl.Run(context.Background(), nil)
	assert.Empty(t, outcomes)
}

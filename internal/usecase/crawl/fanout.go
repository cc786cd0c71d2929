// Package crawl implements the Crawler Fan-out contract from spec section
// 4.2: N source adapters run concurrently, and a failure in one adapter
// must never cancel or starve the others. This rules out golang.org/x/sync's
// errgroup.WithContext, which cancels every sibling on the first error — the
// fan-out here uses a plain sync.WaitGroup with per-adapter captured errors
// instead, and reaches for the same module's semaphore package only to cap
// how many adapters hit the network at once.
package crawl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/observability/metrics"
)

// MaxConcurrentCrawls bounds how many source adapters fetch at once, so a
// manifest with dozens of sources doesn't open dozens of simultaneous
// outbound connections.
const MaxConcurrentCrawls = 8

// SourceAdapter is the source-adapter interface from spec section 6: a
// single asynchronous Fetch that completes when the source has been fully
// polled, plus an identifying tag.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]*entity.Article, error)
}

// Outcome is one source's result: either a list of candidates or a captured
// error. Exactly one of Articles/Err is populated.
type Outcome struct {
	Source   string
	Articles []*entity.Article
	Err      error
}

// Run executes every adapter concurrently, bounded by MaxConcurrentCrawls.
// See RunWithConcurrency for the isolation and cancellation contract.
func Run(ctx context.Context, adapters []SourceAdapter) []Outcome {
	return RunWithConcurrency(ctx, adapters, MaxConcurrentCrawls)
}

// RunWithConcurrency executes every adapter concurrently and waits for all of
// them to finish, isolating failures per spec section 4.2: one adapter
// failing never cancels, cancels, or starves its siblings. Explicit
// cancellation of ctx does cancel every adapter, since they all observe the
// same context. concurrency bounds how many adapters fetch at once; values
// <= 0 are treated as MaxConcurrentCrawls.
func RunWithConcurrency(ctx context.Context, adapters []SourceAdapter, concurrency int64) []Outcome {
	if concurrency <= 0 {
		concurrency = MaxConcurrentCrawls
	}
	outcomes := make([]Outcome, len(adapters))
	sem := semaphore.NewWeighted(concurrency)
	var wg sync.WaitGroup
	wg.Add(len(adapters))

	for i, adapter := range adapters {
		i, adapter := i, adapter
		go func() {
			defer wg.Done()
			// Acquire waits on context.Background, so it never returns an
			// error: ctx cancellation is observed by adapter.Fetch below, and
			// a failed Acquire would otherwise leave outcomes[i] as a
			// misleading zero value instead of the adapter's own context
			// error, with the deferred Release freeing a slot never held.
			_ = sem.Acquire(context.Background(), 1)
			defer sem.Release(1)

			start := time.Now()
			articles, err := adapter.Fetch(ctx)
			metrics.FeedCrawlDuration.WithLabelValues(adapter.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.FeedCrawlErrors.WithLabelValues(adapter.Name()).Inc()
			} else {
				metrics.ArticlesFetchedTotal.WithLabelValues(adapter.Name()).Add(float64(len(articles)))
			}
			outcomes[i] = Outcome{Source: adapter.Name(), Articles: articles, Err: err}
		}()
	}
	wg.Wait()
	return outcomes
}

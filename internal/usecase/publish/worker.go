// Package publish implements the Publisher Worker from spec section 4.5: it
// claims batches from the Queue Engine, dispatches each item to a chat
// target, and drives the resulting complete/fail/retry transitions. Per
// spec section 7, it swallows Transient and Permanent dispatch failures
// (converting them into fail/failPermanent calls) but re-raises
// StorageError so the caller can exit non-zero.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/infra/notifier"
	"newsqueue/internal/repository"
	"newsqueue/internal/usecase/queue"
)

// shutdownReason is the fail() error_message used for items abandoned at
// shutdown, per spec section 4.5's cancellation contract.
const shutdownReason = "shutdown"

// Worker runs the claim -> dispatch -> complete/fail loop.
type Worker struct {
	Engine       *queue.Engine
	Target       notifier.Target
	PublishedSet repository.PublishedSetRepository
	Config       Config
	Metrics      *Metrics
	Logger       *slog.Logger

	// sleep is the idle-wait primitive; overridden in tests to avoid real
	// timers.
	sleep func(ctx context.Context, d time.Duration)
}

// New builds a Worker. A nil logger falls back to slog.Default(); metrics
// is stored as given, and a nil metrics is not replaced.
func New(engine *queue.Engine, target notifier.Target, publishedSet repository.PublishedSetRepository, cfg Config, metrics *Metrics, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if target == nil {
		target = notifier.NewNoOpTarget()
	}
	return &Worker{
		Engine:       engine,
		Target:       target,
		PublishedSet: publishedSet,
		Config:       cfg,
		Metrics:      metrics,
		Logger:       logger,
		sleep:        contextSleep,
	}
}

func contextSleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Run loops until ctx is cancelled. It finishes any batch already claimed
// before honoring cancellation; no item is left in PROCESSING across a
// clean shutdown. A non-nil return always wraps entity.ErrStorageError.
func (w *Worker) Run(ctx context.Context) error {
	iteration := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		empty, err := w.RunIteration(ctx)
		if err != nil {
			return err
		}
		iteration++

		if iteration%w.Config.MaintenanceEvery == 0 {
			if err := w.RunMaintenance(ctx); err != nil {
				return err
			}
		}

		if empty {
			w.sleep(ctx, w.Config.PublishInterval)
		}
	}
}

// RunIteration claims one batch and dispatches it. It returns empty=true
// when there was nothing to claim, so Run knows to idle-sleep.
func (w *Worker) RunIteration(ctx context.Context) (empty bool, err error) {
	start := time.Now()
	items, err := w.Engine.Claim(ctx, w.Config.BatchSize)
	if err != nil {
		return false, err
	}

	w.Metrics.BatchSize.Observe(float64(len(items)))
	if len(items) == 0 {
		return true, nil
	}

	// The batch is already claimed: finish it on a context that cancellation
	// of ctx does not reach, whether it arrives before or during dispatch,
	// rather than abandoning items mid-flight in PROCESSING.
	shutdownCtx := context.WithoutCancel(ctx)

	dispatchErr := w.dispatchBatch(shutdownCtx, items)
	w.Metrics.BatchDurationSeconds.Observe(time.Since(start).Seconds())
	return false, dispatchErr
}

// dispatchBatch dispatches every item concurrently, bounded by
// Config.BatchConcurrency. One item's failure never affects another's
// outcome; only a StorageError aborts the batch result.
func (w *Worker) dispatchBatch(ctx context.Context, items []*entity.QueueItem) error {
	sem := semaphore.NewWeighted(int64(w.Config.BatchConcurrency))
	outcomes := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		i, item := i, item
		go func() {
			defer wg.Done()
			_ = sem.Acquire(ctx, 1)
			defer sem.Release(1)
			outcomes[i] = w.dispatchOne(ctx, item)
		}()
	}
	wg.Wait()

	for _, err := range outcomes {
		if err != nil {
			return err
		}
	}
	return nil
}

// dispatchOne sends item to the chat target and drives the Queue Engine
// transition that follows, per spec section 4.5 steps 3-4.
func (w *Worker) dispatchOne(ctx context.Context, item *entity.QueueItem) error {
	sendErr := w.Target.Send(ctx, item)
	if sendErr == nil {
		if _, err := w.Engine.Complete(ctx, item.UniqueID); err != nil {
			return err
		}
		if err := w.PublishedSet.Add(ctx, item.UniqueID); err != nil {
			return fmt.Errorf("Worker.dispatchOne: %w: published set add: %w", entity.ErrStorageError, err)
		}
		w.Metrics.recordSuccess()
		return nil
	}

	if errors.Is(sendErr, entity.ErrPermanent) {
		w.Metrics.recordFailure("permanent")
		_, err := w.Engine.FailPermanent(ctx, item.UniqueID, sendErr.Error())
		return err
	}

	// Anything not explicitly classified Permanent (including Transient and
	// an uncategorized target error) gets the ordinary fail->retry cycle.
	w.Metrics.recordFailure("transient")
	_, err := w.Engine.Fail(ctx, item.UniqueID, sendErr.Error())
	return err
}

// RunMaintenance invokes retry, clean, and the stuck-claim sweep, per spec
// section 4.5's periodic maintenance step.
func (w *Worker) RunMaintenance(ctx context.Context) error {
	n, err := w.Engine.Retry(ctx, w.Config.MaxRetries)
	if err != nil {
		return err
	}
	if n > 0 {
		w.Metrics.ItemsRetriedTotal.Add(float64(n))
	}

	n, err = w.Engine.Clean(ctx, w.Config.CleanAge)
	if err != nil {
		return err
	}
	if n > 0 {
		w.Metrics.ItemsCleanedTotal.Add(float64(n))
	}

	n, err = w.Engine.SweepStuckClaims(ctx, w.Config.StuckThreshold)
	if err != nil {
		return err
	}
	if n > 0 {
		w.Metrics.StuckClaimsSweptTotal.Add(float64(n))
	}

	return nil
}

// AbandonStuckClaims is the alternative half of the cancellation contract:
// instead of finishing an in-flight batch, fail every PROCESSING item with
// shutdownReason so none are left stuck across a restart. Callers that
// prefer "drain the batch" (the default Run behavior) never need this.
func (w *Worker) AbandonStuckClaims(ctx context.Context, items []*entity.QueueItem) error {
	for _, item := range items {
		if _, err := w.Engine.Fail(ctx, item.UniqueID, shutdownReason); err != nil {
			return err
		}
	}
	return nil
}

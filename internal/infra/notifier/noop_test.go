package notifier

import (
	"context"
	"testing"
	"time"

	"newsqueue/internal/domain/entity"
)

func TestNoOpTarget_Send(t *testing.T) {
	t.Run("returns nil without error", func(t *testing.T) {
		target := NewNoOpTarget()
		item := &entity.QueueItem{UniqueID: "u1", Title: "Test"}

		if err := target.Send(context.Background(), item); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("completes immediately", func(t *testing.T) {
		target := NewNoOpTarget()
		item := &entity.QueueItem{UniqueID: "u1"}

		start := time.Now()
		err := target.Send(context.Background(), item)
		elapsed := time.Since(start)

		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if elapsed > time.Millisecond {
			t.Errorf("expected no-op to complete immediately, but took %v", elapsed)
		}
	})

	t.Run("works with a canceled context", func(t *testing.T) {
		target := NewNoOpTarget()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := target.Send(ctx, &entity.QueueItem{UniqueID: "u1"}); err != nil {
			t.Errorf("expected nil error even with canceled context, got %v", err)
		}
	})

	t.Run("reports its name", func(t *testing.T) {
		if got := NewNoOpTarget().Name(); got != "noop" {
			t.Errorf("expected name 'noop', got %q", got)
		}
	})
}

package notifier

import (
	"context"

	"newsqueue/internal/domain/entity"
)

// NoOpTarget is a Null Object Target used when no chat target is configured,
// so the Publisher Worker never needs a nil check.
type NoOpTarget struct{}

func NewNoOpTarget() *NoOpTarget { return &NoOpTarget{} }

func (n *NoOpTarget) Name() string { return "noop" }

func (n *NoOpTarget) Send(ctx context.Context, item *entity.QueueItem) error {
	return nil
}

// Package notifier provides chat target implementations for the Publisher
// Worker: delivering a QueueItem as a formatted message to an external chat
// service (currently Discord webhooks).
package notifier

import (
	"context"

	"newsqueue/internal/domain/entity"
)

// Target dispatches one QueueItem to a chat service. Implementations
// classify failures per spec section 7: network/timeout/5xx errors wrap
// entity.ErrTransient, 4xx semantic rejections wrap entity.ErrPermanent.
type Target interface {
	// Name identifies the target for logging and metrics labels.
	Name() string

	// Send formats and dispatches item. It must apply its own rate limiting
	// and honor ctx cancellation.
	Send(ctx context.Context, item *entity.QueueItem) error
}

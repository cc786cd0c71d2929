package repository

import "context"

// PublishedSetRepository is the idempotence guard from spec section 4.6:
// Enqueue Service consults it to skip already-published articles. Add of an
// already-present id must be a silent no-op.
type PublishedSetRepository interface {
	Contains(ctx context.Context, uniqueID string) (bool, error)
	Add(ctx context.Context, uniqueID string) error
}

// Package ports defines the storage boundaries of the ratelimit module.
package ports

import (
	"context"
	"time"

	"riskgate/internal/ratelimit/models"
)

// CounterStore is the atomic counter abstraction behind every limiter.
// Increment adds n to key and returns the new value in one atomic step; the
// first increment of a key sets its expiry to ttl. Implementations must never
// reset a live key in place.
type CounterStore interface {
	Increment(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// AllowlistStore manages keys exempt from rate limiting.
type AllowlistStore interface {
	IsAllowlisted(ctx context.Context, identifier string) (bool, error)
	Add(ctx context.Context, entry *models.AllowlistEntry) error
	Remove(ctx context.Context, identifier string) error
	List(ctx context.Context) ([]*models.AllowlistEntry, error)
}

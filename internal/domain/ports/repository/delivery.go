package repository

import (
	"context"
	"time"
)

// DeliveryLog remembers webhook deliveries that were fully applied, so exact
// redeliveries can be acknowledged without touching the database. It is an
// optimization only: a miss (or an error) falls through to the idempotent writes.
type DeliveryLog interface {
	Seen(ctx context.Context, kind, key string) (bool, error)
	MarkDone(ctx context.Context, kind, key string, ttl time.Duration) error
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edtech-enrollment/internal/domain/ports/repository"
)

var _ repository.DeliveryLog = (*DeliveryStore)(nil)

// DeliveryStore remembers applied webhook deliveries under webhook:done:<kind>:<key>.
type DeliveryStore struct {
	client RedisClient
}

func NewDeliveryStore(client RedisClient) *DeliveryStore {
	return &DeliveryStore{client: client}
}

func deliveryKey(kind, key string) string {
	return fmt.Sprintf("webhook:done:%s:%s", kind, key)
}

func (s *DeliveryStore) Seen(ctx context.Context, kind, key string) (bool, error) {
	if key == "" {
		return false, errors.New("empty delivery key")
	}
	return s.client.Exists(ctx, deliveryKey(kind, key))
}

// MarkDone is SET NX: the first writer wins and the TTL is never extended.
func (s *DeliveryStore) MarkDone(ctx context.Context, kind, key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("empty delivery key")
	}
	_, err := s.client.SetNX(ctx, deliveryKey(kind, key), time.Now().UTC().Format(time.RFC3339), ttl)
	return err
}

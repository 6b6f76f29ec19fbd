package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another instance")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{client: c}
}

// TryLock makes a single SET NX attempt.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

const luaUnlock = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.client.Eval(ctx, luaUnlock, []string{key}, token)
	return err
}

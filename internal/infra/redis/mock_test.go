//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// fakeClient is an in-memory RedisClient. TTLs are recorded, never enforced.
type fakeClient struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.err }

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = toString(value)
	f.ttl[key] = exp
	return nil
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = toString(value)
	f.ttl[key] = exp
	return true, nil
}

func (f *fakeClient) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", ErrNil
	}
	return v, f.err
}

func (f *fakeClient) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, f.err
}

func (f *fakeClient) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl[key] = exp
	return f.err
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return f.err
}

// Eval only understands the unlock script: delete KEYS[1] if it holds ARGV[1].
func (f *fakeClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) != 1 || len(args) != 1 {
		return nil, errors.New("unexpected script arguments")
	}
	if f.data[keys[0]] == toString(args[0]) {
		delete(f.data, keys[0])
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *fakeClient) Close() error { return nil }

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

package tripAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/tripAuth/registry"
)

// timedKV bounds every store round-trip so a stalled cache surfaces as
// ErrUnavailable instead of hanging the request.
type timedKV struct {
	kv      registry.KV
	timeout time.Duration
}

var _ registry.KV = timedKV{}

func (t timedKV) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t timedKV) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.kv.Get(ctx, key)
}

func (t timedKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.kv.Set(ctx, key, value, ttl)
}

func (t timedKV) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.kv.Exists(ctx, key)
}

func (t timedKV) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.kv.Del(ctx, keys...)
}

func (t timedKV) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.kv.Incr(ctx, key, window)
}

func (t timedKV) Ping(ctx context.Context) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.kv.Ping(ctx)
}

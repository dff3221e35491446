package registry

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure. Callers treat it as "cannot
// authenticate", never as a miss.
var ErrUnavailable = errors.New("registry unavailable")

// KV is the minimal atomic-per-key store the registry and the login
// throttle need.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set overwrites key. A non-positive ttl stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	// Incr increments a counter and starts its window on the first hit.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

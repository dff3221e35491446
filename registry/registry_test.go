package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// backend pairs a KV with a way to move its clock forward.
type backend struct {
	name    string
	kv      KV
	advance func(time.Duration)
}

func newBackends(t *testing.T) []backend {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return []backend{
		{name: "redis", kv: NewRedisKV(rdb), advance: mr.FastForward},
		{name: "memory", kv: NewMemoryKV(clock.Now), advance: clock.Advance},
	}
}

func newTestRegistry(t *testing.T, kv KV) *Registry {
	t.Helper()
	reg, err := New(kv, Keys{})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestActiveAccessTokenSupersession(t *testing.T) {
	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, b.kv)

			if ok, err := reg.IsActiveAccessToken(ctx, "alice", "t1"); err != nil || ok {
				t.Fatalf("expected miss to be inactive, got ok=%v err=%v", ok, err)
			}
			if err := reg.SetActiveAccessToken(ctx, "alice", "t1", time.Minute); err != nil {
				t.Fatalf("set t1: %v", err)
			}
			if ok, _ := reg.IsActiveAccessToken(ctx, "alice", "t1"); !ok {
				t.Fatal("expected t1 active")
			}
			if err := reg.SetActiveAccessToken(ctx, "alice", "t2", time.Minute); err != nil {
				t.Fatalf("set t2: %v", err)
			}
			if ok, _ := reg.IsActiveAccessToken(ctx, "alice", "t1"); ok {
				t.Fatal("expected t1 superseded")
			}
			if ok, _ := reg.IsActiveAccessToken(ctx, "alice", "t2"); !ok {
				t.Fatal("expected t2 active")
			}
			if ok, _ := reg.IsActiveAccessToken(ctx, "bob", "t2"); ok {
				t.Fatal("entries must be per username")
			}

			if err := reg.ClearActiveAccessToken(ctx, "alice"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if ok, _ := reg.IsActiveAccessToken(ctx, "alice", "t2"); ok {
				t.Fatal("expected cleared entry to be inactive")
			}
		})
	}
}

func TestActiveAccessTokenExpires(t *testing.T) {
	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, b.kv)

			if err := reg.SetActiveAccessToken(ctx, "alice", "t1", time.Minute); err != nil {
				t.Fatalf("set: %v", err)
			}
			b.advance(time.Minute + time.Second)
			if ok, _ := reg.IsActiveAccessToken(ctx, "alice", "t1"); ok {
				t.Fatal("expected entry to expire with its ttl")
			}
		})
	}
}

func TestRevokeBoundedByRemainingLifetime(t *testing.T) {
	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, b.kv)

			if err := reg.Revoke(ctx, "tok", 30*time.Second); err != nil {
				t.Fatalf("revoke: %v", err)
			}
			if ok, err := reg.IsRevoked(ctx, "tok"); err != nil || !ok {
				t.Fatalf("expected revoked, got ok=%v err=%v", ok, err)
			}
			if ok, _ := reg.IsRevoked(ctx, "other"); ok {
				t.Fatal("unrelated token must not be revoked")
			}

			b.advance(31 * time.Second)
			if ok, _ := reg.IsRevoked(ctx, "tok"); ok {
				t.Fatal("blacklist entry must not outlive the token")
			}

			if err := reg.Revoke(ctx, "expired", 0); err != nil {
				t.Fatalf("revoke with zero ttl: %v", err)
			}
			if ok, _ := reg.IsRevoked(ctx, "expired"); ok {
				t.Fatal("zero remaining lifetime must not create an entry")
			}
		})
	}
}

func TestRefreshSlot(t *testing.T) {
	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, b.kv)

			if got, err := reg.RefreshToken(ctx, "alice"); err != nil || got != "" {
				t.Fatalf("expected empty slot, got %q err=%v", got, err)
			}
			if err := reg.SetRefreshToken(ctx, "alice", "r1", time.Hour); err != nil {
				t.Fatalf("set refresh: %v", err)
			}
			if err := reg.SetActiveAccessToken(ctx, "alice", "a1", time.Minute); err != nil {
				t.Fatalf("set access: %v", err)
			}
			if got, _ := reg.RefreshToken(ctx, "alice"); got != "r1" {
				t.Fatalf("expected r1, got %q", got)
			}

			if err := reg.ClearUser(ctx, "alice"); err != nil {
				t.Fatalf("clear user: %v", err)
			}
			if got, _ := reg.RefreshToken(ctx, "alice"); got != "" {
				t.Fatalf("expected refresh slot cleared, got %q", got)
			}
			if ok, _ := reg.IsActiveAccessToken(ctx, "alice", "a1"); ok {
				t.Fatal("expected access entry cleared")
			}
		})
	}
}

func TestIncrFixedWindow(t *testing.T) {
	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			for i := int64(1); i <= 3; i++ {
				n, err := b.kv.Incr(ctx, "al:alice", time.Minute)
				if err != nil {
					t.Fatalf("incr: %v", err)
				}
				if n != i {
					t.Fatalf("expected %d, got %d", i, n)
				}
			}
			b.advance(time.Minute + time.Second)
			n, err := b.kv.Incr(ctx, "al:alice", time.Minute)
			if err != nil {
				t.Fatalf("incr after window: %v", err)
			}
			if n != 1 {
				t.Fatalf("expected window reset, got %d", n)
			}
		})
	}
}

func TestRedisFailureWrapsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	reg := newTestRegistry(t, NewRedisKV(rdb))
	mr.Close()

	ctx := context.Background()
	if _, err := reg.IsRevoked(ctx, "tok"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from IsRevoked, got %v", err)
	}
	if _, err := reg.IsActiveAccessToken(ctx, "alice", "tok"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from IsActiveAccessToken, got %v", err)
	}
	if err := reg.SetActiveAccessToken(ctx, "alice", "tok", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from SetActiveAccessToken, got %v", err)
	}
	if err := reg.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Ping, got %v", err)
	}
}

func TestNewRejectsOverlappingPrefixes(t *testing.T) {
	if _, err := New(NewMemoryKV(nil), Keys{Access: "x:", Refresh: "x:"}); err == nil {
		t.Fatal("expected overlapping prefixes to be rejected")
	}
	if _, err := New(nil, Keys{}); err == nil {
		t.Fatal("expected nil kv to be rejected")
	}
}

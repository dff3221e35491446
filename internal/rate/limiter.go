package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/tripAuth/registry"
)

// Config holds limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter enforces per-username and per-IP failed-login budgets using
// counters in the shared store, so the budget holds across instances.
type Limiter struct {
	kv     registry.KV
	config Config
}

// New creates a [Limiter] over kv.
func New(kv registry.KV, cfg Config) *Limiter {
	return &Limiter{
		kv:     kv,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited once the username (or, when enabled, the
// IP) has used up its failure budget for the current window.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(username)); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login. It returns ErrRateLimited when the
// failure just recorded exhausted the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	count, err := l.increment(ctx, loginUserKey(username))
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.increment(ctx, loginIPKey(ip))
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the per-username counter after a successful login.
// The per-IP counter is left alone so one good account cannot launder an
// IP that is spraying others.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if err := l.kv.Del(ctx, loginUserKey(username)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the current failure count for username.
func (l *Limiter) LoginAttempts(ctx context.Context, username string) (int, error) {
	return l.read(ctx, loginUserKey(username))
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.read(ctx, key)
	if err != nil {
		return err
	}
	if count >= l.config.MaxLoginAttempts {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) read(ctx context.Context, key string) (int, error) {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

func (l *Limiter) increment(ctx context.Context, key string) (int64, error) {
	count, err := l.kv.Incr(ctx, key, l.config.LoginCooldownDuration)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

func loginUserKey(username string) string {
	return "al:" + username
}

func loginIPKey(ip string) string {
	return "ali:" + ip
}

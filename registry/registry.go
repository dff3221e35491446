package registry

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"
)

// Keys holds the key prefixes. Zero fields fall back to DefaultKeys.
type Keys struct {
	Access    string
	Refresh   string
	Blacklist string
}

// DefaultKeys matches the layout the web frontend's deployments already use.
var DefaultKeys = Keys{
	Access:    "access:",
	Refresh:   "refresh:",
	Blacklist: "blacklist:",
}

const revokedMarker = "logout"

// Registry records the single active access token per username, the
// refresh slot, and the revocation blacklist.
type Registry struct {
	kv   KV
	keys Keys
}

// New builds a Registry over kv.
func New(kv KV, keys Keys) (*Registry, error) {
	if kv == nil {
		return nil, errors.New("registry requires a kv store")
	}
	if keys.Access == "" {
		keys.Access = DefaultKeys.Access
	}
	if keys.Refresh == "" {
		keys.Refresh = DefaultKeys.Refresh
	}
	if keys.Blacklist == "" {
		keys.Blacklist = DefaultKeys.Blacklist
	}
	if keys.Access == keys.Refresh || keys.Access == keys.Blacklist || keys.Refresh == keys.Blacklist {
		return nil, errors.New("registry key prefixes must be distinct")
	}
	return &Registry{kv: kv, keys: keys}, nil
}

// SetActiveAccessToken overwrites the user's active token. Any earlier token
// stops matching immediately.
func (r *Registry) SetActiveAccessToken(ctx context.Context, username, token string, ttl time.Duration) error {
	return r.kv.Set(ctx, r.keys.Access+username, token, ttl)
}

// IsActiveAccessToken reports whether token is the user's current token. A
// missing entry is "not active".
func (r *Registry) IsActiveAccessToken(ctx context.Context, username, token string) (bool, error) {
	return r.matches(ctx, r.keys.Access+username, token)
}

// HasActiveAccessToken reports whether any access token is registered for
// username.
func (r *Registry) HasActiveAccessToken(ctx context.Context, username string) (bool, error) {
	return r.kv.Exists(ctx, r.keys.Access+username)
}

func (r *Registry) ClearActiveAccessToken(ctx context.Context, username string) error {
	return r.kv.Del(ctx, r.keys.Access+username)
}

// Revoke blacklists token for remaining. The entry never outlives the
// token, so a non-positive remaining is a no-op.
func (r *Registry) Revoke(ctx context.Context, token string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	return r.kv.Set(ctx, r.keys.Blacklist+token, revokedMarker, remaining)
}

func (r *Registry) IsRevoked(ctx context.Context, token string) (bool, error) {
	return r.kv.Exists(ctx, r.keys.Blacklist+token)
}

// SetRefreshToken stores the user's current refresh token.
func (r *Registry) SetRefreshToken(ctx context.Context, username, token string, ttl time.Duration) error {
	return r.kv.Set(ctx, r.keys.Refresh+username, token, ttl)
}

// RefreshToken returns the stored refresh token, or "" when none exists.
func (r *Registry) RefreshToken(ctx context.Context, username string) (string, error) {
	v, ok, err := r.kv.Get(ctx, r.keys.Refresh+username)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

func (r *Registry) ClearRefreshToken(ctx context.Context, username string) error {
	return r.kv.Del(ctx, r.keys.Refresh+username)
}

// ClearUser drops the access entry and then the refresh slot. The keys are
// deleted one at a time so they may live on different cluster slots.
func (r *Registry) ClearUser(ctx context.Context, username string) error {
	if err := r.kv.Del(ctx, r.keys.Access+username); err != nil {
		return err
	}
	return r.kv.Del(ctx, r.keys.Refresh+username)
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.kv.Ping(ctx)
}

func (r *Registry) matches(ctx context.Context, key, token string) (bool, error) {
	stored, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

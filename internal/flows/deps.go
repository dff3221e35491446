package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tripAuth/jwt"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Issue        IssueDeps
	Login        LoginDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Authenticate AuthenticateDeps
	Deletion     DeletionDeps
}

// Errors carries the host-level sentinels flows wrap their failures in.
// Flows never import the host package, so the host hands them over.
type Errors struct {
	EngineNotReady      error
	Unauthenticated     error
	InvalidCredentials  error
	TokenMalformed      error
	TokenExpired        error
	TokenRevoked        error
	RegistryMismatch    error
	AccountUnverified   error
	AccountPurged       error
	RegistryUnavailable error
	LoginRateLimited    error
	MemberNotFound      error
}

// MemberRecord is the flow-local view of a member.
type MemberRecord struct {
	Username     string
	PasswordHash string
	Role         string
	Verified     bool
	Deleted      bool
	DeletedAt    time.Time
}

// SessionResult is the flow-local token pair.
type SessionResult struct {
	Username       string
	Role           string
	AccessToken    string
	RefreshToken   string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RefreshRenewed bool
	Deleted        bool
}

// TokenRegistry is the subset of the registry the flows use.
type TokenRegistry interface {
	SetActiveAccessToken(ctx context.Context, username, token string, ttl time.Duration) error
	IsActiveAccessToken(ctx context.Context, username, token string) (bool, error)
	HasActiveAccessToken(ctx context.Context, username string) (bool, error)
	Revoke(ctx context.Context, token string, remaining time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	SetRefreshToken(ctx context.Context, username, token string, ttl time.Duration) error
	RefreshToken(ctx context.Context, username string) (string, error)
	ClearUser(ctx context.Context, username string) error
}

// Metrics carries the metric IDs flows increment.
type Metrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginRateLimited     int
	RefreshSuccess       int
	RefreshFailure       int
	RefreshRenewed       int
	Logout               int
	AuthSuccess          int
	AuthRevoked          int
	AuthExpired          int
	AuthMalformed        int
	AuthRegistryMismatch int
	AuthUnverified       int
	AuthUnavailable      int
	DeletionGateBlocked  int
}

// Events carries the audit event names flows emit.
type Events struct {
	LoginSuccess        string
	LoginFailure        string
	LoginRateLimited    string
	RefreshSuccess      string
	RefreshFailure      string
	Logout              string
	AuthRejected        string
	DeletionGateBlocked string
}

// Observer bundles the metric and audit hooks shared by every flow.
type Observer struct {
	MetricInc func(int)
	EmitAudit func(ctx context.Context, eventType string, success bool, username, tokenID string, err error, metadata func() map[string]string)
	Warn      func(msg string, fields map[string]any)
	Metrics   Metrics
	Events    Events
}

func (o *Observer) fill() {
	if o.MetricInc == nil {
		o.MetricInc = func(int) {}
	}
	if o.EmitAudit == nil {
		o.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if o.Warn == nil {
		o.Warn = func(string, map[string]any) {}
	}
}

// ParseFunc decodes a token of a fixed purpose.
type ParseFunc func(token string) (*jwt.Claims, error)

// IssueFunc signs a token.
type IssueFunc func(sub jwt.Subject, purpose jwt.Purpose, ttl time.Duration) (string, error)

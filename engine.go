package tripAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tripAuth/internal/audit"
	"github.com/MrEthical07/tripAuth/internal/flows"
	"github.com/MrEthical07/tripAuth/internal/rate"
	"github.com/MrEthical07/tripAuth/jwt"
	"github.com/MrEthical07/tripAuth/password"
	"github.com/MrEthical07/tripAuth/registry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine issues, validates and revokes member sessions. It is safe for
// concurrent use once built.
type Engine struct {
	config       Config
	registry     *registry.Registry
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	members      MemberProvider
	logger       logrus.FieldLogger
	clock        func() time.Time
	flow         flows.Service
}

// Close flushes pending audit events. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByEvent returns the dropped audit events keyed by event type.
func (e *Engine) AuditDroppedByEvent() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByEvent()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Login verifies username and password and issues a fresh session,
// superseding any session the member already had. Unknown usernames and
// wrong passwords both yield ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return loginResultFromFlow(res), nil
}

// Refresh issues a new access token from accessToken, which may already be
// expired. refreshToken is optional; when present it must match the stored
// refresh token. The refresh token itself is reissued only near its expiry.
func (e *Engine) Refresh(ctx context.Context, accessToken, refreshToken string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Refresh(ctx, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	return loginResultFromFlow(res), nil
}

// Logout blacklists accessToken for the rest of its lifetime and clears the
// member's registry entries. An empty token is a successful no-op.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	_, err := e.flow.Logout(ctx, accessToken)
	return err
}

// Authenticate resolves the identity behind an access token. The checks run
// blacklist, signature and expiry, active-token match, then verified.
func (e *Engine) Authenticate(ctx context.Context, token string) (Identity, error) {
	if !e.ready() {
		return Identity{}, ErrEngineNotReady
	}
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	claims, err := e.flow.Authenticate(ctx, token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Username: claims.Username(),
		Role:     Role(claims.Role),
		Verified: claims.Verified,
		Deleted:  claims.Deleted,
	}, nil
}

// CheckDeletion reports whether token names a member who is soft-deleted
// right now. A non-nil error means the state could not be determined.
func (e *Engine) CheckDeletion(ctx context.Context, token string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	return e.flow.CheckDeletion(ctx, token)
}

// IssueSession mints and registers a token pair for m without checking
// credentials. Callers must have authenticated m themselves.
func (e *Engine) IssueSession(ctx context.Context, m Member) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.IssueSession(ctx, memberRecord(m))
	if err != nil {
		return nil, err
	}
	return loginResultFromFlow(res), nil
}

// FederatedLogin resolves or provisions the local member for a successful
// third-party login and issues the same session a local login would.
func (e *Engine) FederatedLogin(ctx context.Context, fm FederatedMember) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if fm.Username == "" {
		return nil, errors.New("federated member username is empty")
	}
	if fm.PasswordHash == "" {
		// federated members never log in locally; the hash only fills the column
		hash, err := e.passwordHash.Hash(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("hash federated password: %w", err)
		}
		fm.PasswordHash = hash
	}

	m, err := e.members.FindOrCreateFederated(ctx, fm)
	if err != nil {
		return nil, fmt.Errorf("resolve federated member: %w", err)
	}

	res, err := e.IssueSession(ctx, m)
	if err != nil {
		e.emitAudit(ctx, auditEventFederatedLogin, false, m.Username, "", err, func() map[string]string {
			return map[string]string{"provider": fm.Provider}
		})
		return nil, err
	}

	e.metricInc(MetricFederatedLogin)
	e.emitAudit(ctx, auditEventFederatedLogin, true, m.Username, "", nil, func() map[string]string {
		return map[string]string{"provider": fm.Provider}
	})
	return res, nil
}

// HashPassword hashes password with the configured argon2id parameters.
func (e *Engine) HashPassword(password string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(password)
}

// Ping checks the token registry backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.registry == nil {
		return ErrEngineNotReady
	}
	if err := e.registry.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

func memberRecord(m Member) flows.MemberRecord {
	return flows.MemberRecord{
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         string(m.Role),
		Verified:     m.Verified,
		Deleted:      m.Deleted,
		DeletedAt:    m.DeletedAt,
	}
}

func loginResultFromFlow(res *flows.SessionResult) *LoginResult {
	return &LoginResult{
		Username:       res.Username,
		AccessToken:    res.AccessToken,
		RefreshToken:   res.RefreshToken,
		AccessTTL:      res.AccessTTL,
		RefreshTTL:     res.RefreshTTL,
		RefreshRenewed: res.RefreshRenewed,
		Deleted:        res.Deleted,
		Role:           Role(res.Role),
	}
}

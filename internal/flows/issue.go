package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tripAuth/jwt"
	"github.com/google/uuid"
)

// IssueDeps captures session minting dependencies.
type IssueDeps struct {
	Now      func() time.Time
	Issue    IssueFunc
	Registry TokenRegistry

	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	DeletedAccessTTL  time.Duration
	DeletedRefreshTTL time.Duration
	RestoreWindow     time.Duration

	Errors Errors
}

// SessionTTLs returns the token lifetimes for member m. A member deleted past
// the restore window gets AccountPurged.
func SessionTTLs(m MemberRecord, deps IssueDeps) (time.Duration, time.Duration, error) {
	if !m.Deleted {
		return deps.AccessTTL, deps.RefreshTTL, nil
	}
	if m.DeletedAt.IsZero() || !deps.Now().Before(m.DeletedAt.Add(deps.RestoreWindow)) {
		return 0, 0, deps.Errors.AccountPurged
	}
	return deps.DeletedAccessTTL, deps.DeletedRefreshTTL, nil
}

// RunIssueSession mints an access/refresh pair for m under a fresh session id
// and registers both, superseding whatever session the member had.
func RunIssueSession(ctx context.Context, m MemberRecord, deps IssueDeps) (*SessionResult, error) {
	if deps.Issue == nil || deps.Registry == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	accessTTL, refreshTTL, err := SessionTTLs(m, deps)
	if err != nil {
		return nil, err
	}

	sub := subjectFor(m)
	sub.Session = uuid.NewString()
	access, err := deps.Issue(sub, jwt.PurposeAccess, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := deps.Issue(sub, jwt.PurposeRefresh, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := deps.Registry.SetActiveAccessToken(ctx, m.Username, access, accessTTL); err != nil {
		return nil, unavailable(deps.Errors, err)
	}
	if err := deps.Registry.SetRefreshToken(ctx, m.Username, refresh, refreshTTL); err != nil {
		return nil, unavailable(deps.Errors, err)
	}

	return &SessionResult{
		Username:       m.Username,
		Role:           m.Role,
		AccessToken:    access,
		RefreshToken:   refresh,
		AccessTTL:      accessTTL,
		RefreshTTL:     refreshTTL,
		RefreshRenewed: true,
		Deleted:        m.Deleted,
	}, nil
}

func subjectFor(m MemberRecord) jwt.Subject {
	return jwt.Subject{
		Username: m.Username,
		Role:     m.Role,
		Verified: m.Verified,
		Deleted:  m.Deleted,
	}
}

func unavailable(errs Errors, err error) error {
	if errs.RegistryUnavailable == nil || errors.Is(err, errs.RegistryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", errs.RegistryUnavailable, err)
}

// tokenError folds codec errors into host sentinels.
func tokenError(errs Errors, err error) error {
	if errors.Is(err, jwt.ErrExpired) {
		return fmt.Errorf("%w: %v", errs.TokenExpired, err)
	}
	return fmt.Errorf("%w: %v", errs.TokenMalformed, err)
}

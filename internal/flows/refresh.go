package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tripAuth/jwt"
)

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Issue IssueDeps

	ParseAccessAllowExpired ParseFunc
	ParseRefresh            ParseFunc
	GetMember               func(ctx context.Context, username string) (MemberRecord, error)

	// RenewalRatio reissues the refresh token once less than this fraction
	// of its lifetime remains.
	RenewalRatio float64

	Observer Observer
	Errors   Errors
}

// RunRefresh mints a new access token from an access token that may already
// be expired. The stored refresh slot must be alive, and presentedRefresh,
// when non-empty, must equal it.
func RunRefresh(ctx context.Context, accessToken, presentedRefresh string, deps RefreshDeps) (*SessionResult, error) {
	deps.Observer.fill()
	if deps.ParseAccessAllowExpired == nil || deps.ParseRefresh == nil || deps.GetMember == nil ||
		deps.Issue.Issue == nil || deps.Issue.Registry == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.Issue.Now == nil {
		deps.Issue.Now = time.Now
	}

	res, username, err := runRefresh(ctx, accessToken, presentedRefresh, deps)
	obs := deps.Observer
	if err != nil {
		obs.MetricInc(obs.Metrics.RefreshFailure)
		obs.EmitAudit(ctx, obs.Events.RefreshFailure, false, username, "", err, nil)
		return nil, err
	}

	obs.MetricInc(obs.Metrics.RefreshSuccess)
	if res.RefreshRenewed {
		obs.MetricInc(obs.Metrics.RefreshRenewed)
	}
	obs.EmitAudit(ctx, obs.Events.RefreshSuccess, true, username, "", nil, func() map[string]string {
		if !res.RefreshRenewed {
			return nil
		}
		return map[string]string{"refresh_renewed": "true"}
	})
	return res, nil
}

func runRefresh(ctx context.Context, accessToken, presentedRefresh string, deps RefreshDeps) (*SessionResult, string, error) {
	errs := deps.Errors
	reg := deps.Issue.Registry

	if accessToken == "" {
		return nil, "", errs.Unauthenticated
	}

	revoked, err := reg.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, "", unavailable(errs, err)
	}
	if revoked {
		return nil, "", errs.TokenRevoked
	}

	claims, err := deps.ParseAccessAllowExpired(accessToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.TokenMalformed, err)
	}
	username := claims.Username()

	stored, err := reg.RefreshToken(ctx, username)
	if err != nil {
		return nil, username, unavailable(errs, err)
	}
	if stored == "" {
		return nil, username, fmt.Errorf("%w: no refresh token on record", errs.Unauthenticated)
	}
	if presentedRefresh != "" && subtle.ConstantTimeCompare([]byte(presentedRefresh), []byte(stored)) != 1 {
		return nil, username, fmt.Errorf("%w: refresh token does not match", errs.Unauthenticated)
	}

	refreshClaims, err := deps.ParseRefresh(stored)
	if err != nil {
		return nil, username, fmt.Errorf("%w: %v", errs.Unauthenticated, err)
	}
	if refreshClaims.Username() != username {
		return nil, username, fmt.Errorf("%w: refresh token subject mismatch", errs.Unauthenticated)
	}

	// A token superseded by a newer, still-live login cannot be refreshed.
	active, err := reg.IsActiveAccessToken(ctx, username, accessToken)
	if err != nil {
		return nil, username, unavailable(errs, err)
	}
	if !active {
		present, err := reg.HasActiveAccessToken(ctx, username)
		if err != nil {
			return nil, username, unavailable(errs, err)
		}
		if present {
			return nil, username, errs.RegistryMismatch
		}
	}

	// Once its access entry has lapsed, a token only refreshes within the
	// session that minted the stored refresh token. Logged-out and superseded
	// tokens belong to an earlier session.
	if claims.Session == "" || claims.Session != refreshClaims.Session {
		return nil, username, fmt.Errorf("%w: access token belongs to another session", errs.Unauthenticated)
	}

	member, err := deps.GetMember(ctx, username)
	if err != nil {
		if errors.Is(err, errs.MemberNotFound) {
			return nil, username, fmt.Errorf("%w: %v", errs.Unauthenticated, err)
		}
		return nil, username, err
	}

	accessTTL, refreshTTL, err := SessionTTLs(member, deps.Issue)
	if err != nil {
		return nil, username, err
	}

	sub := subjectFor(member)
	sub.Session = refreshClaims.Session
	newAccess, err := deps.Issue.Issue(sub, jwt.PurposeAccess, accessTTL)
	if err != nil {
		return nil, username, fmt.Errorf("issue access token: %w", err)
	}
	if err := reg.SetActiveAccessToken(ctx, username, newAccess, accessTTL); err != nil {
		return nil, username, unavailable(errs, err)
	}

	res := &SessionResult{
		Username:    username,
		Role:        member.Role,
		AccessToken: newAccess,
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshClaims.Remaining(deps.Issue.Now()),
		Deleted:     member.Deleted,
	}

	if needsRenewal(refreshClaims, deps.Issue.Now(), deps.RenewalRatio) {
		newRefresh, err := deps.Issue.Issue(sub, jwt.PurposeRefresh, refreshTTL)
		if err != nil {
			return nil, username, fmt.Errorf("issue refresh token: %w", err)
		}
		if err := reg.SetRefreshToken(ctx, username, newRefresh, refreshTTL); err != nil {
			return nil, username, unavailable(errs, err)
		}
		res.RefreshToken = newRefresh
		res.RefreshTTL = refreshTTL
		res.RefreshRenewed = true
	}

	return res, username, nil
}

func needsRenewal(claims *jwt.Claims, now time.Time, ratio float64) bool {
	lifetime := claims.Lifetime()
	if lifetime <= 0 {
		return true
	}
	return float64(claims.Remaining(now)) < float64(lifetime)*ratio
}

package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/tripAuth/jwt"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Now                     func() time.Time
	ParseAccessAllowExpired ParseFunc
	ParseRefresh            ParseFunc
	Registry                TokenRegistry

	Observer Observer
	Errors   Errors
}

// RunLogout blacklists accessToken for its remaining lifetime and clears the
// user's registry entries when the token owns them. A superseded token is
// revoked without touching the newer session. An empty token is a no-op. It
// returns the username the token named.
func RunLogout(ctx context.Context, accessToken string, deps LogoutDeps) (string, error) {
	deps.Observer.fill()
	if deps.ParseAccessAllowExpired == nil || deps.ParseRefresh == nil || deps.Registry == nil {
		return "", deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if accessToken == "" {
		return "", nil
	}

	claims, err := deps.ParseAccessAllowExpired(accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", deps.Errors.TokenMalformed, err)
	}
	username := claims.Username()

	if err := deps.Registry.Revoke(ctx, accessToken, claims.Remaining(deps.Now())); err != nil {
		return username, unavailable(deps.Errors, err)
	}
	owns, err := ownsSession(ctx, accessToken, claims, deps)
	if err != nil {
		return username, unavailable(deps.Errors, err)
	}
	if owns {
		if err := deps.Registry.ClearUser(ctx, username); err != nil {
			return username, unavailable(deps.Errors, err)
		}
	}

	obs := deps.Observer
	obs.MetricInc(obs.Metrics.Logout)
	obs.EmitAudit(ctx, obs.Events.Logout, true, username, claims.ID, nil, nil)
	return username, nil
}

// ownsSession reports whether accessToken still holds the user's registry
// entries: it is the active token, or the access entry has lapsed and the
// stored refresh token was minted in the same session.
func ownsSession(ctx context.Context, accessToken string, claims *jwt.Claims, deps LogoutDeps) (bool, error) {
	reg := deps.Registry
	username := claims.Username()

	active, err := reg.IsActiveAccessToken(ctx, username, accessToken)
	if err != nil || active {
		return active, err
	}
	present, err := reg.HasActiveAccessToken(ctx, username)
	if err != nil || present {
		return false, err
	}

	stored, err := reg.RefreshToken(ctx, username)
	if err != nil {
		return false, err
	}
	if stored == "" {
		return true, nil
	}
	refreshClaims, err := deps.ParseRefresh(stored)
	if err != nil {
		// unreadable slot, nothing worth keeping
		return true, nil
	}
	return claims.Session != "" && claims.Session == refreshClaims.Session, nil
}

package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tripAuth/jwt"
)

// AuthenticateDeps captures per-request token validation dependencies.
type AuthenticateDeps struct {
	ParseAccess     ParseFunc
	Registry        TokenRegistry
	RequireVerified bool

	Observer Observer
	Errors   Errors
}

// RunAuthenticate walks the request token through the blacklist, the codec,
// the active-token registry and the verified flag, in that order. The
// blacklist is consulted before any claim is read.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (*jwt.Claims, error) {
	deps.Observer.fill()
	if deps.ParseAccess == nil || deps.Registry == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := runAuthenticate(ctx, token, deps)
	obs := deps.Observer
	if err != nil {
		// a request without a token is anonymous, not a failed attempt
		if errors.Is(err, deps.Errors.Unauthenticated) {
			return nil, err
		}
		obs.MetricInc(authFailureMetric(err, deps))
		username := ""
		if claims != nil {
			username = claims.Username()
		}
		obs.EmitAudit(ctx, obs.Events.AuthRejected, false, username, "", err, nil)
		return nil, err
	}

	obs.MetricInc(obs.Metrics.AuthSuccess)
	return claims, nil
}

// runAuthenticate returns the parsed claims alongside post-parse failures so
// the caller can attribute them.
func runAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (*jwt.Claims, error) {
	errs := deps.Errors
	if token == "" {
		return nil, errs.Unauthenticated
	}

	revoked, err := deps.Registry.IsRevoked(ctx, token)
	if err != nil {
		return nil, unavailable(errs, err)
	}
	if revoked {
		return nil, errs.TokenRevoked
	}

	claims, err := deps.ParseAccess(token)
	if err != nil {
		return nil, tokenError(errs, err)
	}

	active, err := deps.Registry.IsActiveAccessToken(ctx, claims.Username(), token)
	if err != nil {
		return claims, unavailable(errs, err)
	}
	if !active {
		return claims, errs.RegistryMismatch
	}

	if deps.RequireVerified && !claims.Verified {
		return claims, errs.AccountUnverified
	}
	return claims, nil
}

func authFailureMetric(err error, deps AuthenticateDeps) int {
	m := deps.Observer.Metrics
	errs := deps.Errors
	switch {
	case errors.Is(err, errs.TokenRevoked):
		return m.AuthRevoked
	case errors.Is(err, errs.TokenExpired):
		return m.AuthExpired
	case errors.Is(err, errs.RegistryMismatch):
		return m.AuthRegistryMismatch
	case errors.Is(err, errs.AccountUnverified):
		return m.AuthUnverified
	case errors.Is(err, errs.RegistryUnavailable):
		return m.AuthUnavailable
	default:
		return m.AuthMalformed
	}
}

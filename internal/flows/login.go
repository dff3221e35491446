package flows

import (
	"context"
	"errors"
)

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Issue IssueDeps

	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(ctx context.Context, username, ip string) error
	IncrementLoginRate func(ctx context.Context, username, ip string) error
	ResetLoginRate     func(ctx context.Context, username string) error

	GetMember          func(ctx context.Context, username string) (MemberRecord, error)
	UpdatePasswordHash func(ctx context.Context, username, hash string) error

	VerifyPassword       func(password, hash string) (bool, error)
	VerifyDummy          func(password string)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(password string) (string, error)

	Observer Observer
	Errors   Errors
}

// RunLogin verifies credentials and issues a session. Unknown usernames and
// wrong passwords produce the same error and take comparable time.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (*SessionResult, error) {
	deps.Observer.fill()
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.GetMember == nil || deps.VerifyPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}

	obs := deps.Observer
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if errors.Is(err, deps.Errors.LoginRateLimited) {
				obs.MetricInc(obs.Metrics.LoginRateLimited)
				obs.EmitAudit(ctx, obs.Events.LoginRateLimited, false, username, "", err, nil)
				return nil, err
			}
			return nil, unavailable(deps.Errors, err)
		}
	}

	fail := func(err error) (*SessionResult, error) {
		if deps.IncrementLoginRate != nil {
			if rerr := deps.IncrementLoginRate(ctx, username, ip); rerr != nil && !errors.Is(rerr, deps.Errors.LoginRateLimited) {
				obs.Warn("login throttle increment failed", map[string]any{"username": username, "error": rerr})
			}
		}
		obs.MetricInc(obs.Metrics.LoginFailure)
		obs.EmitAudit(ctx, obs.Events.LoginFailure, false, username, "", err, nil)
		return nil, err
	}

	if username == "" || password == "" {
		return fail(deps.Errors.InvalidCredentials)
	}

	member, err := deps.GetMember(ctx, username)
	if err != nil {
		if errors.Is(err, deps.Errors.MemberNotFound) {
			if deps.VerifyDummy != nil {
				deps.VerifyDummy(password)
			}
			return fail(deps.Errors.InvalidCredentials)
		}
		return nil, err
	}

	ok, err := deps.VerifyPassword(password, member.PasswordHash)
	if err != nil || !ok {
		return fail(deps.Errors.InvalidCredentials)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, username); err != nil {
			obs.Warn("login throttle reset failed", map[string]any{"username": username, "error": err})
		}
	}

	maybeUpgradeHash(ctx, member, password, deps)

	res, err := RunIssueSession(ctx, member, deps.Issue)
	if err != nil {
		obs.MetricInc(obs.Metrics.LoginFailure)
		obs.EmitAudit(ctx, obs.Events.LoginFailure, false, username, "", err, nil)
		return nil, err
	}

	obs.MetricInc(obs.Metrics.LoginSuccess)
	obs.EmitAudit(ctx, obs.Events.LoginSuccess, true, username, "", nil, func() map[string]string {
		if !res.Deleted {
			return nil
		}
		return map[string]string{"deleted": "true"}
	})
	return res, nil
}

// maybeUpgradeHash rehashes with current parameters. Failure is logged and
// never fails the login.
func maybeUpgradeHash(ctx context.Context, member MemberRecord, password string, deps LoginDeps) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.PasswordNeedsUpgrade(member.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Observer.Warn("password rehash failed", map[string]any{"username": member.Username, "error": err})
		return
	}
	if err := deps.UpdatePasswordHash(ctx, member.Username, hash); err != nil {
		deps.Observer.Warn("password hash upgrade not persisted", map[string]any{"username": member.Username, "error": err})
	}
}

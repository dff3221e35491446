package flows

import (
	"context"
)

// DeletionDeps captures Deletion Gate dependencies.
type DeletionDeps struct {
	ParseAccessAllowExpired ParseFunc
	GetMember               func(ctx context.Context, username string) (MemberRecord, error)

	Observer Observer
	Errors   Errors
}

// RunCheckDeletion reports whether token belongs to a member who is
// soft-deleted right now. It reads live member state; the token's deleted
// claim is ignored. Errors are returned for logging only: callers let the
// request through to the authenticator.
func RunCheckDeletion(ctx context.Context, token string, deps DeletionDeps) (bool, error) {
	deps.Observer.fill()
	if deps.ParseAccessAllowExpired == nil || deps.GetMember == nil {
		return false, deps.Errors.EngineNotReady
	}
	if token == "" {
		return false, nil
	}

	claims, err := deps.ParseAccessAllowExpired(token)
	if err != nil {
		return false, err
	}
	member, err := deps.GetMember(ctx, claims.Username())
	if err != nil {
		return false, err
	}
	if !member.Deleted {
		return false, nil
	}

	obs := deps.Observer
	obs.MetricInc(obs.Metrics.DeletionGateBlocked)
	obs.EmitAudit(ctx, obs.Events.DeletionGateBlocked, false, member.Username, claims.ID, nil, nil)
	return true, nil
}

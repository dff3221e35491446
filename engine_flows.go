package tripAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/tripAuth/internal/flows"
	"github.com/MrEthical07/tripAuth/internal/rate"
	"github.com/MrEthical07/tripAuth/jwt"
	"github.com/sirupsen/logrus"
)

var flowErrors = flows.Errors{
	EngineNotReady:      ErrEngineNotReady,
	Unauthenticated:     ErrUnauthenticated,
	InvalidCredentials:  ErrInvalidCredentials,
	TokenMalformed:      ErrTokenMalformed,
	TokenExpired:        ErrTokenExpired,
	TokenRevoked:        ErrTokenRevoked,
	RegistryMismatch:    ErrRegistryMismatch,
	AccountUnverified:   ErrAccountUnverified,
	AccountPurged:       ErrAccountPurged,
	RegistryUnavailable: ErrRegistryUnavailable,
	LoginRateLimited:    ErrLoginRateLimited,
	MemberNotFound:      ErrMemberNotFound,
}

var flowMetrics = flows.Metrics{
	LoginSuccess:         int(MetricLoginSuccess),
	LoginFailure:         int(MetricLoginFailure),
	LoginRateLimited:     int(MetricLoginRateLimited),
	RefreshSuccess:       int(MetricRefreshSuccess),
	RefreshFailure:       int(MetricRefreshFailure),
	RefreshRenewed:       int(MetricRefreshRenewed),
	Logout:               int(MetricLogout),
	AuthSuccess:          int(MetricAuthSuccess),
	AuthRevoked:          int(MetricAuthRevoked),
	AuthExpired:          int(MetricAuthExpired),
	AuthMalformed:        int(MetricAuthMalformed),
	AuthRegistryMismatch: int(MetricAuthRegistryMismatch),
	AuthUnverified:       int(MetricAuthUnverified),
	AuthUnavailable:      int(MetricAuthUnavailable),
	DeletionGateBlocked:  int(MetricDeletionGateBlocked),
}

var flowEvents = flows.Events{
	LoginSuccess:        auditEventLoginSuccess,
	LoginFailure:        auditEventLoginFailure,
	LoginRateLimited:    auditEventLoginRateLimited,
	RefreshSuccess:      auditEventRefreshSuccess,
	RefreshFailure:      auditEventRefreshFailure,
	Logout:              auditEventLogout,
	AuthRejected:        auditEventAuthRejected,
	DeletionGateBlocked: auditEventDeletionGateBlocked,
}

func (e *Engine) buildFlowService() flows.Service {
	obs := flows.Observer{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn: func(msg string, fields map[string]any) {
			e.logger.WithFields(logrus.Fields(fields)).Warn(msg)
		},
		Metrics: flowMetrics,
		Events:  flowEvents,
	}

	parseAccess := func(tok string) (*jwt.Claims, error) {
		return e.jwtManager.Parse(tok, jwt.PurposeAccess)
	}
	parseAccessAllowExpired := func(tok string) (*jwt.Claims, error) {
		return e.jwtManager.ParseAllowExpired(tok, jwt.PurposeAccess)
	}
	parseRefresh := func(tok string) (*jwt.Claims, error) {
		return e.jwtManager.Parse(tok, jwt.PurposeRefresh)
	}

	issue := flows.IssueDeps{
		Now:               e.clock,
		Issue:             e.jwtManager.Issue,
		Registry:          e.registry,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.JWT.RefreshTTL,
		DeletedAccessTTL:  e.config.JWT.DeletedAccessTTL,
		DeletedRefreshTTL: e.config.JWT.DeletedRefreshTTL,
		RestoreWindow:     e.config.Account.RestoreWindow,
		Errors:            flowErrors,
	}

	login := flows.LoginDeps{
		Issue:                issue,
		ClientIPFromContext:  clientIPFromContext,
		GetMember:            e.getMember,
		VerifyPassword:       e.passwordHash.Verify,
		VerifyDummy:          e.passwordHash.VerifyDummy,
		PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
		HashPassword:         e.passwordHash.Hash,
		Observer:             obs,
		Errors:               flowErrors,
	}
	if updater, ok := e.members.(PasswordHashUpdater); ok {
		login.UpdatePasswordHash = updater.UpdatePasswordHash
	}
	if e.rateLimiter != nil {
		login.CheckLoginRate = e.checkLoginRate
		login.IncrementLoginRate = e.incrementLoginRate
		login.ResetLoginRate = e.rateLimiter.ResetLogin
	}

	return flows.New(flows.Deps{
		Issue: issue,
		Login: login,
		Refresh: flows.RefreshDeps{
			Issue:                   issue,
			ParseAccessAllowExpired: parseAccessAllowExpired,
			ParseRefresh:            parseRefresh,
			GetMember:               e.getMember,
			RenewalRatio:            e.config.JWT.RefreshRenewalRatio,
			Observer:                obs,
			Errors:                  flowErrors,
		},
		Logout: flows.LogoutDeps{
			Now:                     e.clock,
			ParseAccessAllowExpired: parseAccessAllowExpired,
			ParseRefresh:            parseRefresh,
			Registry:                e.registry,
			Observer:                obs,
			Errors:                  flowErrors,
		},
		Authenticate: flows.AuthenticateDeps{
			ParseAccess:     parseAccess,
			Registry:        e.registry,
			RequireVerified: e.config.Account.RequireVerified,
			Observer:        obs,
			Errors:          flowErrors,
		},
		Deletion: flows.DeletionDeps{
			ParseAccessAllowExpired: parseAccessAllowExpired,
			GetMember:               e.getMember,
			Observer:                obs,
			Errors:                  flowErrors,
		},
	})
}

func (e *Engine) getMember(ctx context.Context, username string) (flows.MemberRecord, error) {
	m, err := e.members.GetMemberByUsername(ctx, username)
	if err != nil {
		return flows.MemberRecord{}, err
	}
	return memberRecord(m), nil
}

func (e *Engine) checkLoginRate(ctx context.Context, username, ip string) error {
	return mapRateError(e.rateLimiter.CheckLogin(ctx, username, ip))
}

func (e *Engine) incrementLoginRate(ctx context.Context, username, ip string) error {
	return mapRateError(e.rateLimiter.IncrementLogin(ctx, username, ip))
}

func mapRateError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrLoginRateLimited
	}
	return err
}

package flows

import (
	"context"

	"github.com/MrEthical07/tripAuth/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.ParseAccess != nil
}

func (s Service) IssueSession(ctx context.Context, m MemberRecord) (*SessionResult, error) {
	return RunIssueSession(ctx, m, s.deps.Issue)
}

func (s Service) Login(ctx context.Context, username, password string) (*SessionResult, error) {
	return RunLogin(ctx, username, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionResult, error) {
	return RunRefresh(ctx, accessToken, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, accessToken string) (string, error) {
	return RunLogout(ctx, accessToken, s.deps.Logout)
}

func (s Service) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	return RunAuthenticate(ctx, token, s.deps.Authenticate)
}

func (s Service) CheckDeletion(ctx context.Context, token string) (bool, error) {
	return RunCheckDeletion(ctx, token, s.deps.Deletion)
}

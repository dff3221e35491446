package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/internal"
	"github.com/MrEthical07/tripAuth/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	stateCookie    = "oauth_state"
	verifierCookie = "oauth_verifier"
	redirectCookie = "oauth_redirect"

	// DefaultRedirect is used when no allow-listed redirect_uri was supplied.
	DefaultRedirect = "http://localhost:3000/member/login"
)

// SessionIssuer is the Engine surface the bridge needs.
type SessionIssuer interface {
	FederatedLogin(ctx context.Context, fm tripAuth.FederatedMember) (*tripAuth.LoginResult, error)
}

// Config controls redirect handling.
type Config struct {
	DefaultRedirect string
	// AllowedRedirectHosts are matched exactly against the redirect_uri
	// hostname, ignoring case and port.
	AllowedRedirectHosts []string
	// FlowTTL bounds the state, verifier and redirect cookies.
	FlowTTL time.Duration
}

// Bridge serves the start and callback legs of federated login.
type Bridge struct {
	providers map[string]*Provider
	sessions  SessionIssuer
	cookies   *middleware.Cookies
	cfg       Config
	allowed   map[string]struct{}
	logger    logrus.FieldLogger
}

func NewBridge(sessions SessionIssuer, cookies *middleware.Cookies, cfg Config, logger logrus.FieldLogger, providers ...*Provider) (*Bridge, error) {
	if sessions == nil || cookies == nil {
		return nil, errors.New("oauth bridge requires a session issuer and cookies")
	}
	if cfg.DefaultRedirect == "" {
		cfg.DefaultRedirect = DefaultRedirect
	}
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	b := &Bridge{
		providers: make(map[string]*Provider, len(providers)),
		sessions:  sessions,
		cookies:   cookies,
		cfg:       cfg,
		allowed:   make(map[string]struct{}, len(cfg.AllowedRedirectHosts)),
		logger:    logger,
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := b.providers[p.Name()]; dup {
			return nil, fmt.Errorf("oauth provider %q registered twice", p.Name())
		}
		b.providers[p.Name()] = p
	}
	for _, h := range cfg.AllowedRedirectHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			b.allowed[h] = struct{}{}
		}
	}
	return b, nil
}

// Provider returns the registered provider called name.
func (b *Bridge) Provider(name string) (*Provider, bool) {
	p, ok := b.providers[name]
	return p, ok
}

// Start redirects the browser to the provider's consent page.
func (b *Bridge) Start(w http.ResponseWriter, r *http.Request, providerName string) {
	p, ok := b.providers[providerName]
	if !ok {
		middleware.WriteError(w, fmt.Errorf("%w: unknown provider %q", tripAuth.ErrInvalidRequest, providerName))
		return
	}

	state, err := internal.NewState()
	if err != nil {
		b.logger.WithError(err).Error("oauth state generation failed")
		middleware.WriteError(w, err)
		return
	}
	verifier := oauth2.GenerateVerifier()

	b.cookies.Set(w, r, stateCookie, state, b.cfg.FlowTTL)
	b.cookies.Set(w, r, verifierCookie, verifier, b.cfg.FlowTTL)
	if raw := r.URL.Query().Get("redirect_uri"); raw != "" && b.Allowed(raw) {
		b.cookies.Set(w, r, redirectCookie, raw, b.cfg.FlowTTL)
	}

	http.Redirect(w, r, p.AuthCodeURL(state, verifier), http.StatusFound)
}

// Callback completes the login and redirects with the session tokens.
func (b *Bridge) Callback(w http.ResponseWriter, r *http.Request, providerName string) {
	p, ok := b.providers[providerName]
	if !ok {
		middleware.WriteError(w, fmt.Errorf("%w: unknown provider %q", tripAuth.ErrInvalidRequest, providerName))
		return
	}

	q := r.URL.Query()
	state := middleware.CookieValue(r, stateCookie)
	verifier := middleware.CookieValue(r, verifierCookie)
	storedRedirect := middleware.CookieValue(r, redirectCookie)
	b.clearFlowCookies(w, r)

	if state == "" || verifier == "" || !internal.EqualDigest(state, q.Get("state")) {
		b.logger.WithField("provider", providerName).Warn("oauth state mismatch")
		middleware.WriteError(w, tripAuth.ErrOAuthState)
		return
	}
	if e := q.Get("error"); e != "" {
		b.logger.WithFields(logrus.Fields{"provider": providerName, "error": e}).Warn("oauth provider returned error")
		middleware.WriteError(w, tripAuth.ErrOAuthExchange)
		return
	}
	code := q.Get("code")
	if code == "" {
		middleware.WriteError(w, fmt.Errorf("%w: missing authorization code", tripAuth.ErrInvalidRequest))
		return
	}

	profile, err := p.Exchange(r.Context(), code, verifier)
	if err != nil {
		b.logger.WithFields(logrus.Fields{"provider": providerName, "error": err}).Warn("oauth exchange failed")
		middleware.WriteError(w, fmt.Errorf("%w: %v", tripAuth.ErrOAuthExchange, err))
		return
	}

	res, err := b.sessions.FederatedLogin(r.Context(), FederatedMember(providerName, profile))
	if err != nil {
		b.logger.WithFields(logrus.Fields{"provider": providerName, "error": err}).Warn("federated login failed")
		middleware.WriteError(w, err)
		return
	}

	b.cookies.SetSession(w, r, res)

	target := q.Get("redirect_uri")
	if target == "" {
		target = storedRedirect
	}
	http.Redirect(w, r, AppendTokens(b.ResolveRedirect(target), res), http.StatusFound)
}

func (b *Bridge) clearFlowCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{stateCookie, verifierCookie, redirectCookie} {
		if middleware.CookieValue(r, name) != "" {
			b.cookies.Set(w, r, name, "", -1)
		}
	}
}

// Allowed reports whether raw is an absolute http(s) URL whose host is on
// the allow-list.
func (b *Bridge) Allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.User != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	_, ok := b.allowed[host]
	return ok
}

// ResolveRedirect returns raw when it is allowed and the default otherwise.
func (b *Bridge) ResolveRedirect(raw string) string {
	if raw != "" && b.Allowed(raw) {
		return raw
	}
	return b.cfg.DefaultRedirect
}

// AppendTokens adds accessToken and refreshToken query parameters to target.
func AppendTokens(target string, res *tripAuth.LoginResult) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("accessToken", res.AccessToken)
	if res.RefreshToken != "" {
		q.Set("refreshToken", res.RefreshToken)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// FederatedMember maps a provider profile to the local member shape. The
// username is "{provider}_{id}"; a missing email becomes
// "{username}@noemail.com" and a missing nickname the username.
func FederatedMember(provider string, p Profile) tripAuth.FederatedMember {
	username := provider + "_" + p.ID
	email := p.Email
	if email == "" {
		email = username + "@noemail.com"
	}
	nickname := p.Nickname
	if nickname == "" {
		nickname = username
	}
	return tripAuth.FederatedMember{
		Username:     username,
		Email:        email,
		Nickname:     nickname,
		ProfileImage: p.ProfileImage,
		Provider:     provider,
		ProviderID:   p.ID,
	}
}

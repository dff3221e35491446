package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/permission"
	"github.com/sirupsen/logrus"
)

// DeletionChecker is the Engine surface the deletion gate needs.
type DeletionChecker interface {
	CheckDeletion(ctx context.Context, token string) (bool, error)
}

// TokenAuthenticator is the Engine surface the authenticator needs.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (tripAuth.Identity, error)
}

// DeletionGate blocks soft-deleted members everywhere except the
// allow-listed path suffixes.
type DeletionGate struct {
	checker    DeletionChecker
	allowed    []string
	cookieName string
	logger     logrus.FieldLogger
}

func NewDeletionGate(checker DeletionChecker, cfg tripAuth.Config, logger logrus.FieldLogger) *DeletionGate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DeletionGate{
		checker:    checker,
		allowed:    append([]string(nil), cfg.DeletionGate.AllowedSuffixes...),
		cookieName: cfg.Cookie.AccessName,
		logger:     logger,
	}
}

func (g *DeletionGate) Handle(w http.ResponseWriter, r *http.Request) (*http.Request, Decision) {
	if g.allowedPath(r.URL.Path) {
		return r, Continue
	}
	token := AccessToken(r, g.cookieName)
	if token == "" {
		return r, Continue
	}

	deleted, err := g.checker.CheckDeletion(r.Context(), token)
	if err != nil {
		// the authenticator runs next and rejects anything actually invalid
		g.logger.WithFields(logrus.Fields{"path": r.URL.Path, "error": err}).Debug("deletion gate lookup skipped")
		return r, Continue
	}
	if deleted {
		writeDeactivated(w)
		return r, Halt
	}
	return r, Continue
}

func (g *DeletionGate) allowedPath(path string) bool {
	for _, suffix := range g.allowed {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Authenticator resolves the request token and attaches the Identity to
// the request context. Requests without a token pass through
// unauthenticated; any other failure halts with the described error.
type Authenticator struct {
	engine     TokenAuthenticator
	cookieName string
}

func NewAuthenticator(engine TokenAuthenticator, cfg tripAuth.Config) *Authenticator {
	return &Authenticator{engine: engine, cookieName: cfg.Cookie.AccessName}
}

func (a *Authenticator) Handle(w http.ResponseWriter, r *http.Request) (*http.Request, Decision) {
	token := AccessToken(r, a.cookieName)
	if token == "" {
		return r, Continue
	}

	id, err := a.engine.Authenticate(r.Context(), token)
	if err != nil {
		WriteError(w, err)
		return r, Halt
	}
	return r.WithContext(tripAuth.WithIdentity(r.Context(), id)), Continue
}

// RequireIdentity rejects requests that carry no authenticated identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tripAuth.IdentityFromContext(r.Context()); !ok {
			WriteError(w, tripAuth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose identity does not hold role, with 401
// when there is no identity and 403 otherwise.
func RequireRole(role tripAuth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if res := permission.Check(r.Context(), role); !res.Allowed {
				WriteError(w, res.Err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP copies the request's remote address into the context for login
// throttling and audit. It expects chi's RealIP to have run first.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(tripAuth.WithClientIP(r.Context(), ip)))
	})
}

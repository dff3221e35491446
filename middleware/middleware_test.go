package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/password"
	"github.com/MrEthical07/tripAuth/registry"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeChecker struct {
	deleted bool
	err     error
	calls   int
}

func (f *fakeChecker) CheckDeletion(context.Context, string) (bool, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeAuth struct {
	id    tripAuth.Identity
	err   error
	token string
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (tripAuth.Identity, error) {
	f.token = token
	return f.id, f.err
}

func identityHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := tripAuth.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		WriteOK(w, "ok", id.Username)
	})
}

func decodeRs(t *testing.T, rec *httptest.ResponseRecorder) RsData[json.RawMessage] {
	t.Helper()
	var body RsData[json.RawMessage]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestChainStopsOnHalt(t *testing.T) {
	var order []string
	stage := func(name string, d Decision) Stage {
		return StageFunc(func(w http.ResponseWriter, r *http.Request) (*http.Request, Decision) {
			order = append(order, name)
			if d == Halt {
				w.WriteHeader(http.StatusTeapot)
			}
			return r, d
		})
	}
	h := NewChain(stage("a", Continue), nil, stage("b", Halt), stage("c", Continue)).Then(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("unexpected stage order %v", order)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected halting stage response, got %d", rec.Code)
	}
}

func TestAuthenticatorHeaderTakesPrecedence(t *testing.T) {
	auth := &fakeAuth{id: tripAuth.Identity{Username: "alice", Role: tripAuth.RoleUser, Verified: true}}
	cfg := tripAuth.DefaultConfig()
	h := NewChain(NewAuthenticator(auth, cfg)).Then(identityHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/member/me", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if auth.token != "header-token" {
		t.Fatalf("expected header token to be evaluated, got %q", auth.token)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/member/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-token"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if auth.token != "cookie-token" {
		t.Fatalf("expected cookie fallback, got %q", auth.token)
	}
}

func TestAuthenticatorWithoutTokenPassesThrough(t *testing.T) {
	auth := &fakeAuth{err: errors.New("must not be called")}
	h := NewChain(NewAuthenticator(auth, tripAuth.DefaultConfig())).Then(identityHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected unauthenticated pass-through, got %d", rec.Code)
	}
	if auth.token != "" {
		t.Fatal("authenticator must not be consulted without a token")
	}
}

func TestAuthenticatorRejections(t *testing.T) {
	tests := []struct {
		err      error
		wantCode string
		wantMsg  string
	}{
		{tripAuth.ErrTokenRevoked, "401-5", "logged out token"},
		{tripAuth.ErrTokenExpired, "401-4", "token expired"},
		{tripAuth.ErrTokenMalformed, "401-3", "invalid token"},
		{tripAuth.ErrRegistryMismatch, "401-6", "invalid token"},
		{tripAuth.ErrAccountUnverified, "401-7", "email not verified"},
		{tripAuth.ErrRegistryUnavailable, "401-8", "authentication unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.wantCode, func(t *testing.T) {
			h := NewChain(NewAuthenticator(&fakeAuth{err: tc.err}, tripAuth.DefaultConfig())).Then(identityHandler(t))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer t")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			body := decodeRs(t, rec)
			if body.Code != tc.wantCode || body.Msg != tc.wantMsg {
				t.Fatalf("expected %s %q, got %s %q", tc.wantCode, tc.wantMsg, body.Code, body.Msg)
			}
		})
	}
}

func TestDeletionGate(t *testing.T) {
	cfg := tripAuth.DefaultConfig()

	t.Run("blocks deleted member", func(t *testing.T) {
		checker := &fakeChecker{deleted: true}
		h := NewChain(NewDeletionGate(checker, cfg, nil)).Then(identityHandler(t))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/trip/schedule", nil)
		req.Header.Set("Authorization", "Bearer t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		want := `{"resultCode":"403","msg":"account is deactivated; restore it to continue"}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Fatalf("unexpected body %s", got)
		}
	})

	t.Run("allow-listed suffix skips lookup", func(t *testing.T) {
		checker := &fakeChecker{deleted: true}
		h := NewChain(NewDeletionGate(checker, cfg, nil)).Then(identityHandler(t))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/member/restore", nil)
		req.Header.Set("Authorization", "Bearer t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code == http.StatusForbidden || checker.calls != 0 {
			t.Fatalf("expected restore to pass without lookup, got %d after %d calls", rec.Code, checker.calls)
		}
	})

	t.Run("cookie fallback", func(t *testing.T) {
		checker := &fakeChecker{deleted: true}
		h := NewChain(NewDeletionGate(checker, cfg, nil)).Then(identityHandler(t))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/member/me", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "t"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected cookie token to be gated, got %d", rec.Code)
		}
	})

	t.Run("lookup error continues", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		checker := &fakeChecker{err: errors.New("token malformed")}
		auth := &fakeAuth{err: tripAuth.ErrTokenMalformed}
		h := NewChain(NewDeletionGate(checker, cfg, logger), NewAuthenticator(auth, cfg)).Then(identityHandler(t))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/member/me", nil)
		req.Header.Set("Authorization", "Bearer t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if auth.token != "t" {
			t.Fatal("expected authenticator to run after gate error")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected authenticator rejection, got %d", rec.Code)
		}
		if len(hook.AllEntries()) != 1 {
			t.Fatalf("expected gate error to be logged once, got %d", len(hook.AllEntries()))
		}
	})
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(tripAuth.RoleAdmin)(identityHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/member/all", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/member/all", nil)
	req = req.WithContext(tripAuth.WithIdentity(req.Context(), tripAuth.Identity{Username: "bob", Role: tripAuth.RoleUser}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for USER, got %d", rec.Code)
	}
	if body := decodeRs(t, rec); body.Code != "403-1" || body.Msg != "forbidden: requires ROLE_ADMIN" {
		t.Fatalf("unexpected body %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/member/all", nil)
	req = req.WithContext(tripAuth.WithIdentity(req.Context(), tripAuth.Identity{Username: "root", Role: tripAuth.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ADMIN, got %d", rec.Code)
	}
}

func TestDescribeUnknownErrorHidesDetail(t *testing.T) {
	p := Describe(errors.New("pq: connection refused"))
	if p.Status != http.StatusInternalServerError || p.Code != "500-1" || strings.Contains(p.Msg, "pq") {
		t.Fatalf("unexpected problem %+v", p)
	}
	if p := Describe(tripAuth.ErrLoginRateLimited); p.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", p.Status)
	}
}

func TestCookiesLoopbackAndRemote(t *testing.T) {
	cfg := tripAuth.DefaultConfig().Cookie
	cfg.Domain = "tripfriend.o-r.kr"
	c := NewCookies(cfg)
	res := &tripAuth.LoginResult{AccessToken: "a", RefreshToken: "r", AccessTTL: 30 * time.Minute, RefreshTTL: 7 * 24 * time.Hour}

	local := httptest.NewRequest(http.MethodPost, "http://localhost:8080/api/v1/member/login", nil)
	rec := httptest.NewRecorder()
	c.SetSession(rec, local, res)
	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, ck := range cookies {
		if ck.Secure || ck.Domain != "" || !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode {
			t.Fatalf("unexpected loopback cookie %+v", ck)
		}
	}
	if cookies[0].MaxAge != 1800 || cookies[1].MaxAge != 604800 {
		t.Fatalf("unexpected max-age %d / %d", cookies[0].MaxAge, cookies[1].MaxAge)
	}

	remote := httptest.NewRequest(http.MethodPost, "https://api.tripfriend.o-r.kr/api/v1/member/login", nil)
	rec = httptest.NewRecorder()
	c.SetSession(rec, remote, &tripAuth.LoginResult{AccessToken: "a", AccessTTL: time.Minute})
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected only the access cookie without a renewed refresh token, got %d", len(cookies))
	}
	if !cookies[0].Secure || cookies[0].Domain != "tripfriend.o-r.kr" {
		t.Fatalf("expected secure domain cookie, got %+v", cookies[0])
	}
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":          true,
		"LOCALHOST:3000":     true,
		"127.0.0.1":          true,
		"127.8.9.10:8080":    true,
		"[::1]:8080":         true,
		"::1":                true,
		"tripfriend.o-r.kr":  false,
		"10.0.0.1":           false,
		"localhost.evil.com": false,
	} {
		if got := IsLoopbackHost(host); got != want {
			t.Fatalf("IsLoopbackHost(%q) = %v, want %v", host, got, want)
		}
	}
}

type memberMap map[string]tripAuth.Member

func (m memberMap) GetMemberByUsername(_ context.Context, username string) (tripAuth.Member, error) {
	mem, ok := m[username]
	if !ok {
		return tripAuth.Member{}, tripAuth.ErrMemberNotFound
	}
	return mem, nil
}

func (m memberMap) FindOrCreateFederated(context.Context, tripAuth.FederatedMember) (tripAuth.Member, error) {
	return tripAuth.Member{}, errors.New("not supported")
}

func TestGateAndAuthenticatorWithEngine(t *testing.T) {
	cfg := tripAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef0123456789abcdef")
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := hasher.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	members := memberMap{"alice": {Username: "alice", PasswordHash: hash, Role: tripAuth.RoleUser, Verified: true}}

	engine, err := tripAuth.New().
		WithConfig(cfg).
		WithKV(registry.NewMemoryKV(nil)).
		WithMemberProvider(members).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	res, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	h := NewChain(NewDeletionGate(engine, cfg, nil), NewAuthenticator(engine, cfg)).Then(identityHandler(t))
	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+res.AccessToken)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("/api/v1/member/me"); rec.Code != http.StatusOK {
		t.Fatalf("expected active member to pass, got %d", rec.Code)
	}

	alice := members["alice"]
	alice.Deleted = true
	alice.DeletedAt = time.Now()
	members["alice"] = alice

	if rec := do("/api/v1/member/me"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected deleted member to be gated, got %d", rec.Code)
	}
	if rec := do("/api/v1/member/restore"); rec.Code != http.StatusOK {
		t.Fatalf("expected restore to reach the handler, got %d", rec.Code)
	}
}

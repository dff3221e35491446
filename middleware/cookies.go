package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
)

// Cookies writes and clears the token cookies.
type Cookies struct {
	cfg tripAuth.CookieConfig
}

func NewCookies(cfg tripAuth.CookieConfig) *Cookies {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Cookies{cfg: cfg}
}

// AccessName returns the access cookie name.
func (c *Cookies) AccessName() string { return c.cfg.AccessName }

// RefreshName returns the refresh cookie name.
func (c *Cookies) RefreshName() string { return c.cfg.RefreshName }

// SetSession writes the cookies for res. The refresh cookie is only
// rewritten when res carries a refresh token.
func (c *Cookies) SetSession(w http.ResponseWriter, r *http.Request, res *tripAuth.LoginResult) {
	if res == nil {
		return
	}
	c.Set(w, r, c.cfg.AccessName, res.AccessToken, res.AccessTTL)
	if res.RefreshToken != "" {
		c.Set(w, r, c.cfg.RefreshName, res.RefreshToken, res.RefreshTTL)
	}
}

// Clear expires both token cookies.
func (c *Cookies) Clear(w http.ResponseWriter, r *http.Request) {
	c.Set(w, r, c.cfg.AccessName, "", -1)
	c.Set(w, r, c.cfg.RefreshName, "", -1)
}

// Set writes one HttpOnly cookie. A negative ttl deletes it. Secure and
// Domain are omitted for loopback hosts so local development over plain
// http keeps working.
func (c *Cookies) Set(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.cfg.Path,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	}
	switch {
	case ttl < 0:
		cookie.MaxAge = -1
	case ttl > 0:
		cookie.MaxAge = int(ttl / time.Second)
	}
	if !IsLoopbackHost(r.Host) {
		cookie.Secure = true
		cookie.Domain = c.cfg.Domain
	}
	http.SetCookie(w, cookie)
}

// IsLoopbackHost reports whether host (optionally with a port) is
// localhost, in 127.0.0.0/8 or ::1.
func IsLoopbackHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// AccessToken returns the request's access token: the bearer header when
// present, otherwise the named cookie.
func AccessToken(r *http.Request, cookieName string) string {
	if token, ok := BearerToken(r); ok {
		return token
	}
	return CookieValue(r, cookieName)
}

// CookieValue returns the value of the named cookie or "".
func CookieValue(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

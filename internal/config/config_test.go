package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.RegistryTimeout)
	assert.Equal(t, []string{"https://tripfriend.o-r.kr", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"tripfriend.o-r.kr", "localhost"}, cfg.OAuthRedirectHosts)
	assert.Empty(t, cfg.OAuthProviders())
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TRIPAUTH_API_PREFIX":          "/",
		"TRIPAUTH_ACCESS_TTL":          "15m",
		"TRIPAUTH_CORS_ORIGINS":        "https://a.example, ,https://b.example",
		"TRIPAUTH_KAKAO_CLIENT_ID":     "kakao-id",
		"TRIPAUTH_KAKAO_CLIENT_SECRET": "kakao-secret",
		"TRIPAUTH_OAUTH_CALLBACK_BASE": "https://api.tripfriend.o-r.kr/",
	})
	require.NoError(t, err)

	assert.Equal(t, "", cfg.APIPrefix)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	providers := cfg.OAuthProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, "kakao", providers[0].Name())
	assert.Contains(t, providers[0].AuthCodeURL("s", "verifier-verifier-verifier-verifier-verifier"),
		"redirect_uri=https%3A%2F%2Fapi.tripfriend.o-r.kr%2Flogin%2Foauth2%2Fcode%2Fkakao")
}

func TestLoadFromRejectsBadDuration(t *testing.T) {
	_, err := LoadFrom(map[string]string{"TRIPAUTH_ACCESS_TTL": "soon"})
	assert.Error(t, err)
}

func TestAuthConfigValidates(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TRIPAUTH_JWT_SECRET":    "0123456789abcdef0123456789abcdef",
		"TRIPAUTH_COOKIE_DOMAIN": "tripfriend.o-r.kr",
	})
	require.NoError(t, err)

	auth := cfg.AuthConfig()
	require.NoError(t, auth.Validate())
	assert.Equal(t, "tripfriend", auth.JWT.Issuer)
	assert.Equal(t, "tripfriend.o-r.kr", auth.Cookie.Domain)
	assert.Equal(t, 5, auth.Security.MaxLoginAttempts)
	assert.True(t, auth.Metrics.Enabled)

	bridge := cfg.OAuthBridgeConfig()
	assert.Equal(t, "http://localhost:3000/member/login", bridge.DefaultRedirect)
}

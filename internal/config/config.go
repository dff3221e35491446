// Package config loads the tripauthd process configuration from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/oauth"
	"github.com/caarlos0/env/v11"
)

// Server is the full process configuration.
type Server struct {
	HTTPAddr  string `env:"TRIPAUTH_HTTP_ADDR" envDefault:":8080"`
	APIPrefix string `env:"TRIPAUTH_API_PREFIX" envDefault:"/api/v1"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	RedisAddr     string `env:"TRIPAUTH_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"TRIPAUTH_REDIS_PASSWORD"`
	RedisDB       int    `env:"TRIPAUTH_REDIS_DB" envDefault:"0"`

	// DatabaseURL selects the Postgres member store. Empty uses the
	// in-memory store.
	DatabaseURL string `env:"TRIPAUTH_DATABASE_URL"`

	JWTSecret         string        `env:"TRIPAUTH_JWT_SECRET"`
	JWTIssuer         string        `env:"TRIPAUTH_JWT_ISSUER" envDefault:"tripfriend"`
	AccessTTL         time.Duration `env:"TRIPAUTH_ACCESS_TTL" envDefault:"30m"`
	RefreshTTL        time.Duration `env:"TRIPAUTH_REFRESH_TTL" envDefault:"168h"`
	DeletedAccessTTL  time.Duration `env:"TRIPAUTH_DELETED_ACCESS_TTL" envDefault:"10m"`
	DeletedRefreshTTL time.Duration `env:"TRIPAUTH_DELETED_REFRESH_TTL" envDefault:"24h"`
	RenewalRatio      float64       `env:"TRIPAUTH_REFRESH_RENEWAL_RATIO" envDefault:"0.3"`

	RegistryTimeout time.Duration `env:"TRIPAUTH_REGISTRY_TIMEOUT" envDefault:"500ms"`
	RestoreWindow   time.Duration `env:"TRIPAUTH_RESTORE_WINDOW" envDefault:"720h"`
	RequireVerified bool          `env:"TRIPAUTH_REQUIRE_VERIFIED" envDefault:"true"`

	LoginMaxAttempts int           `env:"TRIPAUTH_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginCooldown    time.Duration `env:"TRIPAUTH_LOGIN_COOLDOWN" envDefault:"15m"`
	IPThrottle       bool          `env:"TRIPAUTH_LOGIN_IP_THROTTLE" envDefault:"false"`

	CookieDomain string   `env:"TRIPAUTH_COOKIE_DOMAIN"`
	CORSOrigins  []string `env:"TRIPAUTH_CORS_ORIGINS" envSeparator:"," envDefault:"https://tripfriend.o-r.kr,http://localhost:3000"`

	OAuthRedirectHosts   []string `env:"TRIPAUTH_OAUTH_REDIRECT_HOSTS" envSeparator:"," envDefault:"tripfriend.o-r.kr,localhost"`
	OAuthDefaultRedirect string   `env:"TRIPAUTH_OAUTH_DEFAULT_REDIRECT" envDefault:"http://localhost:3000/member/login"`
	OAuthCallbackBase    string   `env:"TRIPAUTH_OAUTH_CALLBACK_BASE" envDefault:"http://localhost:8080"`
	GoogleClientID       string   `env:"TRIPAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string   `env:"TRIPAUTH_GOOGLE_CLIENT_SECRET"`
	NaverClientID        string   `env:"TRIPAUTH_NAVER_CLIENT_ID"`
	NaverClientSecret    string   `env:"TRIPAUTH_NAVER_CLIENT_SECRET"`
	KakaoClientID        string   `env:"TRIPAUTH_KAKAO_CLIENT_ID"`
	KakaoClientSecret    string   `env:"TRIPAUTH_KAKAO_CLIENT_SECRET"`

	// PurgeSchedule is a robfig/cron spec for the deleted-member purge.
	PurgeSchedule string `env:"TRIPAUTH_PURGE_SCHEDULE" envDefault:"0 4 * * *"`

	MetricsEnabled bool `env:"TRIPAUTH_METRICS_ENABLED" envDefault:"true"`
	AuditEnabled   bool `env:"TRIPAUTH_AUDIT_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Server from the process environment.
func Load() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// LoadFrom parses Server from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (s *Server) normalize() {
	s.CORSOrigins = trimCSV(s.CORSOrigins)
	s.OAuthRedirectHosts = trimCSV(s.OAuthRedirectHosts)
	s.APIPrefix = "/" + strings.Trim(s.APIPrefix, "/")
	if s.APIPrefix == "/" {
		s.APIPrefix = ""
	}
	s.OAuthCallbackBase = strings.TrimRight(s.OAuthCallbackBase, "/")
}

// AuthConfig projects the process configuration onto the engine config.
func (s Server) AuthConfig() tripAuth.Config {
	cfg := tripAuth.DefaultConfig()

	cfg.JWT.PrivateKey = []byte(s.JWTSecret)
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.AccessTTL = s.AccessTTL
	cfg.JWT.RefreshTTL = s.RefreshTTL
	cfg.JWT.DeletedAccessTTL = s.DeletedAccessTTL
	cfg.JWT.DeletedRefreshTTL = s.DeletedRefreshTTL
	cfg.JWT.RefreshRenewalRatio = s.RenewalRatio

	cfg.Registry.OperationTimeout = s.RegistryTimeout

	cfg.Account.RestoreWindow = s.RestoreWindow
	cfg.Account.RequireVerified = s.RequireVerified

	cfg.Security.MaxLoginAttempts = s.LoginMaxAttempts
	cfg.Security.LoginCooldownDuration = s.LoginCooldown
	cfg.Security.EnableIPThrottle = s.IPThrottle

	cfg.Cookie.Domain = s.CookieDomain

	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled
	cfg.Audit.Enabled = s.AuditEnabled

	return cfg
}

// OAuthProviders returns a provider for every client id that is set.
func (s Server) OAuthProviders() []*oauth.Provider {
	callback := func(name string) string {
		return s.OAuthCallbackBase + "/login/oauth2/code/" + name
	}

	var out []*oauth.Provider
	if s.GoogleClientID != "" {
		out = append(out, oauth.NewGoogle(oauth.ProviderConfig{
			ClientID: s.GoogleClientID, ClientSecret: s.GoogleClientSecret, RedirectURL: callback("google"),
		}))
	}
	if s.NaverClientID != "" {
		out = append(out, oauth.NewNaver(oauth.ProviderConfig{
			ClientID: s.NaverClientID, ClientSecret: s.NaverClientSecret, RedirectURL: callback("naver"),
		}))
	}
	if s.KakaoClientID != "" {
		out = append(out, oauth.NewKakao(oauth.ProviderConfig{
			ClientID: s.KakaoClientID, ClientSecret: s.KakaoClientSecret, RedirectURL: callback("kakao"),
		}))
	}
	return out
}

// OAuthBridgeConfig returns the redirect policy of the federated bridge.
func (s Server) OAuthBridgeConfig() oauth.Config {
	return oauth.Config{
		DefaultRedirect:      s.OAuthDefaultRedirect,
		AllowedRedirectHosts: s.OAuthRedirectHosts,
	}
}

func trimCSV(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

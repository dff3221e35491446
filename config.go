package tripAuth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/tripAuth/password"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what differs.
type Config struct {
	JWT          JWTConfig
	Registry     RegistryConfig
	Account      AccountConfig
	Security     SecurityConfig
	Cookie       CookieConfig
	DeletionGate DeletionGateConfig
	Password     password.Config
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes. Deleted-but-restorable
// members get the shorter Deleted* lifetimes.
type JWTConfig struct {
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	DeletedAccessTTL  time.Duration
	DeletedRefreshTTL time.Duration

	// RefreshRenewalRatio reissues the refresh token on refresh once less
	// than this fraction of its lifetime remains.
	RefreshRenewalRatio float64

	SigningMethod string // "hs512" (default), "hs256", "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// KeyID is stamped into the kid header. VerifyKeys, when set, selects
	// the verification key by kid so older keys keep verifying during a
	// rotation.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
REGISTRY CONFIG
====================================
*/

// RegistryConfig controls the shared token registry.
type RegistryConfig struct {
	AccessPrefix    string
	RefreshPrefix   string
	BlacklistPrefix string

	// OperationTimeout bounds every registry round-trip. A timeout is
	// treated as the registry being unavailable.
	OperationTimeout time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls member-state policy.
type AccountConfig struct {
	// RestoreWindow is how long a soft-deleted member may still log in and restore.
	RestoreWindow   time.Duration
	RequireVerified bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls failed-login throttling.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the token cookies. Domain and Secure are applied
// only when the request host is not a loopback address.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Path        string
	Domain      string
	SameSite    http.SameSite
}

/*
====================================
DELETION GATE CONFIG
====================================
*/

// DeletionGateConfig lists the path suffixes a soft-deleted member may still reach.
type DeletionGateConfig struct {
	AllowedSuffixes []string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. A signing key must still
// be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:           30 * time.Minute,
			RefreshTTL:          7 * 24 * time.Hour,
			DeletedAccessTTL:    10 * time.Minute,
			DeletedRefreshTTL:   24 * time.Hour,
			RefreshRenewalRatio: 0.3,
			SigningMethod:       "hs512",
		},
		Registry: RegistryConfig{
			AccessPrefix:     "access:",
			RefreshPrefix:    "refresh:",
			BlacklistPrefix:  "blacklist:",
			OperationTimeout: 500 * time.Millisecond,
		},
		Account: AccountConfig{
			RestoreWindow:   30 * 24 * time.Hour,
			RequireVerified: true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Cookie: CookieConfig{
			AccessName:  "accessToken",
			RefreshName: "refreshToken",
			Path:        "/",
			SameSite:    http.SameSiteLaxMode,
		},
		DeletionGate: DeletionGateConfig{
			AllowedSuffixes: []string{"member/restore", "member/login", "member/logout"},
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = slices.Clone(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = slices.Clone(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = slices.Clone(key)
		}
	}
	out.DeletionGate.AllowedSuffixes = slices.Clone(cfg.DeletionGate.AllowedSuffixes)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT AccessTTL and RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.DeletedAccessTTL <= 0 || c.JWT.DeletedRefreshTTL <= 0 {
		return errors.New("JWT DeletedAccessTTL and DeletedRefreshTTL must be > 0")
	}
	if c.JWT.DeletedAccessTTL > c.JWT.AccessTTL || c.JWT.DeletedRefreshTTL > c.JWT.RefreshTTL {
		return errors.New("JWT deleted-account lifetimes must not exceed the normal lifetimes")
	}
	if c.JWT.RefreshRenewalRatio <= 0 || c.JWT.RefreshRenewalRatio >= 1 {
		return errors.New("JWT RefreshRenewalRatio must be in (0,1)")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be in [0,2m]")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "hs512", "ed25519":
	default:
		return fmt.Errorf("JWT SigningMethod %q is not supported", c.JWT.SigningMethod)
	}

	// Registry
	if c.Registry.AccessPrefix == "" || c.Registry.RefreshPrefix == "" || c.Registry.BlacklistPrefix == "" {
		return errors.New("Registry key prefixes must be set")
	}
	if c.Registry.OperationTimeout <= 0 {
		return errors.New("Registry OperationTimeout must be > 0")
	}

	// Account
	if c.Account.RestoreWindow <= 0 {
		return errors.New("Account RestoreWindow must be > 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when throttling is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0 when throttling is enabled")
		}
	}

	// Cookie
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		return errors.New("Cookie AccessName and RefreshName must be set")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("Cookie AccessName and RefreshName must differ")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

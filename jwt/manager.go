package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired reports a token whose signature is valid but whose exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed reports a token that is structurally broken or carries a bad signature.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalid reports any other rejection (purpose, issuer, audience, missing subject).
	ErrInvalid = errors.New("token invalid")
)

// SigningMethod selects the JWS algorithm used by a Manager.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodHS512   SigningMethod = "hs512"
	MethodEd25519 SigningMethod = "ed25519"
)

// Purpose separates access tokens from refresh tokens so neither can stand in
// for the other.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// Config configures a Manager. For the HMAC methods PrivateKey holds the
// shared secret; for Ed25519 it holds the private key and PublicKey (or
// VerifyKeys) the verification key(s).
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the wall clock for issuance and expiry checks.
	Now func() time.Time
}

// Subject is the identity a token is minted for.
type Subject struct {
	Username string
	Role     string
	Verified bool
	Deleted  bool

	// Session ties an access token to the refresh slot it was minted
	// alongside. It stays fixed across refreshes of one login.
	Session string
}

// Claims is the signed payload. The username travels as the registered
// subject; Deleted reflects the member state at the moment of signing only.
type Claims struct {
	Role     string  `json:"authority"`
	Verified bool    `json:"verified"`
	Deleted  bool    `json:"deleted,omitempty"`
	Purpose  Purpose `json:"purpose"`
	Session  string  `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Username returns the token subject.
func (c *Claims) Username() string {
	return c.Subject
}

// Remaining returns how long the token stays valid after now, or zero.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Lifetime returns exp - iat, or zero when either is missing.
func (c *Claims) Lifetime() time.Duration {
	if c == nil || c.ExpiresAt == nil || c.IssuedAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(c.IssuedAt.Time)
}

// Manager signs and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256, MethodHS512:
		if len(cfg.PrivateKey) < 32 {
			return nil, fmt.Errorf("%s requires a secret of at least 32 bytes", cfg.SigningMethod)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token for sub with the given purpose, valid for ttl.
func (m *Manager) Issue(sub Subject, purpose Purpose, ttl time.Duration) (string, error) {
	if sub.Username == "" {
		return "", errors.New("token subject is empty")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	if purpose != PurposeAccess && purpose != PurposeRefresh {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := m.config.Now()
	claims := Claims{
		Role:     sub.Role,
		Verified: sub.Verified,
		Deleted:  sub.Deleted,
		Purpose:  purpose,
		Session:  sub.Session,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Username,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

// Parse verifies tokenStr and returns its claims. The error wraps exactly one
// of ErrExpired, ErrMalformed or ErrInvalid.
func (m *Manager) Parse(tokenStr string, purpose Purpose) (*Claims, error) {
	options := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}
	claims, err := m.parse(tokenStr, options...)
	if err != nil {
		return nil, err
	}
	if err := checkClaims(claims, purpose); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseAllowExpired verifies the signature and structure of tokenStr but
// tolerates an exp in the past. Refresh and logout use it.
func (m *Manager) ParseAllowExpired(tokenStr string, purpose Purpose) (*Claims, error) {
	claims, err := m.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalid)
	}
	if m.config.Issuer != "" && claims.Issuer != m.config.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}
	if m.config.Audience != "" && !slices.Contains(claims.Audience, m.config.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}
	if err := checkClaims(claims, purpose); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string, extra ...jwt.ParserOption) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	options = append(options, extra...)

	claims := &Claims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, m.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.verifyKeyFromBytes(key)
	}
	if m.config.KeyID != "" {
		if kid, _ := t.Header["kid"].(string); kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.verifyKey()
}

func checkClaims(claims *Claims, purpose Purpose) error {
	if claims.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	if claims.Purpose != purpose {
		return fmt.Errorf("%w: expected %s token, got %q", ErrInvalid, purpose, claims.Purpose)
	}
	return nil
}

// classify folds golang-jwt's error set into the three codec outcomes.
// Expiry is only reported after the signature verified.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	case MethodHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(m.config.PrivateKey)
	}
	return m.config.PrivateKey, nil
}

func (m *Manager) verifyKey() (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(m.config.PublicKey)
	}
	return m.config.PrivateKey, nil
}

func (m *Manager) verifyKeyFromBytes(key []byte) (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(key)
	}
	return key, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

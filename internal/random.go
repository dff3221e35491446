package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const stateRawSize = 32

// NewState returns a base64url encoded random value for OAuth state
// parameters and similar single-use nonces.
func NewState() (string, error) {
	return NewOpaque(stateRawSize)
}

// NewOpaque returns n random bytes, base64url encoded without padding.
func NewOpaque(n int) (string, error) {
	if n < 16 {
		return "", errors.New("opaque value must be at least 16 bytes")
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// EqualDigest compares a and b through their sha256 digests, so the time
// taken does not depend on where they differ or on their lengths.
func EqualDigest(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

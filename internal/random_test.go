package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewStateIsRandomAndURLSafe(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	b, err := NewState()
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct states")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil || len(raw) != stateRawSize {
		t.Fatalf("expected %d raw bytes, got %d (%v)", stateRawSize, len(raw), err)
	}
}

func TestNewOpaqueRejectsShortLength(t *testing.T) {
	if _, err := NewOpaque(8); err == nil {
		t.Fatal("expected short opaque value to be rejected")
	}
}

func TestEqualDigest(t *testing.T) {
	if !EqualDigest("abc", "abc") {
		t.Fatal("expected equal values to match")
	}
	if EqualDigest("abc", "abd") || EqualDigest("abc", "") {
		t.Fatal("expected different values not to match")
	}
}

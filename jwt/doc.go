// Package jwt issues and verifies the signed, expiring tokens that carry a
// member's identity claims (username, role, verified, deleted, purpose).
//
// Parse distinguishes three failure classes so callers can surface different
// messages: [ErrExpired] (signature valid, exp passed), [ErrMalformed]
// (structure or signature broken) and [ErrInvalid] (everything else).
//
// # What this package must NOT do
//
//   - Perform I/O or consult revocation state; that belongs to the registry.
//   - Trust a token's deleted flag as live state.
package jwt

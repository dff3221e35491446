package tripAuth

import "errors"

// Authentication outcomes. Every failure the engine returns wraps exactly one
// of these; the HTTP layer maps them to a status and a stable code.
var (
	// ErrUnauthenticated means no usable credential was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned by Login for both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMalformed reports a token with a broken structure or signature.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired reports a well-formed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked reports a blacklisted token.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrRegistryMismatch reports a valid token that is no longer the user's active one.
	ErrRegistryMismatch = errors.New("token superseded")
	// ErrAccountUnverified reports a member whose email is not confirmed.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountDeleted reports a soft-deleted member outside the allow-listed endpoints.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrAccountPurged reports a member deleted beyond the restore window.
	ErrAccountPurged = errors.New("account permanently deleted")
	// ErrForbidden reports an authenticated caller lacking the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrRegistryUnavailable reports that the shared token registry could not be reached. It always fails closed.
	ErrRegistryUnavailable = errors.New("token registry unavailable")
	// ErrLoginRateLimited reports too many failed logins in the current window.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMemberNotFound is returned by MemberProvider implementations for unknown usernames.
	ErrMemberNotFound = errors.New("member not found")
	// ErrRestoreNotAllowed reports a restore request for an account that is not deleted or past its window.
	ErrRestoreNotAllowed = errors.New("account cannot be restored")
	// ErrInvalidRequest reports a request body or parameter that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrOAuthState reports a federated callback whose state does not match the one issued at start.
	ErrOAuthState = errors.New("invalid oauth state")
	// ErrOAuthExchange reports a failed code exchange or profile fetch with the identity provider.
	ErrOAuthExchange = errors.New("federated login failed")
	// ErrEngineNotReady is returned when an Engine was not built through Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)

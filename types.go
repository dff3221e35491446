package tripAuth

import (
	"context"
	"time"
)

// Role is the closed set of member authorities.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Authority returns the request-scoped grant derived from r, e.g. ROLE_ADMIN.
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// Member is the identity record owned by the domain layer. The engine only
// reads it.
type Member struct {
	Username     string
	PasswordHash string
	Role         Role
	Verified     bool
	Deleted      bool
	DeletedAt    time.Time

	Email        string
	Nickname     string
	ProfileImage string
	Provider     string
	ProviderID   string
	CreatedAt    time.Time
}

// CanBeRestored reports whether a soft-deleted member is still inside the
// restore window at now.
func (m Member) CanBeRestored(now time.Time, window time.Duration) bool {
	if !m.Deleted || m.DeletedAt.IsZero() {
		return false
	}
	return now.Before(m.DeletedAt.Add(window))
}

// FederatedMember describes a member provisioned from a third-party login.
type FederatedMember struct {
	Username     string
	Email        string
	Nickname     string
	ProfileImage string
	Provider     string
	ProviderID   string
	PasswordHash string
}

// MemberProvider is the domain-layer contract the engine consumes.
type MemberProvider interface {
	// GetMemberByUsername returns ErrMemberNotFound for unknown usernames.
	GetMemberByUsername(ctx context.Context, username string) (Member, error)
	// FindOrCreateFederated returns the existing member for fm.Username, or
	// creates one with role USER and verified=true.
	FindOrCreateFederated(ctx context.Context, fm FederatedMember) (Member, error)
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Username string
	Role     Role
	Verified bool
	Deleted  bool
}

// Authority returns the single role grant for the request.
func (i Identity) Authority() string {
	return i.Role.Authority()
}

// LoginResult carries a freshly minted token pair. RefreshToken is empty
// after a refresh that did not renew it. The TTLs drive cookie Max-Age.
type LoginResult struct {
	Username       string
	AccessToken    string
	RefreshToken   string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RefreshRenewed bool
	Deleted        bool
	Role           Role
}

// PasswordHashUpdater is optionally implemented by a MemberProvider. When
// present, login rehashes passwords stored with outdated argon2 parameters.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, username, hash string) error
}

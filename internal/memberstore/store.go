// Package memberstore persists tripfriend members. The engine consumes it
// through tripAuth.MemberProvider; the HTTP layer uses the write side for
// restore, soft delete and the scheduled purge.
package memberstore

import (
	"context"
	"errors"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
)

// ErrDuplicateMember is returned by Create when the username is taken.
var ErrDuplicateMember = errors.New("member already exists")

// Store is the full member repository.
type Store interface {
	tripAuth.MemberProvider
	tripAuth.PasswordHashUpdater

	Create(ctx context.Context, m tripAuth.Member) error
	SoftDelete(ctx context.Context, username string, at time.Time) error
	Restore(ctx context.Context, username string) error
	// PurgeDeletedBefore hard-deletes members soft-deleted before cutoff and
	// returns how many rows went.
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListMembers(ctx context.Context) ([]tripAuth.Member, error)
}

func normalizeNew(m tripAuth.Member, now time.Time) tripAuth.Member {
	if m.Role == "" {
		m.Role = tripAuth.RoleUser
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return m
}

func federatedToMember(fm tripAuth.FederatedMember) tripAuth.Member {
	return tripAuth.Member{
		Username:     fm.Username,
		PasswordHash: fm.PasswordHash,
		Role:         tripAuth.RoleUser,
		Verified:     true,
		Email:        fm.Email,
		Nickname:     fm.Nickname,
		ProfileImage: fm.ProfileImage,
		Provider:     fm.Provider,
		ProviderID:   fm.ProviderID,
	}
}

package memberstore

import (
	"context"
	"testing"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newMemory(t *testing.T) *Memory {
	t.Helper()
	s := NewMemory(func() time.Time { return fixedNow })
	require.NoError(t, s.Create(context.Background(), tripAuth.Member{
		Username: "alice", PasswordHash: "hash-a", Verified: true,
	}))
	require.NoError(t, s.Create(context.Background(), tripAuth.Member{
		Username: "admin", PasswordHash: "hash-b", Role: tripAuth.RoleAdmin, Verified: true,
	}))
	return s
}

func TestMemoryCreateAndGet(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()

	m, err := s.GetMemberByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, tripAuth.RoleUser, m.Role)
	assert.Equal(t, fixedNow, m.CreatedAt)

	_, err = s.GetMemberByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, tripAuth.ErrMemberNotFound)

	assert.ErrorIs(t, s.Create(ctx, tripAuth.Member{Username: "alice"}), ErrDuplicateMember)
	assert.Error(t, s.Create(ctx, tripAuth.Member{}))
}

func TestMemoryFindOrCreateFederatedIsIdempotent(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()
	fm := tripAuth.FederatedMember{
		Username: "kakao_42", Email: "k@example.com", Nickname: "kay",
		Provider: "kakao", ProviderID: "42", PasswordHash: "first",
	}

	first, err := s.FindOrCreateFederated(ctx, fm)
	require.NoError(t, err)
	assert.Equal(t, tripAuth.RoleUser, first.Role)
	assert.True(t, first.Verified)
	assert.Equal(t, "kakao", first.Provider)

	fm.PasswordHash = "second"
	fm.Nickname = "renamed"
	again, err := s.FindOrCreateFederated(ctx, fm)
	require.NoError(t, err)
	assert.Equal(t, "first", again.PasswordHash)
	assert.Equal(t, "kay", again.Nickname)
}

func TestMemorySoftDeleteRestoreAndPurge(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()
	deletedAt := fixedNow.Add(-40 * 24 * time.Hour)

	require.NoError(t, s.SoftDelete(ctx, "alice", deletedAt))
	m, err := s.GetMemberByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, m.Deleted)
	assert.Equal(t, deletedAt, m.DeletedAt)

	require.NoError(t, s.Restore(ctx, "alice"))
	m, err = s.GetMemberByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, m.Deleted)
	assert.True(t, m.DeletedAt.IsZero())

	require.NoError(t, s.SoftDelete(ctx, "alice", deletedAt))
	require.NoError(t, s.SoftDelete(ctx, "admin", fixedNow.Add(-time.Hour)))

	n, err := s.PurgeDeletedBefore(ctx, fixedNow.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.GetMemberByUsername(ctx, "alice")
	assert.ErrorIs(t, err, tripAuth.ErrMemberNotFound)
	_, err = s.GetMemberByUsername(ctx, "admin")
	assert.NoError(t, err)

	assert.ErrorIs(t, s.SoftDelete(ctx, "ghost", fixedNow), tripAuth.ErrMemberNotFound)
	assert.ErrorIs(t, s.Restore(ctx, "ghost"), tripAuth.ErrMemberNotFound)
}

func TestMemoryUpdatePasswordHashAndList(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()

	require.NoError(t, s.UpdatePasswordHash(ctx, "alice", "rehashed"))
	m, err := s.GetMemberByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "rehashed", m.PasswordHash)
	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, "ghost", "x"), tripAuth.ErrMemberNotFound)

	all, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "admin", all[0].Username)
	assert.Equal(t, "alice", all[1].Username)
}

func TestEmbeddedMigrations(t *testing.T) {
	source, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer source.Close()

	version, err := source.First()
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
}

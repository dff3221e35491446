package memberstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	members map[string]tripAuth.Member
	now     func() time.Time
}

// NewMemory returns an empty store. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{members: make(map[string]tripAuth.Member), now: now}
}

func (s *Memory) GetMemberByUsername(_ context.Context, username string) (tripAuth.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[username]
	if !ok {
		return tripAuth.Member{}, tripAuth.ErrMemberNotFound
	}
	return m, nil
}

func (s *Memory) FindOrCreateFederated(_ context.Context, fm tripAuth.FederatedMember) (tripAuth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[fm.Username]; ok {
		return m, nil
	}
	m := normalizeNew(federatedToMember(fm), s.now())
	s.members[m.Username] = m
	return m, nil
}

func (s *Memory) UpdatePasswordHash(_ context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[username]
	if !ok {
		return tripAuth.ErrMemberNotFound
	}
	m.PasswordHash = hash
	s.members[username] = m
	return nil
}

func (s *Memory) Create(_ context.Context, m tripAuth.Member) error {
	if m.Username == "" {
		return fmt.Errorf("create member: empty username")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.Username]; ok {
		return ErrDuplicateMember
	}
	s.members[m.Username] = normalizeNew(m, s.now())
	return nil
}

func (s *Memory) SoftDelete(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[username]
	if !ok {
		return tripAuth.ErrMemberNotFound
	}
	m.Deleted = true
	m.DeletedAt = at
	s.members[username] = m
	return nil
}

func (s *Memory) Restore(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[username]
	if !ok {
		return tripAuth.ErrMemberNotFound
	}
	m.Deleted = false
	m.DeletedAt = time.Time{}
	s.members[username] = m
	return nil
}

func (s *Memory) PurgeDeletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for name, m := range s.members {
		if m.Deleted && !m.DeletedAt.IsZero() && m.DeletedAt.Before(cutoff) {
			delete(s.members, name)
			n++
		}
	}
	return n, nil
}

func (s *Memory) ListMembers(_ context.Context) ([]tripAuth.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tripAuth.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

var _ Store = (*Memory)(nil)

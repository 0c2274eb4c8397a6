package submission

import (
	"context"
	"fmt"
	"sync"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

// InMemoryStore keeps evidence snapshots in memory for tests and development.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[id.VerificationID][]*Submission
}

// NewInMemoryStore constructs an empty in-memory submission store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{submissions: make(map[id.VerificationID][]*Submission)}
}

func (s *InMemoryStore) Create(_ context.Context, sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.submissions[sub.VerificationID]
	sub.Version = len(existing) + 1
	clone := *sub
	s.submissions[sub.VerificationID] = append(existing, &clone)
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, verificationID id.VerificationID) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshots := s.submissions[verificationID]
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("submissions for verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	clone := *snapshots[len(snapshots)-1]
	return &clone, nil
}

func (s *InMemoryStore) ListByVerification(_ context.Context, verificationID id.VerificationID) ([]*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshots := s.submissions[verificationID]
	out := make([]*Submission, 0, len(snapshots))
	for _, snap := range snapshots {
		clone := *snap
		out = append(out, &clone)
	}
	return out, nil
}

package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"verilink/internal/rejection"
	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

// InMemoryStore keeps verification records in memory for tests and
// development. All guards run under one mutex, giving the same
// compare-and-swap observable behavior as the SQL store.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.VerificationID]*Verification
	byToken map[string]id.VerificationID
}

// NewInMemoryStore constructs an empty in-memory verification store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.VerificationID]*Verification),
		byToken: make(map[string]id.VerificationID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, v *Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[v.ID]; exists {
		return fmt.Errorf("verification %s: %w", v.ID, sentinel.ErrConflict)
	}
	// Tokenless records (workload fixtures, imports) skip the token index.
	if v.LinkToken != "" {
		if _, exists := s.byToken[v.LinkToken]; exists {
			return fmt.Errorf("link token already issued: %w", sentinel.ErrConflict)
		}
		s.byToken[v.LinkToken] = v.ID
	}
	s.byID[v.ID] = cloneVerification(v)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, verificationID id.VerificationID) (*Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return nil, fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	return cloneVerification(v), nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, linkToken string) (*Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verificationID, ok := s.byToken[linkToken]
	if !ok {
		return nil, fmt.Errorf("link token: %w", sentinel.ErrNotFound)
	}
	return cloneVerification(s.byID[verificationID]), nil
}

func (s *InMemoryStore) ListByVerifier(_ context.Context, verifierID id.VerifierID) ([]*Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var assigned []*Verification
	for _, v := range s.byID {
		if v.AssignedVerifierID != nil && *v.AssignedVerifierID == verifierID {
			assigned = append(assigned, cloneVerification(v))
		}
	}
	return assigned, nil
}

func (s *InMemoryStore) CountActive(_ context.Context, businessID id.BusinessID) (map[id.VerifierID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.VerifierID]int)
	for _, v := range s.byID {
		if v.BusinessID != businessID || v.AssignedVerifierID == nil {
			continue
		}
		if v.Status.ConsumesAttention() {
			counts[*v.AssignedVerifierID]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) AttachVerifierIfUnassigned(_ context.Context, verificationID id.VerificationID, verifierID id.VerifierID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	if v.AssignedVerifierID != nil {
		return fmt.Errorf("verification %s already assigned: %w", verificationID, sentinel.ErrConflict)
	}
	attached := verifierID
	v.AssignedVerifierID = &attached
	v.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) ClearVerifier(_ context.Context, verificationID id.VerificationID, expected id.VerifierID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	if v.AssignedVerifierID == nil || *v.AssignedVerifierID != expected {
		return fmt.Errorf("verification %s assignment changed: %w", verificationID, sentinel.ErrConflict)
	}
	v.AssignedVerifierID = nil
	v.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) MarkFirstAccess(_ context.Context, verificationID id.VerificationID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	if v.LinkAccessedAt != nil || v.Status != StatusPending {
		return fmt.Errorf("verification %s first access already recorded: %w", verificationID, sentinel.ErrConflict)
	}
	accessedAt := at
	v.LinkAccessedAt = &accessedAt
	v.Status = StatusInProgress
	v.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) TransitionStatus(_ context.Context, verificationID id.VerificationID, from, to Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	if v.Status != from {
		return fmt.Errorf("verification %s is %s, not %s: %w", verificationID, v.Status, from, sentinel.ErrConflict)
	}
	v.Status = to
	v.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) ApplyRejection(_ context.Context, verificationID id.VerificationID, to Status, merged rejection.Feedback, expectedCount int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	if v.Status != StatusSubmitted || v.RejectionCount != expectedCount {
		return fmt.Errorf("verification %s moved since decision was read: %w", verificationID, sentinel.ErrConflict)
	}
	v.Status = to
	v.RejectionReason = merged
	v.RejectionCount = expectedCount + 1
	v.UpdatedAt = at
	return nil
}

func cloneVerification(v *Verification) *Verification {
	clone := *v
	if v.AssignedVerifierID != nil {
		verifierID := *v.AssignedVerifierID
		clone.AssignedVerifierID = &verifierID
	}
	if v.LinkAccessedAt != nil {
		accessedAt := *v.LinkAccessedAt
		clone.LinkAccessedAt = &accessedAt
	}
	if v.PropertyCoordinates != nil {
		coords := *v.PropertyCoordinates
		clone.PropertyCoordinates = &coords
	}
	if v.PrefillData != nil {
		clone.PrefillData = make(map[string]string, len(v.PrefillData))
		for k, val := range v.PrefillData {
			clone.PrefillData[k] = val
		}
	}
	clone.RejectionReason = rejection.Merge(nil, v.RejectionReason)
	return &clone
}

package verifier

import (
	"context"
	"fmt"
	"sync"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

// InMemoryStore keeps verifiers in memory for tests and development.
type InMemoryStore struct {
	mu        sync.RWMutex
	verifiers map[id.VerifierID]*Verifier
}

// NewInMemoryStore constructs an empty in-memory verifier store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{verifiers: make(map[id.VerifierID]*Verifier)}
}

func (s *InMemoryStore) Create(_ context.Context, v *Verifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.verifiers[v.ID]; exists {
		return fmt.Errorf("verifier %s: %w", v.ID, sentinel.ErrConflict)
	}
	clone := *v
	s.verifiers[v.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, verifierID id.VerifierID) (*Verifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verifiers[verifierID]
	if !ok {
		return nil, fmt.Errorf("verifier %s: %w", verifierID, sentinel.ErrNotFound)
	}
	clone := *v
	return &clone, nil
}

func (s *InMemoryStore) ListEligible(_ context.Context, businessID id.BusinessID, policyType id.PolicyType) ([]*Verifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var eligible []*Verifier
	for _, v := range s.verifiers {
		if v.EligibleFor(businessID, policyType) {
			clone := *v
			eligible = append(eligible, &clone)
		}
	}
	return eligible, nil
}

func (s *InMemoryStore) SetActive(_ context.Context, verifierID id.VerifierID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifiers[verifierID]
	if !ok {
		return fmt.Errorf("verifier %s: %w", verifierID, sentinel.ErrNotFound)
	}
	v.IsActive = active
	return nil
}

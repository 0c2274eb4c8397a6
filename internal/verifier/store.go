package verifier

import (
	"context"

	id "verilink/pkg/domain"
)

// Store is the read surface the assignment selector needs plus the writes the
// admin collaborator performs.
type Store interface {
	Create(ctx context.Context, v *Verifier) error
	FindByID(ctx context.Context, verifierID id.VerifierID) (*Verifier, error)
	// ListEligible returns active verifiers of the business whose
	// specialization is nil or matches the policy type.
	ListEligible(ctx context.Context, businessID id.BusinessID, policyType id.PolicyType) ([]*Verifier, error)
	SetActive(ctx context.Context, verifierID id.VerifierID, active bool) error
}

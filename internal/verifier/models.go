// Package verifier holds the staff reviewer model. Verifiers are created and
// mutated by admin tooling elsewhere; the engine only reads them to compute
// assignment eligibility.
package verifier

import (
	"time"

	id "verilink/pkg/domain"
)

// Verifier is a staff member who reviews submitted evidence.
type Verifier struct {
	ID         id.VerifierID
	BusinessID id.BusinessID
	Name       string
	Email      string

	// Specialization restricts which policy types this verifier reviews.
	// nil means generalist: eligible for any policy type.
	Specialization *id.PolicyType

	IsActive  bool
	CreatedAt time.Time
}

// EligibleFor reports whether this verifier may be assigned a verification of
// the given policy type within the given business.
func (v Verifier) EligibleFor(businessID id.BusinessID, policyType id.PolicyType) bool {
	if !v.IsActive || v.BusinessID != businessID {
		return false
	}
	return v.Specialization == nil || *v.Specialization == policyType
}

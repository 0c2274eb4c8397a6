package verification

import (
	"context"
	"time"

	"verilink/internal/rejection"
	id "verilink/pkg/domain"
)

// Store persists verification records. Every mutating method is a guarded
// compare-and-swap: the update applies only if the record still holds the
// caller's expected pre-transition value, and a failed guard surfaces as
// sentinel.ErrConflict so the caller re-reads instead of blindly retrying.
//
// Error contract:
//   - sentinel.ErrNotFound when the record does not exist
//   - sentinel.ErrConflict when a guard failed (another writer moved first)
//   - wrapped infrastructure errors otherwise
type Store interface {
	Create(ctx context.Context, v *Verification) error
	FindByID(ctx context.Context, verificationID id.VerificationID) (*Verification, error)
	FindByToken(ctx context.Context, linkToken string) (*Verification, error)
	ListByVerifier(ctx context.Context, verifierID id.VerifierID) ([]*Verification, error)

	// CountActive returns per-verifier counts of records consuming reviewer
	// attention (pending/in_progress), scoped to one business.
	CountActive(ctx context.Context, businessID id.BusinessID) (map[id.VerifierID]int, error)

	// AttachVerifierIfUnassigned sets the assigned verifier only while the
	// slot is still empty.
	AttachVerifierIfUnassigned(ctx context.Context, verificationID id.VerificationID, verifierID id.VerifierID, at time.Time) error

	// ClearVerifier empties the assignment slot only while it still holds the
	// expected verifier, making room for reassignment.
	ClearVerifier(ctx context.Context, verificationID id.VerificationID, expected id.VerifierID, at time.Time) error

	// MarkFirstAccess stamps link_accessed_at and flips pending to
	// in_progress in one atomic set-if-null step.
	MarkFirstAccess(ctx context.Context, verificationID id.VerificationID, at time.Time) error

	// TransitionStatus swaps status only while it still equals from.
	TransitionStatus(ctx context.Context, verificationID id.VerificationID, from, to Status, at time.Time) error

	// ApplyRejection transitions submitted to the rejection outcome and
	// advances the rejection bookkeeping, guarded by the pre-event count so a
	// double-submitted decision can never double-increment.
	ApplyRejection(ctx context.Context, verificationID id.VerificationID, to Status, merged rejection.Feedback, expectedCount int, at time.Time) error
}

package submission

import (
	"context"

	id "verilink/pkg/domain"
)

// Store persists evidence snapshots.
//
// Error contract: sentinel.ErrNotFound when no snapshot exists; wrapped
// infrastructure errors otherwise.
type Store interface {
	// Create persists a snapshot, assigning the next version for its
	// verification.
	Create(ctx context.Context, sub *Submission) error
	// Latest returns the highest-version snapshot for a verification.
	Latest(ctx context.Context, verificationID id.VerificationID) (*Submission, error)
	// ListByVerification returns all snapshots, oldest first.
	ListByVerification(ctx context.Context, verificationID id.VerificationID) ([]*Submission, error)
}

package token

import (
	"context"
	"time"

	id "verilink/pkg/domain"
)

// Cache maps link tokens to verification IDs with a TTL matching the link
// window. A miss is not an error condition for callers: they fall through to
// the verification store.
//
// Error contract: sentinel.ErrNotFound on miss; wrapped infrastructure errors
// otherwise.
type Cache interface {
	Put(ctx context.Context, linkToken string, verificationID id.VerificationID, ttl time.Duration) error
	Lookup(ctx context.Context, linkToken string) (id.VerificationID, error)
}

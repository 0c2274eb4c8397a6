// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets domain code import only what it needs. Tests inject values
// directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithRequestID(ctx, "req-123")
package requestcontext

import (
	"context"
	"time"

	id "verilink/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	verifierIDKey  struct{}
	businessIDKey  struct{}
	clientIPKey    struct{}
)

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() outside an HTTP request (workers, CLI). Every guard in the
// lifecycle engine evaluates expiry against this single timestamp so one
// request never observes two different clocks.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into a context. Used by middleware at request
// start and by tests that pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// VerifierID retrieves the authenticated staff verifier ID, zero when the
// request is unauthenticated (customer link access).
func VerifierID(ctx context.Context) id.VerifierID {
	if v, ok := ctx.Value(verifierIDKey{}).(id.VerifierID); ok {
		return v
	}
	return id.VerifierID{}
}

// WithVerifierID injects the authenticated verifier identity.
func WithVerifierID(ctx context.Context, verifierID id.VerifierID) context.Context {
	return context.WithValue(ctx, verifierIDKey{}, verifierID)
}

// BusinessID retrieves the authenticated staff member's business scope.
func BusinessID(ctx context.Context) id.BusinessID {
	if b, ok := ctx.Value(businessIDKey{}).(id.BusinessID); ok {
		return b
	}
	return id.BusinessID{}
}

// WithBusinessID injects the authenticated business scope.
func WithBusinessID(ctx context.Context, businessID id.BusinessID) context.Context {
	return context.WithValue(ctx, businessIDKey{}, businessID)
}

// ClientIP retrieves the client IP recorded by middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

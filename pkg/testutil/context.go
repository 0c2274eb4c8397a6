// Package testutil provides request helpers shared by handler tests. They
// simulate what the auth and clock middleware would put on a real request.
package testutil

import (
	"net/http"
	"time"

	id "verilink/pkg/domain"
	"verilink/pkg/requestcontext"
)

// WithBusiness pins the request to an authenticated business scope.
func WithBusiness(req *http.Request, businessID id.BusinessID) *http.Request {
	return req.WithContext(requestcontext.WithBusinessID(req.Context(), businessID))
}

// WithVerifier pins the request to an authenticated verifier.
func WithVerifier(req *http.Request, verifierID id.VerifierID) *http.Request {
	return req.WithContext(requestcontext.WithVerifierID(req.Context(), verifierID))
}

// WithClock pins the request clock so expiry assertions are deterministic.
func WithClock(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

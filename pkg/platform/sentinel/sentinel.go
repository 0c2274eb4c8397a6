package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors without parsing
// messages.
//
// These represent factual states about stored records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a concurrent writer already moved the record (CAS guard failed)
// - ErrExpired: link token past its expiry window
// - ErrAlreadyUsed: one-shot resource (first-access stamp) already consumed
// - ErrInvalidState: record in the wrong status for the requested transition
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

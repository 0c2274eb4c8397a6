// Package domain holds the typed identifiers and shared enums used across the
// verification engine. IDs are distinct named types over uuid.UUID so a
// VerifierID can never be passed where a VerificationID is expected; parsing
// happens once at trust boundaries and everything past a handler works with
// typed values.
package domain

import (
	"github.com/google/uuid"

	dErrors "verilink/pkg/domain-errors"
)

type (
	// BusinessID identifies the tenant business that owns policies and staff.
	BusinessID uuid.UUID
	// PolicyID identifies an insurance policy a verification is issued against.
	PolicyID uuid.UUID
	// VerifierID identifies a staff reviewer.
	VerifierID uuid.UUID
	// VerificationID identifies one customer verification task.
	VerificationID uuid.UUID
	// SubmissionID identifies one evidence snapshot.
	SubmissionID uuid.UUID
)

func (id BusinessID) String() string     { return uuid.UUID(id).String() }
func (id PolicyID) String() string       { return uuid.UUID(id).String() }
func (id VerifierID) String() string     { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) String() string   { return uuid.UUID(id).String() }

func (id BusinessID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id VerifierID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewBusinessID mints a random business identifier.
func NewBusinessID() BusinessID { return BusinessID(uuid.New()) }

// NewPolicyID mints a random policy identifier.
func NewPolicyID() PolicyID { return PolicyID(uuid.New()) }

// NewVerifierID mints a random verifier identifier.
func NewVerifierID() VerifierID { return VerifierID(uuid.New()) }

// NewVerificationID mints a random verification identifier.
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// NewSubmissionID mints a random submission identifier.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Rejecting uuid.Nil here keeps "zero value" distinct from
// "real identifier" everywhere downstream.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseBusinessID parses an untrusted business ID string.
func ParseBusinessID(raw string) (BusinessID, error) {
	parsed, err := parseUUID(raw, "business")
	return BusinessID(parsed), err
}

// ParsePolicyID parses an untrusted policy ID string.
func ParsePolicyID(raw string) (PolicyID, error) {
	parsed, err := parseUUID(raw, "policy")
	return PolicyID(parsed), err
}

// ParseVerifierID parses an untrusted verifier ID string.
func ParseVerifierID(raw string) (VerifierID, error) {
	parsed, err := parseUUID(raw, "verifier")
	return VerifierID(parsed), err
}

// ParseVerificationID parses an untrusted verification ID string.
func ParseVerificationID(raw string) (VerificationID, error) {
	parsed, err := parseUUID(raw, "verification")
	return VerificationID(parsed), err
}

// ParseSubmissionID parses an untrusted submission ID string.
func ParseSubmissionID(raw string) (SubmissionID, error) {
	parsed, err := parseUUID(raw, "submission")
	return SubmissionID(parsed), err
}

// Package domainerrors defines code-tagged errors shared across services and
// handlers. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into these domain errors; the HTTP layer maps codes onto
// status codes without inspecting messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies the class of a domain error.
type Code string

const (
	// Lifecycle codes surfaced by the verification engine.
	CodeNotFound           Code = "not_found"
	CodeExpired            Code = "expired"
	CodeAlreadyCompleted   Code = "already_completed"
	CodeCancelled          Code = "cancelled"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeEmptySelection     Code = "empty_selection"
	CodeNoEligibleVerifier Code = "no_eligible_verifier"
	CodeGeofenceViolation  Code = "geofence_violation"

	// CodeConfirmationRequired guards irreversible decisions: the caller must
	// repeat the request with an explicit confirmation flag.
	CodeConfirmationRequired Code = "confirmation_required"

	// General request/infrastructure codes.
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_failed"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
)

// Error carries a machine-readable code next to a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode at handler call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code of a domain error, defaulting to CodeInternal for
// anything unclassified so nothing leaks internals to clients.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a domain error code onto an HTTP status code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExpired, CodeAlreadyCompleted, CodeCancelled:
		return http.StatusGone
	case CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeEmptySelection, CodeValidation, CodeInvalidInput, CodeGeofenceViolation:
		return http.StatusUnprocessableEntity
	case CodeConfirmationRequired:
		return http.StatusPreconditionRequired
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNoEligibleVerifier:
		// Assignment misses are operational facts, not client faults.
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

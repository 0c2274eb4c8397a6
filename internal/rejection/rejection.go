// Package rejection tracks per-field reviewer feedback and enforces the
// bounded revision cycle. Pure domain logic: no I/O, no side effects.
package rejection

import (
	"strings"

	dErrors "verilink/pkg/domain-errors"
)

// MaxRevisions is the number of reject-and-resubmit rounds a customer gets
// before the next rejection becomes permanent. With the cap at 3, a
// verification sees at most 4 review cycles in total.
const MaxRevisions = 3

type (
	// CategoryID names an evidence category from the template snapshot.
	CategoryID string
	// FieldID names a photo or answer field within a category.
	FieldID string
)

// Feedback maps flagged fields to the reviewer's reason, grouped by category.
type Feedback map[CategoryID]map[FieldID]string

// CategoryKind tags what a template category holds. Identity categories are
// validated by a separate non-revisable mechanism and can never be flagged
// for revision.
type CategoryKind string

const (
	CategoryKindIdentity CategoryKind = "identity"
	CategoryKindEvidence CategoryKind = "evidence"
)

// Fixed reason catalog offered to reviewers. ReasonOther requires custom text.
const (
	ReasonBlurryImage        = "Blurry Image"
	ReasonWrongAngle         = "Wrong Angle"
	ReasonDocumentUnreadable = "Document Unreadable"
	ReasonMismatchedDetails  = "Mismatched Details"
	ReasonOther              = "Other"
)

// Outcome is what a rejection event resolves to.
type Outcome string

const (
	// OutcomeNeedsRevision routes the customer back to the flagged fields.
	OutcomeNeedsRevision Outcome = "needs_revision"
	// OutcomeFinalReject permanently closes the verification.
	OutcomeFinalReject Outcome = "final_reject"
)

// Escalate decides the outcome of a rejection given how many rejections the
// verification has already absorbed.
func Escalate(priorRejections int) Outcome {
	if priorRejections >= MaxRevisions {
		return OutcomeFinalReject
	}
	return OutcomeNeedsRevision
}

// Validate checks a reviewer's selection before any state is touched.
// categoryKinds maps each selectable category to its kind; selections against
// identity categories or unknown categories are refused.
func (f Feedback) Validate(categoryKinds map[CategoryID]CategoryKind) error {
	if f.Count() == 0 {
		return dErrors.New(dErrors.CodeEmptySelection, "at least one field must be flagged")
	}
	for category, fields := range f {
		kind, known := categoryKinds[category]
		if !known {
			return dErrors.New(dErrors.CodeValidation, "unknown category: "+string(category))
		}
		if kind == CategoryKindIdentity {
			return dErrors.New(dErrors.CodeValidation, "identity category cannot be flagged for revision: "+string(category))
		}
		for field, reason := range fields {
			if strings.TrimSpace(reason) == "" {
				return dErrors.New(dErrors.CodeValidation, "empty reason for field "+string(field))
			}
		}
	}
	return nil
}

// Count returns the number of flagged fields across all categories.
func (f Feedback) Count() int {
	n := 0
	for _, fields := range f {
		n += len(fields)
	}
	return n
}

// Merge folds a new cycle's feedback into accumulated feedback. Each cycle
// concerns only the fields currently flagged, so the latest reason wins per
// field while earlier fields are kept.
func Merge(accumulated, latest Feedback) Feedback {
	if accumulated == nil && latest == nil {
		return nil
	}
	merged := make(Feedback, len(accumulated)+len(latest))
	for category, fields := range accumulated {
		copied := make(map[FieldID]string, len(fields))
		for field, reason := range fields {
			copied[field] = reason
		}
		merged[category] = copied
	}
	for category, fields := range latest {
		if merged[category] == nil {
			merged[category] = make(map[FieldID]string, len(fields))
		}
		for field, reason := range fields {
			merged[category][field] = reason
		}
	}
	return merged
}

// FlaggedFields lists the field IDs in one category, used to scope what a
// customer may resubmit.
func (f Feedback) FlaggedFields(category CategoryID) []FieldID {
	fields := make([]FieldID, 0, len(f[category]))
	for field := range f[category] {
		fields = append(fields, field)
	}
	return fields
}

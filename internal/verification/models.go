// Package verification owns the canonical verification record and the state
// machine that governs it from creation to terminal outcome.
package verification

import (
	"time"

	"verilink/internal/geo"
	"verilink/internal/rejection"
	id "verilink/pkg/domain"
)

// Status is the canonical lifecycle state of a verification. It only moves
// through the transition table in rules.go; no external writer sets it
// arbitrarily.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProgress    Status = "in_progress"
	StatusSubmitted     Status = "submitted"
	StatusNeedsRevision Status = "needs_revision"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
// Expiry is not a stored status; see Verification.Expired.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// ConsumesAttention reports whether a verification in this status counts
// toward its verifier's active workload. Submitted work is excluded: it sits
// in the review queue but needs no further customer shepherding.
func (s Status) ConsumesAttention() bool {
	return s == StatusPending || s == StatusInProgress
}

// Customer captures who the verification task was issued to.
type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// FieldDef describes one photo slot in a template category.
type FieldDef struct {
	ID       rejection.FieldID
	Label    string
	Required bool
}

// QuestionDef describes one guided-flow question in a template category.
type QuestionDef struct {
	ID       string
	Label    string
	Required bool
}

// Category is one section of the template snapshot. Kind distinguishes
// identity sections (validated elsewhere, never revisable) from evidence
// sections reviewers may flag.
type Category struct {
	ID        rejection.CategoryID
	Name      string
	Kind      rejection.CategoryKind
	Photos    []FieldDef
	Questions []QuestionDef
}

// TemplateSnapshot freezes the question catalog at creation time so later
// template edits never reshape an in-flight verification.
type TemplateSnapshot struct {
	Categories []Category
}

// CategoryKinds indexes category kinds for rejection validation.
func (t TemplateSnapshot) CategoryKinds() map[rejection.CategoryID]rejection.CategoryKind {
	kinds := make(map[rejection.CategoryID]rejection.CategoryKind, len(t.Categories))
	for _, c := range t.Categories {
		kinds[c.ID] = c.Kind
	}
	return kinds
}

// Category looks up a category definition by ID.
func (t TemplateSnapshot) Category(categoryID rejection.CategoryID) (Category, bool) {
	for _, c := range t.Categories {
		if c.ID == categoryID {
			return c, true
		}
	}
	return Category{}, false
}

// Verification is the central entity: one customer's time-boxed task to
// submit evidence against a policy.
type Verification struct {
	ID  id.VerificationID
	Ref string

	PolicyID   id.PolicyID
	BusinessID id.BusinessID
	PolicyType id.PolicyType

	// AssignedVerifierID, once set, only ever points at a verifier of the
	// same business as the policy. nil means assignment is pending retry.
	AssignedVerifierID *id.VerifierID

	Status Status

	// LinkToken is the opaque credential customers present; LinkExpiry is
	// fixed at creation (now + SLA) and never extended.
	LinkToken      string
	LinkExpiry     time.Time
	LinkAccessedAt *time.Time

	Customer            Customer
	PropertyCoordinates *geo.Coordinates
	Template            TemplateSnapshot
	PrefillData         map[string]string

	// RejectionReason accumulates reviewer feedback across cycles;
	// RejectionCount only ever increases.
	RejectionReason rejection.Feedback
	RejectionCount  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports the lazily-evaluated expiry condition: a non-terminal
// record past its link window. The stored status is left untouched; expiry
// is derived at every access.
func (v *Verification) Expired(now time.Time) bool {
	return !v.Status.Terminal() && now.After(v.LinkExpiry)
}

// Accessed reports whether the customer has opened the flow at least once.
func (v *Verification) Accessed() bool {
	return v.LinkAccessedAt != nil
}

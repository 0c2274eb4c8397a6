// Package audit defines the append-only event trail emitted by the
// verification lifecycle engine. Events are written to a transactional outbox
// and relayed to Kafka; consumption and retention are downstream concerns.
package audit

import (
	"context"
	"time"

	id "verilink/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, enabling
// different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// verifier decisions, permanent rejections, cancellations.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: link accesses, assignments, submissions.
	CategoryOperations EventCategory = "operations"
)

// Action names what happened to a verification.
type Action string

const (
	ActionVerificationCreated Action = "verification_created"
	ActionVerifierAssigned    Action = "verifier_assigned"
	ActionLinkAccessed        Action = "link_accessed"
	ActionEvidenceSubmitted   Action = "evidence_submitted"
	ActionApproved            Action = "verification_approved"
	ActionRevisionRequested   Action = "revision_requested"
	ActionRejected            Action = "verification_rejected"
	ActionCancelled           Action = "verification_cancelled"
)

var actionCategories = map[Action]EventCategory{
	ActionVerificationCreated: CategoryOperations,
	ActionVerifierAssigned:    CategoryOperations,
	ActionLinkAccessed:        CategoryOperations,
	ActionEvidenceSubmitted:   CategoryOperations,
	ActionApproved:            CategoryCompliance,
	ActionRevisionRequested:   CategoryCompliance,
	ActionRejected:            CategoryCompliance,
	ActionCancelled:           CategoryCompliance,
}

// Category resolves the routing category for an action. Unknown actions fall
// into operations so nothing is silently dropped.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key lifecycle actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time
	Action         Action
	VerificationID id.VerificationID
	BusinessID     id.BusinessID

	// Actor tracks who triggered the event: "customer", "verifier", "admin"
	// or "system". ActorID is empty for customers, who are identified only by
	// link possession.
	Actor   string
	ActorID string

	// Detail carries event-specific context: decision outcome, rejection
	// field count, assignment target.
	Detail string

	RequestID string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

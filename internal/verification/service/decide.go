package service

import (
	"context"
	"errors"
	"fmt"

	"verilink/internal/rejection"
	"verilink/internal/verification"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
	"verilink/pkg/platform/audit"
	"verilink/pkg/platform/sentinel"
	"verilink/pkg/requestcontext"
)

// Decision is a reviewer's verdict on a submitted verification.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecideInput carries a reviewer decision. Feedback is required for
// rejections and must reference evidence fields only. ConfirmFinal must be
// set when the rejection would be permanent.
type DecideInput struct {
	Decision     Decision
	Feedback     rejection.Feedback
	ConfirmFinal bool
}

// Decide applies a reviewer verdict to a submitted verification. Approvals
// are terminal. Rejections request a revision until the retry cap is
// exhausted, at which point the rejection becomes permanent and must be
// explicitly confirmed.
func (s *Service) Decide(ctx context.Context, verificationID id.VerificationID, in DecideInput) (*verification.Verification, error) {
	v, err := s.findByID(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if err := requireAssignedReviewer(ctx, v); err != nil {
		return nil, err
	}

	switch in.Decision {
	case DecisionApprove:
		return s.approve(ctx, v)
	case DecisionReject:
		return s.reject(ctx, v, in)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown decision %q", in.Decision))
	}
}

func (s *Service) approve(ctx context.Context, v *verification.Verification) (*verification.Verification, error) {
	next, err := verification.NextStatus(v.Status, verification.EventApprove, v.RejectionCount)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.store.TransitionStatus(ctx, v.ID, v.Status, next, now)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "verification moved while deciding; reload and retry")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "transition to approved", err)
	}

	v.Status = next
	v.UpdatedAt = now
	s.metrics.IncrementTransition(string(next))
	s.auditor.Record(ctx, audit.Event{
		Action:         audit.ActionApproved,
		VerificationID: v.ID,
		BusinessID:     v.BusinessID,
		Actor:          "verifier",
		ActorID:        assignedActorID(v),
	})
	return v, nil
}

func (s *Service) reject(ctx context.Context, v *verification.Verification, in DecideInput) (*verification.Verification, error) {
	if err := in.Feedback.Validate(v.Template.CategoryKinds()); err != nil {
		return nil, err
	}
	next, err := verification.NextStatus(v.Status, verification.EventReject, v.RejectionCount)
	if err != nil {
		return nil, err
	}
	if next == verification.StatusRejected && !in.ConfirmFinal {
		return nil, dErrors.New(dErrors.CodeConfirmationRequired,
			fmt.Sprintf("rejection %d of %d is permanent and must be confirmed", v.RejectionCount+1, rejection.MaxRevisions+1))
	}

	now := requestcontext.Now(ctx)
	merged := rejection.Merge(v.RejectionReason, in.Feedback)

	// The store guards on the observed rejection count, so two reviewers
	// racing on the same submission can never double-count a rejection.
	err = s.store.ApplyRejection(ctx, v.ID, next, merged, v.RejectionCount, now)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "verification moved while deciding; reload and retry")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "apply rejection", err)
	}

	v.Status = next
	v.RejectionReason = merged
	v.RejectionCount++
	v.UpdatedAt = now
	s.metrics.IncrementTransition(string(next))

	action := audit.ActionRevisionRequested
	detail := fmt.Sprintf("rejection %d, %d field(s) flagged", v.RejectionCount, in.Feedback.Count())
	if next == verification.StatusRejected {
		action = audit.ActionRejected
		detail = fmt.Sprintf("permanently rejected after %d rejections", v.RejectionCount)
	}
	s.auditor.Record(ctx, audit.Event{
		Action:         action,
		VerificationID: v.ID,
		BusinessID:     v.BusinessID,
		Actor:          "verifier",
		ActorID:        assignedActorID(v),
		Detail:         detail,
	})
	return v, nil
}

// Cancel withdraws a verification on behalf of the business. Terminal records
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, verificationID id.VerificationID, reason string) (*verification.Verification, error) {
	v, err := s.findByID(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	next, err := verification.NextStatus(v.Status, verification.EventCancel, v.RejectionCount)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.store.TransitionStatus(ctx, v.ID, v.Status, next, now)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "verification moved while cancelling; reload and retry")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "transition to cancelled", err)
	}

	v.Status = next
	v.UpdatedAt = now
	s.metrics.IncrementTransition(string(next))
	s.auditor.Record(ctx, audit.Event{
		Action:         audit.ActionCancelled,
		VerificationID: v.ID,
		BusinessID:     v.BusinessID,
		Actor:          "admin",
		Detail:         reason,
	})
	return v, nil
}

// requireAssignedReviewer rejects decisions from a verifier other than the
// one assigned. Requests without an authenticated verifier (service-level
// callers) pass through.
func requireAssignedReviewer(ctx context.Context, v *verification.Verification) error {
	actor := requestcontext.VerifierID(ctx)
	if actor.IsNil() {
		return nil
	}
	if v.AssignedVerifierID == nil || *v.AssignedVerifierID != actor {
		return dErrors.New(dErrors.CodeForbidden, "verification is assigned to another verifier")
	}
	return nil
}

func assignedActorID(v *verification.Verification) string {
	if v.AssignedVerifierID == nil {
		return ""
	}
	return v.AssignedVerifierID.String()
}

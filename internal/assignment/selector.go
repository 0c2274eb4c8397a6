// Package assignment attaches the least-loaded eligible verifier to a
// verification. Selection and attachment are separated so the attach step can
// be a guarded compare-and-swap: two racing creations both run the same
// query, but only one write lands and the loser re-reads.
package assignment

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"

	"verilink/internal/verification"
	"verilink/internal/verifier"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
	"verilink/pkg/platform/sentinel"
	"verilink/pkg/requestcontext"
)

// Selector picks and attaches verifiers.
type Selector struct {
	verifiers     verifier.Store
	verifications verification.Store
	logger        *slog.Logger
	metrics       *Metrics

	// pick chooses among tied candidates; injectable for deterministic tests.
	pick func(n int) int
}

// Option configures a Selector.
type Option func(*Selector)

// WithMetrics attaches the assignment metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

// WithTieBreaker overrides the uniform random tie-break.
func WithTieBreaker(pick func(n int) int) Option {
	return func(s *Selector) { s.pick = pick }
}

// NewSelector constructs a Selector.
func NewSelector(verifiers verifier.Store, verifications verification.Store, logger *slog.Logger, opts ...Option) *Selector {
	s := &Selector{
		verifiers:     verifiers,
		verifications: verifications,
		logger:        logger,
		pick:          rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the eligible verifier with the minimum active workload in
// the business. Ties break by uniform random choice among the minimal set so
// a fleet of idle verifiers does not herd onto one of them. Returns
// CodeNoEligibleVerifier when nobody qualifies.
func (s *Selector) Select(ctx context.Context, businessID id.BusinessID, policyType id.PolicyType) (id.VerifierID, error) {
	eligible, err := s.verifiers.ListEligible(ctx, businessID, policyType)
	if err != nil {
		return id.VerifierID{}, dErrors.Wrap(dErrors.CodeInternal, "list eligible verifiers", err)
	}
	if len(eligible) == 0 {
		s.metrics.IncrementOutcome("no_eligible")
		return id.VerifierID{}, dErrors.New(dErrors.CodeNoEligibleVerifier,
			"no active verifier matches policy type "+policyType.String())
	}

	counts, err := s.verifications.CountActive(ctx, businessID)
	if err != nil {
		return id.VerifierID{}, dErrors.Wrap(dErrors.CodeInternal, "count active workloads", err)
	}

	minLoad := -1
	var minimal []id.VerifierID
	for _, v := range eligible {
		load := counts[v.ID]
		switch {
		case minLoad < 0 || load < minLoad:
			minLoad = load
			minimal = minimal[:0]
			minimal = append(minimal, v.ID)
		case load == minLoad:
			minimal = append(minimal, v.ID)
		}
	}

	// Stable order before the random pick keeps the tie-break uniform
	// regardless of store iteration order.
	sort.Slice(minimal, func(i, j int) bool { return minimal[i].String() < minimal[j].String() })
	return minimal[s.pick(len(minimal))], nil
}

// Assign selects a verifier and attaches it to an unassigned verification.
// Losing the attach race to a concurrent writer is not a failure: the record
// ended up assigned either way, and the standing assignment is returned.
func (s *Selector) Assign(ctx context.Context, v *verification.Verification) (id.VerifierID, error) {
	selected, err := s.Select(ctx, v.BusinessID, v.PolicyType)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNoEligibleVerifier) {
			// Silent to the customer, visible to operations: the record stays
			// unassigned and is retried on the next qualifying event.
			s.logger.WarnContext(ctx, "no eligible verifier, leaving unassigned",
				"verification_id", v.ID.String(),
				"business_id", v.BusinessID.String(),
				"policy_type", v.PolicyType.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return id.VerifierID{}, err
	}

	now := requestcontext.Now(ctx)
	err = s.verifications.AttachVerifierIfUnassigned(ctx, v.ID, selected, now)
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncrementOutcome("lost_race")
		current, readErr := s.verifications.FindByID(ctx, v.ID)
		if readErr != nil {
			return id.VerifierID{}, dErrors.Wrap(dErrors.CodeInternal, "re-read after lost assignment race", readErr)
		}
		if current.AssignedVerifierID == nil {
			return id.VerifierID{}, dErrors.New(dErrors.CodeConflict, "assignment race left record unassigned")
		}
		return *current.AssignedVerifierID, nil
	}
	if err != nil {
		return id.VerifierID{}, dErrors.Wrap(dErrors.CodeInternal, "attach verifier", err)
	}

	s.metrics.IncrementOutcome("assigned")
	s.logger.InfoContext(ctx, "verifier assigned",
		"verification_id", v.ID.String(),
		"verifier_id", selected.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return selected, nil
}

// Reassign clears a verification's current verifier and attaches a new one.
// Used when a verifier is deactivated while holding active work. The new
// verifier always belongs to the same business as the policy.
func (s *Selector) Reassign(ctx context.Context, verificationID id.VerificationID) (id.VerifierID, error) {
	v, err := s.verifications.FindByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.VerifierID{}, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return id.VerifierID{}, dErrors.Wrap(dErrors.CodeInternal, "find verification", err)
	}
	if v.Status.Terminal() {
		return id.VerifierID{}, dErrors.New(dErrors.CodeInvalidTransition, "verification is closed")
	}

	if v.AssignedVerifierID != nil {
		now := requestcontext.Now(ctx)
		err = s.verifications.ClearVerifier(ctx, verificationID, *v.AssignedVerifierID, now)
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return id.VerifierID{}, dErrors.Wrap(dErrors.CodeInternal, "clear verifier", err)
		}
		v.AssignedVerifierID = nil
	}
	return s.Assign(ctx, v)
}

// Workload pairs a verifier with their active verification count.
type Workload struct {
	VerifierID     id.VerifierID
	Name           string
	Specialization *id.PolicyType
	Active         int
}

// Workloads reports per-verifier active counts for one business, the same
// numbers the selector balances on.
func (s *Selector) Workloads(ctx context.Context, businessID id.BusinessID, policyType id.PolicyType) ([]Workload, error) {
	eligible, err := s.verifiers.ListEligible(ctx, businessID, policyType)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list eligible verifiers", err)
	}
	counts, err := s.verifications.CountActive(ctx, businessID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "count active workloads", err)
	}
	workloads := make([]Workload, 0, len(eligible))
	for _, v := range eligible {
		workloads = append(workloads, Workload{
			VerifierID:     v.ID,
			Name:           v.Name,
			Specialization: v.Specialization,
			Active:         counts[v.ID],
		})
	}
	sort.Slice(workloads, func(i, j int) bool { return workloads[i].Active < workloads[j].Active })
	return workloads, nil
}

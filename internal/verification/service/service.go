// Package service implements the verification lifecycle engine: the state
// machine moving a record from creation to terminal outcome, the link access
// guard, evidence submission with geofencing, and the bounded review cycle.
//
// Every transition is a compare-and-swap against the store: the service reads
// the record, decides with pure rules, and writes guarded by the pre-read
// value. A lost race surfaces as a conflict and the caller re-reads rather
// than retrying blind.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"verilink/internal/geo"
	"verilink/internal/submission"
	"verilink/internal/token"
	"verilink/internal/verification"
	"verilink/internal/verification/metrics"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
	"verilink/pkg/platform/audit"
	"verilink/pkg/platform/sentinel"
	"verilink/pkg/requestcontext"
)

// Assigner attaches a verifier to a verification. Satisfied by
// assignment.Selector.
type Assigner interface {
	Assign(ctx context.Context, v *verification.Verification) (id.VerifierID, error)
}

// Service orchestrates the verification lifecycle.
type Service struct {
	store       verification.Store
	submissions submission.Store
	tokens      token.Cache
	assigner    Assigner
	auditor     *audit.Recorder
	logger      *slog.Logger
	metrics     *metrics.Metrics

	geoToleranceMeters float64
}

// Option configures the Service.
type Option func(*Service)

// WithTokenCache attaches a link token lookup cache.
func WithTokenCache(cache token.Cache) Option {
	return func(s *Service) { s.tokens = cache }
}

// WithAuditor attaches the audit recorder.
func WithAuditor(auditor *audit.Recorder) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithMetrics attaches the lifecycle metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithGeofenceTolerance overrides the default geofence radius.
func WithGeofenceTolerance(meters float64) Option {
	return func(s *Service) { s.geoToleranceMeters = meters }
}

// New constructs the lifecycle service.
func New(store verification.Store, submissions submission.Store, assigner Assigner, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:              store,
		submissions:        submissions,
		assigner:           assigner,
		logger:             logger,
		geoToleranceMeters: geo.DefaultToleranceMeters,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is what policy provisioning supplies when a verification is
// spawned.
type CreateInput struct {
	PolicyID   id.PolicyID
	BusinessID id.BusinessID
	PolicyType id.PolicyType
	SLAHours   int

	Customer            verification.Customer
	PropertyCoordinates *geo.Coordinates
	Template            verification.TemplateSnapshot
	PrefillData         map[string]string
}

func (in CreateInput) validate() error {
	if in.PolicyID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "policy_id is required")
	}
	if in.BusinessID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "business_id is required")
	}
	if in.SLAHours <= 0 {
		return dErrors.New(dErrors.CodeValidation, "sla_hours must be positive")
	}
	if len(in.Template.Categories) == 0 {
		return dErrors.New(dErrors.CodeValidation, "template snapshot must not be empty")
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "customer name is required")
	}
	return nil
}

// Create provisions a verification: mints the link token, fixes the access
// window at now + SLA, persists the record, and attempts assignment. A failed
// assignment leaves the record unassigned without failing creation.
func (s *Service) Create(ctx context.Context, in CreateInput) (*verification.Verification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	linkToken, err := token.Generate()
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "mint link token", err)
	}

	now := requestcontext.Now(ctx)
	v := &verification.Verification{
		ID:                  id.NewVerificationID(),
		Ref:                 newRef(),
		PolicyID:            in.PolicyID,
		BusinessID:          in.BusinessID,
		PolicyType:          in.PolicyType,
		Status:              verification.StatusPending,
		LinkToken:           linkToken,
		LinkExpiry:          now.Add(time.Duration(in.SLAHours) * time.Hour),
		Customer:            in.Customer,
		PropertyCoordinates: in.PropertyCoordinates,
		Template:            in.Template,
		PrefillData:         in.PrefillData,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.Create(ctx, v); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist verification", err)
	}
	s.metrics.IncrementCreated()
	s.auditor.Record(ctx, audit.Event{
		Action:         audit.ActionVerificationCreated,
		VerificationID: v.ID,
		BusinessID:     v.BusinessID,
		Actor:          "system",
	})

	if s.tokens != nil {
		if err := s.tokens.Put(ctx, linkToken, v.ID, v.LinkExpiry.Sub(now)); err != nil {
			// Cache population is best-effort; the store resolves tokens too.
			s.logger.WarnContext(ctx, "link token cache put failed",
				"verification_id", v.ID.String(),
				"error", err,
			)
		}
	}

	verifierID, err := s.assigner.Assign(ctx, v)
	switch {
	case err == nil:
		v.AssignedVerifierID = &verifierID
		s.auditor.Record(ctx, audit.Event{
			Action:         audit.ActionVerifierAssigned,
			VerificationID: v.ID,
			BusinessID:     v.BusinessID,
			Actor:          "system",
			Detail:         verifierID.String(),
		})
	case dErrors.HasCode(err, dErrors.CodeNoEligibleVerifier):
		// Retried on the next qualifying event; already logged by the selector.
	default:
		return nil, err
	}

	return v, nil
}

// Authorize validates a link token at the moment a customer opens the flow.
// Checks run in fixed order: unknown token, expiry, already-completed,
// cancelled. An authorized first access stamps link_accessed_at and flips
// pending to in_progress exactly once.
func (s *Service) Authorize(ctx context.Context, linkToken string) (*verification.Verification, error) {
	if linkToken == "" {
		s.metrics.IncrementAuthorize("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "verification link not found")
	}

	v, err := s.resolveToken(ctx, linkToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementAuthorize("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "verification link not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "resolve link token", err)
	}

	now := requestcontext.Now(ctx)
	switch {
	case v.Expired(now):
		s.metrics.IncrementAuthorize("expired")
		return nil, dErrors.New(dErrors.CodeExpired, "verification link has expired")
	case v.Status == verification.StatusApproved,
		v.Status == verification.StatusRejected,
		v.Status == verification.StatusSubmitted:
		// Submitted reads as completed to the customer: the evidence is with
		// the reviewer and no further customer action exists.
		s.metrics.IncrementAuthorize("completed")
		return nil, dErrors.New(dErrors.CodeAlreadyCompleted, "verification is already completed")
	case v.Status == verification.StatusCancelled:
		s.metrics.IncrementAuthorize("cancelled")
		return nil, dErrors.New(dErrors.CodeCancelled, "verification was cancelled")
	}

	if !v.Accessed() {
		if err := s.recordFirstAccess(ctx, v, now); err != nil {
			return nil, err
		}
	}

	s.metrics.IncrementAuthorize("ok")
	return v, nil
}

// RecordFirstAccess applies the first-access side effect by ID. Exposed for
// collaborators that resolve the record themselves; Authorize calls the same
// path. Calling it again after the stamp is a no-op.
func (s *Service) RecordFirstAccess(ctx context.Context, verificationID id.VerificationID) error {
	v, err := s.findByID(ctx, verificationID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	if v.Expired(now) {
		return dErrors.New(dErrors.CodeExpired, "verification link has expired")
	}
	if v.Accessed() {
		return nil
	}
	return s.recordFirstAccess(ctx, v, now)
}

// recordFirstAccess performs the atomic set-if-null stamp. Losing the race is
// fine: someone stamped it, which is all the invariant asks.
func (s *Service) recordFirstAccess(ctx context.Context, v *verification.Verification, now time.Time) error {
	if _, err := verification.NextStatus(v.Status, verification.EventFirstAccess, v.RejectionCount); err != nil {
		// Revision round-trips re-enter the flow without a pending status;
		// there is nothing to stamp a second time.
		return nil
	}
	err := s.store.MarkFirstAccess(ctx, v.ID, now)
	if errors.Is(err, sentinel.ErrConflict) {
		refreshed, readErr := s.findByID(ctx, v.ID)
		if readErr != nil {
			return readErr
		}
		*v = *refreshed
		return nil
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "record first access", err)
	}

	accessedAt := now
	v.LinkAccessedAt = &accessedAt
	v.Status = verification.StatusInProgress
	s.metrics.IncrementTransition(string(verification.StatusInProgress))
	s.auditor.Record(ctx, audit.Event{
		Action:         audit.ActionLinkAccessed,
		VerificationID: v.ID,
		BusinessID:     v.BusinessID,
		Actor:          "customer",
	})
	return nil
}

func (s *Service) resolveToken(ctx context.Context, linkToken string) (*verification.Verification, error) {
	if s.tokens != nil {
		verificationID, err := s.tokens.Lookup(ctx, linkToken)
		if err == nil {
			v, err := s.store.FindByID(ctx, verificationID)
			if err == nil && v.LinkToken == linkToken {
				return v, nil
			}
		}
	}
	return s.store.FindByToken(ctx, linkToken)
}

func (s *Service) findByID(ctx context.Context, verificationID id.VerificationID) (*verification.Verification, error) {
	v, err := s.store.FindByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find verification", err)
	}
	return v, nil
}

// Get returns a verification by ID.
func (s *Service) Get(ctx context.Context, verificationID id.VerificationID) (*verification.Verification, error) {
	return s.findByID(ctx, verificationID)
}

// ReviewQueue lists a verifier's assigned verifications, newest first.
func (s *Service) ReviewQueue(ctx context.Context, verifierID id.VerifierID) ([]*verification.Verification, error) {
	assigned, err := s.store.ListByVerifier(ctx, verifierID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list review queue", err)
	}
	return assigned, nil
}

func newRef() string {
	return "VR-" + strings.ToUpper(uuid.NewString()[:8])
}

//go:build integration

package verification_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verilink/internal/rejection"
	"verilink/internal/verification"
	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
	"verilink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *verification.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = verification.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "submissions", "verifications")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seed(status verification.Status) *verification.Verification {
	return s.seedForBusiness(status, id.NewBusinessID())
}

func (s *PostgresStoreSuite) seedForBusiness(status verification.Status, businessID id.BusinessID) *verification.Verification {
	v := &verification.Verification{
		ID:         id.NewVerificationID(),
		Ref:        "VR-1A2B3C4D",
		PolicyID:   id.NewPolicyID(),
		BusinessID: businessID,
		PolicyType: id.PolicyTypeHomeInsurance,
		Status:     status,
		LinkToken:  "tok_" + id.NewVerificationID().String(),
		LinkExpiry: s.now.Add(48 * time.Hour),
		Customer:   verification.Customer{Name: "Asha Rao", Phone: "+91800001"},
		Template: verification.TemplateSnapshot{Categories: []verification.Category{{
			ID:     "exterior",
			Name:   "Property exterior",
			Kind:   rejection.CategoryKindEvidence,
			Photos: []verification.FieldDef{{ID: "front_photo", Required: true}},
		}}},
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.Create(context.Background(), v))
	return v
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	v := s.seed(verification.StatusPending)

	byID, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.Ref, byID.Ref)
	s.Equal(verification.StatusPending, byID.Status)
	s.Require().Len(byID.Template.Categories, 1)
	s.Equal(rejection.CategoryKindEvidence, byID.Template.Categories[0].Kind)

	byToken, err := s.store.FindByToken(ctx, v.LinkToken)
	s.Require().NoError(err)
	s.Equal(v.ID, byToken.ID)

	_, err = s.store.FindByToken(ctx, "tok_unknown")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentFirstAccess verifies the set-if-null stamp: many customers
// racing on the same fresh link produce exactly one successful stamp.
func (s *PostgresStoreSuite) TestConcurrentFirstAccess() {
	ctx := context.Background()
	v := s.seed(verification.StatusPending)
	const goroutines = 32

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.MarkFirstAccess(ctx, v.ID, s.now)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())

	stored, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(verification.StatusInProgress, stored.Status)
	s.Require().NotNil(stored.LinkAccessedAt)
}

// TestConcurrentTransition verifies the status CAS: two writers observing the
// same state produce exactly one winner.
func (s *PostgresStoreSuite) TestConcurrentTransition() {
	ctx := context.Background()
	v := s.seed(verification.StatusSubmitted)
	const goroutines = 16

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.TransitionStatus(ctx, v.ID, verification.StatusSubmitted, verification.StatusApproved, s.now)
			if err == nil {
				successCount.Add(1)
				return
			}
			if !errors.Is(err, sentinel.ErrConflict) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())

	stored, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(verification.StatusApproved, stored.Status)
}

// TestConcurrentRejection verifies the rejection-count guard: two reviewers
// racing on the same submission can never double-count a rejection.
func (s *PostgresStoreSuite) TestConcurrentRejection() {
	ctx := context.Background()
	v := s.seed(verification.StatusSubmitted)
	feedback := rejection.Feedback{"exterior": {"front_photo": rejection.ReasonBlurryImage}}
	const goroutines = 16

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.ApplyRejection(ctx, v.ID, verification.StatusNeedsRevision, feedback, 0, s.now)
			if err == nil {
				successCount.Add(1)
				return
			}
			if !errors.Is(err, sentinel.ErrConflict) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())

	stored, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(verification.StatusNeedsRevision, stored.Status)
	s.Equal(1, stored.RejectionCount)
	s.Equal(rejection.ReasonBlurryImage, stored.RejectionReason["exterior"]["front_photo"])
}

// TestConcurrentAssignment verifies the set-if-unassigned guard used by the
// selector: one verifier wins, the rest observe the conflict.
func (s *PostgresStoreSuite) TestConcurrentAssignment() {
	ctx := context.Background()
	v := s.seed(verification.StatusPending)
	const goroutines = 16

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.AttachVerifierIfUnassigned(ctx, v.ID, id.NewVerifierID(), s.now)
			if err == nil {
				successCount.Add(1)
				return
			}
			if !errors.Is(err, sentinel.ErrConflict) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())

	stored, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.AssignedVerifierID)
}

func (s *PostgresStoreSuite) TestGuardedUpdateMissingRecord() {
	err := s.store.TransitionStatus(context.Background(), id.NewVerificationID(),
		verification.StatusSubmitted, verification.StatusApproved, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCountActiveScopedToBusiness() {
	ctx := context.Background()
	verifierID := id.NewVerifierID()
	businessID := id.NewBusinessID()

	pending := s.seedForBusiness(verification.StatusPending, businessID)
	s.Require().NoError(s.store.AttachVerifierIfUnassigned(ctx, pending.ID, verifierID, s.now))

	closed := s.seedForBusiness(verification.StatusApproved, businessID)
	s.Require().NoError(s.store.AttachVerifierIfUnassigned(ctx, closed.ID, verifierID, s.now))

	counts, err := s.store.CountActive(ctx, businessID)
	s.Require().NoError(err)
	s.Equal(1, counts[verifierID])

	other, err := s.store.CountActive(ctx, id.NewBusinessID())
	s.Require().NoError(err)
	s.Empty(other)
}

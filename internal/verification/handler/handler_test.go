package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"verilink/internal/assignment"
	"verilink/internal/geo"
	"verilink/internal/rejection"
	"verilink/internal/submission"
	"verilink/internal/verification"
	"verilink/internal/verification/handler/mocks"
	"verilink/internal/verification/service"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
	"verilink/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	now time.Time
}

func (s *HandlerSuite) SetupSuite() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func newTestHandler(t *testing.T) (chi.Router, *mocks.MockService, *mocks.MockAssignments) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	mockAssignments := mocks.NewMockAssignments(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(mockService, mockAssignments, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterPublic(r)
	return r, mockService, mockAssignments
}

// staffRequest builds a request carrying an authenticated business scope and
// a pinned request clock.
func (s *HandlerSuite) staffRequest(method, target string, body []byte, businessID id.BusinessID) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return testutil.WithBusiness(testutil.WithClock(req, s.now), businessID)
}

func (s *HandlerSuite) customerRequest(method, target string, body []byte) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	return testutil.WithClock(httptest.NewRequest(method, target, reader), s.now)
}

func (s *HandlerSuite) fixture(businessID id.BusinessID) *verification.Verification {
	verifierID := id.NewVerifierID()
	return &verification.Verification{
		ID:         id.NewVerificationID(),
		Ref:        "VR-1A2B3C4D",
		PolicyID:   id.NewPolicyID(),
		BusinessID: businessID,
		PolicyType: id.PolicyTypeHomeInsurance,
		Status:     verification.StatusPending,

		AssignedVerifierID: &verifierID,

		LinkToken:  "tok_fixture",
		LinkExpiry: s.now.Add(48 * time.Hour),

		Customer: verification.Customer{Name: "Asha Rao", Phone: "+91800001"},
		Template: verification.TemplateSnapshot{Categories: []verification.Category{{
			ID:     "exterior",
			Name:   "Property exterior",
			Kind:   rejection.CategoryKindEvidence,
			Photos: []verification.FieldDef{{ID: "front_photo", Label: "Front", Required: true}},
		}}},

		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func createBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"policy_id":   newPolicyIDString(t),
		"policy_type": "home_insurance",
		"sla_hours":   48,
		"customer":    map[string]string{"name": "Asha Rao", "phone": "+91800001"},
		"property_coordinates": map[string]float64{
			"lat": 12.9716,
			"lon": 77.5946,
		},
		"template": []map[string]any{{
			"id":     "exterior",
			"name":   "Property exterior",
			"kind":   "evidence",
			"photos": []map[string]any{{"id": "front_photo", "label": "Front", "required": true}},
		}},
	})
	require.NoError(t, err)
	return body
}

func newPolicyIDString(t *testing.T) string {
	t.Helper()
	return id.NewPolicyID().String()
}

func (s *HandlerSuite) TestHandleCreate() {
	s.Run("creates and returns the link token", func() {
		r, mockService, _ := newTestHandler(s.T())
		businessID := id.NewBusinessID()
		created := s.fixture(businessID)

		mockService.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, in service.CreateInput) (*verification.Verification, error) {
				assert.Equal(s.T(), businessID, in.BusinessID)
				assert.Equal(s.T(), 48, in.SLAHours)
				assert.Equal(s.T(), "Asha Rao", in.Customer.Name)
				require.Len(s.T(), in.Template.Categories, 1)
				return created, nil
			})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications", createBody(s.T()), businessID))

		assert.Equal(s.T(), http.StatusCreated, w.Code)
		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "tok_fixture", resp["link_token"])
		assert.Equal(s.T(), "pending", resp["status"])
		assert.Equal(s.T(), "VR-1A2B3C4D", resp["ref"])
	})

	s.Run("rejects unauthenticated callers", func() {
		r, _, _ := newTestHandler(s.T())
		req := s.customerRequest(http.MethodPost, "/verifications", createBody(s.T()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	})

	s.Run("rejects a bad policy type before touching the service", func() {
		r, _, _ := newTestHandler(s.T())
		body, err := json.Marshal(map[string]any{
			"policy_id":   newPolicyIDString(s.T()),
			"policy_type": "pet_insurance",
			"sla_hours":   48,
			"customer":    map[string]string{"name": "Asha Rao", "phone": "+91800001"},
			"template":    []map[string]any{{"id": "exterior", "kind": "evidence"}},
		})
		require.NoError(s.T(), err)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications", body, id.NewBusinessID()))
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})
}

func (s *HandlerSuite) TestHandleGet() {
	s.Run("returns the record with derived expiry", func() {
		r, mockService, _ := newTestHandler(s.T())
		businessID := id.NewBusinessID()
		v := s.fixture(businessID)
		v.LinkExpiry = s.now.Add(-time.Hour)

		mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodGet, "/verifications/"+v.ID.String(), nil, businessID))

		assert.Equal(s.T(), http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "pending", resp["status"])
		assert.Equal(s.T(), true, resp["expired"])
	})

	s.Run("hides records of other businesses", func() {
		r, mockService, _ := newTestHandler(s.T())
		v := s.fixture(id.NewBusinessID())
		mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodGet, "/verifications/"+v.ID.String(), nil, id.NewBusinessID()))
		assert.Equal(s.T(), http.StatusNotFound, w.Code)
	})

	s.Run("rejects a malformed id", func() {
		r, _, _ := newTestHandler(s.T())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodGet, "/verifications/not-a-uuid", nil, id.NewBusinessID()))
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})
}

func (s *HandlerSuite) TestHandleDecision() {
	s.Run("records a rejection with field feedback", func() {
		r, mockService, _ := newTestHandler(s.T())
		businessID := id.NewBusinessID()
		v := s.fixture(businessID)
		v.Status = verification.StatusSubmitted

		decided := *v
		decided.Status = verification.StatusNeedsRevision
		decided.RejectionCount = 1
		decided.RejectionReason = rejection.Feedback{"exterior": {"front_photo": rejection.ReasonBlurryImage}}

		mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)
		mockService.EXPECT().
			Decide(gomock.Any(), v.ID, gomock.Any()).
			DoAndReturn(func(_ any, _ id.VerificationID, in service.DecideInput) (*verification.Verification, error) {
				assert.Equal(s.T(), service.DecisionReject, in.Decision)
				assert.Equal(s.T(), rejection.ReasonBlurryImage, in.Feedback["exterior"]["front_photo"])
				return &decided, nil
			})

		body, err := json.Marshal(map[string]any{
			"decision": "reject",
			"feedback": map[string]map[string]string{"exterior": {"front_photo": rejection.ReasonBlurryImage}},
		})
		require.NoError(s.T(), err)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications/"+v.ID.String()+"/decision", body, businessID))

		assert.Equal(s.T(), http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "needs_revision", resp["status"])
		assert.Equal(s.T(), float64(1), resp["rejection_count"])
	})

	s.Run("refuses a rejection without feedback", func() {
		r, mockService, _ := newTestHandler(s.T())
		businessID := id.NewBusinessID()
		v := s.fixture(businessID)
		mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)

		body := []byte(`{"decision":"reject"}`)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications/"+v.ID.String()+"/decision", body, businessID))
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})

	s.Run("surfaces the confirmation requirement", func() {
		r, mockService, _ := newTestHandler(s.T())
		businessID := id.NewBusinessID()
		v := s.fixture(businessID)
		mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)
		mockService.EXPECT().
			Decide(gomock.Any(), v.ID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConfirmationRequired, "rejection 4 of 4 is permanent and must be confirmed"))

		body, err := json.Marshal(map[string]any{
			"decision": "reject",
			"feedback": map[string]map[string]string{"exterior": {"front_photo": rejection.ReasonBlurryImage}},
		})
		require.NoError(s.T(), err)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications/"+v.ID.String()+"/decision", body, businessID))
		assert.Equal(s.T(), http.StatusPreconditionRequired, w.Code)

		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), string(dErrors.CodeConfirmationRequired), resp["error"])
	})
}

func (s *HandlerSuite) TestHandleCancel() {
	r, mockService, _ := newTestHandler(s.T())
	businessID := id.NewBusinessID()
	v := s.fixture(businessID)

	cancelled := *v
	cancelled.Status = verification.StatusCancelled

	mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)
	mockService.EXPECT().Cancel(gomock.Any(), v.ID, "policy withdrawn").Return(&cancelled, nil)

	body := []byte(`{"reason":"policy withdrawn"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications/"+v.ID.String()+"/cancel", body, businessID))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "cancelled", resp["status"])
}

func (s *HandlerSuite) TestHandleReassign() {
	r, mockService, mockAssignments := newTestHandler(s.T())
	businessID := id.NewBusinessID()
	v := s.fixture(businessID)
	nextVerifier := id.NewVerifierID()

	mockService.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)
	mockAssignments.EXPECT().Reassign(gomock.Any(), v.ID).Return(nextVerifier, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, s.staffRequest(http.MethodPost, "/verifications/"+v.ID.String()+"/reassign", nil, businessID))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), nextVerifier.String(), resp["verifier_id"])
}

func (s *HandlerSuite) TestHandleQueue() {
	s.Run("lists the verifier's assigned reviews", func() {
		r, mockService, _ := newTestHandler(s.T())
		verifierID := id.NewVerifierID()
		v := s.fixture(id.NewBusinessID())
		v.Status = verification.StatusSubmitted

		mockService.EXPECT().ReviewQueue(gomock.Any(), verifierID).Return([]*verification.Verification{v}, nil)

		req := httptest.NewRequest(http.MethodGet, "/reviews/queue", nil)
		req = testutil.WithVerifier(testutil.WithClock(req, s.now), verifierID)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		items := resp["verifications"].([]any)
		require.Len(s.T(), items, 1)
		assert.Equal(s.T(), "submitted", items[0].(map[string]any)["status"])
	})

	s.Run("requires an authenticated verifier", func() {
		r, _, _ := newTestHandler(s.T())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.customerRequest(http.MethodGet, "/reviews/queue", nil))
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	})
}

func (s *HandlerSuite) TestHandleWorkloads() {
	r, _, mockAssignments := newTestHandler(s.T())
	businessID := id.NewBusinessID()
	verifierID := id.NewVerifierID()
	specialization := id.PolicyTypeHomeInsurance

	mockAssignments.EXPECT().
		Workloads(gomock.Any(), businessID, id.PolicyTypeHomeInsurance).
		Return([]assignment.Workload{{
			VerifierID:     verifierID,
			Name:           "Priya",
			Specialization: &specialization,
			Active:         2,
		}}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, s.staffRequest(http.MethodGet, "/verifiers/workloads?policy_type=home_insurance", nil, businessID))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp []map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp, 1)
	assert.Equal(s.T(), verifierID.String(), resp[0]["verifier_id"])
	assert.Equal(s.T(), float64(2), resp[0]["active_count"])
	assert.Equal(s.T(), "home_insurance", resp[0]["specialization"])
}

func (s *HandlerSuite) TestHandleLinkAccess() {
	s.Run("returns the customer view", func() {
		r, mockService, _ := newTestHandler(s.T())
		v := s.fixture(id.NewBusinessID())
		v.Status = verification.StatusInProgress

		mockService.EXPECT().Authorize(gomock.Any(), "tok_fixture").Return(v, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.customerRequest(http.MethodGet, "/v/tok_fixture", nil))

		assert.Equal(s.T(), http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "in_progress", resp["status"])
		assert.Equal(s.T(), "Asha Rao", resp["customer_name"])
		// Staff-only detail never leaks through the link view.
		assert.NotContains(s.T(), resp, "assigned_verifier_id")
		assert.NotContains(s.T(), resp, "id")
	})

	s.Run("maps refusal codes to statuses", func() {
		cases := []struct {
			name string
			err  error
			want int
		}{
			{"unknown", dErrors.New(dErrors.CodeNotFound, "verification link not found"), http.StatusNotFound},
			{"expired", dErrors.New(dErrors.CodeExpired, "verification link has expired"), http.StatusGone},
			{"completed", dErrors.New(dErrors.CodeAlreadyCompleted, "verification is already completed"), http.StatusGone},
			{"cancelled", dErrors.New(dErrors.CodeCancelled, "verification was cancelled"), http.StatusGone},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				r, mockService, _ := newTestHandler(s.T())
				mockService.EXPECT().Authorize(gomock.Any(), "tok_x").Return(nil, tc.err)

				w := httptest.NewRecorder()
				r.ServeHTTP(w, s.customerRequest(http.MethodGet, "/v/tok_x", nil))
				assert.Equal(s.T(), tc.want, w.Code)
			})
		}
	})
}

func (s *HandlerSuite) TestHandleLinkSubmit() {
	s.Run("authorizes then submits", func() {
		r, mockService, _ := newTestHandler(s.T())
		v := s.fixture(id.NewBusinessID())
		v.Status = verification.StatusInProgress

		submitted := *v
		submitted.Status = verification.StatusSubmitted
		snap := &submission.Submission{
			ID:             id.NewSubmissionID(),
			VerificationID: v.ID,
			Version:        1,
			SubmittedAt:    s.now,
		}

		mockService.EXPECT().Authorize(gomock.Any(), "tok_fixture").Return(v, nil)
		mockService.EXPECT().
			SubmitEvidence(gomock.Any(), v.ID, gomock.Any()).
			DoAndReturn(func(_ any, _ id.VerificationID, categories []submission.CategoryEvidence) (*verification.Verification, *submission.Submission, error) {
				require.Len(s.T(), categories, 1)
				assert.Equal(s.T(), rejection.CategoryID("exterior"), categories[0].CategoryID)
				require.Len(s.T(), categories[0].Photos, 1)
				require.NotNil(s.T(), categories[0].Photos[0].GPS)
				return &submitted, snap, nil
			})

		body, err := json.Marshal(map[string]any{
			"categories": []map[string]any{{
				"category_id": "exterior",
				"photos": []map[string]any{{
					"field_id": "front_photo",
					"url":      "s3://e/front.jpg",
					"gps":      geo.Coordinates{Lat: 12.9716, Lon: 77.5946},
				}},
			}},
		})
		require.NoError(s.T(), err)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.customerRequest(http.MethodPost, "/v/tok_fixture/submit", body))

		assert.Equal(s.T(), http.StatusCreated, w.Code)
		var resp map[string]any
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), float64(1), resp["version"])
		assert.Equal(s.T(), "submitted", resp["status"])
	})

	s.Run("a refused link never reaches submission", func() {
		r, mockService, _ := newTestHandler(s.T())
		mockService.EXPECT().
			Authorize(gomock.Any(), "tok_dead").
			Return(nil, dErrors.New(dErrors.CodeAlreadyCompleted, "verification is already completed"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.customerRequest(http.MethodPost, "/v/tok_dead/submit", []byte(`{"categories":[]}`)))
		assert.Equal(s.T(), http.StatusGone, w.Code)
	})

	s.Run("rejects an empty payload", func() {
		r, mockService, _ := newTestHandler(s.T())
		v := s.fixture(id.NewBusinessID())
		mockService.EXPECT().Authorize(gomock.Any(), "tok_fixture").Return(v, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.customerRequest(http.MethodPost, "/v/tok_fixture/submit", []byte(`{"categories":[]}`)))
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})
}

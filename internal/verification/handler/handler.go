package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verilink/internal/assignment"
	"verilink/internal/submission"
	"verilink/internal/verification"
	"verilink/internal/verification/service"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
	"verilink/pkg/platform/httputil"
	"verilink/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler_mocks.go -package=mocks

// Service defines the verification lifecycle operations the handler exposes.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*verification.Verification, error)
	Authorize(ctx context.Context, linkToken string) (*verification.Verification, error)
	Get(ctx context.Context, verificationID id.VerificationID) (*verification.Verification, error)
	SubmitEvidence(ctx context.Context, verificationID id.VerificationID, categories []submission.CategoryEvidence) (*verification.Verification, *submission.Submission, error)
	Decide(ctx context.Context, verificationID id.VerificationID, in service.DecideInput) (*verification.Verification, error)
	Cancel(ctx context.Context, verificationID id.VerificationID, reason string) (*verification.Verification, error)
	ReviewQueue(ctx context.Context, verifierID id.VerifierID) ([]*verification.Verification, error)
}

// Assignments defines the workload operations the handler exposes.
type Assignments interface {
	Reassign(ctx context.Context, verificationID id.VerificationID) (id.VerifierID, error)
	Workloads(ctx context.Context, businessID id.BusinessID, policyType id.PolicyType) ([]assignment.Workload, error)
}

// Handler wires verification endpoints to the lifecycle service.
type Handler struct {
	service     Service
	assignments Assignments
	logger      *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, assignments Assignments, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		assignments: assignments,
		logger:      logger,
	}
}

// Register mounts the staff endpoints. Callers put these behind staff auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.HandleCreate)
	r.Get("/verifications/{id}", h.HandleGet)
	r.Post("/verifications/{id}/decision", h.HandleDecision)
	r.Post("/verifications/{id}/cancel", h.HandleCancel)
	r.Post("/verifications/{id}/reassign", h.HandleReassign)
	r.Get("/reviews/queue", h.HandleQueue)
	r.Get("/verifiers/workloads", h.HandleWorkloads)
}

// RegisterPublic mounts the customer link endpoints. The token in the path is
// the only credential.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/v/{token}", h.HandleLinkAccess)
	r.Post("/v/{token}/submit", h.HandleLinkSubmit)
}

// HandleCreate handles POST /verifications.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	businessID := requestcontext.BusinessID(ctx)
	if businessID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v, err := h.service.Create(ctx, req.ToInput(businessID))
	if err != nil {
		h.logger.ErrorContext(ctx, "verification creation failed",
			"request_id", requestID,
			"business_id", businessID,
			"policy_id", req.PolicyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification created",
		"request_id", requestID,
		"business_id", businessID,
		"verification_id", v.ID,
		"ref", v.Ref,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp := &CreatedResponse{
		VerificationResponse: *FromVerification(v, requestcontext.Now(ctx)),
		LinkToken:            v.LinkToken,
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleGet handles GET /verifications/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerification(v, requestcontext.Now(ctx)))
}

// HandleDecision handles POST /verifications/{id}/decision.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	v, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.Decide(ctx, v.ID, req.ToInput())
	if err != nil {
		h.logger.WarnContext(ctx, "decision refused",
			"request_id", requestID,
			"verification_id", v.ID,
			"decision", req.Decision,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decision recorded",
		"request_id", requestID,
		"verification_id", updated.ID,
		"decision", req.Decision,
		"status", updated.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, FromVerification(updated, requestcontext.Now(ctx)))
}

// HandleCancel handles POST /verifications/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	v, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.Cancel(ctx, v.ID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification cancelled",
		"request_id", requestID,
		"verification_id", updated.ID,
		"reason", req.Reason,
	)
	httputil.WriteJSON(w, http.StatusOK, FromVerification(updated, requestcontext.Now(ctx)))
}

// HandleReassign handles POST /verifications/{id}/reassign.
func (h *Handler) HandleReassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	v, ok := h.loadScoped(w, r)
	if !ok {
		return
	}

	verifierID, err := h.assignments.Reassign(ctx, v.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification reassigned",
		"request_id", requestID,
		"verification_id", v.ID,
		"verifier_id", verifierID,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"verification_id": v.ID.String(),
		"verifier_id":     verifierID.String(),
	})
}

// HandleQueue handles GET /reviews/queue for the authenticated verifier.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verifierID := requestcontext.VerifierID(ctx)
	if verifierID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	items, err := h.service.ReviewQueue(ctx, verifierID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromQueue(items, requestcontext.Now(ctx)))
}

// HandleWorkloads handles GET /verifiers/workloads?policy_type=...
func (h *Handler) HandleWorkloads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	businessID := requestcontext.BusinessID(ctx)
	if businessID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	policyType, err := id.ParsePolicyType(r.URL.Query().Get("policy_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	workloads, err := h.assignments.Workloads(ctx, businessID, policyType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromWorkloads(workloads))
}

// HandleLinkAccess handles GET /v/{token}. The token is checked in a fixed
// order so customers always see the most specific refusal.
func (h *Handler) HandleLinkAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	v, err := h.service.Authorize(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.logger.InfoContext(ctx, "link access refused",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "link accessed",
		"request_id", requestID,
		"verification_id", v.ID,
		"status", v.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, FromLinkAccess(v))
}

// HandleLinkSubmit handles POST /v/{token}/submit.
func (h *Handler) HandleLinkSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	v, err := h.service.Authorize(ctx, chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitEvidenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, sub, err := h.service.SubmitEvidence(ctx, v.ID, req.ToEvidence())
	if err != nil {
		h.logger.WarnContext(ctx, "evidence submission refused",
			"request_id", requestID,
			"verification_id", v.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evidence submitted",
		"request_id", requestID,
		"verification_id", updated.ID,
		"version", sub.Version,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromSubmission(updated, sub))
}

// loadScoped resolves {id}, loads the verification and pins it to the
// caller's business. Records outside the caller's scope read as not found.
func (h *Handler) loadScoped(w http.ResponseWriter, r *http.Request) (*verification.Verification, bool) {
	ctx := r.Context()

	businessID := requestcontext.BusinessID(ctx)
	if businessID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return nil, false
	}
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}

	v, err := h.service.Get(ctx, verificationID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if v.BusinessID != businessID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "verification not found"))
		return nil, false
	}
	return v, true
}

package handler

import (
	"time"

	"verilink/internal/assignment"
	"verilink/internal/submission"
	"verilink/internal/verification"
)

// VerificationResponse is the staff-facing view of a verification.
type VerificationResponse struct {
	ID         string `json:"id"`
	Ref        string `json:"ref"`
	PolicyID   string `json:"policy_id"`
	PolicyType string `json:"policy_type"`
	Status     string `json:"status"`
	Expired    bool   `json:"expired"`

	AssignedVerifierID string `json:"assigned_verifier_id,omitempty"`

	Customer CustomerResponse `json:"customer"`

	LinkExpiry     time.Time  `json:"link_expiry"`
	LinkAccessedAt *time.Time `json:"link_accessed_at,omitempty"`

	RejectionReason map[string]map[string]string `json:"rejection_reason,omitempty"`
	RejectionCount  int                          `json:"rejection_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerResponse is the customer portion of a verification view.
type CustomerResponse struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// CreatedResponse extends the verification view with the one-time link
// token, returned only at creation.
type CreatedResponse struct {
	VerificationResponse
	LinkToken string `json:"link_token"`
}

// FromVerification converts a domain verification to its staff view. Expiry
// is evaluated against the request clock, never stored.
func FromVerification(v *verification.Verification, now time.Time) *VerificationResponse {
	resp := &VerificationResponse{
		ID:             v.ID.String(),
		Ref:            v.Ref,
		PolicyID:       v.PolicyID.String(),
		PolicyType:     string(v.PolicyType),
		Status:         string(v.Status),
		Expired:        v.Expired(now),
		LinkExpiry:     v.LinkExpiry,
		LinkAccessedAt: v.LinkAccessedAt,
		RejectionCount: v.RejectionCount,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
		Customer: CustomerResponse{
			Name:    v.Customer.Name,
			Phone:   v.Customer.Phone,
			Email:   v.Customer.Email,
			Address: v.Customer.Address,
		},
	}
	if v.AssignedVerifierID != nil {
		resp.AssignedVerifierID = v.AssignedVerifierID.String()
	}
	if len(v.RejectionReason) > 0 {
		resp.RejectionReason = make(map[string]map[string]string, len(v.RejectionReason))
		for categoryID, fields := range v.RejectionReason {
			flagged := make(map[string]string, len(fields))
			for fieldID, reason := range fields {
				flagged[string(fieldID)] = reason
			}
			resp.RejectionReason[string(categoryID)] = flagged
		}
	}
	return resp
}

// LinkResponse is the customer-facing view behind a valid link: the task
// shape plus whatever the reviewer flagged, with staff-only detail omitted.
type LinkResponse struct {
	Ref        string `json:"ref"`
	PolicyType string `json:"policy_type"`
	Status     string `json:"status"`

	CustomerName string            `json:"customer_name"`
	Template     []SectionResponse `json:"template"`
	PrefillData  map[string]string `json:"prefill_data,omitempty"`

	RejectionReason map[string]map[string]string `json:"rejection_reason,omitempty"`

	LinkExpiry time.Time `json:"link_expiry"`
}

// SectionResponse is one template category in wire form.
type SectionResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Kind      string             `json:"kind"`
	Photos    []TemplateField    `json:"photos"`
	Questions []TemplateQuestion `json:"questions"`
}

// FromLinkAccess builds the customer view of a verification.
func FromLinkAccess(v *verification.Verification) *LinkResponse {
	resp := &LinkResponse{
		Ref:          v.Ref,
		PolicyType:   string(v.PolicyType),
		Status:       string(v.Status),
		CustomerName: v.Customer.Name,
		PrefillData:  v.PrefillData,
		LinkExpiry:   v.LinkExpiry,
	}
	for _, category := range v.Template.Categories {
		section := SectionResponse{
			ID:   string(category.ID),
			Name: category.Name,
			Kind: string(category.Kind),
		}
		for _, field := range category.Photos {
			section.Photos = append(section.Photos, TemplateField{
				ID:       string(field.ID),
				Label:    field.Label,
				Required: field.Required,
			})
		}
		for _, question := range category.Questions {
			section.Questions = append(section.Questions, TemplateQuestion{
				ID:       question.ID,
				Label:    question.Label,
				Required: question.Required,
			})
		}
		resp.Template = append(resp.Template, section)
	}
	if len(v.RejectionReason) > 0 {
		resp.RejectionReason = make(map[string]map[string]string, len(v.RejectionReason))
		for categoryID, fields := range v.RejectionReason {
			flagged := make(map[string]string, len(fields))
			for fieldID, reason := range fields {
				flagged[string(fieldID)] = reason
			}
			resp.RejectionReason[string(categoryID)] = flagged
		}
	}
	return resp
}

// SubmissionResponse acknowledges an accepted evidence snapshot.
type SubmissionResponse struct {
	SubmissionID string    `json:"submission_id"`
	Version      int       `json:"version"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// FromSubmission converts an accepted snapshot to its acknowledgement.
func FromSubmission(v *verification.Verification, sub *submission.Submission) *SubmissionResponse {
	return &SubmissionResponse{
		SubmissionID: sub.ID.String(),
		Version:      sub.Version,
		Status:       string(v.Status),
		SubmittedAt:  sub.SubmittedAt,
	}
}

// WorkloadResponse is one verifier's standing in the workload report.
type WorkloadResponse struct {
	VerifierID     string `json:"verifier_id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
	ActiveCount    int    `json:"active_count"`
}

// FromWorkloads converts the assignment report to wire form.
func FromWorkloads(workloads []assignment.Workload) []WorkloadResponse {
	out := make([]WorkloadResponse, 0, len(workloads))
	for _, w := range workloads {
		entry := WorkloadResponse{
			VerifierID:  w.VerifierID.String(),
			Name:        w.Name,
			ActiveCount: w.Active,
		}
		if w.Specialization != nil {
			entry.Specialization = string(*w.Specialization)
		}
		out = append(out, entry)
	}
	return out
}

// QueueResponse lists a verifier's pending reviews.
type QueueResponse struct {
	Verifications []*VerificationResponse `json:"verifications"`
}

// FromQueue converts a review queue to wire form.
func FromQueue(items []*verification.Verification, now time.Time) *QueueResponse {
	resp := &QueueResponse{Verifications: make([]*VerificationResponse, 0, len(items))}
	for _, v := range items {
		resp.Verifications = append(resp.Verifications, FromVerification(v, now))
	}
	return resp
}

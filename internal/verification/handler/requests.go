package handler

import (
	"strings"

	"verilink/internal/geo"
	"verilink/internal/rejection"
	"verilink/internal/submission"
	"verilink/internal/verification"
	"verilink/internal/verification/service"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
)

const (
	minSLAHours = 1
	maxSLAHours = 24 * 30
)

// CreateVerificationRequest is the HTTP request body for POST /verifications.
type CreateVerificationRequest struct {
	PolicyID   string `json:"policy_id"`
	PolicyType string `json:"policy_type"`
	SLAHours   int    `json:"sla_hours"`

	Customer struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Address string `json:"address"`
	} `json:"customer"`

	PropertyCoordinates *geo.Coordinates  `json:"property_coordinates,omitempty"`
	Template            []TemplateSection `json:"template"`
	PrefillData         map[string]string `json:"prefill_data,omitempty"`

	// Parsed values (populated by Validate)
	parsedPolicyID   id.PolicyID
	parsedPolicyType id.PolicyType
}

// TemplateSection is one category of the template in wire form.
type TemplateSection struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Kind      string             `json:"kind"`
	Photos    []TemplateField    `json:"photos"`
	Questions []TemplateQuestion `json:"questions"`
}

// TemplateField is one photo slot in wire form.
type TemplateField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// TemplateQuestion is one guided-flow question in wire form.
type TemplateQuestion struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateVerificationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	policyID, err := id.ParsePolicyID(strings.TrimSpace(r.PolicyID))
	if err != nil {
		return err
	}
	r.parsedPolicyID = policyID

	policyType, err := id.ParsePolicyType(strings.TrimSpace(r.PolicyType))
	if err != nil {
		return err
	}
	r.parsedPolicyType = policyType

	if r.SLAHours < minSLAHours || r.SLAHours > maxSLAHours {
		return dErrors.New(dErrors.CodeValidation, "sla_hours must be between 1 and 720")
	}

	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	if r.Customer.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "customer.name is required")
	}
	if r.Customer.Phone == "" && r.Customer.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "customer needs a phone or email contact")
	}

	if len(r.Template) == 0 {
		return dErrors.New(dErrors.CodeValidation, "template must have at least one section")
	}
	for _, section := range r.Template {
		if strings.TrimSpace(section.ID) == "" {
			return dErrors.New(dErrors.CodeValidation, "template section id is required")
		}
		switch rejection.CategoryKind(section.Kind) {
		case rejection.CategoryKindIdentity, rejection.CategoryKindEvidence:
		default:
			return dErrors.New(dErrors.CodeValidation, "template section kind must be identity or evidence")
		}
	}

	if r.parsedPolicyType.PropertyBound() && r.PropertyCoordinates == nil {
		return dErrors.New(dErrors.CodeValidation, "property_coordinates are required for this policy type")
	}
	if r.PropertyCoordinates != nil {
		if r.PropertyCoordinates.Lat < -90 || r.PropertyCoordinates.Lat > 90 ||
			r.PropertyCoordinates.Lon < -180 || r.PropertyCoordinates.Lon > 180 {
			return dErrors.New(dErrors.CodeValidation, "property_coordinates are out of range")
		}
	}
	return nil
}

// ToInput converts the validated request into service input. The business
// scope comes from the authenticated caller, never the body.
func (r *CreateVerificationRequest) ToInput(businessID id.BusinessID) service.CreateInput {
	in := service.CreateInput{
		PolicyID:            r.parsedPolicyID,
		BusinessID:          businessID,
		PolicyType:          r.parsedPolicyType,
		SLAHours:            r.SLAHours,
		PropertyCoordinates: r.PropertyCoordinates,
		PrefillData:         r.PrefillData,
	}
	in.Customer = verification.Customer{
		Name:    r.Customer.Name,
		Phone:   r.Customer.Phone,
		Email:   r.Customer.Email,
		Address: r.Customer.Address,
	}
	in.Template.Categories = make([]verification.Category, 0, len(r.Template))
	for _, section := range r.Template {
		category := verification.Category{
			ID:   rejection.CategoryID(section.ID),
			Name: section.Name,
			Kind: rejection.CategoryKind(section.Kind),
		}
		for _, field := range section.Photos {
			category.Photos = append(category.Photos, verification.FieldDef{
				ID:       rejection.FieldID(field.ID),
				Label:    field.Label,
				Required: field.Required,
			})
		}
		for _, question := range section.Questions {
			category.Questions = append(category.Questions, verification.QuestionDef{
				ID:       question.ID,
				Label:    question.Label,
				Required: question.Required,
			})
		}
		in.Template.Categories = append(in.Template.Categories, category)
	}
	return in
}

// SubmitEvidenceRequest is the HTTP request body for POST /v/{token}/submit.
type SubmitEvidenceRequest struct {
	Categories []CategoryEvidenceRequest `json:"categories"`
}

// CategoryEvidenceRequest is the evidence for one template section.
type CategoryEvidenceRequest struct {
	CategoryID string          `json:"category_id"`
	Photos     []PhotoRequest  `json:"photos"`
	Answers    []AnswerRequest `json:"answers"`
}

// PhotoRequest is one uploaded photo reference with capture metadata.
type PhotoRequest struct {
	FieldID string           `json:"field_id"`
	URL     string           `json:"url"`
	GPS     *geo.Coordinates `json:"gps,omitempty"`
}

// AnswerRequest is one guided-flow answer.
type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Validate checks wire-level shape; domain completeness is the service's job.
func (r *SubmitEvidenceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Categories) == 0 {
		return dErrors.New(dErrors.CodeValidation, "categories must not be empty")
	}
	for _, category := range r.Categories {
		if strings.TrimSpace(category.CategoryID) == "" {
			return dErrors.New(dErrors.CodeValidation, "category_id is required")
		}
		for _, photo := range category.Photos {
			if strings.TrimSpace(photo.FieldID) == "" || strings.TrimSpace(photo.URL) == "" {
				return dErrors.New(dErrors.CodeValidation, "photos need a field_id and url")
			}
		}
		for _, answer := range category.Answers {
			if strings.TrimSpace(answer.QuestionID) == "" {
				return dErrors.New(dErrors.CodeValidation, "answers need a question_id")
			}
		}
	}
	return nil
}

// ToEvidence converts the validated request into domain evidence.
func (r *SubmitEvidenceRequest) ToEvidence() []submission.CategoryEvidence {
	out := make([]submission.CategoryEvidence, 0, len(r.Categories))
	for _, category := range r.Categories {
		evidence := submission.CategoryEvidence{
			CategoryID: rejection.CategoryID(category.CategoryID),
		}
		for _, photo := range category.Photos {
			evidence.Photos = append(evidence.Photos, submission.Photo{
				FieldID: rejection.FieldID(photo.FieldID),
				URL:     photo.URL,
				GPS:     photo.GPS,
			})
		}
		for _, answer := range category.Answers {
			evidence.Answers = append(evidence.Answers, submission.Answer{
				QuestionID: answer.QuestionID,
				Value:      answer.Value,
			})
		}
		out = append(out, evidence)
	}
	return out
}

// DecisionRequest is the HTTP request body for POST /verifications/{id}/decision.
type DecisionRequest struct {
	Decision     string                       `json:"decision"`
	Feedback     map[string]map[string]string `json:"feedback,omitempty"`
	ConfirmFinal bool                         `json:"confirm_final,omitempty"`
}

// Validate validates and parses the request.
func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	switch service.Decision(r.Decision) {
	case service.DecisionApprove:
		if len(r.Feedback) > 0 {
			return dErrors.New(dErrors.CodeValidation, "feedback is only valid on rejections")
		}
	case service.DecisionReject:
		if len(r.Feedback) == 0 {
			return dErrors.New(dErrors.CodeEmptySelection, "a rejection must flag at least one field")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "decision must be approve or reject")
	}
	return nil
}

// ToInput converts the validated request into service input.
func (r *DecisionRequest) ToInput() service.DecideInput {
	in := service.DecideInput{
		Decision:     service.Decision(r.Decision),
		ConfirmFinal: r.ConfirmFinal,
	}
	if len(r.Feedback) > 0 {
		in.Feedback = make(rejection.Feedback, len(r.Feedback))
		for categoryID, fields := range r.Feedback {
			flagged := make(map[rejection.FieldID]string, len(fields))
			for fieldID, reason := range fields {
				flagged[rejection.FieldID(fieldID)] = reason
			}
			in.Feedback[rejection.CategoryID(categoryID)] = flagged
		}
	}
	return in
}

// CancelRequest is the HTTP request body for POST /verifications/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Validate validates the request.
func (r *CancelRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

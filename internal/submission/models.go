// Package submission stores evidence snapshots. A resubmission after a
// revision request creates a new version; evidence already reviewed is never
// edited in place.
package submission

import (
	"time"

	"verilink/internal/geo"
	"verilink/internal/rejection"
	id "verilink/pkg/domain"
)

// Photo is one captured image reference. The engine records the blob URL and
// GPS metadata only; binary content lives with the storage collaborator.
type Photo struct {
	FieldID rejection.FieldID `json:"field_id"`
	URL     string            `json:"url"`
	GPS     *geo.Coordinates  `json:"gps,omitempty"`
}

// Answer is one guided-flow answer.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// CategoryEvidence groups the evidence submitted for one template category.
type CategoryEvidence struct {
	CategoryID rejection.CategoryID `json:"category_id"`
	Photos     []Photo              `json:"photos"`
	Answers    []Answer             `json:"answers"`
}

// Submission is one immutable evidence snapshot for a verification.
type Submission struct {
	ID             id.SubmissionID
	VerificationID id.VerificationID
	// Version starts at 1 and increments per resubmission cycle.
	Version     int
	Categories  []CategoryEvidence
	SubmittedAt time.Time
}

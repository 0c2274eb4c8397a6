package service

import (
	"context"
	"errors"
	"fmt"

	"verilink/internal/geo"
	"verilink/internal/rejection"
	"verilink/internal/submission"
	"verilink/internal/verification"
	id "verilink/pkg/domain"
	dErrors "verilink/pkg/domain-errors"
	"verilink/pkg/platform/audit"
	"verilink/pkg/platform/sentinel"
	"verilink/pkg/requestcontext"
)

// SubmitEvidence records a customer's evidence snapshot and moves the
// verification to submitted. All validation (completeness, geofence) runs
// before any state is touched; a refused submission leaves the record exactly
// as it was.
//
// After a revision request only the flagged fields need resubmitting; the
// new snapshot is the previous one overlaid with the resubmitted fields, so
// reviewers always see one complete evidence set per version.
func (s *Service) SubmitEvidence(ctx context.Context, verificationID id.VerificationID, categories []submission.CategoryEvidence) (*verification.Verification, *submission.Submission, error) {
	v, err := s.findByID(ctx, verificationID)
	if err != nil {
		return nil, nil, err
	}

	now := requestcontext.Now(ctx)
	if v.Expired(now) {
		return nil, nil, dErrors.New(dErrors.CodeExpired, "verification link has expired")
	}
	if _, err := verification.NextStatus(v.Status, verification.EventSubmit, v.RejectionCount); err != nil {
		return nil, nil, err
	}

	revision := v.Status == verification.StatusNeedsRevision

	var prior *submission.Submission
	if revision {
		prior, err = s.submissions.Latest(ctx, v.ID)
		if err != nil {
			return nil, nil, dErrors.Wrap(dErrors.CodeInternal, "load prior submission", err)
		}
	}

	if revision {
		if err := requireFlaggedFields(v.RejectionReason, categories); err != nil {
			return nil, nil, err
		}
	} else {
		if err := requireCompleteness(v.Template, categories); err != nil {
			return nil, nil, err
		}
	}

	if err := s.enforceGeofence(v, categories); err != nil {
		return nil, nil, err
	}

	snapshot := &submission.Submission{
		ID:             id.NewSubmissionID(),
		VerificationID: v.ID,
		Categories:     categories,
		SubmittedAt:    now,
	}
	if revision {
		snapshot.Categories = overlayEvidence(prior.Categories, categories)
	}

	// Snapshot first: it is an immutable record of what the customer sent,
	// so an orphan version from a lost transition race is harmless.
	if err := s.submissions.Create(ctx, snapshot); err != nil {
		return nil, nil, dErrors.Wrap(dErrors.CodeInternal, "persist submission", err)
	}

	err = s.store.TransitionStatus(ctx, v.ID, v.Status, verification.StatusSubmitted, now)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, nil, dErrors.New(dErrors.CodeInvalidTransition, "verification moved while submitting; reload and retry")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(dErrors.CodeInternal, "transition to submitted", err)
	}

	v.Status = verification.StatusSubmitted
	v.UpdatedAt = now
	s.metrics.IncrementTransition(string(verification.StatusSubmitted))
	s.auditor.Record(ctx, audit.Event{
		Action:         audit.ActionEvidenceSubmitted,
		VerificationID: v.ID,
		BusinessID:     v.BusinessID,
		Actor:          "customer",
		Detail:         fmt.Sprintf("version %d", snapshot.Version),
	})
	return v, snapshot, nil
}

// enforceGeofence validates photo GPS metadata for property-bound policies.
// Violations are reported per field before any state mutation.
func (s *Service) enforceGeofence(v *verification.Verification, categories []submission.CategoryEvidence) error {
	if !geo.Required(v.PolicyType) {
		return nil
	}
	for _, category := range categories {
		def, ok := v.Template.Category(category.CategoryID)
		if ok && def.Kind == rejection.CategoryKindIdentity {
			// Identity documents are not location-bound.
			continue
		}
		for _, photo := range category.Photos {
			result := geo.Validate(photo.GPS, v.PropertyCoordinates, s.geoToleranceMeters)
			if !result.IsValid || !result.WithinTolerance {
				s.metrics.IncrementGeofenceFailure()
				return dErrors.New(dErrors.CodeGeofenceViolation,
					fmt.Sprintf("photo %s: %s", photo.FieldID, result.Message))
			}
		}
	}
	return nil
}

// requireCompleteness checks that a full submission covers every required
// photo field and question in the template snapshot.
func requireCompleteness(template verification.TemplateSnapshot, categories []submission.CategoryEvidence) error {
	submitted := indexEvidence(categories)
	for _, def := range template.Categories {
		evidence, present := submitted[def.ID]
		for _, photo := range def.Photos {
			if !photo.Required {
				continue
			}
			if !present || !evidence.hasPhoto(photo.ID) {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("required photo %s/%s is missing", def.ID, photo.ID))
			}
		}
		for _, question := range def.Questions {
			if !question.Required {
				continue
			}
			if !present || !evidence.hasAnswer(question.ID) {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("required answer %s/%s is missing", def.ID, question.ID))
			}
		}
	}
	return nil
}

// requireFlaggedFields checks that a revision resubmission covers exactly the
// fields the reviewer flagged.
func requireFlaggedFields(flagged rejection.Feedback, categories []submission.CategoryEvidence) error {
	submitted := indexEvidence(categories)
	for categoryID, fields := range flagged {
		evidence, present := submitted[categoryID]
		for fieldID := range fields {
			if !present || !evidence.hasPhoto(fieldID) {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("flagged field %s/%s was not resubmitted", categoryID, fieldID))
			}
		}
	}
	return nil
}

type evidenceIndex struct {
	photos  map[rejection.FieldID]struct{}
	answers map[string]struct{}
}

func (e evidenceIndex) hasPhoto(fieldID rejection.FieldID) bool {
	_, ok := e.photos[fieldID]
	return ok
}

func (e evidenceIndex) hasAnswer(questionID string) bool {
	_, ok := e.answers[questionID]
	return ok
}

func indexEvidence(categories []submission.CategoryEvidence) map[rejection.CategoryID]evidenceIndex {
	index := make(map[rejection.CategoryID]evidenceIndex, len(categories))
	for _, category := range categories {
		entry := evidenceIndex{
			photos:  make(map[rejection.FieldID]struct{}, len(category.Photos)),
			answers: make(map[string]struct{}, len(category.Answers)),
		}
		for _, photo := range category.Photos {
			if photo.URL != "" {
				entry.photos[photo.FieldID] = struct{}{}
			}
		}
		for _, answer := range category.Answers {
			if answer.Value != "" {
				entry.answers[answer.QuestionID] = struct{}{}
			}
		}
		index[category.CategoryID] = entry
	}
	return index
}

// overlayEvidence merges resubmitted fields onto the prior snapshot so every
// version is a complete evidence set.
func overlayEvidence(prior, latest []submission.CategoryEvidence) []submission.CategoryEvidence {
	merged := make([]submission.CategoryEvidence, len(prior))
	copy(merged, prior)

	latestByCategory := make(map[rejection.CategoryID]submission.CategoryEvidence, len(latest))
	for _, category := range latest {
		latestByCategory[category.CategoryID] = category
	}

	seen := make(map[rejection.CategoryID]struct{}, len(prior))
	for i, category := range merged {
		seen[category.CategoryID] = struct{}{}
		update, ok := latestByCategory[category.CategoryID]
		if !ok {
			continue
		}
		merged[i] = overlayCategory(category, update)
	}
	// Categories the prior snapshot never had are appended as-is.
	for _, category := range latest {
		if _, ok := seen[category.CategoryID]; !ok {
			merged = append(merged, category)
		}
	}
	return merged
}

func overlayCategory(prior, update submission.CategoryEvidence) submission.CategoryEvidence {
	out := submission.CategoryEvidence{CategoryID: prior.CategoryID}

	updatedPhotos := make(map[rejection.FieldID]submission.Photo, len(update.Photos))
	for _, photo := range update.Photos {
		updatedPhotos[photo.FieldID] = photo
	}
	for _, photo := range prior.Photos {
		if replacement, ok := updatedPhotos[photo.FieldID]; ok {
			out.Photos = append(out.Photos, replacement)
			delete(updatedPhotos, photo.FieldID)
			continue
		}
		out.Photos = append(out.Photos, photo)
	}
	for _, photo := range update.Photos {
		if _, stillNew := updatedPhotos[photo.FieldID]; stillNew {
			out.Photos = append(out.Photos, photo)
		}
	}

	updatedAnswers := make(map[string]submission.Answer, len(update.Answers))
	for _, answer := range update.Answers {
		updatedAnswers[answer.QuestionID] = answer
	}
	for _, answer := range prior.Answers {
		if replacement, ok := updatedAnswers[answer.QuestionID]; ok {
			out.Answers = append(out.Answers, replacement)
			delete(updatedAnswers, answer.QuestionID)
			continue
		}
		out.Answers = append(out.Answers, answer)
	}
	for _, answer := range update.Answers {
		if _, stillNew := updatedAnswers[answer.QuestionID]; stillNew {
			out.Answers = append(out.Answers, answer)
		}
	}
	return out
}

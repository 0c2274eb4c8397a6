package verification

import (
	"verilink/internal/rejection"
	dErrors "verilink/pkg/domain-errors"
)

// Event names the external triggers that move a verification through its
// lifecycle. All transitions are synchronous consequences of one of these;
// nothing moves in the background.
type Event string

const (
	EventFirstAccess Event = "first_access"
	EventSubmit      Event = "submit"
	EventApprove     Event = "approve"
	EventReject      Event = "reject"
	EventCancel      Event = "cancel"
)

// NextStatus applies the transition table. This is pure domain logic: the
// caller supplies the current status and, for rejections, the prior rejection
// count that decides between revision and permanent rejection.
//
//	pending        --first_access--> in_progress
//	in_progress    --submit--------> submitted
//	needs_revision --submit--------> submitted
//	submitted      --approve-------> approved
//	submitted      --reject--------> needs_revision (< MaxRevisions priors)
//	submitted      --reject--------> rejected       (>= MaxRevisions priors)
//	pending | in_progress | submitted --cancel--> cancelled
func NextStatus(current Status, event Event, priorRejections int) (Status, error) {
	switch event {
	case EventFirstAccess:
		if current == StatusPending {
			return StatusInProgress, nil
		}
	case EventSubmit:
		if current == StatusInProgress || current == StatusNeedsRevision {
			return StatusSubmitted, nil
		}
	case EventApprove:
		if current == StatusSubmitted {
			return StatusApproved, nil
		}
	case EventReject:
		if current == StatusSubmitted {
			if rejection.Escalate(priorRejections) == rejection.OutcomeFinalReject {
				return StatusRejected, nil
			}
			return StatusNeedsRevision, nil
		}
	case EventCancel:
		switch current {
		case StatusPending, StatusInProgress, StatusSubmitted:
			return StatusCancelled, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidTransition,
		"event "+string(event)+" is not legal from status "+string(current))
}

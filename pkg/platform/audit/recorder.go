package audit

import (
	"context"
	"log/slog"

	"verilink/pkg/requestcontext"
)

// Recorder is the write handle services hold. Events are handed to a buffered
// channel and persisted by the worker; audit emission never blocks or fails a
// business operation, but drops are logged so operators see the gap.
type Recorder struct {
	inbox  chan<- Event
	logger *slog.Logger
}

// NewRecorder builds a recorder feeding the given inbox.
func NewRecorder(inbox chan<- Event, logger *slog.Logger) *Recorder {
	return &Recorder{inbox: inbox, logger: logger}
}

// Record stamps and enqueues an event. Nil recorders are safe no-ops so tests
// can skip audit wiring.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case r.inbox <- event:
	default:
		r.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", string(event.Action),
			"verification_id", event.VerificationID.String(),
		)
	}
}

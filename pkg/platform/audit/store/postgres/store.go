package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "verilink/pkg/platform/audit"
	txcontext "verilink/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and relayed to Kafka by the
// publisher; the outbox write can join the caller's transaction so an event
// is recorded exactly when its transition commits.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure relayed to Kafka.
type outboxPayload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Action         string `json:"action"`
	VerificationID string `json:"verification_id,omitempty"`
	BusinessID     string `json:"business_id,omitempty"`
	Actor          string `json:"actor,omitempty"`
	ActorID        string `json:"actor_id,omitempty"`
	Detail         string `json:"detail,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka relay.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(event.Action.Category()),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    string(event.Action),
		Actor:     event.Actor,
		ActorID:   event.ActorID,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}
	if !event.VerificationID.IsNil() {
		payload.VerificationID = event.VerificationID.String()
	}
	if !event.BusinessID.IsNil() {
		payload.BusinessID = event.BusinessID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.VerificationID.IsNil() {
		aggregateType = "verification"
		aggregateID = event.VerificationID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		string(event.Action),
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

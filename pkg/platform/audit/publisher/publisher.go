// Package publisher relays audit outbox rows to Kafka. Kafka is the source
// of truth for the audit trail; the outbox table only bridges the gap between
// a transition's transaction and the broker.
package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Publisher drains the outbox table into a Kafka topic.
type Publisher struct {
	db     *sql.DB
	client *kgo.Client
	topic  string
	logger *slog.Logger

	pollInterval time.Duration
	batchSize    int
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithPollInterval overrides how often the outbox is scanned.
func WithPollInterval(d time.Duration) Option {
	return func(p *Publisher) { p.pollInterval = d }
}

// WithBatchSize overrides how many rows one scan relays.
func WithBatchSize(n int) Option {
	return func(p *Publisher) { p.batchSize = n }
}

// New builds a publisher over an existing Kafka client.
func New(db *sql.DB, client *kgo.Client, topic string, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		db:           db,
		client:       client,
		topic:        topic,
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureTopic creates the audit topic when it does not exist yet. Safe to call
// on every startup.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	existing, err := admin.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if existing.Has(topic) {
		return nil
	}
	_, err = admin.CreateTopic(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// Run polls the outbox until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.relayBatch(ctx); err != nil {
				p.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id          uuid.UUID
	aggregateID string
	payload     []byte
}

// relayBatch claims a batch of unpublished rows, produces them, and marks the
// ones the broker acknowledged. FOR UPDATE SKIP LOCKED keeps concurrent
// publishers from double-claiming a row.
func (p *Publisher) relayBatch(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, p.batchSize)
	if err != nil {
		return fmt.Errorf("select outbox batch: %w", err)
	}

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregateID, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	rows.Close()

	if len(batch) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(batch))
	for _, row := range batch {
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(row.aggregateID),
			Value: row.payload,
		}
		// Synchronous produce keeps at-least-once semantics simple: a row is
		// only marked published after the broker acknowledged it.
		if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			p.logger.ErrorContext(ctx, "produce audit event failed",
				"outbox_id", row.id.String(),
				"error", err,
			)
			break
		}
		published = append(published, row.id)
	}

	if len(published) > 0 {
		ids := make([]string, len(published))
		for i, outboxID := range published {
			ids[i] = outboxID.String()
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE outbox SET published_at = NOW()
			WHERE id = ANY($1::uuid[])
		`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("mark outbox published: %w", err)
		}
	}
	return tx.Commit()
}

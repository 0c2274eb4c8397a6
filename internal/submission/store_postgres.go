package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
	txcontext "verilink/pkg/platform/tx"
)

// PostgresStore persists evidence snapshots in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed submission store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sub *Submission) error {
	categoriesJSON, err := json.Marshal(sub.Categories)
	if err != nil {
		return fmt.Errorf("marshal submission categories: %w", err)
	}

	// Version is derived inside the insert so concurrent snapshots of the
	// same verification cannot collide on a version number.
	query := `
		INSERT INTO submissions (id, verification_id, version, categories, submitted_at)
		VALUES (
			$1, $2,
			COALESCE((SELECT MAX(version) FROM submissions WHERE verification_id = $2), 0) + 1,
			$3, $4
		)
		RETURNING version
	`
	var execer interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	} = s.db
	if tx, ok := txcontext.From(ctx); ok {
		execer = tx
	}
	err = execer.QueryRowContext(ctx, query,
		uuid.UUID(sub.ID),
		uuid.UUID(sub.VerificationID),
		categoriesJSON,
		sub.SubmittedAt,
	).Scan(&sub.Version)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, verificationID id.VerificationID) (*Submission, error) {
	query := `
		SELECT id, verification_id, version, categories, submitted_at
		FROM submissions
		WHERE verification_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(verificationID))
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submissions for verification %s: %w", verificationID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("latest submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListByVerification(ctx context.Context, verificationID id.VerificationID) ([]*Submission, error) {
	query := `
		SELECT id, verification_id, version, categories, submitted_at
		FROM submissions
		WHERE verification_id = $1
		ORDER BY version ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(verificationID))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var snapshots []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		snapshots = append(snapshots, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var (
		sub               Submission
		rawID             uuid.UUID
		rawVerificationID uuid.UUID
		categoriesJSON    []byte
	)
	if err := row.Scan(&rawID, &rawVerificationID, &sub.Version, &categoriesJSON, &sub.SubmittedAt); err != nil {
		return nil, err
	}
	sub.ID = id.SubmissionID(rawID)
	sub.VerificationID = id.VerificationID(rawVerificationID)
	if err := json.Unmarshal(categoriesJSON, &sub.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal submission categories: %w", err)
	}
	return &sub, nil
}

package verifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

// PostgresStore persists verifiers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed verifier store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, v *Verifier) error {
	var specialization sql.NullString
	if v.Specialization != nil {
		specialization = sql.NullString{String: v.Specialization.String(), Valid: true}
	}
	query := `
		INSERT INTO verifiers (id, business_id, name, email, specialization, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(v.ID),
		uuid.UUID(v.BusinessID),
		v.Name,
		v.Email,
		specialization,
		v.IsActive,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verifier: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, verifierID id.VerifierID) (*Verifier, error) {
	query := `
		SELECT id, business_id, name, email, specialization, is_active, created_at
		FROM verifiers
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(verifierID))
	v, err := scanVerifier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verifier %s: %w", verifierID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find verifier: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListEligible(ctx context.Context, businessID id.BusinessID, policyType id.PolicyType) ([]*Verifier, error) {
	query := `
		SELECT id, business_id, name, email, specialization, is_active, created_at
		FROM verifiers
		WHERE business_id = $1
		  AND is_active = TRUE
		  AND (specialization IS NULL OR specialization = $2)
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(businessID), policyType.String())
	if err != nil {
		return nil, fmt.Errorf("list eligible verifiers: %w", err)
	}
	defer rows.Close()

	var eligible []*Verifier
	for rows.Next() {
		v, err := scanVerifier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verifier: %w", err)
		}
		eligible = append(eligible, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifiers: %w", err)
	}
	return eligible, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, verifierID id.VerifierID, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE verifiers SET is_active = $2 WHERE id = $1`,
		uuid.UUID(verifierID), active,
	)
	if err != nil {
		return fmt.Errorf("set verifier active: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set verifier active: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("verifier %s: %w", verifierID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerifier(row rowScanner) (*Verifier, error) {
	var (
		v              Verifier
		rawID          uuid.UUID
		rawBusinessID  uuid.UUID
		specialization sql.NullString
	)
	err := row.Scan(&rawID, &rawBusinessID, &v.Name, &v.Email, &specialization, &v.IsActive, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.ID = id.VerifierID(rawID)
	v.BusinessID = id.BusinessID(rawBusinessID)
	if specialization.Valid {
		policyType, err := id.ParsePolicyType(specialization.String)
		if err != nil {
			return nil, err
		}
		v.Specialization = &policyType
	}
	return &v, nil
}

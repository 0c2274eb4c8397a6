package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"verilink/internal/geo"
	"verilink/internal/rejection"
	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
	txcontext "verilink/pkg/platform/tx"
)

// PostgresStore persists verification records in PostgreSQL. Transition
// guards are expressed in the UPDATE predicates themselves, so the database
// is the single arbiter of every compare-and-swap.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed verification store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const verificationColumns = `
	id, ref, policy_id, business_id, policy_type, assigned_verifier_id, status,
	link_token, link_expiry, link_accessed_at,
	customer_name, customer_phone, customer_email, customer_address,
	property_lat, property_lon,
	template_snapshot, prefill_data, rejection_reason, rejection_count,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, v *Verification) error {
	templateJSON, err := json.Marshal(v.Template)
	if err != nil {
		return fmt.Errorf("marshal template snapshot: %w", err)
	}
	prefillJSON, err := json.Marshal(v.PrefillData)
	if err != nil {
		return fmt.Errorf("marshal prefill data: %w", err)
	}

	var verifierID any
	if v.AssignedVerifierID != nil {
		verifierID = uuid.UUID(*v.AssignedVerifierID)
	}
	var lat, lon any
	if v.PropertyCoordinates != nil {
		lat = v.PropertyCoordinates.Lat
		lon = v.PropertyCoordinates.Lon
	}

	query := `
		INSERT INTO verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULL, 0, $19, $20)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(v.ID),
		v.Ref,
		uuid.UUID(v.PolicyID),
		uuid.UUID(v.BusinessID),
		v.PolicyType.String(),
		verifierID,
		string(v.Status),
		v.LinkToken,
		v.LinkExpiry,
		nil,
		v.Customer.Name,
		v.Customer.Phone,
		v.Customer.Email,
		v.Customer.Address,
		lat,
		lon,
		templateJSON,
		prefillJSON,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, verificationID id.VerificationID) (*Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(verificationID))
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find verification: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, linkToken string) (*Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE link_token = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, linkToken)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("link token: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find verification by token: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListByVerifier(ctx context.Context, verifierID id.VerifierID) ([]*Verification, error) {
	query := `SELECT ` + verificationColumns + `
		FROM verifications
		WHERE assigned_verifier_id = $1
		ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(verifierID))
	if err != nil {
		return nil, fmt.Errorf("list verifications by verifier: %w", err)
	}
	defer rows.Close()

	var assigned []*Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		assigned = append(assigned, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return assigned, nil
}

func (s *PostgresStore) CountActive(ctx context.Context, businessID id.BusinessID) (map[id.VerifierID]int, error) {
	query := `
		SELECT assigned_verifier_id, COUNT(*)
		FROM verifications
		WHERE business_id = $1
		  AND assigned_verifier_id IS NOT NULL
		  AND status IN ('pending', 'in_progress')
		GROUP BY assigned_verifier_id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(businessID))
	if err != nil {
		return nil, fmt.Errorf("count active verifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.VerifierID]int)
	for rows.Next() {
		var verifierID uuid.UUID
		var count int
		if err := rows.Scan(&verifierID, &count); err != nil {
			return nil, fmt.Errorf("scan workload count: %w", err)
		}
		counts[id.VerifierID(verifierID)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workload counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) AttachVerifierIfUnassigned(ctx context.Context, verificationID id.VerificationID, verifierID id.VerifierID, at time.Time) error {
	query := `
		UPDATE verifications
		SET assigned_verifier_id = $2, updated_at = $3
		WHERE id = $1 AND assigned_verifier_id IS NULL
	`
	return s.guardedUpdate(ctx, verificationID, query,
		uuid.UUID(verificationID), uuid.UUID(verifierID), at)
}

func (s *PostgresStore) ClearVerifier(ctx context.Context, verificationID id.VerificationID, expected id.VerifierID, at time.Time) error {
	query := `
		UPDATE verifications
		SET assigned_verifier_id = NULL, updated_at = $3
		WHERE id = $1 AND assigned_verifier_id = $2
	`
	return s.guardedUpdate(ctx, verificationID, query,
		uuid.UUID(verificationID), uuid.UUID(expected), at)
}

func (s *PostgresStore) MarkFirstAccess(ctx context.Context, verificationID id.VerificationID, at time.Time) error {
	query := `
		UPDATE verifications
		SET status = 'in_progress', link_accessed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending' AND link_accessed_at IS NULL
	`
	return s.guardedUpdate(ctx, verificationID, query, uuid.UUID(verificationID), at)
}

func (s *PostgresStore) TransitionStatus(ctx context.Context, verificationID id.VerificationID, from, to Status, at time.Time) error {
	query := `
		UPDATE verifications
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	return s.guardedUpdate(ctx, verificationID, query,
		uuid.UUID(verificationID), string(from), string(to), at)
}

func (s *PostgresStore) ApplyRejection(ctx context.Context, verificationID id.VerificationID, to Status, merged rejection.Feedback, expectedCount int, at time.Time) error {
	feedbackJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal rejection feedback: %w", err)
	}
	query := `
		UPDATE verifications
		SET status = $2, rejection_reason = $3, rejection_count = rejection_count + 1, updated_at = $4
		WHERE id = $1 AND status = 'submitted' AND rejection_count = $5
	`
	return s.guardedUpdate(ctx, verificationID, query,
		uuid.UUID(verificationID), string(to), feedbackJSON, at, expectedCount)
}

// guardedUpdate runs a CAS-style UPDATE, distinguishing a missing record from
// a lost race when zero rows match.
func (s *PostgresStore) guardedUpdate(ctx context.Context, verificationID id.VerificationID, query string, args ...any) error {
	result, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM verifications WHERE id = $1)`,
		uuid.UUID(verificationID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check verification existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("verification %s moved since it was read: %w", verificationID, sentinel.ErrConflict)
}

func scanVerification(row rowScanner) (*Verification, error) {
	var (
		v               Verification
		rawID           uuid.UUID
		rawPolicyID     uuid.UUID
		rawBusinessID   uuid.UUID
		rawPolicyType   string
		rawVerifierID   uuid.NullUUID
		rawStatus       string
		accessedAt      sql.NullTime
		lat, lon        sql.NullFloat64
		templateJSON    []byte
		prefillJSON     []byte
		rejectionJSON   []byte
	)
	err := row.Scan(
		&rawID, &v.Ref, &rawPolicyID, &rawBusinessID, &rawPolicyType, &rawVerifierID, &rawStatus,
		&v.LinkToken, &v.LinkExpiry, &accessedAt,
		&v.Customer.Name, &v.Customer.Phone, &v.Customer.Email, &v.Customer.Address,
		&lat, &lon,
		&templateJSON, &prefillJSON, &rejectionJSON, &v.RejectionCount,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.ID = id.VerificationID(rawID)
	v.PolicyID = id.PolicyID(rawPolicyID)
	v.BusinessID = id.BusinessID(rawBusinessID)
	policyType, err := id.ParsePolicyType(rawPolicyType)
	if err != nil {
		return nil, err
	}
	v.PolicyType = policyType
	v.Status = Status(rawStatus)
	if rawVerifierID.Valid {
		verifierID := id.VerifierID(rawVerifierID.UUID)
		v.AssignedVerifierID = &verifierID
	}
	if accessedAt.Valid {
		v.LinkAccessedAt = &accessedAt.Time
	}
	if lat.Valid && lon.Valid {
		v.PropertyCoordinates = &geo.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	if err := json.Unmarshal(templateJSON, &v.Template); err != nil {
		return nil, fmt.Errorf("unmarshal template snapshot: %w", err)
	}
	if len(prefillJSON) > 0 {
		if err := json.Unmarshal(prefillJSON, &v.PrefillData); err != nil {
			return nil, fmt.Errorf("unmarshal prefill data: %w", err)
		}
	}
	if len(rejectionJSON) > 0 {
		if err := json.Unmarshal(rejectionJSON, &v.RejectionReason); err != nil {
			return nil, fmt.Errorf("unmarshal rejection feedback: %w", err)
		}
	}
	return &v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

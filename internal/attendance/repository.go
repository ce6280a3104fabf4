package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benevia/backend/internal/models"
)

// Repository performs the guarded state transitions on registrations.
// Every transition is a single conditional UPDATE whose WHERE clause encodes
// the expected current state; a losing concurrent writer observes ok=false
// instead of corrupting the row. Never read-then-write here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance transition repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordArrival performs NOT_ARRIVED → ARRIVED. ok=false when the guard did
// not match (already arrived, certified, or cancelled).
func (r *Repository) RecordArrival(ctx context.Context, registrationID uuid.UUID) (*time.Time, bool, error) {
	const q = `UPDATE registrations
		SET certification_start_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2 AND certification_start_at IS NULL
		RETURNING certification_start_at`
	var startAt time.Time
	err := r.pool.QueryRow(ctx, q, registrationID, models.RegistrationStatusRegistered).Scan(&startAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &startAt, true, nil
}

// RecordDeparture performs ARRIVED → CERTIFIED, stamping the validating
// operator. ok=false when the guard did not match.
func (r *Repository) RecordDeparture(ctx context.Context, registrationID, validatedBy uuid.UUID) (start, end *time.Time, ok bool, err error) {
	const q = `UPDATE registrations
		SET certification_end_at = NOW(), status = $3, validated_by = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND certification_start_at IS NOT NULL AND certification_end_at IS NULL
		RETURNING certification_start_at, certification_end_at`
	var s, e time.Time
	err = r.pool.QueryRow(ctx, q, registrationID, validatedBy,
		models.RegistrationStatusCertified, models.RegistrationStatusRegistered).Scan(&s, &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return &s, &e, true, nil
}

// SelfCertify performs NOT_ARRIVED → CERTIFIED in one statement, writing both
// timestamps together. The guard rejects any registration that has started
// the scan path, is already certified, or is cancelled, so a failed
// self-certification leaves the row completely untouched.
func (r *Repository) SelfCertify(ctx context.Context, registrationID uuid.UUID) (*time.Time, bool, error) {
	const q = `UPDATE registrations
		SET certification_start_at = NOW(), certification_end_at = NOW(), status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND certification_start_at IS NULL
		RETURNING certification_end_at`
	var at time.Time
	err := r.pool.QueryRow(ctx, q, registrationID,
		models.RegistrationStatusSelfCertified, models.RegistrationStatusRegistered).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &at, true, nil
}

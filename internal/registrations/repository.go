package registrations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benevia/backend/internal/models"
)

// Repository handles registration persistence. State transitions on the
// certification fields live in the attendance package; this repository only
// covers creation and reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `id, user_id, event_id, status, qr_token, certification_start_at, certification_end_at,
	face_match_passed, validated_by, certificate_id, certificate_url, certificate_data, created_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var certURL *string
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.QRToken,
		&reg.CertificationStartAt, &reg.CertificationEndAt, &reg.FaceMatchPassed, &reg.ValidatedBy,
		&reg.CertificateID, &certURL, &reg.CertificateData, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if certURL != nil {
		reg.CertificateURL = *certURL
	}
	return &reg, nil
}

// Create inserts a registration with its unique QR token.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (id, user_id, event_id, status, qr_token)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, reg.UserID, reg.EventID, models.RegistrationStatusRegistered, reg.QRToken).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
}

// GetByID returns a registration by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetByQRToken resolves a canonical QR token to its registration, or nil when unknown.
func (r *Repository) GetByQRToken(ctx context.Context, token string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE qr_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetByEventAndUser returns the user's registration for an event, or nil.
func (r *Repository) GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// ListByEvent returns all registrations for an event.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// ListByUser returns all registrations of a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// ListUserIDsByEvent returns the user IDs of every registration of an event
// (the target set for participant fan-out notifications).
func (r *Repository) ListUserIDsByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Cancel marks a registration cancelled. Only a not-yet-certified registration
// can be cancelled; returns false when the guard did not match.
func (r *Repository) Cancel(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	const q = `UPDATE registrations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = $4`
	tag, err := r.pool.Exec(ctx, q, id, userID, models.RegistrationStatusCancelled, models.RegistrationStatusRegistered)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benevia/backend/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, organization_id, title, description, starts_at, ends_at, location_name,
	latitude, longitude, allow_self_certification, self_cert_radius_meters, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt,
		&e.LocationName, &e.Latitude, &e.Longitude, &e.AllowSelfCertification, &e.SelfCertRadiusMeters,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, organization_id, title, description, starts_at, ends_at, location_name,
			latitude, longitude, allow_self_certification, self_cert_radius_meters, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.Title, e.Description, e.StartsAt, e.EndsAt,
		e.LocationName, e.Latitude, e.Longitude, e.AllowSelfCertification, e.SelfCertRadiusMeters, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// List returns events, newest start first.
func (r *Repository) List(ctx context.Context) ([]*models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListByOrganization returns an organization's events.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE organization_id = $1 ORDER BY starts_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update saves mutable event fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, starts_at = $4, ends_at = $5, location_name = $6,
			latitude = $7, longitude = $8, allow_self_certification = $9, self_cert_radius_meters = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.StartsAt, e.EndsAt, e.LocationName,
		e.Latitude, e.Longitude, e.AllowSelfCertification, e.SelfCertRadiusMeters).Scan(&e.UpdatedAt)
}

// Delete removes an event.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

// AttendanceStats summarizes certification progress for an event.
type AttendanceStats struct {
	Total         int `json:"total"`
	Certified     int `json:"certified"`
	SelfCertified int `json:"self_certified"`
	Cancelled     int `json:"cancelled"`
}

// GetAttendanceStats counts registrations per certification outcome.
func (r *Repository) GetAttendanceStats(ctx context.Context, eventID uuid.UUID) (AttendanceStats, error) {
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'certified'),
			COUNT(*) FILTER (WHERE status = 'self_certified'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM registrations WHERE event_id = $1`
	var s AttendanceStats
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&s.Total, &s.Certified, &s.SelfCertified, &s.Cancelled)
	return s, err
}

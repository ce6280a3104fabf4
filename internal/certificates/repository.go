package certificates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists certificate fields on registrations and serves the
// public certificate lookup.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a certificates repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SetCertificate writes the certificate id, artifact URL and snapshot onto the
// registration. The id is written once and kept on regeneration; callers pass
// the existing id back when re-issuing.
func (r *Repository) SetCertificate(ctx context.Context, registrationID, certificateID uuid.UUID, url string, data json.RawMessage) error {
	_, err := r.db.Exec(ctx, `
		UPDATE registrations
		SET certificate_id = $2, certificate_url = $3, certificate_data = $4, updated_at = NOW()
		WHERE id = $1`,
		registrationID, certificateID, url, data)
	if err != nil {
		return fmt.Errorf("set certificate: %w", err)
	}
	return nil
}

// PublicCertificate is the externally visible view of an issued certificate.
// It exposes only the snapshot and artifact URL, never the registration
// internals or the QR token.
type PublicCertificate struct {
	CertificateID  uuid.UUID       `json:"certificate_id"`
	CertificateURL string          `json:"certificate_url"`
	Data           json.RawMessage `json:"data"`
	IssuedAt       time.Time       `json:"issued_at"`
}

// GetByCertificateID looks up an issued certificate by its public id.
// Returns nil when no registration carries that certificate id.
func (r *Repository) GetByCertificateID(ctx context.Context, certificateID uuid.UUID) (*PublicCertificate, error) {
	var cert PublicCertificate
	err := r.db.QueryRow(ctx, `
		SELECT certificate_id, certificate_url, certificate_data, updated_at
		FROM registrations
		WHERE certificate_id = $1`,
		certificateID).Scan(&cert.CertificateID, &cert.CertificateURL, &cert.Data, &cert.IssuedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &cert, nil
}

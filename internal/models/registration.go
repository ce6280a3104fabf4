package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Registration status values. A self-certified registration is certified for
// every downstream purpose (certificate generation, stats); the distinct value
// records how certification happened.
const (
	RegistrationStatusRegistered    = "registered"
	RegistrationStatusSelfCertified = "self_certified"
	RegistrationStatusCertified     = "certified"
	RegistrationStatusCancelled     = "cancelled"
)

// Registration is a user's sign-up for an event, carrying the attendance
// certification lifecycle. certification_end_at is only ever set when
// certification_start_at already is; certificate fields only when both are
// (self-certification writes both in one statement).
type Registration struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	EventID              uuid.UUID       `json:"event_id"`
	Status               string          `json:"status"`
	QRToken              string          `json:"qr_token,omitempty"`
	CertificationStartAt *time.Time      `json:"certification_start_at,omitempty"`
	CertificationEndAt   *time.Time      `json:"certification_end_at,omitempty"`
	FaceMatchPassed      *bool           `json:"face_match_passed,omitempty"`
	ValidatedBy          *uuid.UUID      `json:"validated_by,omitempty"`
	CertificateID        *uuid.UUID      `json:"certificate_id,omitempty"`
	CertificateURL       string          `json:"certificate_url,omitempty"`
	CertificateData      json.RawMessage `json:"certificate_data,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsCertified reports whether the registration reached a terminal certified state.
func (r *Registration) IsCertified() bool {
	return r.Status == RegistrationStatusCertified || r.Status == RegistrationStatusSelfCertified
}

// IsSelfCertified reports whether certification came from the self-certification path.
func (r *Registration) IsSelfCertified() bool {
	return r.Status == RegistrationStatusSelfCertified
}

// Duration returns departure − arrival when both timestamps are present.
func (r *Registration) Duration() (time.Duration, bool) {
	if r.CertificationStartAt == nil || r.CertificationEndAt == nil {
		return 0, false
	}
	return r.CertificationEndAt.Sub(*r.CertificationStartAt), true
}

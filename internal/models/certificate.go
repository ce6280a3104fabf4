package models

import "time"

// CertificateSnapshot is the data rendered into a certificate artifact.
// It is assembled from current source rows at generation time; regeneration
// recomputes it, so a later correction to validator identity is reflected.
// Callers needing the first issuance verbatim must keep their own copy.
type CertificateSnapshot struct {
	UserFullName    string     `json:"user_full_name"`
	UserDateOfBirth *time.Time `json:"user_date_of_birth,omitempty"`

	EventName     string    `json:"event_name"`
	EventStartsAt time.Time `json:"event_starts_at"`
	EventEndsAt   time.Time `json:"event_ends_at"`
	EventLocation string    `json:"event_location"`

	OrganizationName string `json:"organization_name"`
	OrganizationLogo string `json:"organization_logo,omitempty"`

	// ValidatorName/Role are empty when IsSelfCertified is true.
	ValidatorName string `json:"validator_name,omitempty"`
	ValidatorRole string `json:"validator_role,omitempty"`

	IsSelfCertified bool      `json:"is_self_certified"`
	CertifiedAt     time.Time `json:"certified_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a volunteering event listing.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	LocationName   string     `json:"location_name"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	// AllowSelfCertification opts the event into the time+geofence
	// self-certification path instead of requiring an operator scan.
	AllowSelfCertification bool     `json:"allow_self_certification"`
	// SelfCertRadiusMeters overrides the platform default radius when set.
	SelfCertRadiusMeters *float64  `json:"self_cert_radius_meters,omitempty"`
	CreatedBy            uuid.UUID `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the event publishes a geofence anchor.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

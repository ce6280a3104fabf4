package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
)

// Language codes supported for notification messages.
const (
	LangFR = "fr"
	LangEN = "en"
)

// User represents a platform user.
type User struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	Password          string     `json:"-"`
	FullName          string     `json:"full_name"`
	Role              Role       `json:"role"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	PreferredLanguage string     `json:"preferred_language"`
	EmailOptIn        bool       `json:"email_opt_in"`
	IDVerified        bool       `json:"id_verified"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	FullName          string    `json:"full_name"`
	Role              Role      `json:"role"`
	PreferredLanguage string    `json:"preferred_language"`
	IDVerified        bool      `json:"id_verified"`
	CreatedAt         time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:                u.ID,
		Email:             u.Email,
		FullName:          u.FullName,
		Role:              u.Role,
		PreferredLanguage: u.PreferredLanguage,
		IDVerified:        u.IDVerified,
		CreatedAt:         u.CreatedAt,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider-owned verification session statuses.
const (
	VerificationStatusCreated  = "created"
	VerificationStatusPending  = "pending"
	VerificationStatusInReview = "in_review"
	VerificationStatusApproved = "approved"
	VerificationStatusDeclined = "declined"
	VerificationStatusExpired  = "expired"
)

// CachedSessionTTL bounds how long a locally cached session handle is trusted,
// regardless of the provider-side session lifetime. A stale cache forces the
// user to restart verification rather than resuming an unknown state.
const CachedSessionTTL = time.Hour

// CachedVerificationSession is the locally cached handle to an in-progress
// identity-proofing flow. Only the handle is cached; status is always
// provider-owned.
type CachedVerificationSession struct {
	SessionID string    `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Valid reports whether the cached session is usable for userID at now:
// all fields present, owned by userID, and younger than CachedSessionTTL.
// Pure predicate; no storage backend involved.
func (s *CachedVerificationSession) Valid(userID uuid.UUID, now time.Time) bool {
	if s == nil {
		return false
	}
	if s.SessionID == "" || s.UserID == uuid.Nil || s.IssuedAt.IsZero() {
		return false
	}
	if s.UserID != userID {
		return false
	}
	return now.Sub(s.IssuedAt) < CachedSessionTTL
}

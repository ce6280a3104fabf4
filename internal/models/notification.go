package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotificationTypeCertificateReady = "certificate_ready"
	NotificationTypeEventUpdate      = "event_update"
	NotificationTypeOrgAnnouncement  = "org_announcement"
)

// Notification is an in-app notification row. Messages are stored in both
// languages; the reading client picks by the user's preference.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	MessageFR string     `json:"message_fr"`
	MessageEN string     `json:"message_en"`
	EventID   *uuid.UUID `json:"event_id,omitempty"`
	ActionURL string     `json:"action_url,omitempty"`
	IsRead    bool       `json:"is_read"`
	SentAt    time.Time  `json:"sent_at"`
}

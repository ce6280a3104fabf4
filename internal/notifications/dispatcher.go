package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/queue"
)

// UserSource resolves recipient profiles.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AdminLister expands an organization into its admin user ids.
type AdminLister interface {
	ListAdminUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
}

// ParticipantLister expands an event into its registered user ids.
type ParticipantLister interface {
	ListUserIDsByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// Store persists notification rows.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// Pusher delivers a stored notification to live connections.
type Pusher interface {
	Push(userID uuid.UUID, n *models.Notification)
}

// EmailEnqueuer hands opted-in recipients to the email worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Recipient delivery statuses.
const (
	DeliverySent    = "sent"
	DeliverySkipped = "skipped"
	DeliveryFailed  = "failed"
)

// RecipientResult is the per-recipient outcome of a dispatch.
type RecipientResult struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// DispatchResult aggregates a fan-out. Success reflects the dispatch itself,
// not individual recipients: a partially failed fan-out still succeeds.
type DispatchResult struct {
	Success           bool              `json:"success"`
	NotificationsSent int               `json:"notifications_sent"`
	Results           []RecipientResult `json:"results"`
}

// Dispatcher fans a notification request out to its recipients. Three
// addressing modes: a single user, an organization's admins, or an event's
// participants. Delivery is best-effort per recipient; one bad recipient never
// blocks the rest.
type Dispatcher struct {
	users        UserSource
	orgs         AdminLister
	participants ParticipantLister
	store        Store
	pusher       Pusher
	emails       EmailEnqueuer
	logger       *zap.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(users UserSource, orgs AdminLister, participants ParticipantLister,
	store Store, pusher Pusher, emails EmailEnqueuer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		users:        users,
		orgs:         orgs,
		participants: participants,
		store:        store,
		pusher:       pusher,
		emails:       emails,
		logger:       logger,
	}
}

// Dispatch resolves the payload's recipients and delivers to each. An empty
// recipient set is a success with zero sent.
func (d *Dispatcher) Dispatch(ctx context.Context, payload queue.NotificationPayload) (*DispatchResult, error) {
	recipients, err := d.resolveRecipients(ctx, payload)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{Success: true, Results: make([]RecipientResult, 0, len(recipients))}
	for _, userID := range recipients {
		r := d.deliver(ctx, userID, payload)
		if r.Status == DeliverySent {
			result.NotificationsSent++
		}
		result.Results = append(result.Results, r)
	}
	d.logger.Info("notification dispatched",
		zap.String("type", payload.Type),
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", result.NotificationsSent))
	return result, nil
}

// resolveRecipients expands the payload's addressing mode. Exactly one mode
// must be set.
func (d *Dispatcher) resolveRecipients(ctx context.Context, payload queue.NotificationPayload) ([]uuid.UUID, error) {
	modes := 0
	if payload.UserID != nil {
		modes++
	}
	if payload.OrganizationID != nil {
		modes++
	}
	if payload.EventID != nil && payload.NotifyParticipants {
		modes++
	}
	if modes != 1 {
		return nil, apperr.WithReason(apperr.ErrInvalidState, "ambiguous_addressing")
	}

	switch {
	case payload.UserID != nil:
		return []uuid.UUID{*payload.UserID}, nil
	case payload.OrganizationID != nil:
		ids, err := d.orgs.ListAdminUserIDs(ctx, *payload.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("list org admins: %w", err)
		}
		return ids, nil
	default:
		ids, err := d.participants.ListUserIDsByEvent(ctx, *payload.EventID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		return ids, nil
	}
}

func (d *Dispatcher) deliver(ctx context.Context, userID uuid.UUID, payload queue.NotificationPayload) RecipientResult {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		d.logger.Warn("recipient lookup failed", zap.Error(err), zap.String("user_id", userID.String()))
		return RecipientResult{UserID: userID, Status: DeliveryFailed, Reason: "lookup_failed"}
	}
	if user == nil {
		return RecipientResult{UserID: userID, Status: DeliverySkipped, Reason: "unknown_user"}
	}

	messageFR, messageEN := messagesFor(payload)
	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      payload.Type,
		MessageFR: messageFR,
		MessageEN: messageEN,
		EventID:   payload.EventID,
		ActionURL: payload.ActionURL,
	}
	if err := d.store.Insert(ctx, n); err != nil {
		d.logger.Warn("notification insert failed", zap.Error(err), zap.String("user_id", userID.String()))
		return RecipientResult{UserID: userID, Status: DeliveryFailed, Reason: "store_failed"}
	}

	if d.pusher != nil {
		d.pusher.Push(userID, n)
	}
	d.maybeEmail(ctx, user, n)

	return RecipientResult{UserID: userID, Status: DeliverySent}
}

// maybeEmail enqueues the email leg for opted-in recipients. Best-effort.
func (d *Dispatcher) maybeEmail(ctx context.Context, user *models.User, n *models.Notification) {
	if d.emails == nil || !user.EmailOptIn || user.Email == "" {
		return
	}
	message := n.MessageEN
	if user.PreferredLanguage == models.LangFR {
		message = n.MessageFR
	}
	err := d.emails.EnqueueEmail(ctx, queue.EmailPayload{
		NotificationID: n.ID,
		EventID:        n.EventID,
		RecipientEmail: user.Email,
		Subject:        subjectFor(n.Type, user.PreferredLanguage),
		BodyHTML:       "<p>" + message + "</p>",
	})
	if err != nil {
		d.logger.Warn("email enqueue failed", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
}

// messagesFor builds both language variants. Custom messages win; otherwise
// the type's template fills in the event name.
func messagesFor(payload queue.NotificationPayload) (fr, en string) {
	if payload.CustomMessageFR != "" || payload.CustomMessageEN != "" {
		fr, en = payload.CustomMessageFR, payload.CustomMessageEN
		if fr == "" {
			fr = en
		}
		if en == "" {
			en = fr
		}
		return fr, en
	}
	switch payload.Type {
	case models.NotificationTypeCertificateReady:
		return fmt.Sprintf("Votre attestation pour « %s » est disponible.", payload.EventName),
			fmt.Sprintf("Your certificate for \"%s\" is ready.", payload.EventName)
	case models.NotificationTypeEventUpdate:
		return fmt.Sprintf("L'événement « %s » a été mis à jour.", payload.EventName),
			fmt.Sprintf("The event \"%s\" has been updated.", payload.EventName)
	default:
		return payload.EventName, payload.EventName
	}
}

func subjectFor(notifType, lang string) string {
	if lang == models.LangFR {
		switch notifType {
		case models.NotificationTypeCertificateReady:
			return "Votre attestation est disponible"
		case models.NotificationTypeEventUpdate:
			return "Mise à jour d'un événement"
		}
		return "Nouvelle notification"
	}
	switch notifType {
	case models.NotificationTypeCertificateReady:
		return "Your certificate is ready"
	case models.NotificationTypeEventUpdate:
		return "Event update"
	}
	return "New notification"
}

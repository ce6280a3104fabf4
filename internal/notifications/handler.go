package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/queue"
	"github.com/benevia/backend/pkg/response"
)

// AdminChecker answers whether a user administers an organization.
type AdminChecker interface {
	IsAdmin(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// EventResolver resolves an event's organization for the authorization check.
type EventResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	dispatcher *Dispatcher
	repo       *Repository
	admins     AdminChecker
	events     EventResolver
	logger     *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(dispatcher *Dispatcher, repo *Repository, admins AdminChecker, events EventResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dispatcher: dispatcher, repo: repo, admins: admins, events: events, logger: logger}
}

// SendRequest is the body for POST /notifications/send. Exactly one of UserID,
// OrganizationID, or EventID+NotifyParticipants addresses the fan-out.
type SendRequest struct {
	Type               string     `json:"type" binding:"required"`
	UserID             *uuid.UUID `json:"user_id"`
	OrganizationID     *uuid.UUID `json:"organization_id"`
	EventID            *uuid.UUID `json:"event_id"`
	NotifyParticipants bool       `json:"notify_participants"`
	EventName          string     `json:"event_name"`
	ActionURL          string     `json:"action_url"`
	CustomMessageFR    string     `json:"custom_message_fr"`
	CustomMessageEN    string     `json:"custom_message_en"`
}

// Send handles POST /notifications/send. Org- and event-addressed sends
// require the caller to administer the organization; user-addressed sends
// require the platform admin role.
func (h *Handler) Send(c *gin.Context) {
	callerID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "type and one addressing mode required")
		return
	}

	if !h.authorizeSend(c, callerID, &req) {
		return
	}

	res, err := h.dispatcher.Dispatch(c.Request.Context(), queue.NotificationPayload{
		Type:               req.Type,
		UserID:             req.UserID,
		OrganizationID:     req.OrganizationID,
		EventID:            req.EventID,
		NotifyParticipants: req.NotifyParticipants,
		EventName:          req.EventName,
		ActionURL:          req.ActionURL,
		CustomMessageFR:    req.CustomMessageFR,
		CustomMessageEN:    req.CustomMessageEN,
	})
	if err != nil {
		response.FromError(c, err, "dispatch failed")
		return
	}
	response.OK(c, res)
}

// authorizeSend gates each addressing mode. The mode resolution matches the
// dispatcher's exactly, so a payload never authorizes under one mode and
// fans out under another.
func (h *Handler) authorizeSend(c *gin.Context, callerID uuid.UUID, req *SendRequest) bool {
	modes := 0
	if req.UserID != nil {
		modes++
	}
	if req.OrganizationID != nil {
		modes++
	}
	if req.EventID != nil && req.NotifyParticipants {
		modes++
	}
	if modes != 1 {
		response.BadRequest(c, "exactly one addressing mode required")
		return false
	}

	switch {
	case req.UserID != nil:
		if role, _ := c.Get(auth.ContextUserRole); role != string(models.RoleAdmin) {
			response.Forbidden(c, "admin required")
			return false
		}
	case req.OrganizationID != nil:
		return h.requireOrgAdmin(c, *req.OrganizationID, callerID)
	default:
		event, err := h.events.GetByID(c.Request.Context(), *req.EventID)
		if err != nil {
			response.Internal(c, "event lookup failed")
			return false
		}
		if event == nil {
			response.NotFound(c, "event not found")
			return false
		}
		return h.requireOrgAdmin(c, event.OrganizationID, callerID)
	}
	return true
}

func (h *Handler) requireOrgAdmin(c *gin.Context, orgID, callerID uuid.UUID) bool {
	ok, err := h.admins.IsAdmin(c.Request.Context(), orgID, callerID)
	if err != nil {
		response.Internal(c, "authorization check failed")
		return false
	}
	if !ok {
		response.Forbidden(c, "organization admin required")
		return false
	}
	return true
}

// List handles GET /notifications for the authenticated user.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID, 0)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	unread, err := h.repo.CountUnread(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"notifications": list, "unread_count": unread})
}

// MarkRead handles PATCH /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	ok, err := h.repo.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		response.Internal(c, "failed to mark read")
		return
	}
	if !ok {
		response.NotFound(c, "notification not found")
		return
	}
	response.OK(c, gin.H{"read": true})
}

package registrations

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/events"
	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/response"
)

// Handler handles registration HTTP endpoints.
type Handler struct {
	repo      *Repository
	eventRepo *events.Repository
	logger    *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(repo *Repository, eventRepo *events.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eventRepo: eventRepo, logger: logger}
}

// Register handles POST /events/:id/register. Creates a registration with a
// unique opaque QR token for the current user.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)

	e, err := h.eventRepo.GetByID(c.Request.Context(), eventID)
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if time.Now().After(e.EndsAt) {
		response.BadRequest(c, "event has already ended")
		return
	}

	token, err := generateQRToken()
	if err != nil {
		h.logger.Error("generate qr token failed", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}
	reg := &models.Registration{
		UserID:  userID,
		EventID: eventID,
		Status:  models.RegistrationStatusRegistered,
		QRToken: token,
	}
	if err := h.repo.Create(c.Request.Context(), reg); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			response.Conflict(c, "already registered for this event")
			return
		}
		h.logger.Error("create registration failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to register")
		return
	}
	response.Created(c, gin.H{
		"registration_id": reg.ID,
		"qr_token":        reg.QRToken,
		"status":          reg.Status,
	})
}

// MyRegistrations handles GET /registrations. Returns the current user's registrations.
func (h *Handler) MyRegistrations(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load registrations")
		return
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/registrations. Call after RequireEventOrgAccess.
// QR tokens are stripped: they are the participant's capability, not the operator's.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load registrations")
		return
	}
	for _, reg := range list {
		reg.QRToken = ""
	}
	response.OK(c, list)
}

// Cancel handles DELETE /registrations/:id.
func (h *Handler) Cancel(c *gin.Context) {
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	ok, err := h.repo.Cancel(c.Request.Context(), regID, userID)
	if err != nil {
		response.Internal(c, "failed to cancel registration")
		return
	}
	if !ok {
		response.Conflict(c, "registration cannot be cancelled")
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

func generateQRToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:43], nil
}

package verification

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/pkg/response"
)

// Handler handles identity-verification HTTP endpoints.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a verification handler.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, logger: logger}
}

// CreateSessionRequest is the optional body for POST /verification/sessions.
type CreateSessionRequest struct {
	CallbackURL string `json:"callback_url"`
}

// CreateSession handles POST /verification/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	var req CreateSessionRequest
	_ = c.ShouldBindJSON(&req)
	res, err := h.manager.CreateSession(c.Request.Context(), userID, req.CallbackURL)
	if err != nil {
		h.logger.Warn("create verification session failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.FromError(c, err, "could not start verification")
		return
	}
	response.Created(c, res)
}

// CheckStatus handles GET /verification/sessions/:id/status.
func (h *Handler) CheckStatus(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	sessionID := c.Param("id")
	res, err := h.manager.CheckStatus(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.FromError(c, err, "could not check verification status")
		return
	}
	response.OK(c, res)
}

// DeleteSession handles DELETE /verification/sessions/:id.
func (h *Handler) DeleteSession(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	sessionID := c.Param("id")
	if err := h.manager.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		response.FromError(c, err, "could not delete verification session")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

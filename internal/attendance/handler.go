package attendance

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/pkg/response"
)

// Handler handles attendance HTTP endpoints.
type Handler struct {
	recorder  *Recorder
	evaluator *Evaluator
	regs      RegistrationSource
	logger    *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(recorder *Recorder, evaluator *Evaluator, regs RegistrationSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{recorder: recorder, evaluator: evaluator, regs: regs, logger: logger}
}

// ScanRequest is the body for POST /attendance/scan.
type ScanRequest struct {
	QRCode string `json:"qr_code" binding:"required"`
}

// Scan handles POST /attendance/scan. The caller is the scanning operator.
func (h *Handler) Scan(c *gin.Context) {
	operatorID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "qr_code required")
		return
	}
	res, err := h.recorder.Scan(c.Request.Context(), operatorID, req.QRCode)
	if err != nil {
		h.logger.Warn("scan rejected", zap.Error(err), zap.String("operator_id", operatorID.String()))
		response.FromError(c, err, "scan failed")
		return
	}
	response.OK(c, res)
}

// Verify handles GET /verify/:registrationId?token=... — the deep-link form of
// a scan. The token must resolve to the registration named in the path; this
// keeps the capability check identical to the QR path.
func (h *Handler) Verify(c *gin.Context) {
	operatorID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	regID, err := uuid.Parse(c.Param("registrationId"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "token required")
		return
	}
	reg, err := h.regs.GetByQRToken(c.Request.Context(), NormalizeToken(token))
	if err != nil || reg == nil || reg.ID != regID {
		response.NotFound(c, "invalid verification link")
		return
	}
	res, err := h.recorder.Scan(c.Request.Context(), operatorID, token)
	if err != nil {
		response.FromError(c, err, "verification failed")
		return
	}
	response.OK(c, res)
}

// SelfCertifyRequest is the body for POST /events/:id/self-certify.
// Coordinates are pointers so 0.0 passes the required check.
type SelfCertifyRequest struct {
	RegistrationID uuid.UUID `json:"registration_id" binding:"required"`
	Latitude       *float64  `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude      *float64  `json:"longitude" binding:"required,gte=-180,lte=180"`
}

// SelfCertify handles POST /events/:id/self-certify. The caller is the participant.
func (h *Handler) SelfCertify(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req SelfCertifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "registration_id and coordinates required")
		return
	}
	res, err := h.evaluator.Evaluate(c.Request.Context(), userID, eventID, req.RegistrationID, *req.Latitude, *req.Longitude)
	if err != nil {
		response.FromError(c, err, "self-certification failed")
		return
	}
	response.OK(c, res)
}

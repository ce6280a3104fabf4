package certificates

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/response"
)

// MembershipChecker answers whether a user belongs to an organization.
type MembershipChecker interface {
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// CertificateReader serves the public lookup.
type CertificateReader interface {
	GetByCertificateID(ctx context.Context, certificateID uuid.UUID) (*PublicCertificate, error)
}

// Handler handles certificate HTTP endpoints.
type Handler struct {
	generator *Generator
	regs      RegistrationStore
	events    EventSource
	members   MembershipChecker
	certs     CertificateReader
	logger    *zap.Logger
}

// NewHandler creates a certificates handler.
func NewHandler(generator *Generator, regs RegistrationStore, events EventSource,
	members MembershipChecker, certs CertificateReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{generator: generator, regs: regs, events: events, members: members, certs: certs, logger: logger}
}

// GenerateRequest is the body for POST /certificates/generate.
type GenerateRequest struct {
	RegistrationID uuid.UUID `json:"registration_id" binding:"required"`
}

// Generate handles POST /certificates/generate. The caller must belong to the
// organization hosting the registration's event. Normally the worker issues
// certificates; this endpoint covers manual re-issue after a data correction.
func (h *Handler) Generate(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "registration_id required")
		return
	}

	reg, err := h.regs.GetByID(c.Request.Context(), req.RegistrationID)
	if err != nil || reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	event, err := h.events.GetByID(c.Request.Context(), reg.EventID)
	if err != nil || event == nil {
		response.NotFound(c, "event not found")
		return
	}
	isMember, err := h.members.IsMember(c.Request.Context(), event.OrganizationID, userID)
	if err != nil {
		response.Internal(c, "membership check failed")
		return
	}
	if !isMember {
		response.FromError(c, apperr.ErrUnauthorized, "not a member of the hosting organization")
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), req.RegistrationID)
	if err != nil {
		h.logger.Error("certificate generation failed",
			zap.Error(err), zap.String("registration_id", req.RegistrationID.String()))
		response.FromError(c, err, "certificate generation failed")
		return
	}
	response.OK(c, res)
}

// Get handles GET /certificates/:certificateId. Public endpoint; only the
// snapshot and artifact URL are exposed.
func (h *Handler) Get(c *gin.Context) {
	certID, err := uuid.Parse(c.Param("certificateId"))
	if err != nil {
		response.BadRequest(c, "invalid certificate id")
		return
	}
	cert, err := h.certs.GetByCertificateID(c.Request.Context(), certID)
	if err != nil {
		response.Internal(c, "certificate lookup failed")
		return
	}
	if cert == nil {
		response.NotFound(c, "certificate not found")
		return
	}
	response.OK(c, cert)
}

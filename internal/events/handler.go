package events

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/internal/organizations"
	"github.com/benevia/backend/pkg/response"
)

// Handler handles event HTTP endpoints.
type Handler struct {
	repo    *Repository
	orgRepo *organizations.Repository
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, orgRepo *organizations.Repository) *Handler {
	return &Handler{repo: repo, orgRepo: orgRepo}
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	OrganizationID         uuid.UUID `json:"organization_id" binding:"required"`
	Title                  string    `json:"title" binding:"required"`
	Description            string    `json:"description"`
	StartsAt               time.Time `json:"starts_at" binding:"required"`
	EndsAt                 time.Time `json:"ends_at" binding:"required"`
	LocationName           string    `json:"location_name"`
	Latitude               *float64  `json:"latitude,omitempty"`
	Longitude              *float64  `json:"longitude,omitempty"`
	AllowSelfCertification bool      `json:"allow_self_certification"`
	SelfCertRadiusMeters   *float64  `json:"self_cert_radius_meters,omitempty"`
}

// Create handles POST /events. Requires org admin of the target organization.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(c, "ends_at must be after starts_at")
		return
	}
	if req.AllowSelfCertification && (req.Latitude == nil || req.Longitude == nil) {
		response.BadRequest(c, "self-certification requires event coordinates")
		return
	}
	isAdmin, err := h.orgRepo.IsAdmin(c.Request.Context(), req.OrganizationID, userID)
	if err != nil {
		response.Internal(c, "membership check failed")
		return
	}
	if !isAdmin {
		response.Forbidden(c, "organization admin required")
		return
	}
	e := &models.Event{
		OrganizationID:         req.OrganizationID,
		Title:                  strings.TrimSpace(req.Title),
		Description:            req.Description,
		StartsAt:               req.StartsAt,
		EndsAt:                 req.EndsAt,
		LocationName:           req.LocationName,
		Latitude:               req.Latitude,
		Longitude:              req.Longitude,
		AllowSelfCertification: req.AllowSelfCertification,
		SelfCertRadiusMeters:   req.SelfCertRadiusMeters,
		CreatedBy:              userID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	if orgIDStr := c.Query("organization_id"); orgIDStr != "" {
		orgID, err := uuid.Parse(orgIDStr)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		list, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			response.Internal(c, "failed to load events")
			return
		}
		response.OK(c, list)
		return
	}
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// UpdateRequest is the body for PATCH /events/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	Title                  *string    `json:"title,omitempty"`
	Description            *string    `json:"description,omitempty"`
	StartsAt               *time.Time `json:"starts_at,omitempty"`
	EndsAt                 *time.Time `json:"ends_at,omitempty"`
	LocationName           *string    `json:"location_name,omitempty"`
	Latitude               *float64   `json:"latitude,omitempty"`
	Longitude              *float64   `json:"longitude,omitempty"`
	AllowSelfCertification *bool      `json:"allow_self_certification,omitempty"`
	SelfCertRadiusMeters   *float64   `json:"self_cert_radius_meters,omitempty"`
}

// Update handles PATCH /events/:id. Call after RequireEventOrgAccess.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.Title != nil {
		e.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.StartsAt != nil {
		e.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		e.EndsAt = *req.EndsAt
	}
	if req.LocationName != nil {
		e.LocationName = *req.LocationName
	}
	if req.Latitude != nil {
		e.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		e.Longitude = req.Longitude
	}
	if req.AllowSelfCertification != nil {
		e.AllowSelfCertification = *req.AllowSelfCertification
	}
	if req.SelfCertRadiusMeters != nil {
		e.SelfCertRadiusMeters = req.SelfCertRadiusMeters
	}
	if !e.EndsAt.After(e.StartsAt) {
		response.BadRequest(c, "ends_at must be after starts_at")
		return
	}
	if e.AllowSelfCertification && !e.HasCoordinates() {
		response.BadRequest(c, "self-certification requires event coordinates")
		return
	}
	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id. Call after RequireEventOrgAccess.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// GetStats handles GET /events/:id/stats. Call after RequireEventOrgAccess.
func (h *Handler) GetStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	stats, err := h.repo.GetAttendanceStats(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, stats)
}

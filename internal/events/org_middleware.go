package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/organizations"
	"github.com/benevia/backend/pkg/response"
)

// ContextOrganizationID is the context key for organization ID when org access is enforced.
const ContextOrganizationID = "organization_id"

// RequireEventOrgAccess validates that the user is a member of the event's
// organization. Call after JWT. Sets ContextOrganizationID on success.
func RequireEventOrgAccess(eventRepo *Repository, orgRepo *organizations.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := eventRepo.GetByID(c.Request.Context(), eventID)
		if err != nil || e == nil {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}
		userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
		ok, err := orgRepo.IsMember(c.Request.Context(), e.OrganizationID, userID)
		if err != nil {
			response.Internal(c, "membership check failed")
			c.Abort()
			return
		}
		if !ok {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		c.Set(ContextOrganizationID, e.OrganizationID)
		c.Next()
	}
}

package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/response"
	"github.com/benevia/backend/pkg/utils"
)

// Handler handles auth and profile HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=8"`
	FullName          string `json:"full_name" binding:"required"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to process password")
		return
	}
	lang := req.PreferredLanguage
	if lang != models.LangEN {
		lang = models.LangFR
	}
	user := &models.User{
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Password:          hashed,
		FullName:          strings.TrimSpace(req.FullName),
		Role:              models.RoleVolunteer,
		PreferredLanguage: lang,
		EmailOptIn:        true,
	}
	if err := h.repo.Create(c.Request.Context(), user); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			response.Conflict(c, "An account with this email already exists")
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}
	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, gin.H{"token": token, "user": user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password required")
		return
	}
	user, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || user == nil {
		response.Unauthorized(c, "invalid credentials")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid credentials")
		return
	}
	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, gin.H{"token": token, "user": user.ToPublic()})
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, gin.H{
		"id":                 user.ID,
		"email":              user.Email,
		"full_name":          user.FullName,
		"role":               user.Role,
		"date_of_birth":      user.DateOfBirth,
		"preferred_language": user.PreferredLanguage,
		"email_opt_in":       user.EmailOptIn,
		"id_verified":        user.IDVerified,
	})
}

// UpdateMeRequest is the body for PATCH /me.
type UpdateMeRequest struct {
	FullName          *string    `json:"full_name,omitempty"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	PreferredLanguage *string    `json:"preferred_language,omitempty"`
	EmailOptIn        *bool      `json:"email_opt_in,omitempty"`
}

// UpdateMe handles PATCH /me.
func (h *Handler) UpdateMe(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.DateOfBirth != nil {
		user.DateOfBirth = req.DateOfBirth
	}
	if req.PreferredLanguage != nil && (*req.PreferredLanguage == models.LangFR || *req.PreferredLanguage == models.LangEN) {
		user.PreferredLanguage = *req.PreferredLanguage
	}
	if req.EmailOptIn != nil {
		user.EmailOptIn = *req.EmailOptIn
	}
	if err := h.repo.UpdateProfile(c.Request.Context(), user); err != nil {
		h.logger.Error("update profile failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load users")
		return
	}
	response.OK(c, users)
}

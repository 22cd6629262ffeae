package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
	"github.com/groeigesprek/backend/pkg/utils"
)

// Store is the user persistence used by the handler.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.UserPublic, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error)
}

// CreateUserRequest is the body for POST /admin/users.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required,min=2,max=200"`
	Role     string `json:"role" binding:"omitempty,oneof=admin editor"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	store  Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store Store, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !response.Bind(c, &req) {
		return
	}

	user, err := h.store.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if apperr.KindOf(err) != apperr.ErrNotFound {
			response.Error(c, h.logger, err)
			return
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.logger.Info("admin login", zap.String("user_id", user.ID.String()))
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	raw, _ := c.Get("user_id") // set by middleware.JWT
	id, ok := raw.(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	user, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /admin/users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/users. Role defaults to editor.
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if !response.Bind(c, &req) {
		return
	}
	role := models.RoleEditor
	if req.Role != "" {
		role = models.Role(req.Role)
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	user, err := h.store.Create(c.Request.Context(), strings.TrimSpace(req.Email), hash, strings.TrimSpace(req.FullName), role)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, user.ToPublic())
}

package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// StatusRequest is the body for PATCH /admin/individual-requests/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending accepted declined"`
}

// Handler handles individual request HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an individual requests handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /individual-requests.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if !response.Bind(c, &in) {
		return
	}
	req, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, req)
}

// List handles GET /admin/individual-requests?status=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), models.RequestStatus(c.Query("status")))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// SetStatus handles PATCH /admin/individual-requests/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, nil, apperr.Validation("invalid id", apperr.Field("id", "must be a valid id")))
		return
	}
	var req StatusRequest
	if !response.Bind(c, &req) {
		return
	}
	updated, err := h.svc.SetStatus(c.Request.Context(), id, models.RequestStatus(req.Status))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, updated)
}

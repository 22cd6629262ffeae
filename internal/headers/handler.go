package headers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// Store is the header persistence used by the handler.
type Store interface {
	List(ctx context.Context) ([]models.Header, error)
	GetActive(ctx context.Context) (*models.Header, error)
	Create(ctx context.Context, h *models.Header) error
	Update(ctx context.Context, h *models.Header) error
	Activate(ctx context.Context, id uuid.UUID) (*models.Header, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Request is the create/update body for a header.
type Request struct {
	Title    string `json:"title" binding:"required,min=1,max=200"`
	Subtitle string `json:"subtitle" binding:"required,min=1,max=500"`
	IsActive bool   `json:"is_active"`
}

// Handler handles header HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a headers handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /headers. With ?active=true it returns only the active
// header, or null when there is none.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("active") == "true" {
		active, err := h.store.GetActive(ctx)
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		response.OK(c, active)
		return
	}
	list, err := h.store.List(ctx)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/headers.
func (h *Handler) Create(c *gin.Context) {
	hdr, ok := bindHeader(c)
	if !ok {
		return
	}
	if err := h.store.Create(c.Request.Context(), hdr); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, hdr)
}

// Update handles PUT /admin/headers/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	hdr, ok := bindHeader(c)
	if !ok {
		return
	}
	hdr.ID = id
	if err := h.store.Update(c.Request.Context(), hdr); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, hdr)
}

// Activate handles POST /admin/headers/:id/activate.
func (h *Handler) Activate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	hdr, err := h.store.Activate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, hdr)
}

// Delete handles DELETE /admin/headers/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

func bindHeader(c *gin.Context) (*models.Header, bool) {
	var req Request
	if !response.Bind(c, &req) {
		return nil, false
	}
	hdr := &models.Header{
		Title:    strings.TrimSpace(req.Title),
		Subtitle: strings.TrimSpace(req.Subtitle),
		IsActive: req.IsActive,
	}
	var fields []apperr.FieldError
	if hdr.Title == "" {
		fields = append(fields, apperr.Field("title", "is required"))
	}
	if hdr.Subtitle == "" {
		fields = append(fields, apperr.Field("subtitle", "is required"))
	}
	if len(fields) > 0 {
		response.Error(c, nil, apperr.Validation("invalid header", fields...))
		return nil, false
	}
	return hdr, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, nil, apperr.Validation("invalid id", apperr.Field("id", "must be a valid id")))
		return uuid.Nil, false
	}
	return id, true
}

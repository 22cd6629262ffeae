package colleagues

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
	"github.com/groeigesprek/backend/pkg/storage"
)

// Handler handles colleague HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a colleagues handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListPublic handles GET /colleagues?spelwerkvorm=true.
func (h *Handler) ListPublic(c *gin.Context) {
	list, err := h.svc.ListPublic(c.Request.Context(), c.Query("spelwerkvorm") == "true")
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// List handles GET /admin/colleagues.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/colleagues/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	col, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, col)
}

// Create handles POST /admin/colleagues.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if !response.Bind(c, &in) {
		return
	}
	col, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, col)
}

// Update handles PUT /admin/colleagues/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in Input
	if !response.Bind(c, &in) {
		return
	}
	col, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, col)
}

// Delete handles DELETE /admin/colleagues/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// UploadPhoto handles POST /admin/colleagues/:id/photo (multipart, field "file").
func (h *Handler) UploadPhoto(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if !h.svc.PhotosEnabled() {
		response.ServiceUnavailable(c, ErrPhotosDisabled.Error())
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, h.logger, apperr.Validation("missing file", apperr.Field("file", "is required")))
		return
	}
	if file.Size > storage.MaxPhotoSize {
		response.Error(c, h.logger, apperr.Validation("invalid file", apperr.Field("file", storage.ErrPhotoTooLarge.Error())))
		return
	}
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	res, err := h.svc.UploadPhoto(c.Request.Context(), id, rc, file.Header.Get("Content-Type"), file.Filename)
	if errors.Is(err, ErrPhotosDisabled) {
		response.ServiceUnavailable(c, err.Error())
		return
	}
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, res)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, nil, apperr.Validation("invalid id", apperr.Field("id", "must be a valid id")))
		return uuid.Nil, false
	}
	return id, true
}

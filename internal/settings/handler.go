package settings

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/response"
)

// UpsertRequest is the body for PUT /admin/settings.
type UpsertRequest struct {
	Key   string `json:"key" binding:"required,min=1,max=100"`
	Value string `json:"value"`
}

// Handler handles settings HTTP endpoints.
type Handler struct {
	store  Store
	reader *Reader
	logger *zap.Logger
}

// NewHandler creates a settings handler.
func NewHandler(store Store, reader *Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, reader: reader, logger: logger}
}

// Public handles GET /settings: the subset the public pages need.
func (h *Handler) Public(c *gin.Context) {
	response.OK(c, gin.H{
		"cancellation_cutoff_hours": h.reader.CutoffHours(c.Request.Context()),
	})
}

// List handles GET /admin/settings.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Upsert handles PUT /admin/settings.
func (h *Handler) Upsert(c *gin.Context) {
	var req UpsertRequest
	if !response.Bind(c, &req) {
		return
	}
	key := strings.TrimSpace(req.Key)
	value := strings.TrimSpace(req.Value)
	if err := Validate(key, value); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if n, err := strconv.Atoi(value); err == nil && key == models.SettingCancellationCutoffHours {
		value = strconv.Itoa(n)
	}
	s, err := h.store.Upsert(c.Request.Context(), key, value)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.logger.Info("setting updated", zap.String("key", key))
	response.OK(c, s)
}

package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// StatusRequest is the body for PATCH /admin/registrations/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active cancelled no_show"`
}

// RegisterResponse is returned by POST /registrations.
type RegisterResponse struct {
	Registration *models.Registration `json:"registration"`
	CancelURL    string               `json:"cancel_url"`
	CalendarURL  string               `json:"calendar_url"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	links  notify.Links
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, links notify.Links, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, links: links, logger: logger}
}

// Register handles POST /registrations.
func (h *Handler) Register(c *gin.Context) {
	var in RegisterInput
	if !response.Bind(c, &in) {
		return
	}
	reg, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, RegisterResponse{
		Registration: reg,
		CancelURL:    h.links.CancelURL(reg.CancellationToken),
		CalendarURL:  h.links.CalendarURL(reg.SessionID),
	})
}

// Preview handles GET /registrations/cancel/:token.
func (h *Handler) Preview(c *gin.Context) {
	p, err := h.svc.Preview(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, p)
}

// Cancel handles POST /registrations/cancel/:token.
func (h *Handler) Cancel(c *gin.Context) {
	reg, err := h.svc.CancelByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, reg)
}

// List handles GET /admin/registrations?session_id=&status=&type=.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, h.logger, apperr.Validation("invalid filter", apperr.Field("session_id", "must be a valid id")))
			return
		}
		f.SessionID = &id
	}
	f.Status = models.RegistrationStatus(c.Query("status"))
	f.TypeName = c.Query("type")

	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// AdminCancel handles POST /admin/registrations/:id/cancel.
func (h *Handler) AdminCancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reg, err := h.svc.CancelByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, reg)
}

// SetStatus handles PATCH /admin/registrations/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if !response.Bind(c, &req) {
		return
	}
	reg, err := h.svc.SetStatus(c.Request.Context(), id, models.RegistrationStatus(req.Status))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, reg)
}

// Delete handles DELETE /admin/registrations/:id.
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

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, nil, apperr.Validation("invalid id", apperr.Field("id", "must be a valid id")))
		return uuid.Nil, false
	}
	return id, true
}

package sessions

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/exports"
	"github.com/groeigesprek/backend/internal/middleware"
	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// pdfQRSize keeps the QR printed on participant sheets small.
const pdfQRSize = 256

// ParticipantsResponse is returned by GET /admin/sessions/:id/participants.
type ParticipantsResponse struct {
	Session      *models.Session       `json:"session"`
	Participants []models.Registration `json:"participants"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	svc    *Service
	links  notify.Links
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(svc *Service, links notify.Links, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, links: links, now: time.Now, logger: logger}
}

// ListPublic handles GET /sessions?type=.
func (h *Handler) ListPublic(c *gin.Context) {
	list, err := h.svc.ListPublic(c.Request.Context(), c.Query("type"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// GetPublic handles GET /sessions/:id.
func (h *Handler) GetPublic(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, err := h.svc.GetPublic(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, sess)
}

// ListTypes handles GET /conversation-types.
func (h *Handler) ListTypes(c *gin.Context) {
	list, err := h.svc.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// QR handles GET /sessions/:id/qr?size=: a PNG linking to the registration page.
func (h *Handler) QR(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, h.logger, apperr.Validation("invalid size", apperr.Field("size", "must be a number")))
			return
		}
		size = n
	}
	if _, err := h.svc.GetPublic(c.Request.Context(), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	png, err := GenerateQRCode(h.links.RegisterURL(id), size)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// List handles GET /admin/sessions?type=&status=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Query("type"), models.SessionStatus(c.Query("status")))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, sess)
}

// Create handles POST /admin/sessions.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if !response.Bind(c, &in) {
		return
	}
	sess, err := h.svc.Create(c.Request.Context(), in, currentUser(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, sess)
}

// Update handles PUT /admin/sessions/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in Input
	if !response.Bind(c, &in) {
		return
	}
	sess, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, sess)
}

// Delete handles DELETE /admin/sessions/:id.
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

// Cancel handles POST /admin/sessions/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in CancelInput
	if !response.Bind(c, &in) {
		return
	}
	sess, err := h.svc.Cancel(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, sess)
}

// Participants handles GET /admin/sessions/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, regs, err := h.svc.Participants(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, ParticipantsResponse{Session: sess, Participants: regs})
}

// ParticipantsPDF handles GET /admin/sessions/:id/participants.pdf: a
// printable attendance sheet.
func (h *Handler) ParticipantsPDF(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, regs, err := h.svc.Participants(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	sheet := exports.ParticipantSheet{Session: sess, Participants: regs, GeneratedAt: h.now()}
	if sess.Status == models.SessionPublished {
		if png, err := GenerateQRCode(h.links.RegisterURL(sess.ID), pdfQRSize); err == nil {
			sheet.QRCode = png
		} else {
			h.logger.Warn("qr code for participant sheet failed", zap.Error(err), zap.String("session_id", sess.ID.String()))
		}
	}
	var buf bytes.Buffer
	if err := exports.WritePDF(&buf, sheet); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	filename := fmt.Sprintf("deelnemers-%s-%s.pdf", sess.Date, sess.ID.String()[:8])
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func currentUser(c *gin.Context) *uuid.UUID {
	id, ok := middleware.UserID(c)
	if !ok {
		return nil
	}
	return &id
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, nil, apperr.Validation("invalid id", apperr.Field("id", "must be a valid id")))
		return uuid.Nil, false
	}
	return id, true
}

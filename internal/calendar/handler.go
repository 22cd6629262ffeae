package calendar

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// SessionGetter loads a session with its conversation type.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Handler serves calendar downloads.
type Handler struct {
	sessions SessionGetter
	builder  *Builder
	logger   *zap.Logger
}

// NewHandler creates a calendar handler.
func NewHandler(sessions SessionGetter, builder *Builder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, builder: builder, logger: logger}
}

// Download handles GET /ics/:sessionId. Draft sessions are not exposed.
func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Error(c, h.logger, apperr.NotFound("session not found"))
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if sess.Status == models.SessionDraft {
		response.Error(c, h.logger, apperr.NotFound("session not found"))
		return
	}
	body, err := h.builder.Event(sess)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "groeigesprek-"+sess.ID.String()+".ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

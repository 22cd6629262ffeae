package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// Lister loads email logs.
type Lister interface {
	List(ctx context.Context, f Filter) ([]models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/email-logs?status=&type=&session_id=&limit=.
func (h *Handler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	logs, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, logs)
}

func parseFilter(c *gin.Context) (Filter, error) {
	f := Filter{Status: c.Query("status"), EmailType: c.Query("type"), Limit: DefaultLimit}
	var fields []apperr.FieldError
	switch f.Status {
	case "", models.EmailLogStatusPending, models.EmailLogStatusSent, models.EmailLogStatusFailed:
	default:
		fields = append(fields, apperr.Field("status", "must be one of: pending, sent, failed"))
	}
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fields = append(fields, apperr.Field("session_id", "must be a valid id"))
		} else {
			f.SessionID = &id
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields = append(fields, apperr.Field("limit", "must be a positive number"))
		} else {
			f.Limit = min(n, MaxLimit)
		}
	}
	if len(fields) > 0 {
		return f, apperr.Validation("invalid filter", fields...)
	}
	return f, nil
}

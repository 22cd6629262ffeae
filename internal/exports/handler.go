package exports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/registrations"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
	"github.com/groeigesprek/backend/pkg/storage"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Lister loads registrations joined with their sessions.
type Lister interface {
	List(ctx context.Context, f registrations.Filter) ([]models.Registration, error)
}

// Archive stores an export file and returns a time-limited download URL.
type Archive interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, time.Time, error)
}

// Handler serves registration exports.
type Handler struct {
	lister  Lister
	archive Archive
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates an exports handler. archive may be nil when no exports
// bucket is configured.
func NewHandler(lister Lister, archive Archive, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Handler{lister: lister, archive: archive, loc: loc, now: time.Now, logger: logger}
}

type rendered struct {
	body        []byte
	contentType string
	filename    string
}

// Export handles GET /admin/export?format=csv|xlsx&session_id=&status=&type=.
func (h *Handler) Export(c *gin.Context) {
	out, err := h.render(c)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.filename))
	c.Data(http.StatusOK, out.contentType, out.body)
}

// ArchiveExport handles POST /admin/exports/archive: the export is uploaded to
// object storage and a presigned download URL is returned.
func (h *Handler) ArchiveExport(c *gin.Context) {
	if h.archive == nil {
		response.ServiceUnavailable(c, "export archive is not configured")
		return
	}
	out, err := h.render(c)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	key := storage.ExportKey(h.now().In(h.loc), uuid.NewString()[:8]+"-"+out.filename)
	url, expires, err := h.archive.Put(c.Request.Context(), key, out.contentType, bytes.NewReader(out.body), int64(len(out.body)))
	if err != nil {
		response.Error(c, h.logger, apperr.Wrap(apperr.ErrUnexpected, "archive export", err))
		return
	}
	h.logger.Info("export archived", zap.String("key", key), zap.Int("bytes", len(out.body)))
	response.Created(c, gin.H{
		"key":          key,
		"filename":     out.filename,
		"download_url": url,
		"expires_at":   expires,
	})
}

func (h *Handler) render(c *gin.Context) (*rendered, error) {
	format := strings.ToLower(c.DefaultQuery("format", "xlsx"))
	if format == "excel" {
		format = "xlsx"
	}
	if format != "csv" && format != "xlsx" {
		return nil, apperr.Validation("invalid format", apperr.Field("format", "must be one of: csv, xlsx"))
	}

	var f registrations.Filter
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("invalid filter", apperr.Field("session_id", "must be a valid id"))
		}
		f.SessionID = &id
	}
	f.Status = models.RegistrationStatus(c.Query("status"))
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid filter", apperr.Field("status", "must be one of: active, cancelled, no_show"))
	}
	f.TypeName = c.Query("type")

	regs, err := h.lister.List(c.Request.Context(), f)
	if err != nil {
		return nil, err
	}
	rows := RowsFromRegistrations(regs)

	var buf bytes.Buffer
	out := &rendered{filename: Filename(h.now().In(h.loc), format)}
	if format == "csv" {
		err = WriteCSV(&buf, rows, h.loc)
		out.contentType = contentTypeCSV
	} else {
		err = WriteXLSX(&buf, rows, h.loc)
		out.contentType = contentTypeXLSX
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUnexpected, "render export", err)
	}
	out.body = buf.Bytes()
	return out, nil
}

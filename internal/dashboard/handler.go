package dashboard

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/sessions"
	"github.com/groeigesprek/backend/pkg/response"
)

// HighOccupancyPercent is the occupancy above which a session is flagged.
const HighOccupancyPercent = 80

// Counter provides the aggregate counts.
type Counter interface {
	CountSessions(ctx context.Context) (int, error)
	CountActiveRegistrations(ctx context.Context) (int, error)
	ActiveRegistrationsByType(ctx context.Context) ([]TypeCount, error)
}

// SessionLister lists sessions with their active registration counts.
type SessionLister interface {
	List(ctx context.Context, f sessions.ListFilter) ([]models.Session, error)
}

// Handler handles GET /admin/dashboard.
type Handler struct {
	counts   Counter
	sessions SessionLister
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(counts Counter, sessions SessionLister, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Handler{counts: counts, sessions: sessions, loc: loc, now: time.Now, logger: logger}
}

// OccupiedSession is an upcoming session with its occupancy.
type OccupiedSession struct {
	models.Session
	OccupancyPercent float64 `json:"occupancy_percent"`
}

// SummaryResponse is the JSON shape for the admin dashboard.
type SummaryResponse struct {
	TotalSessions             int               `json:"total_sessions"`
	TotalActiveRegistrations  int               `json:"total_active_registrations"`
	ActiveRegistrationsByType []TypeCount       `json:"active_registrations_by_type"`
	HighOccupancySessions     []OccupiedSession `json:"high_occupancy_sessions"`
}

// Summary handles GET /admin/dashboard.
func (h *Handler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	totalSessions, err := h.counts.CountSessions(ctx)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	totalRegs, err := h.counts.CountActiveRegistrations(ctx)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	byType, err := h.counts.ActiveRegistrationsByType(ctx)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	upcoming, err := h.sessions.List(ctx, sessions.ListFilter{
		Status:   models.SessionPublished,
		FromDate: h.now().In(h.loc).Format(models.DateLayout),
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	response.OK(c, SummaryResponse{
		TotalSessions:             totalSessions,
		TotalActiveRegistrations:  totalRegs,
		ActiveRegistrationsByType: byType,
		HighOccupancySessions:     HighOccupancy(upcoming),
	})
}

// HighOccupancy keeps the sessions filled beyond HighOccupancyPercent.
func HighOccupancy(list []models.Session) []OccupiedSession {
	out := []OccupiedSession{}
	for _, s := range list {
		if s.MaxParticipants <= 0 {
			continue
		}
		pct := float64(s.RegisteredCount) / float64(s.MaxParticipants) * 100
		if pct > HighOccupancyPercent {
			out = append(out, OccupiedSession{Session: s, OccupancyPercent: pct})
		}
	}
	return out
}

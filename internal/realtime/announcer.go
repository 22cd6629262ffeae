package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
)

// Availability is the live seat state of a session.
type Availability struct {
	SessionID       uuid.UUID            `json:"session_id"`
	Status          models.SessionStatus `json:"status"`
	RegisteredCount int                  `json:"registered_count"`
	MaxParticipants int                  `json:"max_participants"`
	SpotsLeft       int                  `json:"spots_left"`
}

// AvailabilityOf snapshots sess.
func AvailabilityOf(sess *models.Session) Availability {
	return Availability{
		SessionID:       sess.ID,
		Status:          sess.Status,
		RegisteredCount: sess.RegisteredCount,
		MaxParticipants: sess.MaxParticipants,
		SpotsLeft:       sess.SpotsLeft(),
	}
}

// SessionGetter loads a session with its active registration count.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Publisher distributes events to every instance, including this one.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, event string, payload []byte) error
}

// Announcer turns "session changed" signals into availability events.
type Announcer struct {
	sessions SessionGetter
	hub      *Hub
	pub      Publisher
	logger   *zap.Logger
}

// NewAnnouncer creates an announcer. Without pub, events only reach clients
// connected to this instance.
func NewAnnouncer(sessions SessionGetter, hub *Hub, pub Publisher, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Announcer{sessions: sessions, hub: hub, pub: pub, logger: logger}
}

// Snapshot returns the current availability of a published or cancelled
// session. Drafts are reported as not found.
func (a *Announcer) Snapshot(ctx context.Context, sessionID uuid.UUID) (*Availability, error) {
	sess, err := a.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionDraft {
		return nil, nil
	}
	av := AvailabilityOf(sess)
	return &av, nil
}

// SessionChanged reloads the session and pushes its availability. Draft
// sessions are not announced.
func (a *Announcer) SessionChanged(ctx context.Context, sessionID uuid.UUID) error {
	av, err := a.Snapshot(ctx, sessionID)
	if err != nil || av == nil {
		return err
	}
	data, err := json.Marshal(av)
	if err != nil {
		return err
	}
	if a.pub != nil {
		err := a.pub.Publish(ctx, sessionID, EventAvailability, data)
		if err == nil {
			return nil
		}
		a.logger.Warn("publish availability failed, broadcasting locally",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
	a.hub.Broadcast(sessionID, EventAvailability, json.RawMessage(data))
	return nil
}

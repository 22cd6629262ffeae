package sessions

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/validate"
)

// Store is the session persistence used by the service.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Create(ctx context.Context, s *models.Session) error
	Update(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	Participants(ctx context.Context, sessionID uuid.UUID) ([]models.Registration, error)
	ListTypes(ctx context.Context) ([]models.ConversationType, error)
	GetType(ctx context.Context, id uuid.UUID) (*models.ConversationType, error)
}

// Notifier tells registrants their session was cancelled.
type Notifier interface {
	SessionCancelled(ctx context.Context, sess *models.Session, reg *models.Registration) error
}

// AvailabilityAnnouncer is told when a session's capacity or status changed.
type AvailabilityAnnouncer interface {
	SessionChanged(ctx context.Context, sessionID uuid.UUID) error
}

// Input is the create/update body for a session.
type Input struct {
	ConversationTypeID string  `json:"conversation_type_id" validate:"required,uuid"`
	Date               string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime          string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime            *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location           string  `json:"location" validate:"required,min=2,max=200"`
	IsOnline           bool    `json:"is_online"`
	TeamsLink          *string `json:"teams_link" validate:"omitempty,url,max=2000"`
	Facilitator        string  `json:"facilitator" validate:"required,min=2,max=200"`
	MaxParticipants    int     `json:"max_participants" validate:"required,min=1,max=10000"`
	Status             string  `json:"status" validate:"omitempty,oneof=draft published"`
	TargetAudience     *string `json:"target_audience" validate:"omitempty,max=500"`
	Notes              *string `json:"notes" validate:"omitempty,max=5000"`
	Instructions       *string `json:"instructions" validate:"omitempty,max=5000"`
}

// CancelInput is the body for POST /admin/sessions/:id/cancel. Older admin
// clients send cancellation_reason; it is used when reason is empty.
type CancelInput struct {
	Reason             string `json:"reason" validate:"required,max=1000"`
	CancellationReason string `json:"cancellation_reason,omitempty" validate:"-"`
}

func (in *CancelInput) normalize() {
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		in.Reason = strings.TrimSpace(in.CancellationReason)
	}
	in.CancellationReason = ""
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (in *Input) normalize() {
	in.ConversationTypeID = strings.TrimSpace(in.ConversationTypeID)
	in.Date = strings.TrimSpace(in.Date)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = trimPtr(in.EndTime)
	in.Location = strings.TrimSpace(in.Location)
	in.TeamsLink = trimPtr(in.TeamsLink)
	in.Facilitator = strings.TrimSpace(in.Facilitator)
	in.Status = strings.TrimSpace(in.Status)
	in.TargetAudience = trimPtr(in.TargetAudience)
	in.Notes = trimPtr(in.Notes)
	in.Instructions = trimPtr(in.Instructions)
}

// Service implements the session catalog.
type Service struct {
	store    Store
	notifier Notifier
	announce AvailabilityAnnouncer
	bg       *notify.Background
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// WithAvailability pushes capacity and status changes to a.
func WithAvailability(a AvailabilityAnnouncer) Option { return func(s *Service) { s.announce = a } }

// NewService creates a session service.
func NewService(store Store, notifier Notifier, bg *notify.Background, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bg == nil {
		bg = notify.NewBackground(0, logger)
	}
	s := &Service{store: store, notifier: notifier, bg: bg, loc: time.Local, now: time.Now, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

// ListPublic returns published sessions from today on, optionally for one
// conversation type name.
func (s *Service) ListPublic(ctx context.Context, typeName string) ([]models.Session, error) {
	typeName = strings.TrimSpace(typeName)
	if typeName == models.TypeIndividual {
		return []models.Session{}, nil
	}
	return s.store.List(ctx, ListFilter{TypeName: typeName, Status: models.SessionPublished, FromDate: s.today()})
}

// GetPublic returns a published session.
func (s *Service) GetPublic(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "session not found")
	}
	if sess.Status != models.SessionPublished {
		return nil, apperr.NotFound("session not found")
	}
	return sess, nil
}

// ListTypes returns all conversation types.
func (s *Service) ListTypes(ctx context.Context) ([]models.ConversationType, error) {
	return s.store.ListTypes(ctx)
}

// List returns sessions for the admin panel.
func (s *Service) List(ctx context.Context, typeName string, status models.SessionStatus) ([]models.Session, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid filter", apperr.Field("status", "must be one of: draft, published, cancelled"))
	}
	return s.store.List(ctx, ListFilter{TypeName: strings.TrimSpace(typeName), Status: status})
}

// Get returns any session by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetByID(ctx, id)
	return sess, apperr.FromStore(err, "session not found")
}

// Create validates and stores a new session. Status defaults to draft.
func (s *Service) Create(ctx context.Context, in Input, createdBy *uuid.UUID) (*models.Session, error) {
	sess, err := s.build(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	sess.CreatedBy = createdBy
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created", zap.String("session_id", sess.ID.String()), zap.String("date", sess.Date))
	return sess, nil
}

// Update validates and replaces a session's fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Session, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "session not found")
	}
	if current.Status == models.SessionCancelled {
		return nil, apperr.New(apperr.ErrConflict, "a cancelled session cannot be edited")
	}
	sess, err := s.build(ctx, in, current)
	if err != nil {
		return nil, err
	}
	if sess.MaxParticipants < current.RegisteredCount {
		return nil, apperr.New(apperr.ErrConflict, "max_participants cannot be lower than the number of active registrations")
	}
	sess.ID = current.ID
	sess.CreatedBy = current.CreatedBy
	sess.CreatedAt = current.CreatedAt
	sess.RegisteredCount = current.RegisteredCount
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	if sess.MaxParticipants != current.MaxParticipants || sess.Status != current.Status {
		s.availabilityChanged(ctx, sess.ID)
	}
	return sess, nil
}

// Delete removes a session and, through the store, its registrations.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.FromStore(err, "session not found")
	}
	s.logger.Info("session deleted", zap.String("session_id", id.String()))
	return nil
}

// Cancel marks a session cancelled and notifies every active registrant.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, in CancelInput) (*models.Session, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.store.Cancel(ctx, id, in.Reason); err != nil {
		return nil, err
	}
	sess, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "session not found")
	}
	s.availabilityChanged(ctx, id)
	regs, err := s.store.Participants(ctx, id)
	if err != nil {
		s.logger.Warn("load registrants for cancelled session failed", zap.Error(err), zap.String("session_id", id.String()))
		return sess, nil
	}
	for i := range regs {
		if regs[i].Status != models.RegistrationActive {
			continue
		}
		reg := regs[i]
		s.bg.Go(ctx, "session_cancelled", func(ctx context.Context) error {
			return s.notifier.SessionCancelled(ctx, sess, &reg)
		})
	}
	s.logger.Info("session cancelled", zap.String("session_id", id.String()), zap.Int("registrants", len(regs)))
	return sess, nil
}

// Participants returns the session with its non-cancelled registrations.
func (s *Service) Participants(ctx context.Context, id uuid.UUID) (*models.Session, []models.Registration, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	regs, err := s.store.Participants(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sess, regs, nil
}

func (s *Service) availabilityChanged(ctx context.Context, id uuid.UUID) {
	if s.announce == nil {
		return
	}
	s.bg.Go(ctx, "availability", func(ctx context.Context) error {
		return s.announce.SessionChanged(ctx, id)
	})
}

// build validates in and turns it into a session. current is the stored
// session on update, nil on create.
func (s *Service) build(ctx context.Context, in Input, current *models.Session) (*models.Session, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var fields []apperr.FieldError
	if in.EndTime != nil && *in.EndTime <= in.StartTime {
		fields = append(fields, apperr.Field("end_time", "must be after start_time"))
	}
	if in.IsOnline && in.TeamsLink == nil {
		fields = append(fields, apperr.Field("teams_link", "is required for online sessions"))
	}
	if in.TeamsLink != nil {
		if u, err := url.Parse(*in.TeamsLink); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			fields = append(fields, apperr.Field("teams_link", "must be a valid URL"))
		}
	}
	dateChanged := current == nil || current.Date != in.Date
	if dateChanged && in.Date < s.today() {
		fields = append(fields, apperr.Field("date", "must be today or later"))
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid session", fields...)
	}

	typeID, _ := uuid.Parse(in.ConversationTypeID)
	ct, err := s.store.GetType(ctx, typeID)
	if err != nil {
		if apperr.KindOf(err) == apperr.ErrNotFound {
			return nil, apperr.Validation("invalid session", apperr.Field("conversation_type_id", "unknown conversation type"))
		}
		return nil, err
	}

	status := models.SessionStatus(in.Status)
	if status == "" {
		status = models.SessionDraft
		if current != nil {
			status = current.Status
		}
	}
	return &models.Session{
		ConversationTypeID: typeID,
		ConversationType:   ct,
		Date:               in.Date,
		StartTime:          in.StartTime,
		EndTime:            in.EndTime,
		Location:           in.Location,
		IsOnline:           in.IsOnline,
		TeamsLink:          in.TeamsLink,
		Facilitator:        in.Facilitator,
		MaxParticipants:    in.MaxParticipants,
		Status:             status,
		TargetAudience:     in.TargetAudience,
		Notes:              in.Notes,
		Instructions:       in.Instructions,
	}, nil
}

package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/validate"
)

// ErrCancellationClosed is the cause carried by cutoff rejections.
var ErrCancellationClosed = errors.New("cancellation window closed")

// Filter narrows the admin registration list.
type Filter struct {
	SessionID *uuid.UUID
	Status    models.RegistrationStatus
	TypeName  string
}

// Store is the registration persistence used by the service.
type Store interface {
	CountActive(ctx context.Context, sessionID uuid.UUID) (int, error)
	// FindActiveByEmail returns (nil, nil) when no active registration exists.
	FindActiveByEmail(ctx context.Context, sessionID uuid.UUID, email string) (*models.Registration, error)
	// Insert re-checks capacity against maxParticipants atomically.
	Insert(ctx context.Context, reg *models.Registration, maxParticipants int) error
	GetActiveByToken(ctx context.Context, token string) (*models.Registration, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// Cancel moves an active registration to cancelled; NotFound if it is not active.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*models.Registration, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus, at time.Time) (*models.Registration, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter) ([]models.Registration, error)
}

// SessionGetter loads sessions with their conversation type.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// CutoffReader supplies the cancellation cutoff in hours.
type CutoffReader interface {
	CutoffHours(ctx context.Context) int
}

// Notifier sends registration emails.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, reg *models.Registration, sess *models.Session) error
	RegistrationCancelled(ctx context.Context, reg *models.Registration, sess *models.Session) error
}

// AvailabilityAnnouncer is told when a session's active registration count
// may have changed.
type AvailabilityAnnouncer interface {
	SessionChanged(ctx context.Context, sessionID uuid.UUID) error
}

// RegisterInput is the public registration request.
type RegisterInput struct {
	SessionID  string `json:"session_id" validate:"required,uuid"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Name       string `json:"name" validate:"required,min=2,max=200"`
	Department string `json:"department" validate:"required,min=2,max=200"`
}

func (in *RegisterInput) normalize() {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
}

// Preview is what the self-service cancellation page shows.
type Preview struct {
	Registration *models.Registration `json:"registration"`
	Session      *models.Session      `json:"session"`
	CutoffHours  int                  `json:"cutoff_hours"`
	CanCancel    bool                 `json:"can_cancel"`
}

// Service implements registration and cancellation.
type Service struct {
	store    Store
	sessions SessionGetter
	cutoff   CutoffReader
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
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone session wall-clock times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithAvailability pushes seat count changes to a.
func WithAvailability(a AvailabilityAnnouncer) Option {
	return func(s *Service) { s.announce = a }
}

// NewService creates a registration service. bg may be shared with other
// services so shutdown drains every pending notification.
func NewService(store Store, sessions SessionGetter, cutoff CutoffReader, notifier Notifier, bg *notify.Background, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bg == nil {
		bg = notify.NewBackground(0, logger)
	}
	s := &Service{
		store:    store,
		sessions: sessions,
		cutoff:   cutoff,
		notifier: notifier,
		bg:       bg,
		loc:      time.Local,
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register signs a person up for a published session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Registration, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	sessionID, _ := uuid.Parse(in.SessionID)

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperr.FromStore(err, "session not found")
	}
	if sess.Status != models.SessionPublished {
		return nil, apperr.NotFound("session not found")
	}

	count, err := s.store.CountActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if count >= sess.MaxParticipants {
		return nil, apperr.New(apperr.ErrCapacityExceeded, "this session is full")
	}

	existing, err := s.store.FindActiveByEmail(ctx, sessionID, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.ErrDuplicateRegistration, "you are already registered for this session")
	}

	token, err := NewCancellationToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUnexpected, "could not register", err)
	}
	reg := &models.Registration{
		SessionID:         sessionID,
		Email:             in.Email,
		Name:              in.Name,
		Department:        in.Department,
		Status:            models.RegistrationActive,
		CancellationToken: token,
	}
	if err := s.store.Insert(ctx, reg, sess.MaxParticipants); err != nil {
		return nil, err
	}
	sess.RegisteredCount = count + 1
	reg.Session = sess

	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("session_id", sessionID.String()),
	)
	s.bg.Go(ctx, models.EmailTypeRegistrationConfirmation, func(ctx context.Context) error {
		return s.notifier.RegistrationConfirmed(ctx, reg, sess)
	})
	s.availabilityChanged(ctx, sessionID)
	return reg, nil
}

// Preview returns the active registration for token with its cancel state.
func (s *Service) Preview(ctx context.Context, token string) (*Preview, error) {
	reg, sess, err := s.activeByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	hours := s.cutoff.CutoffHours(ctx)
	return &Preview{
		Registration: reg,
		Session:      sess,
		CutoffHours:  hours,
		CanCancel:    WithinCutoff(s.now(), sess.Date, sess.StartTime, hours, s.loc),
	}, nil
}

// CancelByToken cancels the active registration bearing token, provided the
// cutoff has not passed.
func (s *Service) CancelByToken(ctx context.Context, token string) (*models.Registration, error) {
	reg, sess, err := s.activeByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	hours := s.cutoff.CutoffHours(ctx)
	now := s.now()
	if !WithinCutoff(now, sess.Date, sess.StartTime, hours, s.loc) {
		return nil, &apperr.Error{
			Kind:    apperr.ErrValidation,
			Message: fmt.Sprintf("cancelling is no longer possible within %d hours of the session start", hours),
			Cause:   ErrCancellationClosed,
		}
	}
	cancelled, err := s.store.Cancel(ctx, reg.ID, now)
	if err != nil {
		return nil, apperr.FromStore(err, "registration not found")
	}
	cancelled.Session = sess
	s.logger.Info("registration cancelled by token", zap.String("registration_id", reg.ID.String()))
	s.notifyCancelled(ctx, cancelled, sess)
	s.availabilityChanged(ctx, sess.ID)
	return cancelled, nil
}

// CancelByID cancels a registration on behalf of an administrator. The
// cutoff does not apply.
func (s *Service) CancelByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	cancelled, err := s.store.Cancel(ctx, id, s.now())
	if err != nil {
		return nil, apperr.FromStore(err, "active registration not found")
	}
	s.availabilityChanged(ctx, cancelled.SessionID)
	sess, err := s.sessions.GetByID(ctx, cancelled.SessionID)
	if err != nil {
		s.logger.Warn("load session for cancellation email failed", zap.Error(err))
		return cancelled, nil
	}
	cancelled.Session = sess
	s.notifyCancelled(ctx, cancelled, sess)
	return cancelled, nil
}

// SetStatus changes a registration's status. Reactivation is subject to the
// same capacity and uniqueness rules as a new registration.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) (*models.Registration, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status", apperr.Field("status", "must be one of: active, cancelled, no_show"))
	}
	reg, err := s.store.SetStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, apperr.FromStore(err, "registration not found")
	}
	s.availabilityChanged(ctx, reg.SessionID)
	return reg, nil
}

// Delete removes a registration.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "registration not found")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.FromStore(err, "registration not found")
	}
	s.availabilityChanged(ctx, reg.SessionID)
	return nil
}

// List returns registrations for the admin panel.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Registration, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid filter", apperr.Field("status", "must be one of: active, cancelled, no_show"))
	}
	return s.store.List(ctx, f)
}

func (s *Service) activeByToken(ctx context.Context, token string) (*models.Registration, *models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, apperr.NotFound("registration not found or already cancelled")
	}
	reg, err := s.store.GetActiveByToken(ctx, token)
	if err != nil {
		return nil, nil, apperr.FromStore(err, "registration not found or already cancelled")
	}
	sess, err := s.sessions.GetByID(ctx, reg.SessionID)
	if err != nil {
		return nil, nil, apperr.FromStore(err, "session not found")
	}
	reg.Session = sess
	return reg, sess, nil
}

func (s *Service) availabilityChanged(ctx context.Context, sessionID uuid.UUID) {
	if s.announce == nil {
		return
	}
	s.bg.Go(ctx, "availability", func(ctx context.Context) error {
		return s.announce.SessionChanged(ctx, sessionID)
	})
}

func (s *Service) notifyCancelled(ctx context.Context, reg *models.Registration, sess *models.Session) {
	s.bg.Go(ctx, models.EmailTypeCancellationConfirmation, func(ctx context.Context) error {
		return s.notifier.RegistrationCancelled(ctx, reg, sess)
	})
}

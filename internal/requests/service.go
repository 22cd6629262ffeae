package requests

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/internal/registrations"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/validate"
)

// Placeholder session values for individual conversations.
const (
	individualTypeDescription = "Individueel gesprek"
	placeholderStartTime      = "09:00"
	placeholderCapacity       = 999
	placeholderNotes          = "Placeholder sessie voor individuele gespreksaanvragen"
	placeholderDepartment     = "Individueel gesprek"
)

// Store is the request persistence used by the service.
type Store interface {
	Insert(ctx context.Context, req *models.IndividualRequest) error
	List(ctx context.Context, status models.RequestStatus) ([]models.IndividualRequest, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.IndividualRequest, error)
}

// ColleagueGetter resolves colleagues that accept requests.
type ColleagueGetter interface {
	GetActive(ctx context.Context, id uuid.UUID) (*models.Colleague, error)
}

// PlaceholderStore finds or creates the per-colleague placeholder session.
type PlaceholderStore interface {
	EnsureType(ctx context.Context, name, description string) (*models.ConversationType, error)
	FindByTypeAndFacilitator(ctx context.Context, typeID uuid.UUID, facilitator string) (*models.Session, error)
	Create(ctx context.Context, s *models.Session) error
}

// RegistrationInserter stores a registration on a session.
type RegistrationInserter interface {
	Insert(ctx context.Context, reg *models.Registration, maxParticipants int) error
}

// Notifier tells a colleague about a new request.
type Notifier interface {
	IndividualRequest(ctx context.Context, req *models.IndividualRequest, colleague *models.Colleague) error
}

// CreateInput is the public request body.
type CreateInput struct {
	ColleagueID    string  `json:"colleague_id" validate:"required,uuid"`
	RequesterName  *string `json:"requester_name" validate:"omitempty,max=200"`
	RequesterEmail *string `json:"requester_email" validate:"omitempty,email,max=254"`
	Message        string  `json:"message" validate:"required,min=1,max=5000"`
}

func optional(p *string, lower bool) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if lower {
		v = strings.ToLower(v)
	}
	if v == "" {
		return nil
	}
	return &v
}

func (in *CreateInput) normalize() {
	in.ColleagueID = strings.TrimSpace(in.ColleagueID)
	in.RequesterName = optional(in.RequesterName, false)
	in.RequesterEmail = optional(in.RequesterEmail, true)
	in.Message = strings.TrimSpace(in.Message)
}

// Service handles individual conversation requests.
type Service struct {
	store        Store
	colleagues   ColleagueGetter
	placeholders PlaceholderStore
	regs         RegistrationInserter
	notifier     Notifier
	bg           *notify.Background
	loc          *time.Location
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the zone used for the placeholder session date.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// NewService creates an individual requests service.
func NewService(store Store, colleagues ColleagueGetter, placeholders PlaceholderStore, regs RegistrationInserter,
	notifier Notifier, bg *notify.Background, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bg == nil {
		bg = notify.NewBackground(0, logger)
	}
	s := &Service{
		store:        store,
		colleagues:   colleagues,
		placeholders: placeholders,
		regs:         regs,
		notifier:     notifier,
		bg:           bg,
		loc:          time.Local,
		now:          time.Now,
		logger:       logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create records a request for a conversation with an active colleague.
// When both requester name and email are known the requester is also
// registered on the colleague's placeholder session.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.IndividualRequest, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	colleagueID, _ := uuid.Parse(in.ColleagueID)
	colleague, err := s.colleagues.GetActive(ctx, colleagueID)
	if err != nil {
		return nil, err
	}

	placeholder, err := s.placeholder(ctx, colleague)
	if err != nil {
		return nil, err
	}

	req := &models.IndividualRequest{
		ColleagueID:    colleague.ID,
		RequesterName:  in.RequesterName,
		RequesterEmail: in.RequesterEmail,
		Message:        in.Message,
	}
	if err := s.store.Insert(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("individual request created",
		zap.String("request_id", req.ID.String()),
		zap.String("colleague_id", colleague.ID.String()),
	)

	if req.RequesterName != nil && req.RequesterEmail != nil {
		s.register(ctx, placeholder, req)
	}
	s.bg.Go(ctx, models.EmailTypeIndividualRequest, func(ctx context.Context) error {
		return s.notifier.IndividualRequest(ctx, req, colleague)
	})
	return req, nil
}

// List returns requests with their colleague, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.RequestStatus) ([]models.IndividualRequest, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid filter", apperr.Field("status", "must be one of: pending, accepted, declined"))
	}
	return s.store.List(ctx, status)
}

// SetStatus moves a request to status.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.IndividualRequest, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status", apperr.Field("status", "must be one of: pending, accepted, declined"))
	}
	return s.store.SetStatus(ctx, id, status)
}

func (s *Service) placeholder(ctx context.Context, colleague *models.Colleague) (*models.Session, error) {
	ct, err := s.placeholders.EnsureType(ctx, models.TypeIndividual, individualTypeDescription)
	if err != nil {
		return nil, err
	}
	sess, err := s.placeholders.FindByTypeAndFacilitator(ctx, ct.ID, colleague.Name)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	notes := placeholderNotes
	sess = &models.Session{
		ConversationTypeID: ct.ID,
		ConversationType:   ct,
		Date:               s.now().In(s.loc).Format(models.DateLayout),
		StartTime:          placeholderStartTime,
		Location:           "Individueel gesprek met " + colleague.Name,
		Facilitator:        colleague.Name,
		MaxParticipants:    placeholderCapacity,
		Status:             models.SessionPublished,
		Notes:              &notes,
	}
	if err := s.placeholders.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("placeholder session created",
		zap.String("session_id", sess.ID.String()),
		zap.String("facilitator", colleague.Name),
	)
	return sess, nil
}

func (s *Service) register(ctx context.Context, sess *models.Session, req *models.IndividualRequest) {
	token, err := registrations.NewCancellationToken()
	if err != nil {
		s.logger.Warn("placeholder registration skipped", zap.Error(err))
		return
	}
	reg := &models.Registration{
		SessionID:         sess.ID,
		Email:             *req.RequesterEmail,
		Name:              *req.RequesterName,
		Department:        placeholderDepartment,
		Status:            models.RegistrationActive,
		CancellationToken: token,
	}
	if err := s.regs.Insert(ctx, reg, sess.MaxParticipants); err != nil {
		s.logger.Warn("placeholder registration failed",
			zap.String("request_id", req.ID.String()),
			zap.String("session_id", sess.ID.String()),
			zap.Error(err),
		)
	}
}

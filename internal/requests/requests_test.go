package requests

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/pkg/apperr"
)

var amsterdam, _ = time.LoadLocation("Europe/Amsterdam")

type memStore struct {
	mu   sync.Mutex
	rows []*models.IndividualRequest
}

func (m *memStore) Insert(_ context.Context, req *models.IndividualRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = uuid.New()
	req.Status = models.RequestPending
	req.CreatedAt = time.Now()
	cp := *req
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memStore) List(_ context.Context, status models.RequestStatus) ([]models.IndividualRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.IndividualRequest{}
	for _, r := range m.rows {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, status models.RequestStatus) (*models.IndividualRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			r.Status = status
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("request not found")
}

type colleagueMap map[uuid.UUID]*models.Colleague

func (m colleagueMap) GetActive(_ context.Context, id uuid.UUID) (*models.Colleague, error) {
	c, ok := m[id]
	if !ok || !c.IsActive {
		return nil, apperr.NotFound("colleague not found or not available")
	}
	return c, nil
}

type memPlaceholders struct {
	mu       sync.Mutex
	typ      *models.ConversationType
	sessions []*models.Session
}

func (p *memPlaceholders) EnsureType(_ context.Context, name, description string) (*models.ConversationType, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.typ == nil {
		p.typ = &models.ConversationType{ID: uuid.New(), Name: name, Description: description}
	}
	return p.typ, nil
}

func (p *memPlaceholders) FindByTypeAndFacilitator(_ context.Context, typeID uuid.UUID, facilitator string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sessions {
		if s.ConversationTypeID == typeID && s.Facilitator == facilitator {
			return s, nil
		}
	}
	return nil, nil
}

func (p *memPlaceholders) Create(_ context.Context, s *models.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.ID = uuid.New()
	p.sessions = append(p.sessions, s)
	return nil
}

type memRegs struct {
	mu   sync.Mutex
	regs []*models.Registration
	fail error
}

func (r *memRegs) Insert(_ context.Context, reg *models.Registration, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	reg.ID = uuid.New()
	r.regs = append(r.regs, reg)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) IndividualRequest(_ context.Context, req *models.IndividualRequest, c *models.Colleague) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c.Email+":"+req.Message)
	return nil
}

type fixture struct {
	svc          *Service
	store        *memStore
	placeholders *memPlaceholders
	regs         *memRegs
	notifier     *recordingNotifier
	bg           *notify.Background
	anna         *models.Colleague
	inactive     *models.Colleague
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	anna := &models.Colleague{ID: uuid.New(), Name: "Anna de Boer", Email: "anna@example.com", IsActive: true}
	inactive := &models.Colleague{ID: uuid.New(), Name: "Bram", Email: "bram@example.com"}
	f := &fixture{
		store:        &memStore{},
		placeholders: &memPlaceholders{},
		regs:         &memRegs{},
		notifier:     &recordingNotifier{},
		bg:           notify.NewBackground(time.Second, nil),
		anna:         anna,
		inactive:     inactive,
	}
	now := time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)
	f.svc = NewService(f.store, colleagueMap{anna.ID: anna, inactive.ID: inactive}, f.placeholders, f.regs,
		f.notifier, f.bg, nil,
		WithClock(func() time.Time { return now }),
		WithLocation(amsterdam),
	)
	return f
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.bg.Drain(ctx))
}

func ptr(s string) *string { return &s }

func TestCreateWithRequesterRegistersOnPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Create(ctx, CreateInput{
		ColleagueID:    f.anna.ID.String(),
		RequesterName:  ptr(" Jan "),
		RequesterEmail: ptr("Jan@Example.com"),
		Message:        " Graag een gesprek ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "Graag een gesprek", req.Message)
	require.NotNil(t, req.RequesterEmail)
	assert.Equal(t, "jan@example.com", *req.RequesterEmail)

	require.Len(t, f.placeholders.sessions, 1)
	sess := f.placeholders.sessions[0]
	assert.Equal(t, models.TypeIndividual, f.placeholders.typ.Name)
	assert.Equal(t, "2025-06-10", sess.Date)
	assert.Equal(t, "Individueel gesprek met Anna de Boer", sess.Location)
	assert.Equal(t, 999, sess.MaxParticipants)
	assert.Equal(t, models.SessionPublished, sess.Status)

	require.Len(t, f.regs.regs, 1)
	assert.Equal(t, sess.ID, f.regs.regs[0].SessionID)
	assert.Equal(t, "Individueel gesprek", f.regs.regs[0].Department)
	assert.NotEmpty(t, f.regs.regs[0].CancellationToken)

	_, err = f.svc.Create(ctx, CreateInput{ColleagueID: f.anna.ID.String(), Message: "Nog een vraag"})
	require.NoError(t, err)
	assert.Len(t, f.placeholders.sessions, 1)
	assert.Len(t, f.regs.regs, 1)

	f.drain(t)
	assert.Equal(t, []string{"anna@example.com:Graag een gesprek", "anna@example.com:Nog een vraag"}, f.notifier.sent)
}

func TestCreateRegistrationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.regs.fail = apperr.New(apperr.ErrDuplicateRegistration, "already registered")

	req, err := f.svc.Create(context.Background(), CreateInput{
		ColleagueID:    f.anna.ID.String(),
		RequesterName:  ptr("Jan"),
		RequesterEmail: ptr("jan@example.com"),
		Message:        "Hallo",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, req.ID)
	f.drain(t)
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   CreateInput
		kind error
	}{
		{"inactive colleague", CreateInput{ColleagueID: f.inactive.ID.String(), Message: "Hallo"}, apperr.ErrNotFound},
		{"unknown colleague", CreateInput{ColleagueID: uuid.NewString(), Message: "Hallo"}, apperr.ErrNotFound},
		{"bad id", CreateInput{ColleagueID: "x", Message: "Hallo"}, apperr.ErrValidation},
		{"empty message", CreateInput{ColleagueID: f.anna.ID.String(), Message: "   "}, apperr.ErrValidation},
		{"bad email", CreateInput{ColleagueID: f.anna.ID.String(), RequesterEmail: ptr("nope"), Message: "Hallo"}, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.in)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}
	assert.Empty(t, f.store.rows)
}

func TestCreateBlankOptionalFieldsSkipRegistration(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.Create(context.Background(), CreateInput{
		ColleagueID:    f.anna.ID.String(),
		RequesterName:  ptr("Jan"),
		RequesterEmail: ptr(""),
		Message:        "Hallo",
	})
	require.NoError(t, err)
	assert.Nil(t, req.RequesterEmail)
	assert.Empty(t, f.regs.regs)
	f.drain(t)
}

func TestListAndSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, CreateInput{ColleagueID: f.anna.ID.String(), Message: "Hallo"})
	require.NoError(t, err)

	_, err = f.svc.List(ctx, "bogus")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := f.svc.SetStatus(ctx, req.ID, models.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, updated.Status)

	list, err := f.svc.List(ctx, models.RequestPending)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.SetStatus(ctx, uuid.New(), models.RequestDeclined)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	f.drain(t)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	h := NewHandler(f.svc, nil)
	r := gin.New()
	r.POST("/individual-requests", h.Create)
	r.GET("/admin/individual-requests", h.List)
	r.PATCH("/admin/individual-requests/:id/status", h.SetStatus)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPost, "/individual-requests", `{"colleague_id":"`+f.anna.ID.String()+`","message":"Hallo"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = send(http.MethodPost, "/individual-requests", `{"colleague_id":"`+f.inactive.ID.String()+`","message":"Hallo"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(http.MethodPost, "/individual-requests", `{"colleague_id":"`+f.anna.ID.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := f.store.rows[0].ID.String()
	w = send(http.MethodPatch, "/admin/individual-requests/"+id+"/status", `{"status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = send(http.MethodPatch, "/admin/individual-requests/"+id+"/status", `{"status":"declined"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"declined"`)

	w = send(http.MethodGet, "/admin/individual-requests?status=declined", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
	f.drain(t)
}

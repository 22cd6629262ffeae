package registrations

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/pkg/apperr"
)

// memStore is an in-memory Store. Insert enforces capacity and the
// active-email rule under one lock, like the SQL transaction.
type memStore struct {
	mu   sync.Mutex
	regs map[uuid.UUID]*models.Registration
}

func newMemStore() *memStore {
	return &memStore{regs: map[uuid.UUID]*models.Registration{}}
}

func (m *memStore) countActiveLocked(sessionID uuid.UUID) int {
	n := 0
	for _, r := range m.regs {
		if r.SessionID == sessionID && r.Status == models.RegistrationActive {
			n++
		}
	}
	return n
}

func (m *memStore) CountActive(_ context.Context, sessionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveLocked(sessionID), nil
}

func (m *memStore) FindActiveByEmail(_ context.Context, sessionID uuid.UUID, email string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.SessionID == sessionID && r.Status == models.RegistrationActive && strings.EqualFold(r.Email, email) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, reg *models.Registration, maxParticipants int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countActiveLocked(reg.SessionID) >= maxParticipants {
		return apperr.New(apperr.ErrCapacityExceeded, "this session is full")
	}
	for _, r := range m.regs {
		if r.SessionID == reg.SessionID && r.Status == models.RegistrationActive && strings.EqualFold(r.Email, reg.Email) {
			return apperr.New(apperr.ErrDuplicateRegistration, "duplicate")
		}
	}
	reg.ID = uuid.New()
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = reg.CreatedAt
	cp := *reg
	m.regs[reg.ID] = &cp
	return nil
}

func (m *memStore) GetActiveByToken(_ context.Context, token string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.CancellationToken == token && r.Status == models.RegistrationActive {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("registration not found or already cancelled")
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, apperr.NotFound("registration not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Cancel(_ context.Context, id uuid.UUID, at time.Time) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.Status != models.RegistrationActive {
		return nil, apperr.NotFound("active registration not found")
	}
	r.Status = models.RegistrationCancelled
	r.CancelledAt = &at
	cp := *r
	return &cp, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, status models.RegistrationStatus, at time.Time) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, apperr.NotFound("registration not found")
	}
	r.Status = status
	if status == models.RegistrationCancelled {
		r.CancelledAt = &at
	} else {
		r.CancelledAt = nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[id]; !ok {
		return apperr.NotFound("registration not found")
	}
	delete(m.regs, id)
	return nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, r := range m.regs {
		if f.SessionID != nil && r.SessionID != *f.SessionID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

type memSessions map[uuid.UUID]*models.Session

func (m memSessions) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	cp := *s
	return &cp, nil
}

type fixedCutoff int

func (f fixedCutoff) CutoffHours(context.Context) int { return int(f) }

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	cancelled []string
	err       error
}

func (n *recordingNotifier) RegistrationConfirmed(_ context.Context, reg *models.Registration, _ *models.Session) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, reg.Email)
	return n.err
}

func (n *recordingNotifier) RegistrationCancelled(_ context.Context, reg *models.Registration, _ *models.Session) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, reg.Email)
	return n.err
}

type fixture struct {
	svc      *Service
	store    *memStore
	notifier *recordingNotifier
	bg       *notify.Background
	session  *models.Session
	now      time.Time
}

var amsterdam = mustLoad("Europe/Amsterdam")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newFixture(t *testing.T, maxParticipants int, now time.Time) *fixture {
	t.Helper()
	sess := &models.Session{
		ID:              uuid.New(),
		Date:            "2025-06-10",
		StartTime:       "10:00",
		Location:        "Room 1",
		Facilitator:     "Anna",
		MaxParticipants: maxParticipants,
		Status:          models.SessionPublished,
	}
	f := &fixture{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		bg:       notify.NewBackground(time.Second, nil),
		session:  sess,
		now:      now,
	}
	f.svc = NewService(f.store, memSessions{sess.ID: sess}, fixedCutoff(2), f.notifier, f.bg, nil,
		WithClock(func() time.Time { return f.now }),
		WithLocation(amsterdam),
	)
	return f
}

func (f *fixture) input(email string) RegisterInput {
	return RegisterInput{SessionID: f.session.ID.String(), Email: email, Name: "Jan de Vries", Department: "Finance"}
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.bg.Drain(ctx))
}

func at(clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", "2025-06-10 "+clock, amsterdam)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWithinCutoff(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		cutoff int
		want   bool
	}{
		{"well before", at("06:00"), 2, true},
		{"one minute before deadline", at("07:59"), 2, true},
		{"exactly at deadline", at("08:00"), 2, false},
		{"after deadline", at("08:01"), 2, false},
		{"zero cutoff before start", at("09:59"), 0, true},
		{"zero cutoff at start", at("10:00"), 0, false},
		{"day before with 24h", time.Date(2025, 6, 9, 9, 59, 0, 0, amsterdam), 24, true},
		{"other zone same instant", at("07:59").UTC(), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinCutoff(tt.now, "2025-06-10", "10:00", tt.cutoff, amsterdam))
		})
	}
}

func TestWithinCutoffRejectsUnparsableInput(t *testing.T) {
	assert.False(t, WithinCutoff(at("06:00"), "10-06-2025", "10:00", 2, amsterdam))
	assert.False(t, WithinCutoff(at("06:00"), "2025-06-10", "ten", 2, amsterdam))
}

func TestNewCancellationToken(t *testing.T) {
	a, err := NewCancellationToken()
	require.NoError(t, err)
	b, err := NewCancellationToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, tokenBytes)
}

func TestRegister(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))

	reg, err := f.svc.Register(context.Background(), f.input("  Jan@Example.COM "))
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, "jan@example.com", reg.Email)
	assert.Equal(t, models.RegistrationActive, reg.Status)
	assert.NotEmpty(t, reg.CancellationToken)
	require.NotNil(t, reg.Session)
	assert.Equal(t, 1, reg.Session.RegisteredCount)
	assert.Equal(t, []string{"jan@example.com"}, f.notifier.confirmed)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"bad email", RegisterInput{SessionID: f.session.ID.String(), Email: "nope", Name: "Jan", Department: "IT"}, "email"},
		{"short name", RegisterInput{SessionID: f.session.ID.String(), Email: "a@b.nl", Name: " J ", Department: "IT"}, "name"},
		{"short department", RegisterInput{SessionID: f.session.ID.String(), Email: "a@b.nl", Name: "Jan", Department: "I"}, "department"},
		{"bad session id", RegisterInput{SessionID: "42", Email: "a@b.nl", Name: "Jan", Department: "IT"}, "session_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
			e, ok := apperr.As(err)
			require.True(t, ok)
			require.NotEmpty(t, e.Fields)
			assert.Equal(t, tt.field, e.Fields[0].Field)
		})
	}
}

func TestRegisterRejectsUnknownOrUnpublishedSession(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))

	in := f.input("a@b.nl")
	in.SessionID = uuid.NewString()
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	for _, status := range []models.SessionStatus{models.SessionDraft, models.SessionCancelled} {
		f.session.Status = status
		_, err = f.svc.Register(context.Background(), f.input("a@b.nl"))
		assert.ErrorIs(t, err, apperr.ErrNotFound, string(status))
	}
}

func TestRegisterCapacity(t *testing.T) {
	f := newFixture(t, 2, at("06:00"))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.input("one@example.com"))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.input("two@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, f.input("three@example.com"))
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	n, _ := f.store.CountActive(ctx, f.session.ID)
	assert.Equal(t, 2, n)
	f.drain(t)
}

func TestRegisterDuplicateIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.input("JAN@example.com"))
	assert.ErrorIs(t, err, apperr.ErrDuplicateRegistration)
	f.drain(t)
}

func TestRegisterAfterCancelIsAllowed(t *testing.T) {
	f := newFixture(t, 1, at("06:00"))
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)
	_, err = f.svc.CancelByToken(ctx, reg.CancellationToken)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, f.input("jan@example.com"))
	assert.NoError(t, err)
	f.drain(t)
}

func TestRegisterConcurrentSingleSeat(t *testing.T) {
	f := newFixture(t, 1, at("06:00"))
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(ctx, f.input(uuid.NewString()+"@example.com"))
		}(i)
	}
	wg.Wait()
	f.drain(t)

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
	}
	assert.Equal(t, 1, ok)
	count, _ := f.store.CountActive(ctx, f.session.ID)
	assert.Equal(t, 1, count)
}

func TestRegisterSucceedsWhenNotificationFails(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	f.notifier.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), f.input("jan@example.com"))
	assert.NoError(t, err)
	f.drain(t)
}

func TestCancelByToken(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)

	f.now = at("07:59")
	cancelled, err := f.svc.CancelByToken(ctx, reg.CancellationToken)
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, models.RegistrationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.True(t, cancelled.CancelledAt.Equal(at("07:59")))
	assert.Equal(t, []string{"jan@example.com"}, f.notifier.cancelled)

	_, err = f.svc.CancelByToken(ctx, reg.CancellationToken)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelByTokenAfterCutoff(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)

	for _, clock := range []string{"08:00", "08:01", "11:00"} {
		f.now = at(clock)
		_, err = f.svc.CancelByToken(ctx, reg.CancellationToken)
		require.ErrorIs(t, err, apperr.ErrValidation, clock)
		assert.ErrorIs(t, err, ErrCancellationClosed)
		assert.Contains(t, err.Error(), "2 hours")
	}

	stored, err := f.store.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationActive, stored.Status)
	f.drain(t)
}

func TestCancelByTokenUnknown(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	for _, tok := range []string{"", "   ", "does-not-exist"} {
		_, err := f.svc.CancelByToken(context.Background(), tok)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)

	p, err := f.svc.Preview(ctx, reg.CancellationToken)
	require.NoError(t, err)
	assert.True(t, p.CanCancel)
	assert.Equal(t, 2, p.CutoffHours)
	assert.Equal(t, f.session.ID, p.Session.ID)

	f.now = at("09:00")
	p, err = f.svc.Preview(ctx, reg.CancellationToken)
	require.NoError(t, err)
	assert.False(t, p.CanCancel)
	f.drain(t)
}

func TestAdminCancelIgnoresCutoff(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)

	f.now = at("09:30")
	cancelled, err := f.svc.CancelByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, cancelled.Status)

	_, err = f.svc.CancelByID(ctx, reg.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	f.drain(t)
}

func TestSetStatusAndDelete(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, reg.ID, "maybe")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := f.svc.SetStatus(ctx, reg.ID, models.RegistrationNoShow)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationNoShow, updated.Status)

	require.NoError(t, f.svc.Delete(ctx, reg.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, reg.ID), apperr.ErrNotFound)
	f.drain(t)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	_, err := f.svc.List(context.Background(), Filter{Status: "gone"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

type recordingAnnouncer struct {
	mu      sync.Mutex
	changed []uuid.UUID
}

func (a *recordingAnnouncer) SessionChanged(_ context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changed = append(a.changed, id)
	return nil
}

func TestAvailabilityAnnouncedOnSeatChanges(t *testing.T) {
	f := newFixture(t, 5, at("06:00"))
	announcer := &recordingAnnouncer{}
	WithAvailability(announcer)(f.svc)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, f.input("jan@example.com"))
	require.NoError(t, err)
	_, err = f.svc.CancelByToken(ctx, reg.CancellationToken)
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, reg.ID, models.RegistrationActive)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, reg.ID))

	_, err = f.svc.Register(ctx, RegisterInput{SessionID: f.session.ID.String(), Email: "bad"})
	require.Error(t, err)
	f.drain(t)

	assert.Equal(t, []uuid.UUID{f.session.ID, f.session.ID, f.session.ID, f.session.ID}, announcer.changed)
}

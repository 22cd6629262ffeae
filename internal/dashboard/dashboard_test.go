package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/sessions"
)

type fakeCounter struct {
	err error
}

func (f fakeCounter) CountSessions(context.Context) (int, error) { return 7, f.err }

func (f fakeCounter) CountActiveRegistrations(context.Context) (int, error) { return 21, nil }

func (f fakeCounter) ActiveRegistrationsByType(context.Context) ([]TypeCount, error) {
	return []TypeCount{{TypeName: "group", Count: 15}, {TypeName: "drop-in", Count: 6}}, nil
}

type fakeSessions struct {
	got  sessions.ListFilter
	list []models.Session
}

func (f *fakeSessions) List(_ context.Context, filter sessions.ListFilter) ([]models.Session, error) {
	f.got = filter
	return f.list, nil
}

func session(registered, max int) models.Session {
	return models.Session{ID: uuid.New(), Date: "2025-06-12", StartTime: "10:00", MaxParticipants: max,
		RegisteredCount: registered, Status: models.SessionPublished}
}

func TestHighOccupancy(t *testing.T) {
	cases := []struct {
		name       string
		registered int
		max        int
		flagged    bool
	}{
		{"exactly 80 percent", 8, 10, false},
		{"above 80 percent", 9, 10, true},
		{"full", 4, 4, true},
		{"empty", 0, 10, false},
		{"zero capacity", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := HighOccupancy([]models.Session{session(tc.registered, tc.max)})
			assert.Equal(t, tc.flagged, len(out) == 1)
		})
	}
}

func TestSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	lister := &fakeSessions{list: []models.Session{session(9, 10), session(1, 10)}}
	h := NewHandler(fakeCounter{}, lister, amsterdam, nil)
	h.now = func() time.Time { return time.Date(2025, 6, 9, 22, 30, 0, 0, time.UTC) }
	r := gin.New()
	r.GET("/admin/dashboard", h.Summary)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data SummaryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 7, env.Data.TotalSessions)
	assert.Equal(t, 21, env.Data.TotalActiveRegistrations)
	assert.Len(t, env.Data.ActiveRegistrationsByType, 2)
	require.Len(t, env.Data.HighOccupancySessions, 1)
	assert.InDelta(t, 90.0, env.Data.HighOccupancySessions[0].OccupancyPercent, 0.001)

	assert.Equal(t, "2025-06-10", lister.got.FromDate)
	assert.Equal(t, models.SessionPublished, lister.got.Status)
}

func TestSummaryStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(fakeCounter{err: errors.New("db down")}, &fakeSessions{}, nil, nil)
	r := gin.New()
	r.GET("/admin/dashboard", h.Summary)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

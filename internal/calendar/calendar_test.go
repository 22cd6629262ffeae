package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

var amsterdam, _ = time.LoadLocation("Europe/Amsterdam")

// unfold joins folded content lines so assertions can match whole properties.
func unfold(s string) string {
	return strings.ReplaceAll(s, "\r\n ", "")
}

func newSession() *models.Session {
	instructions := "Neem je laptop mee"
	teams := "https://teams.example.com/l/meetup/abc"
	return &models.Session{
		ID:               uuid.MustParse("6f1c2b1e-3a39-4b39-9d6e-2c8f1b0b6a11"),
		Date:             "2025-06-10",
		StartTime:        "10:00",
		Location:         "n.v.t.",
		IsOnline:         true,
		TeamsLink:        &teams,
		Facilitator:      "Anna de Vries",
		Instructions:     &instructions,
		MaxParticipants:  8,
		Status:           models.SessionPublished,
		ConversationType: &models.ConversationType{Name: "group"},
	}
}

func TestEvent(t *testing.T) {
	b := NewBuilder("groeigesprekken.example.org", amsterdam)
	b.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

	out, err := b.Event(newSession())
	require.NoError(t, err)
	out = unfold(out)

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "PRODID:"+productID)
	assert.Contains(t, out, "METHOD:REQUEST")
	assert.Contains(t, out, "UID:6f1c2b1e-3a39-4b39-9d6e-2c8f1b0b6a11@groeigesprekken.example.org")
	// 10:00 CEST is 08:00 UTC; no end time means one hour.
	assert.Contains(t, out, "DTSTART:20250610T080000Z")
	assert.Contains(t, out, "DTEND:20250610T090000Z")
	assert.Contains(t, out, "SUMMARY:group")
	assert.Contains(t, out, `DESCRIPTION:Begeleider: Anna de Vries\n\nNeem je laptop mee`)
	assert.Contains(t, out, "LOCATION:Online (Teams)")
	assert.Contains(t, out, "URL:https://teams.example.com/l/meetup/abc")
	assert.Contains(t, out, "TRIGGER:-PT15M")
	assert.Contains(t, out, "ACTION:DISPLAY")
}

func TestEventEscapesText(t *testing.T) {
	tests := []struct {
		name         string
		location     string
		instructions string
		want         []string
	}{
		{
			name:     "location with comma and semicolon",
			location: "Room 1, floor; 2",
			want:     []string{`LOCATION:Room 1\, floor\; 2`},
		},
		{
			name:         "instructions with every special character",
			location:     "Zaal 2",
			instructions: "a, b; c\nd \\ e",
			want:         []string{`DESCRIPTION:Begeleider: Anna de Vries\n\na\, b\; c\nd \\ e`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession()
			sess.IsOnline = false
			sess.TeamsLink = nil
			sess.Location = tt.location
			sess.Instructions = &tt.instructions
			out, err := NewBuilder("x.test", amsterdam).Event(sess)
			require.NoError(t, err)
			out = unfold(out)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestEventOnsiteWithEndTime(t *testing.T) {
	sess := newSession()
	sess.IsOnline = false
	sess.TeamsLink = nil
	sess.Location = "Zaal 2"
	sess.Date = "2025-01-15"
	end := "15:30"
	sess.StartTime = "14:00"
	sess.EndTime = &end

	out, err := NewBuilder("x.test", amsterdam).Event(sess)
	require.NoError(t, err)
	out = unfold(out)
	// CET is UTC+1 in winter.
	assert.Contains(t, out, "DTSTART:20250115T130000Z")
	assert.Contains(t, out, "DTEND:20250115T143000Z")
	assert.Contains(t, out, "LOCATION:Zaal 2")
	assert.NotContains(t, out, "URL:")
}

func TestEventInvalidDate(t *testing.T) {
	sess := newSession()
	sess.Date = "10-06-2025"
	_, err := NewBuilder("x.test", amsterdam).Event(sess)
	assert.Error(t, err)
}

type fakeSessions map[uuid.UUID]*models.Session

func (f fakeSessions) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, apperr.NotFound("session not found")
}

func TestHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	published := newSession()
	draft := newSession()
	draft.ID = uuid.New()
	draft.Status = models.SessionDraft

	h := NewHandler(fakeSessions{published.ID: published, draft.ID: draft}, NewBuilder("x.test", amsterdam), nil)
	r := gin.New()
	r.GET("/ics/:sessionId", h.Download)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/ics/" + published.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "groeigesprek-"+published.ID.String()+".ics")
	assert.Contains(t, w.Body.String(), "BEGIN:VEVENT")

	assert.Equal(t, http.StatusNotFound, get("/ics/"+draft.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get("/ics/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusNotFound, get("/ics/not-a-uuid").Code)
}

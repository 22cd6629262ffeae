package models

import (
	"fmt"
	"time"
	_ "time/tzdata" // session wall-clock times need zone data on minimal images

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session: draft → published → cancelled.
type SessionStatus string

const (
	SessionDraft     SessionStatus = "draft"
	SessionPublished SessionStatus = "published"
	SessionCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionDraft, SessionPublished, SessionCancelled:
		return true
	}
	return false
}

// Conversation type names. TypeIndividual sessions are placeholders for
// individual requests and are never listed as bookable.
const (
	TypeGroup      = "group"
	TypeDropIn     = "drop-in"
	TypeIndividual = "individual"
)

// Wall-clock layouts for session dates and times.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultSessionLength applies when a session has no end time.
const DefaultSessionLength = time.Hour

// ConversationType categorizes sessions.
type ConversationType struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is a scheduled, bookable time slot for a conversation type.
type Session struct {
	ID                 uuid.UUID         `json:"id"`
	ConversationTypeID uuid.UUID         `json:"conversation_type_id"`
	Date               string            `json:"date"`       // YYYY-MM-DD
	StartTime          string            `json:"start_time"` // HH:MM
	EndTime            *string           `json:"end_time,omitempty"`
	Location           string            `json:"location"`
	IsOnline           bool              `json:"is_online"`
	TeamsLink          *string           `json:"teams_link,omitempty"`
	Facilitator        string            `json:"facilitator"`
	MaxParticipants    int               `json:"max_participants"`
	Status             SessionStatus     `json:"status"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	TargetAudience     *string           `json:"target_audience,omitempty"`
	Notes              *string           `json:"notes,omitempty"`
	Instructions       *string           `json:"instructions,omitempty"`
	CreatedBy          *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ConversationType   *ConversationType `json:"conversation_type,omitempty"`
	RegisteredCount    int               `json:"registered_count"`
}

// StartsAt combines Date and StartTime in loc.
func (s *Session) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseWallClock(s.Date, s.StartTime, loc)
}

// EndsAt returns the end instant, or start + DefaultSessionLength when no end
// time is set.
func (s *Session) EndsAt(loc *time.Location) (time.Time, error) {
	if s.EndTime == nil || *s.EndTime == "" {
		start, err := s.StartsAt(loc)
		if err != nil {
			return time.Time{}, err
		}
		return start.Add(DefaultSessionLength), nil
	}
	return ParseWallClock(s.Date, *s.EndTime, loc)
}

// TypeName returns the conversation type name, or fallback when not joined.
func (s *Session) TypeName(fallback string) string {
	if s.ConversationType != nil && s.ConversationType.Name != "" {
		return s.ConversationType.Name
	}
	return fallback
}

// DisplayLocation is the location shown to participants.
func (s *Session) DisplayLocation() string {
	if s.IsOnline {
		return "Online (Teams)"
	}
	return s.Location
}

// SpotsLeft is the remaining capacity, never negative.
func (s *Session) SpotsLeft() int {
	if n := s.MaxParticipants - s.RegisteredCount; n > 0 {
		return n
	}
	return 0
}

// ParseWallClock parses a YYYY-MM-DD date and an HH:MM (or HH:MM:SS) time in loc.
func ParseWallClock(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if len(clock) > len(TimeLayout) {
		clock = clock[:len(TimeLayout)]
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse session time %q %q: %w", date, clock, err)
	}
	return t, nil
}

// Package calendar renders sessions as iCalendar invitations.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/groeigesprek/backend/internal/models"
)

const (
	productID     = "-//IJsselheem//Groeigesprekken//NL"
	defaultTitle  = "Groeigesprek"
	reminderText  = "Herinnering: Groeigesprek"
	reminderAhead = "-PT15M"
)

// Builder renders ICS documents for sessions.
type Builder struct {
	domain string
	loc    *time.Location
	now    func() time.Time
}

// NewBuilder creates a Builder. domain is the host part of event UIDs and
// loc the zone session wall-clock times are in.
func NewBuilder(domain string, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{domain: domain, loc: loc, now: time.Now}
}

// UID is the stable event identifier of a session.
func (b *Builder) UID(sess *models.Session) string {
	return fmt.Sprintf("%s@%s", sess.ID, b.domain)
}

// Event renders one session as a VCALENDAR with a single VEVENT and a
// 15 minute reminder. Times are written in UTC.
func (b *Builder) Event(sess *models.Session) (string, error) {
	start, err := sess.StartsAt(b.loc)
	if err != nil {
		return "", fmt.Errorf("session start: %w", err)
	}
	end, err := sess.EndsAt(b.loc)
	if err != nil {
		return "", fmt.Errorf("session end: %w", err)
	}

	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodRequest)

	event := cal.AddEvent(b.UID(sess))
	event.SetDtStampTime(b.now().UTC())
	event.SetStartAt(start.UTC())
	event.SetEndAt(end.UTC())
	event.SetSummary(sess.TypeName(defaultTitle))
	event.SetDescription(description(sess))
	event.SetLocation(sess.DisplayLocation())
	if sess.IsOnline && sess.TeamsLink != nil {
		event.SetURL(*sess.TeamsLink)
	}
	if sess.Status == models.SessionCancelled {
		event.SetStatus(ics.ObjectStatusCancelled)
	}

	alarm := event.AddAlarm()
	alarm.SetAction(ics.ActionDisplay)
	alarm.SetTrigger(reminderAhead)
	alarm.SetProperty(ics.ComponentPropertyDescription, reminderText)

	return cal.Serialize(), nil
}

func description(sess *models.Session) string {
	d := "Begeleider: " + sess.Facilitator
	if sess.Instructions != nil && *sess.Instructions != "" {
		d += "\n\n" + *sess.Instructions
	}
	return d
}

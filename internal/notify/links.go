package notify

import (
	"net/url"

	"github.com/google/uuid"
)

// Links builds the absolute URLs placed in emails, QR codes and API responses.
type Links struct {
	PublicURL string // frontend base, no trailing slash
	APIURL    string // API base, no trailing slash
}

// CancelURL is the self-service cancellation page for a token.
func (l Links) CancelURL(token string) string {
	return l.PublicURL + "/annuleren/" + url.PathEscape(token)
}

// RegisterURL is the public registration page of a session.
func (l Links) RegisterURL(sessionID uuid.UUID) string {
	return l.PublicURL + "/inschrijven/" + sessionID.String()
}

// CalendarURL is the ICS download for a session.
func (l Links) CalendarURL(sessionID uuid.UUID) string {
	return l.APIURL + "/ics/" + sessionID.String()
}

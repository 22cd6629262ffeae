package models

import (
	"time"

	"github.com/google/uuid"
)

// Colleague is someone employees can request an individual conversation with.
type Colleague struct {
	ID                       uuid.UUID `json:"id"`
	Name                     string    `json:"name"`
	Email                    string    `json:"email"`
	PhotoURL                 *string   `json:"photo_url,omitempty"`
	PhotoKey                 *string   `json:"-"`
	Function                 *string   `json:"function,omitempty"`
	IsActive                 bool      `json:"is_active"`
	AvailableForSpelwerkvorm bool      `json:"available_for_spelwerkvorm"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// ColleaguePublic is the subset shown on the public request page.
type ColleaguePublic struct {
	ID                       uuid.UUID `json:"id"`
	Name                     string    `json:"name"`
	PhotoURL                 *string   `json:"photo_url,omitempty"`
	Function                 *string   `json:"function,omitempty"`
	AvailableForSpelwerkvorm bool      `json:"available_for_spelwerkvorm"`
}

// ToPublic strips contact details.
func (c *Colleague) ToPublic() ColleaguePublic {
	return ColleaguePublic{
		ID:                       c.ID,
		Name:                     c.Name,
		PhotoURL:                 c.PhotoURL,
		Function:                 c.Function,
		AvailableForSpelwerkvorm: c.AvailableForSpelwerkvorm,
	}
}

// RequestStatus is the state of an individual request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestDeclined:
		return true
	}
	return false
}

// IndividualRequest is a free-form request for a one-on-one conversation.
type IndividualRequest struct {
	ID             uuid.UUID     `json:"id"`
	ColleagueID    uuid.UUID     `json:"colleague_id"`
	RequesterName  *string       `json:"requester_name,omitempty"`
	RequesterEmail *string       `json:"requester_email,omitempty"`
	Message        string        `json:"message"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	Colleague      *Colleague    `json:"colleague,omitempty"`
}

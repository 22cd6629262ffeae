package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the state of a sign-up.
type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "active"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationNoShow    RegistrationStatus = "no_show"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationActive, RegistrationCancelled, RegistrationNoShow:
		return true
	}
	return false
}

// Registration is a person's sign-up for a session.
type Registration struct {
	ID                uuid.UUID          `json:"id"`
	SessionID         uuid.UUID          `json:"session_id"`
	Email             string             `json:"email"`
	Name              string             `json:"name"`
	Department        string             `json:"department"`
	Status            RegistrationStatus `json:"status"`
	CancellationToken string             `json:"-"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Session           *Session           `json:"session,omitempty"`
}

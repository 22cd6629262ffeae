package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the notification pipeline.
const (
	EmailTypeRegistrationConfirmation = "registration_confirmation"
	EmailTypeCancellationConfirmation = "cancellation_confirmation"
	EmailTypeSessionCancelled         = "session_cancelled"
	EmailTypeIndividualRequest        = "individual_request"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one delivery attempt chain for a notification.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	JobID          string     `json:"job_id"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

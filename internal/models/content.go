package models

import (
	"time"

	"github.com/google/uuid"
)

// Header is a title/subtitle pair shown on the public landing page.
type Header struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting is a key/value site configuration entry.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Known setting keys.
const (
	SettingCancellationCutoffHours       = "cancellation_cutoff_hours"
	SettingEmailConfirmationEnabled      = "email_confirmation_enabled"
	SettingEmailCancellationEnabled      = "email_cancellation_enabled"
	SettingEmailIndividualRequestEnabled = "email_individual_request_enabled"
)

// DefaultCancellationCutoffHours applies when the setting is missing or invalid.
const DefaultCancellationCutoffHours = 2

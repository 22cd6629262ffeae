package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"capacity", New(ErrCapacityExceeded, "session is full"), ErrCapacityExceeded},
		{"wrapped not found", fmt.Errorf("get: %w", NotFound("session not found")), ErrNotFound},
		{"validation", Validation("bad", Field("email", "is required")), ErrValidation},
		{"foreign", errors.New("boom"), ErrUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrUnexpected, "store error", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, "store error: connection reset", err.Error())
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "registrations_active_email_key"}
	wrapped := fmt.Errorf("insert: %w", pgErr)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "registrations_active_email_key"))
	assert.False(t, IsUniqueViolation(wrapped, "colleagues_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("other"), ""))
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, FromStore(nil, "x"))

	err := FromStore(fmt.Errorf("scan: %w", pgx.ErrNoRows), "session not found")
	assert.ErrorIs(t, err, ErrNotFound)
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "session not found", e.Message)

	domain := New(ErrConflict, "email taken")
	assert.Same(t, domain, FromStore(domain, "x"))

	assert.ErrorIs(t, FromStore(errors.New("timeout"), "x"), ErrUnexpected)
}

func TestFromBinding(t *testing.T) {
	type body struct {
		Email string `validate:"required,email"`
		Name  string `validate:"min=2"`
		Start string `validate:"datetime=15:04"`
	}
	v := validator.New()
	err := v.Struct(body{Email: "nope", Name: "a", Start: "25:00"})
	require.Error(t, err)

	got := FromBinding(err)
	assert.ErrorIs(t, got, ErrValidation)
	assert.Equal(t, []FieldError{
		{Field: "Email", Message: "must be a valid email address"},
		{Field: "Name", Message: "must be at least 2 characters"},
		{Field: "Start", Message: "must match format HH:MM"},
	}, got.Fields)

	assert.Equal(t, "invalid request body", FromBinding(errors.New("unexpected EOF")).Message)
}

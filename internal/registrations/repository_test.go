package registrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

const (
	lockSessionStatus = `SELECT status FROM sessions WHERE id = \$1 FOR UPDATE`
	lockSessionMax    = `SELECT max_participants FROM sessions WHERE id = \$1 FOR UPDATE`
	countActive       = `SELECT COUNT\(\*\) FROM registrations WHERE session_id = \$1 AND status = 'active'`
	insertReg         = `INSERT INTO registrations`
	lockRegistration  = `FROM registrations r WHERE r\.id = \$1 FOR UPDATE`
	updateRegStatus   = `UPDATE registrations r SET status = \$2`
)

var registrationCols = []string{"id", "session_id", "email", "name", "department", "status",
	"cancellation_token", "cancelled_at", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func newRegistration(sessionID uuid.UUID) *models.Registration {
	return &models.Registration{
		SessionID:         sessionID,
		Email:             "jan@example.com",
		Name:              "Jan",
		Department:        "Finance",
		Status:            models.RegistrationActive,
		CancellationToken: "tok",
	}
}

func TestRepositoryInsert(t *testing.T) {
	sessionID := uuid.New()
	ctx := context.Background()

	t.Run("inserts under the session lock", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := uuid.New()
		created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
		mock.ExpectBegin()
		mock.ExpectQuery(lockSessionStatus).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("published"))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(insertReg).WithArgs(sessionID, "jan@example.com", "Jan", "Finance", "tok").
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, created, created))
		mock.ExpectCommit()

		reg := newRegistration(sessionID)
		require.NoError(t, repo.Insert(ctx, reg, 2))
		assert.Equal(t, id, reg.ID)
		assert.Equal(t, created, reg.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full session", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockSessionStatus).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("published"))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectRollback()

		err := repo.Insert(ctx, newRegistration(sessionID), 2)
		assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active email race is a duplicate", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockSessionStatus).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("published"))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(insertReg).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeEmailConstraint})
		mock.ExpectRollback()

		err := repo.Insert(ctx, newRegistration(sessionID), 2)
		assert.ErrorIs(t, err, apperr.ErrDuplicateRegistration)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other unique violations stay unexpected", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockSessionStatus).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("published"))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(insertReg).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "registrations_cancellation_token_key"})
		mock.ExpectRollback()

		err := repo.Insert(ctx, newRegistration(sessionID), 2)
		assert.Equal(t, apperr.ErrUnexpected, apperr.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("session cancelled meanwhile", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockSessionStatus).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("cancelled"))
		mock.ExpectRollback()

		err := repo.Insert(ctx, newRegistration(sessionID), 2)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("session deleted meanwhile", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockSessionStatus).WithArgs(sessionID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		err := repo.Insert(ctx, newRegistration(sessionID), 2)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositorySetStatus(t *testing.T) {
	ctx := context.Background()
	id, sessionID := uuid.New(), uuid.New()
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	row := func(status string) *pgxmock.Rows {
		return pgxmock.NewRows(registrationCols).
			AddRow(id, sessionID, "jan@example.com", "Jan", "Finance", status, "tok", nil, created, created)
	}

	t.Run("reactivation into a full session", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockRegistration).WithArgs(id).WillReturnRows(row("cancelled"))
		mock.ExpectQuery(lockSessionMax).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"max_participants"}).AddRow(2))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectRollback()

		_, err := repo.SetStatus(ctx, id, models.RegistrationActive, now)
		assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reactivation with a free seat", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockRegistration).WithArgs(id).WillReturnRows(row("no_show"))
		mock.ExpectQuery(lockSessionMax).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"max_participants"}).AddRow(2))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(updateRegStatus).WillReturnRows(row("active"))
		mock.ExpectCommit()

		reg, err := repo.SetStatus(ctx, id, models.RegistrationActive, now)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationActive, reg.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reactivation racing another active email", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockRegistration).WithArgs(id).WillReturnRows(row("cancelled"))
		mock.ExpectQuery(lockSessionMax).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"max_participants"}).AddRow(5))
		mock.ExpectQuery(countActive).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(updateRegStatus).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeEmailConstraint})
		mock.ExpectRollback()

		_, err := repo.SetStatus(ctx, id, models.RegistrationActive, now)
		assert.ErrorIs(t, err, apperr.ErrDuplicateRegistration)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("marking no-show skips the capacity check", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockRegistration).WithArgs(id).WillReturnRows(row("active"))
		mock.ExpectQuery(updateRegStatus).WillReturnRows(row("no_show"))
		mock.ExpectCommit()

		reg, err := repo.SetStatus(ctx, id, models.RegistrationNoShow, now)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationNoShow, reg.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown registration", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockRegistration).WithArgs(id).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.SetStatus(ctx, id, models.RegistrationActive, now)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

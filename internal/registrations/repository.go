package registrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/database"
)

// activeEmailConstraint is the partial unique index on active registrations.
const activeEmailConstraint = "registrations_active_email_uniq"

const registrationColumns = `r.id, r.session_id, r.email, r.name, r.department, r.status,
	r.cancellation_token, r.cancelled_at, r.created_at, r.updated_at`

// Repository handles registration persistence.
type Repository struct {
	pool database.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool database.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountActive returns the number of active registrations for a session.
func (r *Repository) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE session_id = $1 AND status = 'active'`, sessionID).Scan(&n)
	return n, apperr.FromStore(err, "")
}

// FindActiveByEmail returns the active registration for session+email, or nil.
func (r *Repository) FindActiveByEmail(ctx context.Context, sessionID uuid.UUID, email string) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r
		WHERE r.session_id = $1 AND lower(r.email) = lower($2) AND r.status = 'active'`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, sessionID, email))
	if apperr.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return reg, nil
}

// Insert creates a registration. The session row is locked while its status
// and active registrations are re-checked, so concurrent inserts serialize on
// capacity and a session cancelled in the meantime takes no new sign-ups.
// A race on the active-email index is reported as a duplicate.
func (r *Repository) Insert(ctx context.Context, reg *models.Registration, maxParticipants int) error {
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, reg.SessionID).Scan(&status); err != nil {
			return apperr.FromStore(err, "session not found")
		}
		if models.SessionStatus(status) != models.SessionPublished {
			return apperr.NotFound("session not found")
		}
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE session_id = $1 AND status = 'active'`, reg.SessionID).Scan(&n); err != nil {
			return err
		}
		if n >= maxParticipants {
			return apperr.New(apperr.ErrCapacityExceeded, "this session is full")
		}
		const q = `INSERT INTO registrations (session_id, email, name, department, status, cancellation_token)
			VALUES ($1, $2, $3, $4, 'active', $5)
			RETURNING id, created_at, updated_at`
		return tx.QueryRow(ctx, q, reg.SessionID, reg.Email, reg.Name, reg.Department, reg.CancellationToken).
			Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	})
	if apperr.IsUniqueViolation(err, activeEmailConstraint) {
		return apperr.Wrap(apperr.ErrDuplicateRegistration, "you are already registered for this session", err)
	}
	return apperr.FromStore(err, "")
}

// GetActiveByToken returns the active registration bearing token.
func (r *Repository) GetActiveByToken(ctx context.Context, token string) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r
		WHERE r.cancellation_token = $1 AND r.status = 'active'`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, token))
	if err != nil {
		return nil, apperr.FromStore(err, "registration not found or already cancelled")
	}
	return reg, nil
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r WHERE r.id = $1`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, apperr.FromStore(err, "registration not found")
	}
	return reg, nil
}

// Cancel sets an active registration to cancelled.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*models.Registration, error) {
	q := `UPDATE registrations r SET status = 'cancelled', cancelled_at = $2, updated_at = NOW()
		WHERE r.id = $1 AND r.status = 'active'
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, id, at))
	if err != nil {
		return nil, apperr.FromStore(err, "active registration not found")
	}
	return reg, nil
}

// SetStatus changes the status of a registration. Reactivation locks the
// session and re-checks capacity.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus, at time.Time) (*models.Registration, error) {
	var out *models.Registration
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanRegistration(tx.QueryRow(ctx,
			`SELECT `+registrationColumns+` FROM registrations r WHERE r.id = $1 FOR UPDATE`, id))
		if err != nil {
			return apperr.FromStore(err, "registration not found")
		}
		if status == models.RegistrationActive && current.Status != models.RegistrationActive {
			var maxP, n int
			if err := tx.QueryRow(ctx, `SELECT max_participants FROM sessions WHERE id = $1 FOR UPDATE`, current.SessionID).Scan(&maxP); err != nil {
				return apperr.FromStore(err, "session not found")
			}
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE session_id = $1 AND status = 'active'`, current.SessionID).Scan(&n); err != nil {
				return err
			}
			if n >= maxP {
				return apperr.New(apperr.ErrCapacityExceeded, "this session is full")
			}
		}
		var cancelledAt *time.Time
		if status == models.RegistrationCancelled {
			cancelledAt = &at
		}
		q := `UPDATE registrations r SET status = $2,
				cancelled_at = CASE WHEN $2 = 'cancelled' THEN COALESCE(r.cancelled_at, $3) ELSE NULL END,
				updated_at = NOW()
			WHERE r.id = $1
			RETURNING ` + registrationColumns
		out, err = scanRegistration(tx.QueryRow(ctx, q, id, string(status), cancelledAt))
		return err
	})
	if apperr.IsUniqueViolation(err, activeEmailConstraint) {
		return nil, apperr.Wrap(apperr.ErrDuplicateRegistration, "this email already has an active registration for the session", err)
	}
	if err != nil {
		return nil, apperr.FromStore(err, "registration not found")
	}
	return out, nil
}

// Delete removes a registration by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStore(err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("registration not found")
	}
	return nil
}

// List returns registrations with their session and conversation type,
// newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Registration, error) {
	var conds []string
	var args []interface{}
	if f.SessionID != nil {
		args = append(args, *f.SessionID)
		conds = append(conds, fmt.Sprintf("r.session_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if f.TypeName != "" {
		args = append(args, f.TypeName)
		conds = append(conds, fmt.Sprintf("ct.name = $%d", len(args)))
	}
	q := `SELECT ` + registrationColumns + `,
			s.id, to_char(s.date, 'YYYY-MM-DD'), to_char(s.start_time, 'HH24:MI'), to_char(s.end_time, 'HH24:MI'),
			s.location, s.is_online, s.teams_link, s.facilitator, s.max_participants, s.status,
			ct.id, ct.name
		FROM registrations r
		JOIN sessions s ON s.id = r.session_id
		JOIN conversation_types ct ON ct.id = s.conversation_type_id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY r.created_at DESC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()

	list := []models.Registration{}
	for rows.Next() {
		var reg models.Registration
		var s models.Session
		var ct models.ConversationType
		var status, sessStatus string
		if err := rows.Scan(&reg.ID, &reg.SessionID, &reg.Email, &reg.Name, &reg.Department, &status,
			&reg.CancellationToken, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt,
			&s.ID, &s.Date, &s.StartTime, &s.EndTime,
			&s.Location, &s.IsOnline, &s.TeamsLink, &s.Facilitator, &s.MaxParticipants, &sessStatus,
			&ct.ID, &ct.Name); err != nil {
			return nil, apperr.FromStore(err, "")
		}
		reg.Status = models.RegistrationStatus(status)
		s.Status = models.SessionStatus(sessStatus)
		s.ConversationTypeID = ct.ID
		s.ConversationType = &ct
		reg.Session = &s
		list = append(list, reg)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status string
	err := row.Scan(&reg.ID, &reg.SessionID, &reg.Email, &reg.Name, &reg.Department, &status,
		&reg.CancellationToken, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Status = models.RegistrationStatus(status)
	return &reg, nil
}

package emaillogs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/queue"
)

// DefaultLimit and MaxLimit bound List.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Filter narrows email log listings.
type Filter struct {
	Status    string
	EmailType string
	SessionID *uuid.UUID
	Limit     int
}

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin records a delivery attempt for job. The first attempt inserts the
// row; later attempts bump its attempt counter.
func (r *Repository) Begin(ctx context.Context, jobID string, p queue.EmailPayload) error {
	const q = `INSERT INTO email_logs (job_id, registration_id, session_id, email_type, recipient_email, subject, status, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', 1)
		ON CONFLICT (job_id) DO UPDATE SET attempts = email_logs.attempts + 1, status = 'pending'`
	_, err := r.pool.Exec(ctx, q, jobID, p.RegistrationID, p.SessionID, p.EmailType, p.RecipientEmail, p.Subject)
	return apperr.FromStore(err, "")
}

// MarkSent marks the job's email delivered.
func (r *Repository) MarkSent(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = 'sent', sent_at = $2, error_message = NULL WHERE job_id = $1`, jobID, at)
	return apperr.FromStore(err, "")
}

// MarkFailed stores the last delivery error. The row stays pending while the
// job will be retried and becomes failed once it is dead-lettered.
func (r *Repository) MarkFailed(ctx context.Context, jobID, message string, final bool) error {
	status := models.EmailLogStatusPending
	if final {
		status = models.EmailLogStatusFailed
	}
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE job_id = $1`, jobID, status, message)
	return apperr.FromStore(err, "")
}

// List returns email logs newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.EmailLog, error) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.EmailType != "" {
		args = append(args, f.EmailType)
		conds = append(conds, fmt.Sprintf("email_type = $%d", len(args)))
	}
	if f.SessionID != nil {
		args = append(args, *f.SessionID)
		conds = append(conds, fmt.Sprintf("session_id = $%d", len(args)))
	}
	q := `SELECT id, job_id, registration_id, session_id, email_type, recipient_email, subject, status, attempts,
			error_message, sent_at, created_at
		FROM email_logs`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.JobID, &el.RegistrationID, &el.SessionID, &el.EmailType, &el.RecipientEmail,
			&el.Subject, &el.Status, &el.Attempts, &el.ErrorMessage, &el.SentAt, &el.CreatedAt); err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, el)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

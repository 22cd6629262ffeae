package sessions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/database"
)

const sessionSelect = `SELECT s.id, s.conversation_type_id, to_char(s.date, 'YYYY-MM-DD'), to_char(s.start_time, 'HH24:MI'),
		to_char(s.end_time, 'HH24:MI'), s.location, s.is_online, s.teams_link, s.facilitator, s.max_participants,
		s.status, s.cancellation_reason, s.target_audience, s.notes, s.instructions, s.created_by,
		s.created_at, s.updated_at, ct.id, ct.name, ct.description, ct.created_at,
		(SELECT COUNT(*) FROM registrations r WHERE r.session_id = s.id AND r.status = 'active')
	FROM sessions s
	JOIN conversation_types ct ON ct.id = s.conversation_type_id`

// ListFilter narrows session listings.
type ListFilter struct {
	TypeName string
	Status   models.SessionStatus
	// FromDate, when set, keeps sessions on or after this YYYY-MM-DD date.
	FromDate string
}

// Repository handles session and conversation type persistence.
type Repository struct {
	pool database.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool database.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns sessions ordered by date and start time. Individual
// placeholder sessions are never included.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Session, error) {
	args := []interface{}{models.TypeIndividual}
	conds := []string{"ct.name <> $1"}
	if f.TypeName != "" {
		args = append(args, f.TypeName)
		conds = append(conds, fmt.Sprintf("ct.name = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("s.status = $%d", len(args)))
	}
	if f.FromDate != "" {
		args = append(args, f.FromDate)
		conds = append(conds, fmt.Sprintf("s.date >= $%d::date", len(args)))
	}
	q := sessionSelect + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY s.date, s.start_time"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, *s)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// GetByID returns a session with its type and active registration count.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, sessionSelect+" WHERE s.id = $1", id))
	if err != nil {
		return nil, apperr.FromStore(err, "session not found")
	}
	return s, nil
}

// Create inserts a session and fills its generated fields.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (conversation_type_id, date, start_time, end_time, location, is_online, teams_link,
			facilitator, max_participants, status, target_audience, notes, instructions, created_by)
		VALUES ($1, $2::date, $3::time, $4::time, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, s.ConversationTypeID, s.Date, s.StartTime, s.EndTime, s.Location, s.IsOnline,
		s.TeamsLink, s.Facilitator, s.MaxParticipants, string(s.Status), s.TargetAudience, s.Notes, s.Instructions,
		s.CreatedBy).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return apperr.FromStore(err, "")
}

// Update replaces the editable fields of a session.
func (r *Repository) Update(ctx context.Context, s *models.Session) error {
	const q = `UPDATE sessions SET conversation_type_id = $2, date = $3::date, start_time = $4::time, end_time = $5::time,
			location = $6, is_online = $7, teams_link = $8, facilitator = $9, max_participants = $10, status = $11,
			target_audience = $12, notes = $13, instructions = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, s.ID, s.ConversationTypeID, s.Date, s.StartTime, s.EndTime, s.Location, s.IsOnline,
		s.TeamsLink, s.Facilitator, s.MaxParticipants, string(s.Status), s.TargetAudience, s.Notes, s.Instructions).
		Scan(&s.UpdatedAt)
	return apperr.FromStore(err, "session not found")
}

// Delete removes a session; registrations cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStore(err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session not found")
	}
	return nil
}

// Cancel marks a session cancelled with reason. A missing session is
// NotFound, an already cancelled one a Conflict.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET status = 'cancelled', cancellation_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'cancelled'`, id, reason)
	if err != nil {
		return apperr.FromStore(err, "")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var status string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM sessions WHERE id = $1`, id).Scan(&status); err != nil {
		return apperr.FromStore(err, "session not found")
	}
	return apperr.New(apperr.ErrConflict, "session is already cancelled")
}

// Participants returns the non-cancelled registrations of a session ordered by name.
func (r *Repository) Participants(ctx context.Context, sessionID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT id, session_id, email, name, department, status, cancellation_token, cancelled_at, created_at, updated_at
		FROM registrations WHERE session_id = $1 AND status <> 'cancelled'
		ORDER BY lower(name), created_at`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.Registration{}
	for rows.Next() {
		var reg models.Registration
		var status string
		if err := rows.Scan(&reg.ID, &reg.SessionID, &reg.Email, &reg.Name, &reg.Department, &status,
			&reg.CancellationToken, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, apperr.FromStore(err, "")
		}
		reg.Status = models.RegistrationStatus(status)
		list = append(list, reg)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// ListTypes returns all conversation types by name.
func (r *Repository) ListTypes(ctx context.Context) ([]models.ConversationType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM conversation_types ORDER BY name`)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.ConversationType{}
	for rows.Next() {
		var ct models.ConversationType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Description, &ct.CreatedAt); err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, ct)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// GetType returns a conversation type by ID.
func (r *Repository) GetType(ctx context.Context, id uuid.UUID) (*models.ConversationType, error) {
	var ct models.ConversationType
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM conversation_types WHERE id = $1`, id).
		Scan(&ct.ID, &ct.Name, &ct.Description, &ct.CreatedAt)
	if err != nil {
		return nil, apperr.FromStore(err, "conversation type not found")
	}
	return &ct, nil
}

// EnsureType returns the conversation type called name, creating it if missing.
func (r *Repository) EnsureType(ctx context.Context, name, description string) (*models.ConversationType, error) {
	const q = `INSERT INTO conversation_types (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, description, created_at`
	var ct models.ConversationType
	if err := r.pool.QueryRow(ctx, q, name, description).Scan(&ct.ID, &ct.Name, &ct.Description, &ct.CreatedAt); err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return &ct, nil
}

// FindByTypeAndFacilitator returns the oldest published session of a type
// run by facilitator, or (nil, nil).
func (r *Repository) FindByTypeAndFacilitator(ctx context.Context, typeID uuid.UUID, facilitator string) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		sessionSelect+" WHERE s.conversation_type_id = $1 AND s.facilitator = $2 AND s.status = 'published' ORDER BY s.created_at LIMIT 1",
		typeID, facilitator))
	if apperr.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return s, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var ct models.ConversationType
	var status string
	err := row.Scan(&s.ID, &s.ConversationTypeID, &s.Date, &s.StartTime, &s.EndTime, &s.Location, &s.IsOnline,
		&s.TeamsLink, &s.Facilitator, &s.MaxParticipants, &status, &s.CancellationReason, &s.TargetAudience,
		&s.Notes, &s.Instructions, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
		&ct.ID, &ct.Name, &ct.Description, &ct.CreatedAt, &s.RegisteredCount)
	if err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	s.ConversationType = &ct
	return &s, nil
}

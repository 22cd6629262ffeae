package colleagues

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

const emailConstraint = "colleagues_email_uniq"

const colleagueColumns = `id, name, email, photo_url, photo_key, function, is_active, available_for_spelwerkvorm, created_at, updated_at`

// ListFilter narrows colleague listings.
type ListFilter struct {
	ActiveOnly       bool
	SpelwerkvormOnly bool
}

// Repository handles colleague persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a colleagues repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns colleagues ordered by name.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Colleague, error) {
	var conds []string
	if f.ActiveOnly {
		conds = append(conds, "is_active")
	}
	if f.SpelwerkvormOnly {
		conds = append(conds, "available_for_spelwerkvorm")
	}
	q := `SELECT ` + colleagueColumns + ` FROM colleagues`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY lower(name)"

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.Colleague{}
	for rows.Next() {
		c, err := scanColleague(rows)
		if err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, *c)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// GetByID returns a colleague.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Colleague, error) {
	c, err := scanColleague(r.pool.QueryRow(ctx, `SELECT `+colleagueColumns+` FROM colleagues WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromStore(err, "colleague not found")
	}
	return c, nil
}

// Create inserts a colleague.
func (r *Repository) Create(ctx context.Context, c *models.Colleague) error {
	const q = `INSERT INTO colleagues (name, email, function, is_active, available_for_spelwerkvorm)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.Name, c.Email, c.Function, c.IsActive, c.AvailableForSpelwerkvorm).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return translate(err, "")
}

// Update replaces the editable fields of a colleague.
func (r *Repository) Update(ctx context.Context, c *models.Colleague) error {
	const q = `UPDATE colleagues SET name = $2, email = $3, function = $4, is_active = $5,
			available_for_spelwerkvorm = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING photo_url, photo_key, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.ID, c.Name, c.Email, c.Function, c.IsActive, c.AvailableForSpelwerkvorm).
		Scan(&c.PhotoURL, &c.PhotoKey, &c.CreatedAt, &c.UpdatedAt)
	return translate(err, "colleague not found")
}

// Delete removes a colleague and returns the stored photo key, if any.
// Their individual requests cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*string, error) {
	var key *string
	err := r.pool.QueryRow(ctx, `DELETE FROM colleagues WHERE id = $1 RETURNING photo_key`, id).Scan(&key)
	if err != nil {
		return nil, apperr.FromStore(err, "colleague not found")
	}
	return key, nil
}

// SetPhoto stores a new photo and returns the key of the one it replaced.
func (r *Repository) SetPhoto(ctx context.Context, id uuid.UUID, url, key string) (*string, error) {
	const q = `UPDATE colleagues c SET photo_url = $2, photo_key = $3, updated_at = NOW()
		FROM (SELECT photo_key FROM colleagues WHERE id = $1 FOR UPDATE) old
		WHERE c.id = $1
		RETURNING old.photo_key`
	var previous *string
	if err := r.pool.QueryRow(ctx, q, id, url, key).Scan(&previous); err != nil {
		return nil, apperr.FromStore(err, "colleague not found")
	}
	return previous, nil
}

func translate(err error, notFound string) error {
	if apperr.IsUniqueViolation(err, emailConstraint) {
		return apperr.Wrap(apperr.ErrConflict, "a colleague with this email already exists", err)
	}
	return apperr.FromStore(err, notFound)
}

func scanColleague(row pgx.Row) (*models.Colleague, error) {
	var c models.Colleague
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PhotoURL, &c.PhotoKey, &c.Function, &c.IsActive,
		&c.AvailableForSpelwerkvorm, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

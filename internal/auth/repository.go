package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

const userColumns = `id, email, password_hash, full_name, role, created_at, updated_at`

// Repository handles administrator persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, apperr.FromStore(err, "user not found")
}

// GetByEmail returns a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	return u, apperr.FromStore(err, "user not found")
}

// List returns all administrators.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name, email`)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, u.ToPublic())
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// Create inserts a new user. A taken email is a Conflict.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role) VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, strings.ToLower(email), passwordHash, fullName, string(role)))
	if apperr.IsUniqueViolation(err, "") {
		return nil, apperr.New(apperr.ErrConflict, "email already in use")
	}
	return u, apperr.FromStore(err, "")
}

// EnsureAdmin creates the seed administrator when no user has that email.
// It reports whether a user was created.
func (r *Repository) EnsureAdmin(ctx context.Context, email, passwordHash, fullName string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO users (email, password_hash, full_name, role)
		VALUES (lower($1), $2, $3, $4) ON CONFLICT (email) DO NOTHING`,
		email, passwordHash, fullName, string(models.RoleAdmin))
	if err != nil {
		return false, apperr.FromStore(err, "")
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

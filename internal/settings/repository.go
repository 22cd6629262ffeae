package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

// Repository persists key/value settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all settings ordered by key.
func (r *Repository) List(ctx context.Context) ([]models.Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.Setting{}
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, s)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// Get returns one setting or a NotFound error.
func (r *Repository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, apperr.FromStore(err, "setting not found")
	}
	return &s, nil
}

// Upsert inserts or replaces a setting.
func (r *Repository) Upsert(ctx context.Context, key, value string) (*models.Setting, error) {
	const q = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING key, value, updated_at`
	var s models.Setting
	if err := r.pool.QueryRow(ctx, q, key, value).Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return &s, nil
}

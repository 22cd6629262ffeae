package headers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/database"
)

const headerColumns = `id, title, subtitle, is_active, created_at, updated_at`

// singleActiveConstraint is the partial unique index on the active header.
const singleActiveConstraint = "headers_single_active"

// Repository persists landing page headers. At most one header is active.
type Repository struct {
	pool database.Pool
}

// NewRepository creates a headers repository.
func NewRepository(pool database.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all headers, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Header, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+headerColumns+` FROM headers ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.Header{}
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, *h)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// GetActive returns the active header, or (nil, nil) when none is active.
func (r *Repository) GetActive(ctx context.Context) (*models.Header, error) {
	h, err := scanHeader(r.pool.QueryRow(ctx, `SELECT `+headerColumns+` FROM headers WHERE is_active LIMIT 1`))
	if apperr.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return h, nil
}

// Create inserts a header. An active header deactivates all others.
func (r *Repository) Create(ctx context.Context, h *models.Header) error {
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if h.IsActive {
			if _, err := tx.Exec(ctx, `UPDATE headers SET is_active = FALSE, updated_at = NOW() WHERE is_active`); err != nil {
				return apperr.FromStore(err, "")
			}
		}
		const q = `INSERT INTO headers (title, subtitle, is_active) VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, q, h.Title, h.Subtitle, h.IsActive).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
		return apperr.FromStore(err, "")
	})
	return translateActive(err)
}

// Update replaces a header's fields. Activating it deactivates all others.
func (r *Repository) Update(ctx context.Context, h *models.Header) error {
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if h.IsActive {
			if err := deactivateOthers(ctx, tx, h.ID); err != nil {
				return err
			}
		}
		const q = `UPDATE headers SET title = $2, subtitle = $3, is_active = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at`
		err := tx.QueryRow(ctx, q, h.ID, h.Title, h.Subtitle, h.IsActive).Scan(&h.CreatedAt, &h.UpdatedAt)
		return apperr.FromStore(err, "header not found")
	})
	return translateActive(err)
}

// Activate makes id the only active header.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) (*models.Header, error) {
	var out *models.Header
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := deactivateOthers(ctx, tx, id); err != nil {
			return err
		}
		h, err := scanHeader(tx.QueryRow(ctx, `UPDATE headers SET is_active = TRUE, updated_at = NOW()
			WHERE id = $1 RETURNING `+headerColumns, id))
		if err != nil {
			return apperr.FromStore(err, "header not found")
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, translateActive(err)
	}
	return out, nil
}

// Delete removes a header.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM headers WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStore(err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("header not found")
	}
	return nil
}

// translateActive reports a lost race on the single active header as a
// conflict. Concurrent activations do not see each other's new row.
func translateActive(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && apperr.IsUniqueViolation(pgErr, singleActiveConstraint) {
		return apperr.Wrap(apperr.ErrConflict, "another header was activated at the same time", pgErr)
	}
	return apperr.FromStore(err, "")
}

func deactivateOthers(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE headers SET is_active = FALSE, updated_at = NOW() WHERE is_active AND id <> $1`, id)
	return apperr.FromStore(err, "")
}

func scanHeader(row pgx.Row) (*models.Header, error) {
	var h models.Header
	if err := row.Scan(&h.ID, &h.Title, &h.Subtitle, &h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

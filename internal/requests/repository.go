package requests

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

// Repository handles individual request persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an individual requests repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestSelect = `SELECT r.id, r.colleague_id, r.requester_name, r.requester_email, r.message, r.status, r.created_at,
		c.id, c.name, c.email, c.photo_url, c.function, c.is_active, c.available_for_spelwerkvorm, c.created_at, c.updated_at
	FROM individual_requests r
	JOIN colleagues c ON c.id = r.colleague_id`

// Insert stores a request and fills its generated fields.
func (r *Repository) Insert(ctx context.Context, req *models.IndividualRequest) error {
	const q = `INSERT INTO individual_requests (colleague_id, requester_name, requester_email, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at`
	var status string
	err := r.pool.QueryRow(ctx, q, req.ColleagueID, req.RequesterName, req.RequesterEmail, req.Message).
		Scan(&req.ID, &status, &req.CreatedAt)
	if err != nil {
		return apperr.FromStore(err, "")
	}
	req.Status = models.RequestStatus(status)
	return nil
}

// List returns all requests with their colleague, newest first.
func (r *Repository) List(ctx context.Context, status models.RequestStatus) ([]models.IndividualRequest, error) {
	q := requestSelect
	args := []interface{}{}
	if status != "" {
		q += " WHERE r.status = $1"
		args = append(args, string(status))
	}
	rows, err := r.pool.Query(ctx, q+" ORDER BY r.created_at DESC", args...)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []models.IndividualRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, *req)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

// SetStatus updates the status of a request and returns it.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.IndividualRequest, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE individual_requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound("request not found")
	}
	req, err := scanRequest(r.pool.QueryRow(ctx, requestSelect+" WHERE r.id = $1", id))
	if err != nil {
		return nil, apperr.FromStore(err, "request not found")
	}
	return req, nil
}

func scanRequest(row pgx.Row) (*models.IndividualRequest, error) {
	var req models.IndividualRequest
	var c models.Colleague
	var status string
	err := row.Scan(&req.ID, &req.ColleagueID, &req.RequesterName, &req.RequesterEmail, &req.Message, &status,
		&req.CreatedAt, &c.ID, &c.Name, &c.Email, &c.PhotoURL, &c.Function, &c.IsActive,
		&c.AvailableForSpelwerkvorm, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Status = models.RequestStatus(status)
	req.Colleague = &c
	return &req, nil
}

package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groeigesprek/backend/pkg/apperr"
)

// TypeCount is the number of active registrations for one conversation type.
type TypeCount struct {
	TypeName string `json:"type_name"`
	Count    int    `json:"count"`
}

// Repository runs the dashboard aggregate queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a dashboard repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountSessions returns the number of sessions that are not cancelled.
func (r *Repository) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE status <> 'cancelled'`).Scan(&n)
	return n, apperr.FromStore(err, "")
}

// CountActiveRegistrations returns the number of active registrations.
func (r *Repository) CountActiveRegistrations(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE status = 'active'`).Scan(&n)
	return n, apperr.FromStore(err, "")
}

// ActiveRegistrationsByType returns active registration counts per
// conversation type, largest first.
func (r *Repository) ActiveRegistrationsByType(ctx context.Context) ([]TypeCount, error) {
	const q = `SELECT ct.name, COUNT(*)
		FROM registrations r
		JOIN sessions s ON s.id = r.session_id
		JOIN conversation_types ct ON ct.id = s.conversation_type_id
		WHERE r.status = 'active'
		GROUP BY ct.name
		ORDER BY COUNT(*) DESC, ct.name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	defer rows.Close()
	list := []TypeCount{}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.TypeName, &tc.Count); err != nil {
			return nil, apperr.FromStore(err, "")
		}
		list = append(list, tc)
	}
	return list, apperr.FromStore(rows.Err(), "")
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/psw-tryout/tryout-backend/internal/model"
)

// TryoutRepository handles tryout data access.
type TryoutRepository struct {
	pool *pgxpool.Pool
}

// NewTryoutRepository creates a new TryoutRepository.
func NewTryoutRepository(pool *pgxpool.Pool) *TryoutRepository {
	return &TryoutRepository{pool: pool}
}

const tryoutColumns = `id, title, description, subjects, publish_time, duration_minutes, is_published, created_at, updated_at`

// GetByID retrieves a tryout by its UUID.
func (r *TryoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tryout, error) {
	t := &model.Tryout{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+tryoutColumns+` FROM tryouts WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Subjects, &t.PublishTime,
		&t.DurationMinutes, &t.IsPublished, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListPublished retrieves all published tryouts ordered by publish time.
func (r *TryoutRepository) ListPublished(ctx context.Context) ([]model.Tryout, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tryoutColumns+` FROM tryouts WHERE is_published ORDER BY publish_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTryoutRows(rows)
}

// ListPaginated retrieves tryouts for the admin list, newest first.
func (r *TryoutRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.Tryout, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tryouts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+tryoutColumns+` FROM tryouts ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tryouts, err := scanTryoutRows(rows)
	return tryouts, total, err
}

// Create inserts a new tryout.
func (r *TryoutRepository) Create(ctx context.Context, t *model.Tryout) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tryouts (title, description, subjects, publish_time, duration_minutes, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.Subjects, t.PublishTime, t.DurationMinutes, t.IsPublished,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies an existing tryout.
func (r *TryoutRepository) Update(ctx context.Context, t *model.Tryout) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tryouts
		 SET title = $1, description = $2, subjects = $3, publish_time = $4,
		     duration_minutes = $5, is_published = $6, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $7`,
		t.Title, t.Description, t.Subjects, t.PublishTime, t.DurationMinutes, t.IsPublished, t.ID)
	return err
}

// Delete removes a tryout. Questions and attempts cascade.
func (r *TryoutRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tryouts WHERE id = $1`, id)
	return err
}

// CountAll returns the total number of tryouts and the number currently
// active (published with a publish time in the past).
func (r *TryoutRepository) CountAll(ctx context.Context) (total, active int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_published AND publish_time <= NOW())
		 FROM tryouts`,
	).Scan(&total, &active)
	return total, active, err
}

func scanTryoutRows(rows pgx.Rows) ([]model.Tryout, error) {
	var tryouts []model.Tryout
	for rows.Next() {
		var t model.Tryout
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Subjects, &t.PublishTime,
			&t.DurationMinutes, &t.IsPublished, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tryouts = append(tryouts, t)
	}
	return tryouts, rows.Err()
}

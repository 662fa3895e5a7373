package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardUpcomingTryout is a lightweight tryout row for the dashboard.
type DashboardUpcomingTryout struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	PublishTime time.Time `json:"publish_time"`
}

// DashboardRecentFinish is a recently finished attempt with the
// participant's name, for the dashboard activity feed.
type DashboardRecentFinish struct {
	TryoutID    uuid.UUID `json:"tryout_id"`
	TryoutTitle string    `json:"tryout_title"`
	FullName    string    `json:"full_name"`
	School      string    `json:"school"`
	Score       *float64  `json:"score"`
	MaxScore    *float64  `json:"max_score"`
	FinishedAt  time.Time `json:"finished_at"`
}

// DashboardRepository handles aggregate queries for the admin dashboard.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts returns roster and item bank totals in one round trip.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (participants, tryouts, published, questions int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM participants),
			(SELECT COUNT(*) FROM tryouts),
			(SELECT COUNT(*) FROM tryouts WHERE is_published),
			(SELECT COUNT(*) FROM questions)
	`).Scan(&participants, &tryouts, &published, &questions)
	return
}

// GetAttemptCounts returns in-progress and finished attempt totals.
func (r *DashboardRepository) GetAttemptCounts(ctx context.Context) (inProgress, finished int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_finished),
			COUNT(*) FILTER (WHERE is_finished)
		FROM attempts
	`).Scan(&inProgress, &finished)
	return
}

// GetUpcomingTryouts returns published tryouts whose publish time has
// not arrived yet.
func (r *DashboardRepository) GetUpcomingTryouts(ctx context.Context, limit int) ([]DashboardUpcomingTryout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, publish_time
		FROM tryouts
		WHERE is_published AND publish_time > CURRENT_TIMESTAMP
		ORDER BY publish_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DashboardUpcomingTryout
	for rows.Next() {
		var t DashboardUpcomingTryout
		if err := rows.Scan(&t.ID, &t.Title, &t.PublishTime); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetRecentFinishes returns the most recently finished attempts.
func (r *DashboardRepository) GetRecentFinishes(ctx context.Context, limit int) ([]DashboardRecentFinish, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.title, p.full_name, p.school, a.score, a.max_score, a.finished_at
		FROM attempts a
		JOIN tryouts t ON t.id = a.tryout_id
		JOIN participants p ON p.id = a.participant_id
		WHERE a.is_finished AND a.finished_at IS NOT NULL
		ORDER BY a.finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DashboardRecentFinish
	for rows.Next() {
		var f DashboardRecentFinish
		if err := rows.Scan(&f.TryoutID, &f.TryoutTitle, &f.FullName, &f.School, &f.Score, &f.MaxScore, &f.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

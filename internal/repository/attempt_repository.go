package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/psw-tryout/tryout-backend/internal/model"
)

// AttemptTx is the set of attempt operations available inside a single
// transaction. Every state-changing attempt operation must run through
// InTx so that the row lock taken by GetForUpdate serializes concurrent
// mutations of the same attempt (answer writes racing auto-finalize,
// double submits, and so on).
type AttemptTx interface {
	// GetForUpdate loads the attempt row with a row-level lock.
	// Returns pgx.ErrNoRows if no attempt exists.
	GetForUpdate(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error)
	// Create inserts a fresh attempt. Returns pgx.ErrNoRows if a
	// concurrent transaction created the row first.
	Create(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error)
	// MarkStarted sets the start timestamp. Called at most once per attempt.
	MarkStarted(ctx context.Context, attemptID uuid.UUID, at time.Time) error
	// Finalize marks the attempt finished. Score and maxScore may be nil
	// when expiry finalizes an attempt that was never submitted.
	Finalize(ctx context.Context, attemptID uuid.UUID, at time.Time, score, maxScore *float64) error
	// IncrementTamper bumps the tamper counter and returns the new value.
	IncrementTamper(ctx context.Context, attemptID uuid.UUID) (int, error)
	// UpsertAnswer records a selection, overwriting any prior one for the
	// same (attempt, question) pair.
	UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected *model.Option, at time.Time) error
	// ListAnswers returns all recorded answers for the attempt.
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
}

// AttemptResult combines participant data with their attempt details,
// for the admin results view.
type AttemptResult struct {
	ParticipantID int        `json:"participant_id"`
	FullName      string     `json:"full_name"`
	School        string     `json:"school"`
	Day           int        `json:"day"`
	IsFinished    bool       `json:"is_finished"`
	TamperCount   int        `json:"tamper_count"`
	Score         *float64   `json:"score"`
	MaxScore      *float64   `json:"max_score"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
}

// AttemptRepository handles attempt and answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// InTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (r *AttemptRepository) InTx(ctx context.Context, fn func(AttemptTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&attemptTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByTryoutAndParticipant retrieves an attempt without locking.
func (r *AttemptRepository) GetByTryoutAndParticipant(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT id, tryout_id, participant_id, started_at, finished_at, is_finished, tamper_count, score, max_score
		 FROM attempts
		 WHERE tryout_id = $1 AND participant_id = $2`, tryoutID, participantID))
}

// ListByParticipant retrieves all attempts for a participant, newest first.
func (r *AttemptRepository) ListByParticipant(ctx context.Context, participantID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tryout_id, participant_id, started_at, finished_at, is_finished, tamper_count, score, max_score
		 FROM attempts
		 WHERE participant_id = $1
		 ORDER BY started_at DESC NULLS LAST`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.TryoutID, &a.ParticipantID, &a.StartedAt, &a.FinishedAt,
			&a.IsFinished, &a.TamperCount, &a.Score, &a.MaxScore); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListByTryout retrieves paginated participant results for a tryout.
func (r *AttemptRepository) ListByTryout(ctx context.Context, tryoutID uuid.UUID, limit, offset int) ([]AttemptResult, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE tryout_id = $1`, tryoutID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.full_name, p.school, p.day,
		        a.is_finished, a.tamper_count, a.score, a.max_score, a.started_at, a.finished_at
		 FROM attempts a
		 JOIN participants p ON a.participant_id = p.id
		 WHERE a.tryout_id = $1
		 ORDER BY p.day ASC, p.full_name ASC
		 LIMIT $2 OFFSET $3`, tryoutID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []AttemptResult
	for rows.Next() {
		var res AttemptResult
		if err := rows.Scan(&res.ParticipantID, &res.FullName, &res.School, &res.Day,
			&res.IsFinished, &res.TamperCount, &res.Score, &res.MaxScore, &res.StartedAt, &res.FinishedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

// FinishedStats returns how many attempts finished a tryout and their
// average score. The average is nil when no finished attempt has a score.
func (r *AttemptRepository) FinishedStats(ctx context.Context, tryoutID uuid.UUID) (int, *float64, error) {
	var count int
	var avg *float64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), AVG(score)
		 FROM attempts
		 WHERE tryout_id = $1 AND is_finished`, tryoutID,
	).Scan(&count, &avg)
	return count, avg, err
}

// ────────────────────────────────────────────────────────────────────────────
// attemptTx: AttemptTx backed by a pgx transaction
// ────────────────────────────────────────────────────────────────────────────

type attemptTx struct {
	tx pgx.Tx
}

func (t *attemptTx) GetForUpdate(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error) {
	return scanAttempt(t.tx.QueryRow(ctx,
		`SELECT id, tryout_id, participant_id, started_at, finished_at, is_finished, tamper_count, score, max_score
		 FROM attempts
		 WHERE tryout_id = $1 AND participant_id = $2
		 FOR UPDATE`, tryoutID, participantID))
}

func (t *attemptTx) Create(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error) {
	// ON CONFLICT DO NOTHING makes concurrent creates surface as
	// pgx.ErrNoRows so the caller can re-read the winner's row.
	a := &model.Attempt{TryoutID: tryoutID, ParticipantID: participantID}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO attempts (tryout_id, participant_id)
		 VALUES ($1, $2)
		 ON CONFLICT (tryout_id, participant_id) DO NOTHING
		 RETURNING id`, tryoutID, participantID,
	).Scan(&a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (t *attemptTx) MarkStarted(ctx context.Context, attemptID uuid.UUID, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE attempts SET started_at = $1 WHERE id = $2 AND started_at IS NULL`,
		at, attemptID)
	return err
}

func (t *attemptTx) Finalize(ctx context.Context, attemptID uuid.UUID, at time.Time, score, maxScore *float64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE attempts
		 SET is_finished = TRUE, finished_at = $1, score = $2, max_score = $3
		 WHERE id = $4`,
		at, score, maxScore, attemptID)
	return err
}

func (t *attemptTx) IncrementTamper(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		`UPDATE attempts SET tamper_count = tamper_count + 1 WHERE id = $1
		 RETURNING tamper_count`, attemptID,
	).Scan(&count)
	return count, err
}

func (t *attemptTx) UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected *model.Option, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO answers (attempt_id, question_id, selected_option, answered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id)
		 DO UPDATE SET selected_option = EXCLUDED.selected_option, answered_at = EXCLUDED.answered_at`,
		attemptID, questionID, selected, at)
	return err
}

func (t *attemptTx) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_option, answered_at
		 FROM answers
		 WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedOption, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.TryoutID, &a.ParticipantID, &a.StartedAt, &a.FinishedAt,
		&a.IsFinished, &a.TamperCount, &a.Score, &a.MaxScore)
	if err != nil {
		return nil, err
	}
	return a, nil
}

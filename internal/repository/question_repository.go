package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/psw-tryout/tryout-backend/internal/model"
)

var ErrDuplicateNumber = errors.New("question number already used in this tryout")

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, tryout_id, number, text, option_a, option_b, option_c, option_d, correct_option, weight`

// GetByID retrieves a question by its UUID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.TryoutID, &q.Number, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&q.CorrectOption, &q.Weight)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListByTryout retrieves all questions of a tryout ordered by number.
func (r *QuestionRepository) ListByTryout(ctx context.Context, tryoutID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE tryout_id = $1 ORDER BY number ASC`, tryoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TryoutID, &q.Number, &q.Text, &q.OptionA, &q.OptionB,
			&q.OptionC, &q.OptionD, &q.CorrectOption, &q.Weight); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceForTryout atomically swaps a tryout's question set. Answers
// referencing the old questions cascade away with them.
func (r *QuestionRepository) ReplaceForTryout(ctx context.Context, tryoutID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE tryout_id = $1`, tryoutID); err != nil {
		return fmt.Errorf("delete old questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (tryout_id, number, text, option_a, option_b, option_c, option_d, correct_option, weight)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			tryoutID, q.Number, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption, q.Weight,
		).Scan(&q.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateNumber
			}
			return fmt.Errorf("insert question %d: %w", q.Number, err)
		}
		q.TryoutID = tryoutID
	}

	return tx.Commit(ctx)
}

// CountByTryout returns how many questions a tryout has.
func (r *QuestionRepository) CountByTryout(ctx context.Context, tryoutID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE tryout_id = $1`, tryoutID,
	).Scan(&count)
	return count, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/psw-tryout/tryout-backend/internal/scoring"
	"github.com/rs/zerolog"
)

// Domain errors. Handlers map these to structured error codes; none of
// them is a crash-worthy fault.
var (
	ErrTryoutNotFound      = errors.New("tryout not found")
	ErrTryoutNotAccessible = errors.New("tryout is not accessible yet")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptNotStarted   = errors.New("attempt has not been started")
	ErrAttemptFinished     = errors.New("attempt is already finished")
	ErrQuestionNotInTryout = errors.New("question does not belong to this tryout")
)

// AttemptStore is the persistence boundary for attempt state
// transitions. *repository.AttemptRepository implements it.
type AttemptStore interface {
	InTx(ctx context.Context, fn func(repository.AttemptTx) error) error
}

// TryoutGetter loads tryout metadata for access checks.
type TryoutGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tryout, error)
}

// QuestionGetter loads the item bank with answer keys, for scoring and
// answer validation.
type QuestionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListByTryout(ctx context.Context, tryoutID uuid.UUID) ([]model.Question, error)
}

// PayloadGetter serves the participant-facing question payload from the
// Redis cache. *TryoutService implements it.
type PayloadGetter interface {
	GetTryoutPayload(ctx context.Context, tryoutID uuid.UUID) (*model.TryoutPayload, error)
}

// AttemptService governs the attempt lifecycle:
// NOT_STARTED → IN_PROGRESS → FINISHED, with FINISHED terminal. Every
// state-changing operation runs in one transaction holding the attempt
// row lock, so concurrent answer writes, submissions, and expiry checks
// against the same attempt are serialized.
type AttemptService struct {
	attempts  AttemptStore
	tryouts   TryoutGetter
	questions QuestionGetter
	payloads  PayloadGetter
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attempts AttemptStore, tryouts TryoutGetter, questions QuestionGetter, payloads PayloadGetter, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attempts:  attempts,
		tryouts:   tryouts,
		questions: questions,
		payloads:  payloads,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// StartResult tells the caller whether exam content may be accessed.
// Access is false when the attempt is already finished (including the
// case where the deadline passed before this call); the client routes
// back to the tryout list, which is not an error.
type StartResult struct {
	Attempt *model.Attempt `json:"attempt"`
	Access  bool           `json:"access"`
}

// ExamView is what an in-progress participant sees: the item bank
// without answer keys, their recorded answers, and the advisory
// countdown. The authoritative deadline check stays server-side.
type ExamView struct {
	Tryout           *model.Tryout                  `json:"tryout"`
	Questions        []model.QuestionForParticipant `json:"questions"`
	Answers          map[uuid.UUID]*model.Option    `json:"answers"`
	RemainingSeconds int                            `json:"remaining_seconds"`
}

// Start begins or resumes an attempt. The tryout must be published and
// past its publish time. The attempt row is created lazily; the clock
// starts on first access, not on publish. If the deadline already
// passed, the attempt is finalized without scoring and access is denied.
func (s *AttemptService) Start(ctx context.Context, participantID int, tryoutID uuid.UUID, now time.Time) (*StartResult, error) {
	tryout, err := s.getTryout(ctx, tryoutID)
	if err != nil {
		return nil, err
	}
	if !tryout.Accessible(now) {
		return nil, ErrTryoutNotAccessible
	}

	var result *StartResult
	err = s.attempts.InTx(ctx, func(tx repository.AttemptTx) error {
		attempt, err := tx.GetForUpdate(ctx, tryoutID, participantID)
		if errors.Is(err, pgx.ErrNoRows) {
			attempt, err = tx.Create(ctx, tryoutID, participantID)
			if errors.Is(err, pgx.ErrNoRows) {
				// Concurrent start won the insert; lock its row instead.
				attempt, err = tx.GetForUpdate(ctx, tryoutID, participantID)
			}
		}
		if err != nil {
			return fmt.Errorf("get or create attempt: %w", err)
		}

		// Already finished: idempotent no-op, route back to the list.
		if attempt.IsFinished {
			result = &StartResult{Attempt: attempt, Access: false}
			return nil
		}

		// First touch starts the clock.
		if attempt.StartedAt == nil {
			if err := tx.MarkStarted(ctx, attempt.ID, now); err != nil {
				return fmt.Errorf("mark started: %w", err)
			}
			attempt.StartedAt = &now
		}

		if attempt.Expired(now, tryout.DurationMinutes) {
			if err := s.expireLocked(ctx, tx, attempt, now); err != nil {
				return err
			}
			result = &StartResult{Attempt: attempt, Access: false}
			return nil
		}

		result = &StartResult{Attempt: attempt, Access: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Exam returns the in-progress view for a participant. Without an
// attempt it fails with ErrAttemptNotStarted (client routes to start);
// a finished attempt fails with ErrAttemptFinished (client routes to
// the list). A deadline that passed since the last request finalizes
// the attempt here, without scoring, and then reports ErrAttemptFinished.
func (s *AttemptService) Exam(ctx context.Context, participantID int, tryoutID uuid.UUID, now time.Time) (*ExamView, error) {
	tryout, err := s.getTryout(ctx, tryoutID)
	if err != nil {
		return nil, err
	}

	var view *ExamView
	err = s.attempts.InTx(ctx, func(tx repository.AttemptTx) error {
		attempt, err := tx.GetForUpdate(ctx, tryoutID, participantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotStarted
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}

		if attempt.IsFinished {
			return ErrAttemptFinished
		}
		if attempt.Expired(now, tryout.DurationMinutes) {
			if err := s.expireLocked(ctx, tx, attempt, now); err != nil {
				return err
			}
			return ErrAttemptFinished
		}

		// Question payload comes from the Redis cache, not the item
		// bank tables. The cached copy has no answer keys.
		payload, err := s.payloads.GetTryoutPayload(ctx, tryoutID)
		if err != nil {
			return fmt.Errorf("get tryout payload: %w", err)
		}
		answers, err := tx.ListAnswers(ctx, attempt.ID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}

		answerMap := make(map[uuid.UUID]*model.Option, len(answers))
		for i := range answers {
			answerMap[answers[i].QuestionID] = answers[i].SelectedOption
		}

		view = &ExamView{
			Tryout:           tryout,
			Questions:        payload.Questions,
			Answers:          answerMap,
			RemainingSeconds: attempt.RemainingSeconds(now, tryout.DurationMinutes),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SaveAnswer upserts the participant's selection for one question.
// Re-answering overwrites the previous selection. Writes against a
// finished attempt fail with ErrAttemptFinished, and a write arriving
// past the deadline finalizes the attempt first and is then rejected, so
// a client cannot keep answering by never reloading the exam page.
func (s *AttemptService) SaveAnswer(ctx context.Context, participantID int, tryoutID, questionID uuid.UUID, selected *model.Option, now time.Time) error {
	tryout, err := s.getTryout(ctx, tryoutID)
	if err != nil {
		return err
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrQuestionNotInTryout
	}
	if err != nil {
		return fmt.Errorf("get question: %w", err)
	}
	if question.TryoutID != tryoutID {
		return ErrQuestionNotInTryout
	}

	return s.attempts.InTx(ctx, func(tx repository.AttemptTx) error {
		attempt, err := tx.GetForUpdate(ctx, tryoutID, participantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}

		if attempt.IsFinished {
			return ErrAttemptFinished
		}
		if attempt.Expired(now, tryout.DurationMinutes) {
			if err := s.expireLocked(ctx, tx, attempt, now); err != nil {
				return err
			}
			return ErrAttemptFinished
		}

		if err := tx.UpsertAnswer(ctx, attempt.ID, questionID, selected, now); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		return nil
	})
}

// Submit finalizes the attempt with a computed score. The scorer is
// deterministic, so a repeated submission recomputes the same values;
// there is deliberately no guard against re-submitting.
func (s *AttemptService) Submit(ctx context.Context, participantID int, tryoutID uuid.UUID, now time.Time) (*model.Attempt, error) {
	if _, err := s.getTryout(ctx, tryoutID); err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByTryout(ctx, tryoutID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	var finalized *model.Attempt
	err = s.attempts.InTx(ctx, func(tx repository.AttemptTx) error {
		attempt, err := tx.GetForUpdate(ctx, tryoutID, participantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}

		answers, err := tx.ListAnswers(ctx, attempt.ID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}

		res := scoring.Score(questions, answers)
		if err := tx.Finalize(ctx, attempt.ID, now, &res.Total, &res.Max); err != nil {
			return fmt.Errorf("finalize attempt: %w", err)
		}

		attempt.IsFinished = true
		attempt.FinishedAt = &now
		attempt.Score = &res.Total
		attempt.MaxScore = &res.Max
		finalized = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tryout_id", tryoutID.String()).
		Int("participant_id", participantID).
		Float64("score", *finalized.Score).
		Float64("max_score", *finalized.MaxScore).
		Msg("Attempt submitted")

	return finalized, nil
}

// RecordTamper increments the attempt's tamper counter and returns the
// new value. The counter is observational: it keeps incrementing even
// after the attempt is finished and never blocks or finalizes anything.
func (s *AttemptService) RecordTamper(ctx context.Context, participantID int, tryoutID uuid.UUID) (int, error) {
	var count int
	err := s.attempts.InTx(ctx, func(tx repository.AttemptTx) error {
		attempt, err := tx.GetForUpdate(ctx, tryoutID, participantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}

		count, err = tx.IncrementTamper(ctx, attempt.ID)
		if err != nil {
			return fmt.Errorf("increment tamper: %w", err)
		}
		return nil
	})
	return count, err
}

// expireLocked finalizes an attempt whose deadline passed without an
// explicit submission. No score is computed: score and max_score remain
// NULL, matching submit-only scoring semantics.
func (s *AttemptService) expireLocked(ctx context.Context, tx repository.AttemptTx, attempt *model.Attempt, now time.Time) error {
	if err := tx.Finalize(ctx, attempt.ID, now, nil, nil); err != nil {
		return fmt.Errorf("finalize expired attempt: %w", err)
	}
	attempt.IsFinished = true
	attempt.FinishedAt = &now

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("participant_id", attempt.ParticipantID).
		Msg("Attempt expired without submission")
	return nil
}

func (s *AttemptService) getTryout(ctx context.Context, tryoutID uuid.UUID) (*model.Tryout, error) {
	tryout, err := s.tryouts.GetByID(ctx, tryoutID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTryoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tryout: %w", err)
	}
	return tryout, nil
}

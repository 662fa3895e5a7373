package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoQuestions rejects publishing a tryout that has no item bank yet.
var ErrNoQuestions = errors.New("tryout has no questions")

// TryoutService handles tryout management and the Redis payload cache.
type TryoutService struct {
	tryoutRepo   *repository.TryoutRepository
	questionRepo *repository.QuestionRepository
	attemptRepo  *repository.AttemptRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTryoutService creates a new TryoutService.
func NewTryoutService(
	tryoutRepo *repository.TryoutRepository,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *TryoutService {
	return &TryoutService{
		tryoutRepo:   tryoutRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "tryout_service").Logger(),
	}
}

// ListStatus represents the concrete state of a tryout in the
// participant's list.
type ListStatus string

const (
	ListStatusUpcoming   ListStatus = "UPCOMING"
	ListStatusAvailable  ListStatus = "AVAILABLE"
	ListStatusInProgress ListStatus = "IN_PROGRESS"
	ListStatusFinished   ListStatus = "FINISHED"
)

// ListedTryout represents a tryout as shown in the participant's list,
// overlaid with their attempt state.
type ListedTryout struct {
	model.Tryout
	Status   ListStatus `json:"status"`
	Score    *float64   `json:"score,omitempty"`
	MaxScore *float64   `json:"max_score,omitempty"`
}

// ListForParticipant returns the published tryouts overlaid with the
// participant's attempt status. An in-progress attempt whose deadline
// already passed shows as FINISHED here; the finalizing write happens
// on the participant's next start/exam/answer call, not in this read.
func (s *TryoutService) ListForParticipant(ctx context.Context, participantID int, now time.Time) ([]ListedTryout, error) {
	tryouts, err := s.tryoutRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published tryouts: %w", err)
	}

	attempts, err := s.attemptRepo.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attemptMap := make(map[uuid.UUID]*model.Attempt, len(attempts))
	for i := range attempts {
		attemptMap[attempts[i].TryoutID] = &attempts[i]
	}

	list := make([]ListedTryout, 0, len(tryouts))
	for i := range tryouts {
		t := tryouts[i]
		entry := ListedTryout{Tryout: t}

		if attempt, ok := attemptMap[t.ID]; ok {
			switch {
			case attempt.IsFinished:
				entry.Status = ListStatusFinished
				entry.Score = attempt.Score
				entry.MaxScore = attempt.MaxScore
			case attempt.Expired(now, t.DurationMinutes):
				entry.Status = ListStatusFinished
			default:
				entry.Status = ListStatusInProgress
			}
		} else if t.Accessible(now) {
			entry.Status = ListStatusAvailable
		} else {
			entry.Status = ListStatusUpcoming
		}

		list = append(list, entry)
	}

	return list, nil
}

// GetByID retrieves a tryout by its UUID.
func (s *TryoutService) GetByID(ctx context.Context, id uuid.UUID) (*model.Tryout, error) {
	tryout, err := s.tryoutRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTryoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tryout: %w", err)
	}
	return tryout, nil
}

// ListPaginated returns tryouts for admin management.
func (s *TryoutService) ListPaginated(ctx context.Context, limit, offset int) ([]model.Tryout, int, error) {
	return s.tryoutRepo.ListPaginated(ctx, limit, offset)
}

// Create stores a new tryout.
func (s *TryoutService) Create(ctx context.Context, req *model.CreateTryoutRequest) (*model.Tryout, error) {
	tryout := &model.Tryout{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		Subjects:        req.Subjects,
		PublishTime:     req.PublishTime,
		DurationMinutes: req.DurationMinutes,
		IsPublished:     req.IsPublished,
	}
	if err := s.tryoutRepo.Create(ctx, tryout); err != nil {
		return nil, fmt.Errorf("create tryout: %w", err)
	}

	s.log.Info().Str("tryout_id", tryout.ID.String()).Str("title", tryout.Title).Msg("Tryout created")
	return tryout, nil
}

// Update applies partial changes to a tryout. Publishing requires a
// non-empty item bank, and refreshes the payload cache.
func (s *TryoutService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateTryoutRequest) (*model.Tryout, error) {
	tryout, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		tryout.Title = req.Title
	}
	if req.Description != nil {
		tryout.Description = *req.Description
	}
	if req.Subjects != nil {
		tryout.Subjects = *req.Subjects
	}
	if req.PublishTime != nil {
		tryout.PublishTime = *req.PublishTime
	}
	if req.DurationMinutes != 0 {
		tryout.DurationMinutes = req.DurationMinutes
	}
	if req.IsPublished != nil {
		tryout.IsPublished = *req.IsPublished
	}

	if tryout.IsPublished {
		if err := s.WarmTryoutCache(ctx, tryout); err != nil {
			return nil, err
		}
	}

	if err := s.tryoutRepo.Update(ctx, tryout); err != nil {
		return nil, fmt.Errorf("update tryout: %w", err)
	}

	s.log.Info().Str("tryout_id", id.String()).Bool("published", tryout.IsPublished).Msg("Tryout updated")
	return tryout, nil
}

// Delete removes a tryout, its questions, and all attempts (cascade),
// then drops the cached payload.
func (s *TryoutService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.tryoutRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete tryout: %w", err)
	}
	if err := s.rdb.Del(ctx, config.CacheKey.TryoutPayloadKey(id.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("tryout_id", id.String()).Msg("Failed to drop cached payload")
	}

	s.log.Info().Str("tryout_id", id.String()).Msg("Tryout deleted")
	return nil
}

// ListQuestions returns the full item bank (with answer keys) for admins.
func (s *TryoutService) ListQuestions(ctx context.Context, tryoutID uuid.UUID) ([]model.Question, error) {
	if _, err := s.GetByID(ctx, tryoutID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByTryout(ctx, tryoutID)
}

// ReplaceQuestions swaps the tryout's entire item bank in one
// transaction and refreshes the payload cache if the tryout is live.
func (s *TryoutService) ReplaceQuestions(ctx context.Context, tryoutID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	tryout, err := s.GetByID(ctx, tryoutID)
	if err != nil {
		return nil, err
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = model.Question{
			ID:            uuid.New(),
			TryoutID:      tryoutID,
			Number:        q.Number,
			Text:          q.Text,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectOption: q.CorrectOption,
			Weight:        q.Weight,
		}
	}

	if err := s.questionRepo.ReplaceForTryout(ctx, tryoutID, questions); err != nil {
		return nil, err
	}

	if tryout.IsPublished {
		if err := s.WarmTryoutCache(ctx, tryout); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("tryout_id", tryoutID.String()).
		Int("questions", len(questions)).
		Msg("Question bank replaced")
	return questions, nil
}

// TryoutResults is the admin results view for one tryout.
type TryoutResults struct {
	Tryout        *model.Tryout              `json:"tryout"`
	FinishedCount int                        `json:"finished_count"`
	AverageScore  *float64                   `json:"average_score"`
	Rows          []repository.AttemptResult `json:"rows"`
	Total         int                        `json:"total"`
}

// Results returns the per-participant outcomes plus aggregate stats.
func (s *TryoutService) Results(ctx context.Context, tryoutID uuid.UUID, limit, offset int) (*TryoutResults, error) {
	tryout, err := s.GetByID(ctx, tryoutID)
	if err != nil {
		return nil, err
	}

	rows, total, err := s.attemptRepo.ListByTryout(ctx, tryoutID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	finished, avg, err := s.attemptRepo.FinishedStats(ctx, tryoutID)
	if err != nil {
		return nil, fmt.Errorf("finished stats: %w", err)
	}

	return &TryoutResults{
		Tryout:        tryout,
		FinishedCount: finished,
		AverageScore:  avg,
		Rows:          rows,
		Total:         total,
	}, nil
}

// buildPayload assembles the participant-facing payload from PostgreSQL.
// Answer keys and weights never enter it.
func (s *TryoutService) buildPayload(ctx context.Context, tryout *model.Tryout) (*model.TryoutPayload, error) {
	questions, err := s.questionRepo.ListByTryout(ctx, tryout.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	forParticipant := make([]model.QuestionForParticipant, len(questions))
	for i := range questions {
		forParticipant[i] = questions[i].ForParticipant()
	}

	return &model.TryoutPayload{
		TryoutID:  tryout.ID,
		Title:     tryout.Title,
		Subjects:  tryout.Subjects,
		Duration:  tryout.DurationMinutes,
		Questions: forParticipant,
	}, nil
}

// storePayload writes an assembled payload to Redis.
func (s *TryoutService) storePayload(ctx context.Context, payload *model.TryoutPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.TryoutPayloadKey(payload.TryoutID.String()), payloadJSON, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("tryout_id", payload.TryoutID.String()).
		Int("questions", len(payload.Questions)).
		Msg("Tryout cache warmed")
	return nil
}

// WarmTryoutCache loads a tryout's participant-facing payload from
// PostgreSQL into Redis.
func (s *TryoutService) WarmTryoutCache(ctx context.Context, tryout *model.Tryout) error {
	payload, err := s.buildPayload(ctx, tryout)
	if err != nil {
		return err
	}
	return s.storePayload(ctx, payload)
}

// GetTryoutPayload serves the participant exam payload from Redis. A
// cache miss falls back to PostgreSQL and re-warms the key best-effort,
// so a flushed Redis never blocks a running exam.
func (s *TryoutService) GetTryoutPayload(ctx context.Context, tryoutID uuid.UUID) (*model.TryoutPayload, error) {
	key := config.CacheKey.TryoutPayloadKey(tryoutID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var payload model.TryoutPayload
		if err := json.Unmarshal(data, &payload); err == nil {
			return &payload, nil
		}
		s.log.Warn().Str("tryout_id", tryoutID.String()).Msg("Corrupt cached payload, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("tryout_id", tryoutID.String()).Msg("Payload cache read failed, falling back to database")
	}

	tryout, err := s.GetByID(ctx, tryoutID)
	if err != nil {
		return nil, err
	}
	payload, err := s.buildPayload(ctx, tryout)
	if err != nil {
		return nil, err
	}

	if err := s.storePayload(ctx, payload); err != nil {
		s.log.Warn().Err(err).Str("tryout_id", tryoutID.String()).Msg("Failed to rewarm payload cache")
	}
	return payload, nil
}

// PrewarmAllCaches loads all published tryouts into Redis on application
// startup, so the first wave of participants never hits a cold cache.
func (s *TryoutService) PrewarmAllCaches(ctx context.Context) error {
	tryouts, err := s.tryoutRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tryouts: %w", err)
	}

	if len(tryouts) == 0 {
		s.log.Info().Msg("No published tryouts to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(tryouts)).Msg("Prewarming published tryouts...")

	warmed := 0
	for i := range tryouts {
		if err := s.WarmTryoutCache(ctx, &tryouts[i]); err != nil {
			s.log.Warn().Err(err).
				Str("tryout_id", tryouts[i].ID.String()).
				Msg("Failed to prewarm tryout")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Msg("Prewarm complete")
	return nil
}

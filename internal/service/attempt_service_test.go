package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ────────────────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt // keyed tryoutID|participantID
	answers  map[string]*model.Answer  // keyed attemptID|questionID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attempts: make(map[string]*model.Attempt),
		answers:  make(map[string]*model.Answer),
	}
}

func attemptKey(tryoutID uuid.UUID, participantID int) string {
	return tryoutID.String() + "|" + strconv.Itoa(participantID)
}

func (f *fakeStore) InTx(ctx context.Context, fn func(repository.AttemptTx) error) error {
	// The mutex stands in for the row lock the real store takes.
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&fakeTx{store: f})
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) GetForUpdate(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error) {
	a, ok := t.store.attempts[attemptKey(tryoutID, participantID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (t *fakeTx) Create(ctx context.Context, tryoutID uuid.UUID, participantID int) (*model.Attempt, error) {
	key := attemptKey(tryoutID, participantID)
	if _, exists := t.store.attempts[key]; exists {
		return nil, pgx.ErrNoRows
	}
	a := &model.Attempt{ID: uuid.New(), TryoutID: tryoutID, ParticipantID: participantID}
	t.store.attempts[key] = a
	cp := *a
	return &cp, nil
}

func (t *fakeTx) findByID(attemptID uuid.UUID) *model.Attempt {
	for _, a := range t.store.attempts {
		if a.ID == attemptID {
			return a
		}
	}
	return nil
}

func (t *fakeTx) MarkStarted(ctx context.Context, attemptID uuid.UUID, at time.Time) error {
	if a := t.findByID(attemptID); a != nil && a.StartedAt == nil {
		started := at
		a.StartedAt = &started
	}
	return nil
}

func (t *fakeTx) Finalize(ctx context.Context, attemptID uuid.UUID, at time.Time, score, maxScore *float64) error {
	a := t.findByID(attemptID)
	if a == nil {
		return pgx.ErrNoRows
	}
	finished := at
	a.IsFinished = true
	a.FinishedAt = &finished
	a.Score = score
	a.MaxScore = maxScore
	return nil
}

func (t *fakeTx) IncrementTamper(ctx context.Context, attemptID uuid.UUID) (int, error) {
	a := t.findByID(attemptID)
	if a == nil {
		return 0, pgx.ErrNoRows
	}
	a.TamperCount++
	return a.TamperCount, nil
}

func (t *fakeTx) UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected *model.Option, at time.Time) error {
	key := attemptID.String() + "|" + questionID.String()
	if existing, ok := t.store.answers[key]; ok {
		existing.SelectedOption = selected
		existing.AnsweredAt = at
		return nil
	}
	t.store.answers[key] = &model.Answer{
		ID:             uuid.New(),
		AttemptID:      attemptID,
		QuestionID:     questionID,
		SelectedOption: selected,
		AnsweredAt:     at,
	}
	return nil
}

func (t *fakeTx) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	var answers []model.Answer
	for _, a := range t.store.answers {
		if a.AttemptID == attemptID {
			answers = append(answers, *a)
		}
	}
	return answers, nil
}

type fakeTryouts struct {
	tryouts map[uuid.UUID]*model.Tryout
}

func (f *fakeTryouts) GetByID(ctx context.Context, id uuid.UUID) (*model.Tryout, error) {
	t, ok := f.tryouts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type fakeQuestions struct {
	questions []model.Question
	listCalls int
}

func (f *fakeQuestions) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	for i := range f.questions {
		if f.questions[i].ID == id {
			cp := f.questions[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuestions) ListByTryout(ctx context.Context, tryoutID uuid.UUID) ([]model.Question, error) {
	f.listCalls++
	var out []model.Question
	for i := range f.questions {
		if f.questions[i].TryoutID == tryoutID {
			out = append(out, f.questions[i])
		}
	}
	return out, nil
}

// fakePayloads plays the Redis payload cache: it serves the
// participant-safe question set without touching the item bank.
type fakePayloads struct {
	tryouts   *fakeTryouts
	questions *fakeQuestions
	getCalls  int
}

func (f *fakePayloads) GetTryoutPayload(ctx context.Context, tryoutID uuid.UUID) (*model.TryoutPayload, error) {
	f.getCalls++
	tryout, err := f.tryouts.GetByID(ctx, tryoutID)
	if err != nil {
		return nil, err
	}
	forParticipant := make([]model.QuestionForParticipant, 0, len(f.questions.questions))
	for i := range f.questions.questions {
		if f.questions.questions[i].TryoutID == tryoutID {
			forParticipant = append(forParticipant, f.questions.questions[i].ForParticipant())
		}
	}
	return &model.TryoutPayload{
		TryoutID:  tryout.ID,
		Title:     tryout.Title,
		Subjects:  tryout.Subjects,
		Duration:  tryout.DurationMinutes,
		Questions: forParticipant,
	}, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────────────────────────────────

type fixture struct {
	svc       *AttemptService
	store     *fakeStore
	questions *fakeQuestions
	payloads  *fakePayloads
	tryoutID  uuid.UUID
	q1, q2    uuid.UUID
	start     time.Time
}

// newFixture builds a published 30-minute tryout with two questions:
// q1 (correct A, weight 1.0) and q2 (correct B, weight 2.0).
func newFixture(t *testing.T) *fixture {
	t.Helper()

	tryoutID := uuid.New()
	publish := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	tryouts := &fakeTryouts{tryouts: map[uuid.UUID]*model.Tryout{
		tryoutID: {
			ID:              tryoutID,
			Title:           "Try Out Hari 1",
			PublishTime:     publish,
			DurationMinutes: 30,
			IsPublished:     true,
		},
	}}

	q1 := uuid.New()
	q2 := uuid.New()
	questions := &fakeQuestions{questions: []model.Question{
		{ID: q1, TryoutID: tryoutID, Number: 1, CorrectOption: model.OptionA, Weight: 1.0},
		{ID: q2, TryoutID: tryoutID, Number: 2, CorrectOption: model.OptionB, Weight: 2.0},
	}}

	store := newFakeStore()
	payloads := &fakePayloads{tryouts: tryouts, questions: questions}
	svc := NewAttemptService(store, tryouts, questions, payloads, zerolog.Nop())

	return &fixture{
		svc:       svc,
		store:     store,
		questions: questions,
		payloads:  payloads,
		tryoutID:  tryoutID,
		q1:        q1,
		q2:        q2,
		start:     publish.Add(time.Hour),
	}
}

func optPtr(o model.Option) *model.Option { return &o }

const participantID = 7

// ────────────────────────────────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────────────────────────────────

func TestStartCreatesAttemptWithFirstTouchClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Access {
		t.Fatal("expected access to be granted")
	}
	if res.Attempt.StartedAt == nil || !res.Attempt.StartedAt.Equal(f.start) {
		t.Fatalf("StartedAt = %v, want %v", res.Attempt.StartedAt, f.start)
	}

	// A second start later must not move the clock.
	res2, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !res2.Attempt.StartedAt.Equal(f.start) {
		t.Fatalf("second start moved the clock to %v", res2.Attempt.StartedAt)
	}
}

func TestStartRejectsUnpublishedTryout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Before publish time.
	_, err := f.svc.Start(ctx, participantID, f.tryoutID, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	if err != ErrTryoutNotAccessible {
		t.Fatalf("err = %v, want ErrTryoutNotAccessible", err)
	}

	// Unknown tryout.
	_, err = f.svc.Start(ctx, participantID, uuid.New(), f.start)
	if err != ErrTryoutNotFound {
		t.Fatalf("err = %v, want ErrTryoutNotFound", err)
	}
}

func TestStartAfterDeadlineFinalizesWithoutScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// 31 minutes after a 30-minute attempt began.
	res, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start.Add(31*time.Minute))
	if err != nil {
		t.Fatalf("Start past deadline: %v", err)
	}
	if res.Access {
		t.Fatal("expected access denied past deadline")
	}
	if !res.Attempt.IsFinished {
		t.Fatal("expected attempt finalized")
	}
	if res.Attempt.Score != nil || res.Attempt.MaxScore != nil {
		t.Fatal("expiry finalize must not compute a score")
	}
}

func TestExamAutoFinalizesOnExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := f.svc.Exam(ctx, participantID, f.tryoutID, f.start.Add(31*time.Minute))
	if err != ErrAttemptFinished {
		t.Fatalf("err = %v, want ErrAttemptFinished", err)
	}

	a := f.store.attempts[attemptKey(f.tryoutID, participantID)]
	if !a.IsFinished {
		t.Fatal("expected attempt finalized by exam view")
	}
	if a.Score != nil {
		t.Fatal("view-triggered expiry must leave score NULL")
	}
}

func TestExamReturnsRemainingTimeAndAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q1, optPtr(model.OptionA), f.start.Add(time.Minute)); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	view, err := f.svc.Exam(ctx, participantID, f.tryoutID, f.start.Add(29*time.Minute))
	if err != nil {
		t.Fatalf("Exam: %v", err)
	}
	if view.RemainingSeconds != 60 {
		t.Fatalf("RemainingSeconds = %d, want 60", view.RemainingSeconds)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(view.Questions))
	}
	if sel := view.Answers[f.q1]; sel == nil || *sel != model.OptionA {
		t.Fatalf("answer for q1 = %v, want A", sel)
	}
}

func TestExamServesQuestionsFromPayloadCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	view, err := f.svc.Exam(ctx, participantID, f.tryoutID, f.start.Add(time.Minute))
	if err != nil {
		t.Fatalf("Exam: %v", err)
	}

	if f.payloads.getCalls != 1 {
		t.Fatalf("payload cache reads = %d, want 1", f.payloads.getCalls)
	}
	if f.questions.listCalls != 0 {
		t.Fatalf("exam view hit the item bank %d times, want 0", f.questions.listCalls)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(view.Questions))
	}

	// Submit still loads the full bank: scoring needs the answer keys
	// the cached payload deliberately omits.
	if _, err := f.svc.Submit(ctx, participantID, f.tryoutID, f.start.Add(2*time.Minute)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if f.questions.listCalls != 1 {
		t.Fatalf("submit item bank reads = %d, want 1", f.questions.listCalls)
	}
}

func TestExamWithoutAttemptRoutesToStart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Exam(context.Background(), participantID, f.tryoutID, f.start)
	if err != ErrAttemptNotStarted {
		t.Fatalf("err = %v, want ErrAttemptNotStarted", err)
	}
}

func TestSaveAnswerUpsertKeepsLatestSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q1, optPtr(model.OptionB), f.start.Add(time.Minute)); err != nil {
		t.Fatalf("first SaveAnswer: %v", err)
	}
	if err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q1, optPtr(model.OptionA), f.start.Add(2*time.Minute)); err != nil {
		t.Fatalf("second SaveAnswer: %v", err)
	}

	a := f.store.attempts[attemptKey(f.tryoutID, participantID)]
	var rows int
	for _, ans := range f.store.answers {
		if ans.AttemptID == a.ID && ans.QuestionID == f.q1 {
			rows++
			if ans.SelectedOption == nil || *ans.SelectedOption != model.OptionA {
				t.Fatalf("selection = %v, want A", ans.SelectedOption)
			}
		}
	}
	if rows != 1 {
		t.Fatalf("got %d answer rows for one question, want 1", rows)
	}
}

func TestSaveAnswerRejectsForeignQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, uuid.New(), optPtr(model.OptionA), f.start)
	if err != ErrQuestionNotInTryout {
		t.Fatalf("err = %v, want ErrQuestionNotInTryout", err)
	}
}

func TestSaveAnswerPastDeadlineFinalizesAndRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q1, optPtr(model.OptionA), f.start.Add(31*time.Minute))
	if err != ErrAttemptFinished {
		t.Fatalf("err = %v, want ErrAttemptFinished", err)
	}

	a := f.store.attempts[attemptKey(f.tryoutID, participantID)]
	if !a.IsFinished {
		t.Fatal("late answer write must finalize the attempt")
	}
	for _, ans := range f.store.answers {
		if ans.AttemptID == a.ID {
			t.Fatal("no answer row may be written past the deadline")
		}
	}
}

func TestSubmitComputesScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Q1 correct (A), Q2 wrong (C): total 1.0 of max 3.0.
	if err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q1, optPtr(model.OptionA), f.start.Add(time.Minute)); err != nil {
		t.Fatalf("SaveAnswer q1: %v", err)
	}
	if err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q2, optPtr(model.OptionC), f.start.Add(2*time.Minute)); err != nil {
		t.Fatalf("SaveAnswer q2: %v", err)
	}

	attempt, err := f.svc.Submit(ctx, participantID, f.tryoutID, f.start.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !attempt.IsFinished {
		t.Fatal("expected attempt finished")
	}
	if *attempt.Score != 1.0 || *attempt.MaxScore != 3.0 {
		t.Fatalf("score = (%v, %v), want (1.0, 3.0)", *attempt.Score, *attempt.MaxScore)
	}

	// Re-submission recomputes identical values.
	again, err := f.svc.Submit(ctx, participantID, f.tryoutID, f.start.Add(11*time.Minute))
	if err != nil {
		t.Fatalf("re-Submit: %v", err)
	}
	if *again.Score != 1.0 || *again.MaxScore != 3.0 {
		t.Fatalf("re-submission changed score to (%v, %v)", *again.Score, *again.MaxScore)
	}
}

func TestFinishedAttemptRejectsAnswersButCountsTamper(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, participantID, f.tryoutID, f.start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(ctx, participantID, f.tryoutID, f.start.Add(5*time.Minute)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Answer writes are rejected on the terminal attempt...
	err := f.svc.SaveAnswer(ctx, participantID, f.tryoutID, f.q1, optPtr(model.OptionA), f.start.Add(6*time.Minute))
	if err != ErrAttemptFinished {
		t.Fatalf("SaveAnswer err = %v, want ErrAttemptFinished", err)
	}

	// ...but the tamper counter keeps incrementing.
	count, err := f.svc.RecordTamper(ctx, participantID, f.tryoutID)
	if err != nil {
		t.Fatalf("RecordTamper: %v", err)
	}
	if count != 1 {
		t.Fatalf("tamper count = %d, want 1", count)
	}
	count, err = f.svc.RecordTamper(ctx, participantID, f.tryoutID)
	if err != nil {
		t.Fatalf("second RecordTamper: %v", err)
	}
	if count != 2 {
		t.Fatalf("tamper count = %d, want 2", count)
	}
}

func TestRecordTamperRequiresAttempt(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordTamper(context.Background(), participantID, f.tryoutID)
	if err != ErrAttemptNotFound {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}

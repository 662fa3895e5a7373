package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/psw-tryout/tryout-backend/internal/model"
)

func question(id uuid.UUID, correct model.Option, weight float64) model.Question {
	return model.Question{ID: id, CorrectOption: correct, Weight: weight}
}

func answer(qID uuid.UUID, selected *model.Option) model.Answer {
	return model.Answer{ID: uuid.New(), QuestionID: qID, SelectedOption: selected}
}

func optPtr(o model.Option) *model.Option { return &o }

func TestScore(t *testing.T) {
	q1 := uuid.New()
	q2 := uuid.New()
	q3 := uuid.New()

	tests := []struct {
		name      string
		questions []model.Question
		answers   []model.Answer
		total     float64
		max       float64
	}{
		{
			name: "one correct one wrong",
			questions: []model.Question{
				question(q1, model.OptionA, 1.0),
				question(q2, model.OptionB, 2.0),
			},
			answers: []model.Answer{
				answer(q1, optPtr(model.OptionA)),
				answer(q2, optPtr(model.OptionC)),
			},
			total: 1.0,
			max:   3.0,
		},
		{
			name: "all correct",
			questions: []model.Question{
				question(q1, model.OptionA, 1.5),
				question(q2, model.OptionD, 2.5),
			},
			answers: []model.Answer{
				answer(q1, optPtr(model.OptionA)),
				answer(q2, optPtr(model.OptionD)),
			},
			total: 4.0,
			max:   4.0,
		},
		{
			name: "unanswered questions still count toward max",
			questions: []model.Question{
				question(q1, model.OptionA, 1.0),
				question(q2, model.OptionB, 2.0),
				question(q3, model.OptionC, 3.0),
			},
			answers: []model.Answer{
				answer(q1, optPtr(model.OptionA)),
			},
			total: 1.0,
			max:   6.0,
		},
		{
			name: "nil selection contributes zero",
			questions: []model.Question{
				question(q1, model.OptionA, 2.0),
			},
			answers: []model.Answer{
				answer(q1, nil),
			},
			total: 0,
			max:   2.0,
		},
		{
			name:      "no answers at all",
			questions: []model.Question{question(q1, model.OptionB, 4.0)},
			answers:   nil,
			total:     0,
			max:       4.0,
		},
		{
			name:      "empty item bank",
			questions: nil,
			answers:   []model.Answer{answer(q1, optPtr(model.OptionA))},
			total:     0,
			max:       0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.questions, tc.answers)
			if got.Total != tc.total || got.Max != tc.max {
				t.Fatalf("Score() = (%v, %v), want (%v, %v)", got.Total, got.Max, tc.total, tc.max)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	q1 := uuid.New()
	q2 := uuid.New()
	questions := []model.Question{
		question(q1, model.OptionA, 1.0),
		question(q2, model.OptionB, 2.0),
	}
	answers := []model.Answer{
		answer(q1, optPtr(model.OptionA)),
		answer(q2, optPtr(model.OptionB)),
	}

	first := Score(questions, answers)
	second := Score(questions, answers)
	if first != second {
		t.Fatalf("repeated scoring diverged: %+v vs %+v", first, second)
	}
}

func TestScoreNoPartialCredit(t *testing.T) {
	qID := uuid.New()
	questions := []model.Question{question(qID, model.OptionB, 3.0)}

	for _, sel := range []model.Option{model.OptionA, model.OptionC, model.OptionD} {
		got := Score(questions, []model.Answer{answer(qID, optPtr(sel))})
		if got.Total != 0 {
			t.Errorf("selection %s earned %v, want 0", sel, got.Total)
		}
		if got.Max != 3.0 {
			t.Errorf("selection %s max %v, want 3.0", sel, got.Max)
		}
	}

	got := Score(questions, []model.Answer{answer(qID, optPtr(model.OptionB))})
	if got.Total != 3.0 {
		t.Errorf("correct selection earned %v, want full weight 3.0", got.Total)
	}
}

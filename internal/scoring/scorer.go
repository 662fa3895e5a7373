// Package scoring computes attempt scores. It is deliberately pure:
// callers load the question set and the recorded answers, and Score
// returns the same result for the same inputs every time, which makes
// re-submission safe.
package scoring

import (
	"github.com/psw-tryout/tryout-backend/internal/model"
)

// Result holds the outcome of scoring one attempt.
type Result struct {
	Total float64
	Max   float64
}

// Score computes the total and maximum score for an attempt.
//
// Max is the sum of all question weights, whether answered or not.
// Total is the sum of weights of questions whose recorded selection
// equals the correct option. A missing answer, a nil selection, or a
// wrong selection contributes zero; there is no partial credit and no
// penalty.
func Score(questions []model.Question, answers []model.Answer) Result {
	selected := make(map[string]*model.Option, len(answers))
	for i := range answers {
		selected[answers[i].QuestionID.String()] = answers[i].SelectedOption
	}

	var res Result
	for i := range questions {
		q := &questions[i]
		res.Max += q.Weight

		sel, ok := selected[q.ID.String()]
		if !ok || sel == nil {
			continue
		}
		if *sel == q.CorrectOption {
			res.Total += q.Weight
		}
	}
	return res
}

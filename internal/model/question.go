package model

import (
	"github.com/google/uuid"
)

// Option identifies one of the four fixed answer choices.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// Valid reports whether o is one of the four allowed choices.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Question represents a single tryout question. Number is unique within
// its tryout; Weight is the score awarded for the correct option.
type Question struct {
	ID            uuid.UUID `json:"id"`
	TryoutID      uuid.UUID `json:"tryout_id"`
	Number        int       `json:"number"`
	Text          string    `json:"text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption Option    `json:"correct_option"`
	Weight        float64   `json:"weight"`
}

// QuestionForParticipant is a question without the correct option and
// weight, sent to participants.
type QuestionForParticipant struct {
	ID      uuid.UUID `json:"id"`
	Number  int       `json:"number"`
	Text    string    `json:"text"`
	OptionA string    `json:"option_a"`
	OptionB string    `json:"option_b"`
	OptionC string    `json:"option_c"`
	OptionD string    `json:"option_d"`
}

// ForParticipant strips the correct option and weight from a question.
func (q *Question) ForParticipant() QuestionForParticipant {
	return QuestionForParticipant{
		ID:      q.ID,
		Number:  q.Number,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
	}
}

// QuestionRequest is the payload for one question in a bulk replace.
type QuestionRequest struct {
	Number        int     `json:"number" binding:"required,min=1"`
	Text          string  `json:"text" binding:"required,min=1,max=5000"`
	OptionA       string  `json:"option_a" binding:"required,max=2000"`
	OptionB       string  `json:"option_b" binding:"required,max=2000"`
	OptionC       string  `json:"option_c" binding:"required,max=2000"`
	OptionD       string  `json:"option_d" binding:"required,max=2000"`
	CorrectOption Option  `json:"correct_option" binding:"required,oneof=A B C D"`
	Weight        float64 `json:"weight" binding:"required,gt=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a tryout's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer holds a participant's selection for one question within one
// attempt. The (attempt, question) pair is unique; re-answering
// overwrites the selection and timestamp. A nil SelectedOption means the
// question was touched but left unanswered.
type Answer struct {
	ID             uuid.UUID `json:"id"`
	AttemptID      uuid.UUID `json:"attempt_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption *Option   `json:"selected_option"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// SaveAnswerRequest is the payload for recording an answer.
type SaveAnswerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption *Option   `json:"selected_option" binding:"omitempty,oneof=A B C D"`
}

// TamperEventRequest is the payload for reporting a suspicious
// out-of-app event during an attempt.
type TamperEventRequest struct {
	Payload string `json:"payload" binding:"max=2000"`
}

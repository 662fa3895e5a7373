package model

import (
	"time"

	"github.com/google/uuid"
)

// Tryout represents a timed multiple-choice test.
type Tryout struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Subjects        string    `json:"subjects"`
	PublishTime     time.Time `json:"publish_time"`
	DurationMinutes int       `json:"duration_minutes"`
	IsPublished     bool      `json:"is_published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Accessible reports whether participants may enter the tryout at the
// given time: it must be published and its publish time must have passed.
func (t *Tryout) Accessible(now time.Time) bool {
	return t.IsPublished && !now.Before(t.PublishTime)
}

// CreateTryoutRequest is the payload for creating a new tryout.
type CreateTryoutRequest struct {
	Title           string    `json:"title" binding:"required,min=3,max=200"`
	Description     string    `json:"description" binding:"max=5000"`
	Subjects        string    `json:"subjects" binding:"max=255"`
	PublishTime     time.Time `json:"publish_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=480"`
	IsPublished     bool      `json:"is_published"`
}

// UpdateTryoutRequest is the payload for updating an existing tryout.
type UpdateTryoutRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=200"`
	Description     *string    `json:"description" binding:"omitempty,max=5000"`
	Subjects        *string    `json:"subjects" binding:"omitempty,max=255"`
	PublishTime     *time.Time `json:"publish_time" binding:"omitempty"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	IsPublished     *bool      `json:"is_published" binding:"omitempty"`
}

// TryoutPayload is the Redis-cached payload sent to participants
// (no correct options, no weights).
type TryoutPayload struct {
	TryoutID  uuid.UUID                `json:"tryout_id"`
	Title     string                   `json:"title"`
	Subjects  string                   `json:"subjects"`
	Duration  int                      `json:"duration_minutes"`
	Questions []QuestionForParticipant `json:"questions"`
}

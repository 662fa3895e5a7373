package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptState enumerates the lifecycle states of an attempt.
type AttemptState string

const (
	AttemptNotStarted AttemptState = "NOT_STARTED"
	AttemptInProgress AttemptState = "IN_PROGRESS"
	AttemptFinished   AttemptState = "FINISHED"
)

// Attempt represents one participant's single run through one tryout.
// The (tryout, participant) pair is unique. Score and MaxScore stay nil
// until an explicit submission computes them; an attempt that expires
// while merely being viewed finishes with both still nil.
type Attempt struct {
	ID            uuid.UUID  `json:"id"`
	TryoutID      uuid.UUID  `json:"tryout_id"`
	ParticipantID int        `json:"participant_id"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	IsFinished    bool       `json:"is_finished"`
	TamperCount   int        `json:"tamper_count"`
	Score         *float64   `json:"score,omitempty"`
	MaxScore      *float64   `json:"max_score,omitempty"`
}

// State derives the lifecycle state from the stored fields.
func (a *Attempt) State() AttemptState {
	switch {
	case a.IsFinished:
		return AttemptFinished
	case a.StartedAt != nil:
		return AttemptInProgress
	default:
		return AttemptNotStarted
	}
}

// Deadline returns the authoritative cutoff: start time plus the tryout
// duration. The zero time is returned if the attempt has not started.
func (a *Attempt) Deadline(durationMinutes int) time.Time {
	if a.StartedAt == nil {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// Expired reports whether now is strictly past the deadline. An attempt
// that has not started cannot be expired.
func (a *Attempt) Expired(now time.Time, durationMinutes int) bool {
	if a.StartedAt == nil {
		return false
	}
	return now.After(a.Deadline(durationMinutes))
}

// RemainingSeconds returns whole seconds until the deadline, clamped at zero.
func (a *Attempt) RemainingSeconds(now time.Time, durationMinutes int) int {
	if a.StartedAt == nil {
		return 0
	}
	remaining := a.Deadline(durationMinutes).Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

package model

import (
	"testing"
	"time"
)

func TestAttemptState(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		attempt Attempt
		want    AttemptState
	}{
		{"fresh row", Attempt{}, AttemptNotStarted},
		{"started", Attempt{StartedAt: &now}, AttemptInProgress},
		{"finished", Attempt{StartedAt: &now, IsFinished: true}, AttemptFinished},
		{"finished without start is still terminal", Attempt{IsFinished: true}, AttemptFinished},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.attempt.State(); got != tc.want {
				t.Fatalf("State() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAttemptDeadline(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := Attempt{StartedAt: &start}

	want := start.Add(30 * time.Minute)
	if got := a.Deadline(30); !got.Equal(want) {
		t.Fatalf("Deadline(30) = %v, want %v", got, want)
	}

	unstarted := Attempt{}
	if !unstarted.Deadline(30).IsZero() {
		t.Fatal("Deadline of an unstarted attempt should be zero")
	}
}

func TestAttemptExpired(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := Attempt{StartedAt: &start}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well within time", start.Add(10 * time.Minute), false},
		{"exactly at deadline", start.Add(30 * time.Minute), false},
		{"one second past", start.Add(30*time.Minute + time.Second), true},
		{"one minute past", start.Add(31 * time.Minute), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Expired(tc.now, 30); got != tc.want {
				t.Fatalf("Expired(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}

	unstarted := Attempt{}
	if unstarted.Expired(start.Add(time.Hour), 30) {
		t.Fatal("an unstarted attempt cannot be expired")
	}
}

func TestAttemptRemainingSeconds(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := Attempt{StartedAt: &start}

	if got := a.RemainingSeconds(start.Add(29*time.Minute), 30); got != 60 {
		t.Fatalf("RemainingSeconds = %d, want 60", got)
	}
	if got := a.RemainingSeconds(start.Add(31*time.Minute), 30); got != 0 {
		t.Fatalf("RemainingSeconds past deadline = %d, want 0", got)
	}
	unstarted := Attempt{}
	if got := unstarted.RemainingSeconds(start, 30); got != 0 {
		t.Fatalf("RemainingSeconds of unstarted attempt = %d, want 0", got)
	}
}

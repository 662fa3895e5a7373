package model

import "time"

// Participant represents a tryout participant account.
type Participant struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	School       string    `json:"school"`
	Day          int       `json:"day"`
	Blocked      bool      `json:"blocked"`
	PasswordHash string    `json:"-"`
	// RawPassword is the generated plaintext credential shown on the
	// participant card and mailed by the notifier. Kept alongside the
	// hash because the event committee hands out printed cards.
	RawPassword string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ParticipantLoginRequest is the payload for participant authentication.
type ParticipantLoginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=150"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// ParticipantLoginResponse is returned after successful participant login.
type ParticipantLoginResponse struct {
	Token       string      `json:"token"`
	Participant Participant `json:"participant"`
}

// CreateParticipantRequest is the payload for registering a participant.
// Username and password are generated server-side from the email.
type CreateParticipantRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	FullName string `json:"full_name" binding:"required,min=2,max=150"`
	School   string `json:"school" binding:"required,min=2,max=200"`
	Day      int    `json:"day" binding:"required,oneof=1 2"`
}

// UpdateParticipantRequest is the payload for updating a participant.
type UpdateParticipantRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	FullName string `json:"full_name" binding:"required,min=2,max=150"`
	School   string `json:"school" binding:"required,min=2,max=200"`
	Day      int    `json:"day" binding:"required,oneof=1 2"`
}

// ParticipantCard is the credential payload shown to the participant and
// embedded in the credential email.
type ParticipantCard struct {
	FullName string `json:"full_name"`
	School   string `json:"school"`
	Day      int    `json:"day"`
	Username string `json:"username"`
	Password string `json:"password"`
	LoginURL string `json:"login_url"`
}

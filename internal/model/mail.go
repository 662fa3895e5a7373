package model

// CredentialMailJob is the payload queued to Redis for the mail worker.
// One job per credential email.
type CredentialMailJob struct {
	To       string `json:"to"`
	FullName string `json:"full_name"`
	School   string `json:"school"`
	Day      int    `json:"day"`
	Username string `json:"username"`
	Password string `json:"password"`
	LoginURL string `json:"login_url"`
}

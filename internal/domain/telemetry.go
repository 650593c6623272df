package domain

import "time"

// LoginType is how a login attempt was made.
type LoginType string

const (
	LoginEmail     LoginType = "EMAIL"
	LoginGoogle    LoginType = "GOOGLE"
	LoginAnonymous LoginType = "ANONYMOUS"
	LoginSignup    LoginType = "SIGNUP"
)

// LoginTelemetry records one login attempt, successful or not.
type LoginTelemetry struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	LoginType    LoginType `json:"login_type"`
	Success      bool      `json:"success"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Synced       bool      `json:"synced"`
	Attempts     int       `json:"attempts"`
}

// SearchHistoryEntry is one search the user ran. Append-only.
type SearchHistoryEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

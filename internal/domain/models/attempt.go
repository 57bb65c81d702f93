package models

import "time"

// AuthAttempt is an append-only audit row capturing one Verify invocation's
// outcome. Attempts are never mutated or deleted by the core.
type AuthAttempt struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Phone      string    `json:"phone"`
	Success    bool      `json:"success"`
	Score      float64   `json:"score"`
	CallID     string    `json:"call_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewAttempt(phone string, success bool, score float64, callID string) *AuthAttempt {
	return &AuthAttempt{
		Phone:     phone,
		Success:   success,
		Score:     score,
		CallID:    callID,
		CreatedAt: time.Now().UTC(),
	}
}

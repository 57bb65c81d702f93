package models

import "time"

// EmbeddingDim is the fixed length of a speaker embedding vector produced
// by the configured speaker-recognition model.
const EmbeddingDim = 192

// User is a voiceprint record keyed by phone number. At most one row exists
// per phone; re-enrollment overwrites both the embedding and EnrolledAt.
type User struct {
	Phone      string    `json:"phone"`
	Embedding  []float64 `json:"embedding"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func NewUser(phone string, embedding []float64, enrolledAt time.Time) *User {
	return &User{
		Phone:      phone,
		Embedding:  embedding,
		EnrolledAt: enrolledAt,
	}
}

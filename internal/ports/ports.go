// Package ports declares the capability interfaces the application layer
// depends on. Production wires these to real adapters; tests bind them to
// in-memory or mock doubles.
package ports

import (
	"context"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
)

// AudioFetcher downloads a bounded-size audio blob from an HTTP(S) URL.
type AudioFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// AudioNormalizer converts arbitrary audio containers to canonical WAV and
// exposes validation/duration utilities over that canonical form.
type AudioNormalizer interface {
	Normalize(ctx context.Context, input []byte) ([]byte, error)
	Validate(wav []byte) (bool, string)
	DurationSeconds(wav []byte) (float64, error)
	PCMToWAV(pcm []byte, sampleRate, channels, sampleWidth int) []byte
}

// CaptureEngine runs the endpointing state machine against a live WebSocket
// audio stream and returns a canonical WAV blob.
type CaptureEngine interface {
	Capture(ctx context.Context, listenURL string) ([]byte, error)
}

// EmbeddingExtractor converts a canonical WAV into a fixed-dimension speaker
// embedding via an external model.
type EmbeddingExtractor interface {
	Extract(ctx context.Context, wav []byte) ([]float64, error)
	Validate(vector []float64) bool
}

// SimilarityJudge compares two embeddings and renders a match decision.
type SimilarityJudge interface {
	Cosine(a, b []float64) (float64, error)
	Decide(a, b []float64, threshold float64) (bool, float64, error)
}

// UserRepository persists voiceprint records and authentication attempts.
type UserRepository interface {
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	DeleteUser(ctx context.Context, phone string) (bool, error)

	LogAttempt(ctx context.Context, attempt *models.AuthAttempt) (*models.AuthAttempt, error)
	AttemptsByPhone(ctx context.Context, phone string, limit int) ([]*models.AuthAttempt, error)
	RecentFailureCount(ctx context.Context, phone string, window time.Duration) (int, error)

	HealthCheck(ctx context.Context) bool
}

// ErrUserNotFound is returned by GetUserByPhone when no row exists for the
// given phone number.
var ErrUserNotFound = newSentinel("user not found")

type sentinelError string

func newSentinel(msg string) error { return sentinelError(msg) }

func (e sentinelError) Error() string { return string(e) }

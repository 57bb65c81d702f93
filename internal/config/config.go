// Package config loads the service's runtime configuration from
// environment variables, following the teacher's default-then-overlay
// pattern: DefaultConfig() gives every field a sane value, Load() overlays
// whatever the environment sets, and Validate() aggregates every problem
// into a single error instead of failing on the first one found.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Host string
	Port int

	DBURL string
	DBKey string

	VoiceThreshold   float64
	MaxAudioDuration int
	WebsocketTimeout int

	EmbeddingURL            string
	EmbeddingTimeoutSeconds int
	FetchTimeoutSeconds     int

	MinAudioDuration       float64
	SilenceThreshold       float64
	SilenceDurationSeconds int

	CORSOrigins []string

	LogLevel string
}

// DefaultConfig returns every field at its documented default.
func DefaultConfig() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: 8000,

		VoiceThreshold:   0.82,
		MaxAudioDuration: 30,
		WebsocketTimeout: 65,

		EmbeddingTimeoutSeconds: 15,
		FetchTimeoutSeconds:     30,

		MinAudioDuration:       3,
		SilenceThreshold:       0.01,
		SilenceDurationSeconds: 2,

		CORSOrigins: nil,

		LogLevel: "INFO",
	}
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load returns DefaultConfig overlaid with whatever the environment sets,
// then validates the result.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	envString("HOST", &cfg.Host)
	envInt("PORT", &cfg.Port)

	envString("DB_URL", &cfg.DBURL)
	envString("DB_KEY", &cfg.DBKey)

	envFloat("VOICE_THRESHOLD", &cfg.VoiceThreshold)
	envInt("MAX_AUDIO_DURATION", &cfg.MaxAudioDuration)
	envInt("WEBSOCKET_TIMEOUT", &cfg.WebsocketTimeout)

	envString("EMBEDDING_URL", &cfg.EmbeddingURL)
	envInt("EMBEDDING_TIMEOUT_SECONDS", &cfg.EmbeddingTimeoutSeconds)
	envInt("FETCH_TIMEOUT_SECONDS", &cfg.FetchTimeoutSeconds)

	envFloat("MIN_AUDIO_DURATION", &cfg.MinAudioDuration)
	envFloat("SILENCE_THRESHOLD", &cfg.SilenceThreshold)
	envInt("SILENCE_DURATION_SECONDS", &cfg.SilenceDurationSeconds)

	envStringSlice("CORS_ORIGINS", &cfg.CORSOrigins)

	envString("LOG_LEVEL", &cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate aggregates every configuration problem into one error rather
// than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}
	if c.DBURL == "" {
		errs = append(errs, "DB_URL is required")
	}
	if c.VoiceThreshold < 0 || c.VoiceThreshold > 1 {
		errs = append(errs, "VOICE_THRESHOLD must be between 0 and 1")
	}
	if c.MaxAudioDuration < 1 {
		errs = append(errs, "MAX_AUDIO_DURATION must be positive")
	}
	if c.WebsocketTimeout < 1 {
		errs = append(errs, "WEBSOCKET_TIMEOUT must be positive")
	}
	if c.EmbeddingURL == "" {
		errs = append(errs, "EMBEDDING_URL is required")
	} else if !isValidURL(c.EmbeddingURL) {
		errs = append(errs, "EMBEDDING_URL must be a valid URL")
	}
	if c.FetchTimeoutSeconds < 1 {
		errs = append(errs, "FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.MinAudioDuration < 0 {
		errs = append(errs, "MIN_AUDIO_DURATION must not be negative")
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		errs = append(errs, "SILENCE_THRESHOLD must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

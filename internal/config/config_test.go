package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, old)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.VoiceThreshold != 0.82 {
		t.Errorf("VoiceThreshold = %v, want 0.82", cfg.VoiceThreshold)
	}
	if cfg.MaxAudioDuration != 30 {
		t.Errorf("MaxAudioDuration = %d, want 30", cfg.MaxAudioDuration)
	}
}

func TestLoad_MissingRequiredFieldsFails(t *testing.T) {
	clearEnv(t, "DB_URL", "EMBEDDING_URL")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when DB_URL/EMBEDDING_URL are unset")
	}
}

func TestLoad_OverlaysEnvironment(t *testing.T) {
	clearEnv(t, "DB_URL", "EMBEDDING_URL", "PORT", "VOICE_THRESHOLD")
	os.Setenv("DB_URL", "postgres://localhost/voiceauth")
	os.Setenv("EMBEDDING_URL", "http://localhost:9000")
	os.Setenv("PORT", "9090")
	os.Setenv("VOICE_THRESHOLD", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.VoiceThreshold != 0.75 {
		t.Errorf("VoiceThreshold = %v, want 0.75", cfg.VoiceThreshold)
	}
}

func TestValidate_ThresholdOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBURL = "postgres://localhost/db"
	cfg.EmbeddingURL = "http://localhost:9000"
	cfg.VoiceThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for threshold > 1")
	}
}

func TestValidate_AggregatesMultipleErrors(t *testing.T) {
	cfg := &Config{Port: -1}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
}

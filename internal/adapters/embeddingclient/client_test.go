package embeddingclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/audio"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
)

func fakeEmbedding() []float64 {
	vec := make([]float64, models.EmbeddingDim)
	for i := range vec {
		vec[i] = 0.01 * float64(i)
	}
	return vec
}

// sampleWAV returns a canonical WAV with 1 second of silence, well above
// the 0.5s minimum waveform-length gate.
func sampleWAV() []byte {
	return audio.PCMToWAV(make([]byte, audio.SampleRate*audio.SampleWidth), audio.SampleRate, audio.Channels, audio.SampleWidth)
}

func TestExtract_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(response{Embedding: fakeEmbedding()})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	vec, err := c.Extract(context.Background(), sampleWAV())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != models.EmbeddingDim {
		t.Fatalf("expected %d dims, got %d", models.EmbeddingDim, len(vec))
	}
}

func TestExtract_WrongDimensionIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(response{Embedding: []float64{0.1, 0.2}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.Extract(context.Background(), sampleWAV())
	if domain.KindOf(err) != domain.KindEmbeddingInvalid {
		t.Fatalf("expected KindEmbeddingInvalid, got %v (%v)", domain.KindOf(err), err)
	}
}

func TestExtract_ServiceErrorBecomesUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	c.retryConfig.MaxRetries = 0
	_, err := c.Extract(context.Background(), sampleWAV())
	if domain.KindOf(err) != domain.KindEmbeddingUnavailable {
		t.Fatalf("expected KindEmbeddingUnavailable, got %v (%v)", domain.KindOf(err), err)
	}
}

func TestExtract_ShortWaveformRejectedBeforeRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(response{Embedding: fakeEmbedding()})
	}))
	defer srv.Close()

	shortWAV := audio.PCMToWAV(make([]byte, 100), audio.SampleRate, audio.Channels, audio.SampleWidth)

	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.Extract(context.Background(), shortWAV)
	if domain.KindOf(err) != domain.KindWaveformTooShort {
		t.Fatalf("expected KindWaveformTooShort, got %v (%v)", domain.KindOf(err), err)
	}
	if called {
		t.Fatalf("expected the embedding service not to be called for a too-short waveform")
	}
}

func TestValidate(t *testing.T) {
	c := NewClient("http://example.invalid", time.Second)
	if !c.Validate(fakeEmbedding()) {
		t.Fatalf("expected fixed-length embedding to validate")
	}
	if c.Validate([]float64{1, 2, 3}) {
		t.Fatalf("expected short vector to fail validation")
	}
}

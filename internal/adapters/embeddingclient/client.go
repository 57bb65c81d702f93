// Package embeddingclient implements the Embedding Extractor (C4): an HTTP
// client that posts a canonical WAV body to the configured embedding
// service and parses back a fixed-length speaker embedding. Retry and
// circuit-breaking are delegated to the internal/adapters/retry and
// internal/adapters/circuitbreaker packages.
package embeddingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/circuitbreaker"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/metrics"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/retry"
	"github.com/Hjhirp/voice-auth-microservice/internal/audio"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// DefaultTimeout bounds a single embedding request, separate from the
// retry loop's overall budget. Matches EMBEDDING_TIMEOUT_SECONDS' documented
// default (section 5/6).
const DefaultTimeout = 15 * time.Second

// minWaveformSamples is 0.5s at 16kHz mono (section 4.4).
const minWaveformSamples = 8000

// response is the embedding service's JSON reply: a flat vector of
// EmbeddingDim float64s.
type response struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Client implements ports.EmbeddingExtractor against an HTTP embedding
// service, wrapped in a circuit breaker and exponential backoff. It is the
// only outbound client here that retries; the audio fetcher does not.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		timeout:     timeout,
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
	}
}

var _ ports.EmbeddingExtractor = (*Client)(nil)

// Extract posts wav to the embedding service and returns the parsed
// EmbeddingDim-length vector.
func (c *Client) Extract(ctx context.Context, wav []byte) ([]float64, error) {
	if samples := (len(wav) - audio.HeaderSize) / audio.SampleWidth; samples < minWaveformSamples {
		return nil, domain.NewDetail(domain.KindWaveformTooShort, "embed", fmt.Sprintf("waveform has %d samples, need >= %d", samples, minWaveformSamples))
	}

	start := time.Now()
	var result []float64

	breakerErr := c.breaker.Execute(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		vec, err := c.extractOnce(reqCtx, wav)
		if err != nil {
			return err
		}
		result = vec
		return nil
	})

	metrics.EmbeddingRequestDuration.Observe(time.Since(start).Seconds())
	metrics.CircuitBreakerState.Set(float64(c.breaker.State()))

	if errors.Is(breakerErr, circuitbreaker.ErrCircuitOpen) {
		return nil, domain.New(domain.KindEmbeddingUnavailable, "embed", breakerErr)
	}
	if breakerErr != nil {
		return nil, breakerErr
	}
	return result, nil
}

func (c *Client) extractOnce(ctx context.Context, wav []byte) ([]float64, error) {
	var respBody []byte
	var statusCode int

	err := retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(wav))
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "audio/wav")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			log.Printf("[embeddingclient] request failed: url=%s, error=%v", c.baseURL, err)
			return 0, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return statusCode, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			log.Printf("[embeddingclient] API error: url=%s, status=%d, body=%s", c.baseURL, resp.StatusCode, string(respBody))
			return statusCode, fmt.Errorf("embedding service error: %s - %s", resp.Status, string(respBody))
		}
		return statusCode, nil
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.New(domain.KindEmbeddingTimeout, "embed", err)
		}
		return nil, domain.New(domain.KindEmbeddingUnavailable, "embed", err)
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, domain.NewDetail(domain.KindEmbeddingInvalid, "embed", "malformed response body")
	}
	if parsed.Error != "" {
		return nil, domain.NewDetail(domain.KindEmbeddingInvalid, "embed", parsed.Error)
	}
	if !c.Validate(parsed.Embedding) {
		return nil, domain.NewDetail(domain.KindEmbeddingInvalid, "embed",
			fmt.Sprintf("expected %d finite, not all-zero dimensions, got %d", models.EmbeddingDim, len(parsed.Embedding)))
	}

	return parsed.Embedding, nil
}

// Validate reports whether vec is a usable speaker embedding: the fixed
// dimensionality, every element finite, and not identically zero (section
// 3's User.embedding invariant -- a zero or NaN/Inf vector compares as a
// false match or corrupts cosine similarity downstream).
func (c *Client) Validate(vec []float64) bool {
	if len(vec) != models.EmbeddingDim {
		return false
	}
	allZero := true
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if v != 0 {
			allZero = false
		}
	}
	return !allZero
}

// HealthCheck reports whether the embedding service is reachable, without
// spending a real inference call: it returns false while the circuit
// breaker is open, and otherwise reports whether the service's own /health
// endpoint answers with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

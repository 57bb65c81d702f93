package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/dto"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// ServiceVersion is reported on every health response; overridden at build
// time would require -ldflags, which this repo doesn't wire, so it's a
// plain constant.
const ServiceVersion = "1.0.0"

// embeddingHealthChecker is implemented by embedding clients that can probe
// liveness without spending a real inference call.
type embeddingHealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// HealthHandler serves GET /healthz and GET /healthz/detailed.
type HealthHandler struct {
	repo      ports.UserRepository
	extractor ports.EmbeddingExtractor
	timeout   time.Duration
}

func NewHealthHandler(repo ports.UserRepository, extractor ports.EmbeddingExtractor) *HealthHandler {
	return &HealthHandler{repo: repo, extractor: extractor, timeout: 5 * time.Second}
}

// Handle reports overall liveness: healthy iff the repository is reachable
// and the embedding model is loaded (section 6).
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dbOK := h.repo.HealthCheck(ctx)
	embeddingOK := h.embeddingReady(ctx)

	status := "healthy"
	code := http.StatusOK
	if !dbOK || !embeddingOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   ServiceVersion,
	})
}

// HandleDetailed reports per-dependency status with latency, for operator
// dashboards rather than the core healthy/unhealthy invariant.
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := map[string]dto.ServiceHealth{
		"database":  h.checkDatabase(ctx),
		"embedding": h.checkEmbedding(ctx),
	}

	status := "healthy"
	code := http.StatusOK
	for _, svc := range services {
		if svc.Status != "healthy" {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, dto.DetailedHealthResponse{
		Status:   status,
		Version:  ServiceVersion,
		Services: services,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) dto.ServiceHealth {
	start := time.Now()
	ok := h.repo.HealthCheck(ctx)
	latency := time.Since(start).Milliseconds()
	if !ok {
		errMsg := "repository unreachable"
		return dto.ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return dto.ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) checkEmbedding(ctx context.Context) dto.ServiceHealth {
	start := time.Now()
	ok := h.embeddingReady(ctx)
	latency := time.Since(start).Milliseconds()
	if !ok {
		errMsg := "embedding service unreachable"
		return dto.ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return dto.ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) embeddingReady(ctx context.Context) bool {
	checker, ok := h.extractor.(embeddingHealthChecker)
	if !ok {
		return true
	}
	return checker.HealthCheck(ctx)
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/dto"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
)

// maxRequestBody bounds decodeJSON's reader so a misbehaving caller can't
// exhaust memory with an oversized body.
const maxRequestBody = 1 << 20 // 1 MiB

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, errType, message string, status int) {
	if status >= 400 && status < 500 {
		log.Printf("HTTP %d: type=%s message=%s", status, errType, message)
	}
	respondJSON(w, status, dto.NewErrorResponse(errType, message, status))
}

func decodeJSON[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// statusForKind maps the error taxonomy (section 7) to an HTTP status.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindFetchTimeout, domain.KindFetchHTTPStatus, domain.KindEmptyDownload,
		domain.KindConnectionError, domain.KindConnectionClosed, domain.KindNoAudioCaptured,
		domain.KindMissingPhone, domain.KindMissingListen:
		return http.StatusBadRequest
	case domain.KindUnsupportedOrCorrupt, domain.KindTruncatedHeader, domain.KindValidationFailed,
		domain.KindTooShort, domain.KindWaveformTooShort, domain.KindEmptyInput:
		return http.StatusUnprocessableEntity
	case domain.KindEmbeddingInvalid:
		return http.StatusUnprocessableEntity
	case domain.KindEmbeddingUnavailable, domain.KindEmbeddingTimeout:
		return http.StatusServiceUnavailable
	case domain.KindStoreError, domain.KindInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes the standard error envelope for a *domain.Error
// (or any error, falling back to InternalError). The full error, including
// any wrapped cause, is logged; only the taxonomy kind crosses the HTTP
// boundary in the response body (section 7, rule 1).
func respondDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	log.Printf("request failed: kind=%s detail=%v", kind, err)
	respondError(w, string(kind), string(kind), statusForKind(kind))
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/dto"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// AuditHandler serves GET /v1/users/{phone}/auth-history.
type AuditHandler struct {
	repo ports.UserRepository
}

func NewAuditHandler(repo ports.UserRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

const defaultHistoryLimit = 20

func (h *AuditHandler) AuthHistory(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		respondError(w, "invalid_request", "phone is required", http.StatusBadRequest)
		return
	}

	limit := parseIntQuery(r, "limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	attempts, err := h.repo.AttemptsByPhone(r.Context(), phone, limit)
	if err != nil {
		respondError(w, "store_error", "store_error", http.StatusInternalServerError)
		return
	}

	out := make([]dto.AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, dto.AttemptDTO{
			ID:        a.ID,
			Success:   a.Success,
			Score:     a.Score,
			CreatedAt: a.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, dto.AuthHistoryResponse{Phone: phone, Attempts: out})
}

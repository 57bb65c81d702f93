package handlers

import (
	"net/http"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/dto"
	"github.com/Hjhirp/voice-auth-microservice/internal/orchestrator"
)

// EnrollHandler serves POST /v1/enroll.
type EnrollHandler struct {
	orch *orchestrator.Orchestrator
}

func NewEnrollHandler(orch *orchestrator.Orchestrator) *EnrollHandler {
	return &EnrollHandler{orch: orch}
}

func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[dto.EnrollRequest](r, w)
	if !ok {
		return
	}
	if req.Phone == "" {
		respondError(w, "invalid_request", "phone is required", http.StatusBadRequest)
		return
	}
	if req.AudioURL == "" {
		respondError(w, "invalid_request", "audioUrl is required", http.StatusBadRequest)
		return
	}

	result, err := h.orch.Enroll(r.Context(), req.Phone, req.AudioURL)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.EnrollResponse{Status: result.Status, Score: result.Score})
}

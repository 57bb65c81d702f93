package handlers

import (
	"net/http"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/dto"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/middleware"
	"github.com/Hjhirp/voice-auth-microservice/internal/orchestrator"
)

// VerifyHandler serves POST /v1/verify and POST /v1/webhook/verify.
type VerifyHandler struct {
	orch *orchestrator.Orchestrator
}

func NewVerifyHandler(orch *orchestrator.Orchestrator) *VerifyHandler {
	return &VerifyHandler{orch: orch}
}

func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[dto.VerifyRequest](r, w)
	if !ok {
		return
	}
	if req.Phone == "" {
		respondError(w, "invalid_request", "phone is required", http.StatusBadRequest)
		return
	}
	if req.ListenURL == "" {
		respondError(w, "invalid_request", "listenUrl is required", http.StatusBadRequest)
		return
	}

	h.verify(w, r, req.Phone, req.ListenURL)
}

// Webhook serves POST /v1/webhook/verify, unwrapping the provider envelope
// before delegating to the same Verify path.
func (h *VerifyHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	envelope, ok := decodeJSON[dto.WebhookEnvelope](r, w)
	if !ok {
		return
	}

	phone := envelope.Phone()
	if phone == "" {
		respondError(w, "MissingPhoneNumber", "missing customer phone number", http.StatusBadRequest)
		return
	}
	listenURL := envelope.ListenURL()
	if listenURL == "" {
		respondError(w, "MissingListenURL", "missing monitor listenUrl", http.StatusBadRequest)
		return
	}

	h.verify(w, r, phone, listenURL)
}

func (h *VerifyHandler) verify(w http.ResponseWriter, r *http.Request, phone, listenURL string) {
	callID := middleware.CallIDFromContext(r.Context())

	result, err := h.orch.Verify(r.Context(), phone, listenURL, callID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.VerifyResponse{
		Success: result.Success,
		Message: result.Message,
		Score:   result.Score,
		Records: nil,
	})
}

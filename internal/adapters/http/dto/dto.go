// Package dto holds the wire-level request/response shapes for the HTTP
// surface, kept separate from internal/domain/models so storage and
// transport representations can evolve independently.
package dto

import "time"

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func NewErrorResponse(err, message string, code int) *ErrorResponse {
	return &ErrorResponse{Error: err, Message: message, Code: code}
}

// EnrollRequest is the body of POST /v1/enroll.
type EnrollRequest struct {
	Phone    string `json:"phone"`
	AudioURL string `json:"audioUrl"`
}

// EnrollResponse is the body of a successful enrollment.
type EnrollResponse struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// VerifyRequest is the body of POST /v1/verify.
type VerifyRequest struct {
	Phone     string `json:"phone"`
	ListenURL string `json:"listenUrl"`
}

// VerifyResponse is the body of every Verify response, whether a match,
// mismatch, or business "not enrolled" outcome.
type VerifyResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Score   *float64 `json:"score"`
	Records any      `json:"records"`
}

// WebhookEnvelope is the provider's call-event shape; phone and listenUrl
// are extracted from nested, possibly-absent fields (section 6 fallback
// paths, grounded in original_source/src/api/vapi_webhook.py).
type WebhookEnvelope struct {
	Message struct {
		Call struct {
			Customer struct {
				Number string `json:"number"`
			} `json:"customer"`
			Monitor struct {
				ListenURL string `json:"listenUrl"`
			} `json:"monitor"`
		} `json:"call"`
		Customer struct {
			Number string `json:"number"`
		} `json:"customer"`
	} `json:"message"`
}

// Phone extracts the caller number, trying message.call.customer.number
// then falling back to message.customer.number.
func (w *WebhookEnvelope) Phone() string {
	if w.Message.Call.Customer.Number != "" {
		return w.Message.Call.Customer.Number
	}
	return w.Message.Customer.Number
}

// ListenURL extracts the live-audio WebSocket URL.
func (w *WebhookEnvelope) ListenURL() string {
	return w.Message.Call.Monitor.ListenURL
}

// AttemptDTO is one row of an auth-history response.
type AttemptDTO struct {
	ID        int64     `json:"id"`
	Success   bool      `json:"success"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthHistoryResponse is the body of GET /v1/users/{phone}/auth-history.
type AuthHistoryResponse struct {
	Phone    string       `json:"phone"`
	Attempts []AttemptDTO `json:"attempts"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ServiceHealth is one dependency's status in the detailed health report.
type ServiceHealth struct {
	Status    string  `json:"status"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// DetailedHealthResponse is the body of GET /healthz/detailed.
type DetailedHealthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Services map[string]ServiceHealth `json:"services"`
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	allowedOrigins := []string{"http://localhost:3000", "https://example.com"}
	handler := CORS(allowedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	tests := []struct {
		name                   string
		method                 string
		origin                 string
		expectAllowOrigin      string
		expectAllowCredentials string
		expectStatusCode       int
	}{
		{
			name:                   "allowed origin with credentials",
			method:                 "GET",
			origin:                 "http://localhost:3000",
			expectAllowOrigin:      "http://localhost:3000",
			expectAllowCredentials: "true",
			expectStatusCode:       http.StatusOK,
		},
		{
			name:                   "disallowed origin",
			method:                 "GET",
			origin:                 "https://evil.com",
			expectAllowOrigin:      "",
			expectAllowCredentials: "",
			expectStatusCode:       http.StatusOK,
		},
		{
			name:                   "preflight allowed origin",
			method:                 "OPTIONS",
			origin:                 "https://example.com",
			expectAllowOrigin:      "https://example.com",
			expectAllowCredentials: "true",
			expectStatusCode:       http.StatusNoContent,
		},
		{
			name:                   "preflight disallowed origin",
			method:                 "OPTIONS",
			origin:                 "https://evil.com",
			expectAllowOrigin:      "",
			expectAllowCredentials: "",
			expectStatusCode:       http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectStatusCode {
				t.Errorf("expected status %d, got %d", tt.expectStatusCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.expectAllowOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tt.expectAllowOrigin, got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.expectAllowCredentials {
				t.Errorf("expected Allow-Credentials %q, got %q", tt.expectAllowCredentials, got)
			}
			if rr.Header().Get("Access-Control-Expose-Headers") == "" {
				t.Error("Access-Control-Expose-Headers should be set")
			}
		})
	}
}

func TestCORS_NeverWildcardsWithCredentials(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") == "*" {
		t.Error("should never echo a wildcard origin when credentials are allowed")
	}
}

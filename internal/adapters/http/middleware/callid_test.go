package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := CallID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get("X-Call-ID"))
}

func TestCallID_EchoesClientSupplied(t *testing.T) {
	var seen string
	handler := CallID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Call-ID", "call_client_supplied")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "call_client_supplied", seen)
	assert.Equal(t, "call_client_supplied", rr.Header().Get("X-Call-ID"))
}

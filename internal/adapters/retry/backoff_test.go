package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"connection refused", &net.OpError{Err: syscall.ECONNREFUSED}, true},
		{"connection reset", &net.OpError{Err: syscall.ECONNRESET}, true},
		{"broken pipe", &net.OpError{Err: syscall.EPIPE}, true},
		{"generic error", errors.New("some error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			if got := IsRetryableHTTPStatus(tt.statusCode); got != tt.expected {
				t.Errorf("IsRetryableHTTPStatus(%d) = %v, want %v", tt.statusCode, got, tt.expected)
			}
		})
	}
}

// fastConfig mirrors HTTPConfig's shape but with millisecond intervals so
// these tests don't spend real wall-clock time waiting out the embedding
// client's production backoff schedule.
func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

// embedPost sends wav to srv the same way embeddingclient.extractOnce posts
// to the embedding service's /embed endpoint, returning the status code
// WithBackoffHTTP's callback expects.
func embedPost(ctx context.Context, srv *httptest.Server) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/embed", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// TestWithBackoffHTTP_EmbeddingServiceRecovers models the embedding service
// flapping -- 503 twice while warming up, then serving the embedding -- the
// way embeddingclient.Extract relies on WithBackoffHTTP to ride out.
func TestWithBackoffHTTP_EmbeddingServiceRecovers(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"embedding":[0.1,0.2]}`))
	}))
	defer srv.Close()

	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		return embedPost(context.Background(), srv)
	})

	if err != nil {
		t.Fatalf("WithBackoffHTTP() error = %v, want nil", err)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

// TestWithBackoffHTTP_EmbeddingServiceDown models the embedding service
// staying down for the whole retry budget, as KindEmbeddingUnavailable
// expects.
func TestWithBackoffHTTP_EmbeddingServiceDown(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastConfig()
	err := WithBackoffHTTP(context.Background(), cfg, func() (int, error) {
		return embedPost(context.Background(), srv)
	})

	if err == nil {
		t.Fatal("WithBackoffHTTP() error = nil, want non-nil")
	}
	if want := cfg.MaxRetries + 1; requests != want {
		t.Errorf("requests = %d, want %d", requests, want)
	}
}

// TestWithBackoffHTTP_MalformedRequestNotRetried models the embedding
// service rejecting a body it considers malformed (400): the request is
// not retried, so embeddingclient surfaces KindEmbeddingUnavailable
// immediately rather than spend its retry budget on a request that will
// never succeed.
func TestWithBackoffHTTP_MalformedRequestNotRetried(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		return embedPost(context.Background(), srv)
	})

	if err == nil {
		t.Fatal("WithBackoffHTTP() error = nil, want non-nil")
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (4xx must not be retried)", requests)
	}
}

// TestWithBackoffHTTP_DialFailureThenRecovers models the dial-failure case
// embeddingclient sees when the embedding service hasn't finished starting:
// connection refused should be retried like a 5xx.
func TestWithBackoffHTTP_DialFailureThenRecovers(t *testing.T) {
	attempts := 0
	fn := func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
		}
		return http.StatusOK, nil
	}

	if err := WithBackoffHTTP(context.Background(), fastConfig(), fn); err != nil {
		t.Fatalf("WithBackoffHTTP() error = %v, want nil", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

// TestWithBackoffHTTP_CallerCancelStopsRetries models a client disconnecting
// mid-verify (section 5's cancellation rule): the retry loop must give up
// promptly rather than exhaust its own backoff schedule.
func TestWithBackoffHTTP_CallerCancelStopsRetries(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxRetries:      5,
		Multiplier:      2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	fn := func() (int, error) {
		attempts++
		return 0, &net.OpError{Err: syscall.ECONNREFUSED}
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := WithBackoffHTTP(ctx, cfg, fn)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithBackoffHTTP() error = %v, want context.Canceled", err)
	}
	if attempts < 1 {
		t.Errorf("attempts = %d, want at least 1", attempts)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.InitialInterval != 1*time.Second || cfg.MaxInterval != 30*time.Second || cfg.MaxRetries != 3 || cfg.Multiplier != 2.0 {
		t.Errorf("DefaultConfig() = %+v, unexpected defaults", cfg)
	}
}

func TestHTTPConfig(t *testing.T) {
	cfg := HTTPConfig()
	if cfg.InitialInterval != 1*time.Second || cfg.MaxInterval != 30*time.Second || cfg.MaxRetries != 3 || cfg.Multiplier != 2.0 {
		t.Errorf("HTTPConfig() = %+v, unexpected defaults", cfg)
	}
}

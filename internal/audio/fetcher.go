package audio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// maxDownloadBytes caps the response body read for a single fetch so a
// misbehaving upstream cannot exhaust memory -- an ambient hardening
// detail, not a spec invariant, modeled on the teacher's
// http.MaxBytesReader use in its JSON decode helper.
const maxDownloadBytes = 32 << 20 // 32 MiB

// DefaultFetchTimeout is the hard timeout applied when the caller doesn't
// pass one explicitly.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher implements ports.AudioFetcher: a single bounded GET, no retries
// (retry policy is the Orchestrator's call, per section 4.2/7).
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:  &http.Client{},
		Timeout: DefaultFetchTimeout,
	}
}

var _ ports.AudioFetcher = (*Fetcher)(nil)

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.New(domain.KindFetchHTTPStatus, "download", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.New(domain.KindFetchTimeout, "download", err)
		}
		return nil, domain.New(domain.KindFetchHTTPStatus, "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewDetail(domain.KindFetchHTTPStatus, "download", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.New(domain.KindFetchTimeout, "download", err)
		}
		return nil, domain.New(domain.KindFetchHTTPStatus, "download", err)
	}

	if len(body) > maxDownloadBytes {
		return nil, domain.NewDetail(domain.KindFetchHTTPStatus, "download", "response exceeds size ceiling")
	}
	if len(body) == 0 {
		return nil, domain.New(domain.KindEmptyDownload, "download", nil)
	}

	return body, nil
}

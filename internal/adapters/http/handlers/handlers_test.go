package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/dto"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
	"github.com/Hjhirp/voice-auth-microservice/internal/orchestrator"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
	"github.com/Hjhirp/voice-auth-microservice/internal/similarity"
)

// --- fakes shared by this package's handler tests --------------------------

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) { return f.body, f.err }

type fakeNormalizer struct {
	duration    float64
	durationErr error
}

func (n *fakeNormalizer) Normalize(ctx context.Context, input []byte) ([]byte, error) {
	return input, nil
}
func (n *fakeNormalizer) Validate(wav []byte) (bool, string) { return true, "" }
func (n *fakeNormalizer) DurationSeconds(wav []byte) (float64, error) {
	return n.duration, n.durationErr
}
func (n *fakeNormalizer) PCMToWAV(pcm []byte, sampleRate, channels, sampleWidth int) []byte {
	return pcm
}

type fakeCapture struct {
	wav []byte
	err error
}

func (c *fakeCapture) Capture(ctx context.Context, listenURL string) ([]byte, error) {
	return c.wav, c.err
}

type fakeExtractor struct {
	vec         []float64
	err         error
	valid       bool
	healthy     bool
	healthCheck bool
}

func (e *fakeExtractor) Extract(ctx context.Context, wav []byte) ([]float64, error) {
	return e.vec, e.err
}
func (e *fakeExtractor) Validate(vec []float64) bool { return e.valid }
func (e *fakeExtractor) HealthCheck(ctx context.Context) bool {
	e.healthCheck = true
	return e.healthy
}

type fakeRepo struct {
	users     map[string]*models.User
	attempts  []*models.AuthAttempt
	unhealthy bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*models.User)}
}

func (r *fakeRepo) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	r.users[user.Phone] = user
	return user, nil
}
func (r *fakeRepo) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	u, ok := r.users[phone]
	if !ok {
		return nil, ports.ErrUserNotFound
	}
	return u, nil
}
func (r *fakeRepo) DeleteUser(ctx context.Context, phone string) (bool, error) {
	_, ok := r.users[phone]
	delete(r.users, phone)
	return ok, nil
}
func (r *fakeRepo) LogAttempt(ctx context.Context, attempt *models.AuthAttempt) (*models.AuthAttempt, error) {
	attempt.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, attempt)
	return attempt, nil
}
func (r *fakeRepo) AttemptsByPhone(ctx context.Context, phone string, limit int) ([]*models.AuthAttempt, error) {
	if limit < len(r.attempts) {
		return r.attempts[:limit], nil
	}
	return r.attempts, nil
}
func (r *fakeRepo) RecentFailureCount(ctx context.Context, phone string, window time.Duration) (int, error) {
	return 0, nil
}
func (r *fakeRepo) HealthCheck(ctx context.Context) bool { return !r.unhealthy }

func fixedEmbedding(seed float64) []float64 {
	vec := make([]float64, models.EmbeddingDim)
	for i := range vec {
		vec[i] = seed + float64(i)*0.001
	}
	return vec
}

func newTestOrchestrator(repo *fakeRepo, fetcher ports.AudioFetcher, capture ports.CaptureEngine, extractor ports.EmbeddingExtractor) *orchestrator.Orchestrator {
	return orchestrator.New(fetcher, &fakeNormalizer{duration: 5.0}, capture, extractor, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)
}

// --- EnrollHandler -----------------------------------------------------------

func TestEnrollHandler_Success(t *testing.T) {
	repo := newFakeRepo()
	extractor := &fakeExtractor{vec: fixedEmbedding(1.0), valid: true}
	orch := newTestOrchestrator(repo, &fakeFetcher{body: []byte("wav")}, nil, extractor)
	h := NewEnrollHandler(orch)

	body, _ := json.Marshal(dto.EnrollRequest{Phone: "+15551230000", AudioURL: "https://host/clip.wav"})
	req := httptest.NewRequest(http.MethodPost, "/v1/enroll", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Enroll(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp dto.EnrollResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "enrolled", resp.Status)
}

func TestEnrollHandler_MissingPhoneIsBadRequest(t *testing.T) {
	orch := newTestOrchestrator(newFakeRepo(), &fakeFetcher{}, nil, &fakeExtractor{})
	h := NewEnrollHandler(orch)

	body, _ := json.Marshal(dto.EnrollRequest{AudioURL: "https://host/clip.wav"})
	req := httptest.NewRequest(http.MethodPost, "/v1/enroll", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Enroll(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEnrollHandler_DomainErrorMapsToStatus(t *testing.T) {
	repo := newFakeRepo()
	orch := newTestOrchestrator(repo, &fakeFetcher{err: domain.New(domain.KindFetchTimeout, "download", context.DeadlineExceeded)}, nil, &fakeExtractor{})
	h := NewEnrollHandler(orch)

	body, _ := json.Marshal(dto.EnrollRequest{Phone: "+15551230000", AudioURL: "https://host/clip.wav"})
	req := httptest.NewRequest(http.MethodPost, "/v1/enroll", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Enroll(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, string(domain.KindFetchTimeout), errResp.Error)
}

// --- VerifyHandler -----------------------------------------------------------

func TestVerifyHandler_NotEnrolledReturnsSuccessFalse(t *testing.T) {
	repo := newFakeRepo()
	orch := newTestOrchestrator(repo, &fakeFetcher{}, &fakeCapture{wav: []byte("wav")}, &fakeExtractor{})
	h := NewVerifyHandler(orch)

	body, _ := json.Marshal(dto.VerifyRequest{Phone: "+15559999999", ListenURL: "wss://host/stream"})
	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp dto.VerifyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Score)
}

func TestVerifyHandler_Webhook_MissingPhoneNumber(t *testing.T) {
	orch := newTestOrchestrator(newFakeRepo(), &fakeFetcher{}, nil, &fakeExtractor{})
	h := NewVerifyHandler(orch)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhook/verify", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()

	h.Webhook(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, "MissingPhoneNumber", errResp.Error)
}

func TestVerifyHandler_Webhook_ExtractsNestedPhoneAndListenURL(t *testing.T) {
	repo := newFakeRepo()
	emb := fixedEmbedding(1.0)
	repo.users["+15551230000"] = &models.User{Phone: "+15551230000", Embedding: emb, EnrolledAt: time.Now()}
	orch := newTestOrchestrator(repo, &fakeFetcher{}, &fakeCapture{wav: []byte("wav")}, &fakeExtractor{vec: emb, valid: true})
	h := NewVerifyHandler(orch)

	payload := `{"message":{"call":{"customer":{"number":"+15551230000"},"monitor":{"listenUrl":"wss://host/stream"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/webhook/verify", bytes.NewReader([]byte(payload)))
	rr := httptest.NewRecorder()

	h.Webhook(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp dto.VerifyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

// --- AuditHandler ------------------------------------------------------------

func TestAuditHandler_ReturnsAttemptHistory(t *testing.T) {
	repo := newFakeRepo()
	repo.attempts = []*models.AuthAttempt{
		{ID: 1, Phone: "+15551230000", Success: true, Score: 0.95, CreatedAt: time.Now()},
	}
	h := NewAuditHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/+15551230000/auth-history", nil)
	rr := httptest.NewRecorder()

	router := newChiRouterForAudit(h)
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp dto.AuthHistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "+15551230000", resp.Phone)
	require.Len(t, resp.Attempts, 1)
	assert.True(t, resp.Attempts[0].Success)
}

func newChiRouterForAudit(h *AuditHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/v1/users/{phone}/auth-history", h.AuthHistory)
	return r
}

// --- HealthHandler -----------------------------------------------------------

func TestHealthHandler_HealthyWhenAllDependenciesUp(t *testing.T) {
	repo := newFakeRepo()
	extractor := &fakeExtractor{healthy: true}
	h := NewHealthHandler(repo, extractor)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	h.Handle(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, extractor.healthCheck)
}

func TestHealthHandler_DetailedReportsPerDependency(t *testing.T) {
	repo := newFakeRepo()
	repo.unhealthy = true
	extractor := &fakeExtractor{healthy: true}
	h := NewHealthHandler(repo, extractor)

	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	rr := httptest.NewRecorder()

	h.HandleDetailed(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var resp dto.DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Services["database"].Status)
	assert.Equal(t, "healthy", resp.Services["embedding"].Status)
}

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
	"github.com/Hjhirp/voice-auth-microservice/internal/similarity"
)

// --- fakes -----------------------------------------------------------------

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.body, f.err
}

type fakeNormalizer struct {
	normalizeErr error
	wav          []byte
	duration     float64
	durationErr  error
}

func (n *fakeNormalizer) Normalize(ctx context.Context, input []byte) ([]byte, error) {
	if n.normalizeErr != nil {
		return nil, n.normalizeErr
	}
	if n.wav != nil {
		return n.wav, nil
	}
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
	vec   []float64
	err   error
	valid bool
}

func (e *fakeExtractor) Extract(ctx context.Context, wav []byte) ([]float64, error) {
	return e.vec, e.err
}
func (e *fakeExtractor) Validate(vec []float64) bool { return e.valid }

type fakeRepo struct {
	users    map[string]*models.User
	attempts []*models.AuthAttempt
	logErr   error
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
	if r.logErr != nil {
		return nil, r.logErr
	}
	attempt.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, attempt)
	return attempt, nil
}
func (r *fakeRepo) AttemptsByPhone(ctx context.Context, phone string, limit int) ([]*models.AuthAttempt, error) {
	return r.attempts, nil
}
func (r *fakeRepo) RecentFailureCount(ctx context.Context, phone string, window time.Duration) (int, error) {
	return 0, nil
}
func (r *fakeRepo) HealthCheck(ctx context.Context) bool { return true }

func fixedEmbedding(seed float64) []float64 {
	vec := make([]float64, models.EmbeddingDim)
	for i := range vec {
		vec[i] = seed + float64(i)*0.001
	}
	return vec
}

func newTestOrchestrator(repo *fakeRepo, fetcher ports.AudioFetcher, capture ports.CaptureEngine, extractor ports.EmbeddingExtractor) *Orchestrator {
	return New(fetcher, &fakeNormalizer{duration: 5.0}, capture, extractor, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)
}

// --- tests -------------------------------------------------------------------

func TestEnroll_HappyPath(t *testing.T) {
	repo := newFakeRepo()
	o := newTestOrchestrator(repo, &fakeFetcher{body: []byte("wav-bytes")}, nil, &fakeExtractor{vec: fixedEmbedding(1.0), valid: true})

	res, err := o.Enroll(context.Background(), "+15551230000", "https://host/ok.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "enrolled" || res.Score != 1.0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	stored, err := repo.GetUserByPhone(context.Background(), "+15551230000")
	if err != nil {
		t.Fatalf("expected stored user, got error: %v", err)
	}
	if len(stored.Embedding) != models.EmbeddingDim {
		t.Fatalf("expected %d-dim embedding, got %d", models.EmbeddingDim, len(stored.Embedding))
	}
}

func TestEnroll_TooShort(t *testing.T) {
	repo := newFakeRepo()
	o := New(&fakeFetcher{body: []byte("wav")}, &fakeNormalizer{duration: 2.0}, nil, &fakeExtractor{valid: true}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	_, err := o.Enroll(context.Background(), "+1555", "https://host/short.wav")
	if domain.KindOf(err) != domain.KindTooShort {
		t.Fatalf("expected KindTooShort, got %v (%v)", domain.KindOf(err), err)
	}
}

func TestEnroll_FetchFailure(t *testing.T) {
	repo := newFakeRepo()
	fetchErr := domain.New(domain.KindFetchHTTPStatus, "download", errors.New("404"))
	o := New(&fakeFetcher{err: fetchErr}, &fakeNormalizer{}, nil, &fakeExtractor{}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	_, err := o.Enroll(context.Background(), "+1555", "https://host/missing.wav")
	if domain.KindOf(err) != domain.KindFetchHTTPStatus {
		t.Fatalf("expected KindFetchHTTPStatus, got %v", domain.KindOf(err))
	}
}

func TestEnroll_ReplacesExistingVoiceprint(t *testing.T) {
	repo := newFakeRepo()
	o := newTestOrchestrator(repo, &fakeFetcher{body: []byte("wav")}, nil, &fakeExtractor{vec: fixedEmbedding(1.0), valid: true})

	if _, err := o.Enroll(context.Background(), "+1555", "https://host/a.wav"); err != nil {
		t.Fatalf("first enroll failed: %v", err)
	}

	o.Extractor = &fakeExtractor{vec: fixedEmbedding(9.0), valid: true}
	if _, err := o.Enroll(context.Background(), "+1555", "https://host/b.wav"); err != nil {
		t.Fatalf("second enroll failed: %v", err)
	}

	stored, _ := repo.GetUserByPhone(context.Background(), "+1555")
	if stored.Embedding[0] != fixedEmbedding(9.0)[0] {
		t.Fatalf("expected second enrollment to replace voiceprint")
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(repo.users))
	}
}

func TestVerify_NotEnrolled(t *testing.T) {
	repo := newFakeRepo()
	o := newTestOrchestrator(repo, nil, nil, nil)

	res, err := o.Verify(context.Background(), "+1555", "wss://host/listen", "call_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || res.Message != "not enrolled" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(repo.attempts) != 1 || repo.attempts[0].Success {
		t.Fatalf("expected exactly one failed attempt logged, got %+v", repo.attempts)
	}
}

func TestVerify_MatchSucceeds(t *testing.T) {
	repo := newFakeRepo()
	repo.users["+1555"] = models.NewUser("+1555", fixedEmbedding(1.0), time.Now())

	o := New(nil, &fakeNormalizer{duration: 5.0}, &fakeCapture{wav: []byte("live-wav")}, &fakeExtractor{vec: fixedEmbedding(1.0), valid: true}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	res, err := o.Verify(context.Background(), "+1555", "wss://host/listen", "call_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected match, got %+v", res)
	}
	if len(repo.attempts) != 1 || !repo.attempts[0].Success {
		t.Fatalf("expected one successful attempt logged, got %+v", repo.attempts)
	}
}

func TestVerify_MismatchFails(t *testing.T) {
	repo := newFakeRepo()
	repo.users["+1555"] = models.NewUser("+1555", fixedEmbedding(1.0), time.Now())

	o := New(nil, &fakeNormalizer{duration: 5.0}, &fakeCapture{wav: []byte("live-wav")}, &fakeExtractor{vec: fixedEmbedding(99.0), valid: true}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	res, err := o.Verify(context.Background(), "+1555", "wss://host/listen", "call_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if len(repo.attempts) != 1 {
		t.Fatalf("expected exactly one attempt logged, got %d", len(repo.attempts))
	}
}

func TestVerify_CaptureFailureLogsAttemptOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.users["+1555"] = models.NewUser("+1555", fixedEmbedding(1.0), time.Now())

	captureErr := domain.New(domain.KindConnectionClosed, "capture", nil)
	o := New(nil, &fakeNormalizer{duration: 5.0}, &fakeCapture{err: captureErr}, &fakeExtractor{}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	_, err := o.Verify(context.Background(), "+1555", "wss://host/listen", "call_1")
	if domain.KindOf(err) != domain.KindConnectionClosed {
		t.Fatalf("expected KindConnectionClosed, got %v", domain.KindOf(err))
	}
	if len(repo.attempts) != 1 {
		t.Fatalf("expected exactly one attempt logged, got %d", len(repo.attempts))
	}
}

func TestVerify_ClientCancelLogsNoAttempt(t *testing.T) {
	repo := newFakeRepo()
	repo.users["+1555"] = models.NewUser("+1555", fixedEmbedding(1.0), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	captureErr := errors.New("read tcp: use of closed network connection")
	o := New(nil, &fakeNormalizer{duration: 5.0}, &fakeCapture{err: captureErr}, &fakeExtractor{}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	_, err := o.Verify(ctx, "+1555", "wss://host/listen", "call_1")
	if err == nil {
		t.Fatalf("expected error on client cancellation")
	}
	if len(repo.attempts) != 0 {
		t.Fatalf("expected no attempt logged on client cancel, got %d", len(repo.attempts))
	}
}

func TestVerify_LogAttemptFailureDoesNotChangeResult(t *testing.T) {
	repo := newFakeRepo()
	repo.users["+1555"] = models.NewUser("+1555", fixedEmbedding(1.0), time.Now())
	repo.logErr = errors.New("db down")

	o := New(nil, &fakeNormalizer{duration: 5.0}, &fakeCapture{wav: []byte("live-wav")}, &fakeExtractor{vec: fixedEmbedding(1.0), valid: true}, similarity.NewJudge(), repo, similarity.DefaultThreshold, 3.0)

	res, err := o.Verify(context.Background(), "+1555", "wss://host/listen", "call_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected match despite log failure, got %+v", res)
	}
}

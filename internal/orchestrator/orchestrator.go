// Package orchestrator implements Enroll and Verify (C7): the two public
// operations that compose the audio, embedding, similarity, and repository
// ports into the enrollment and authentication data flows.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/metrics"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/tracing"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
	"github.com/Hjhirp/voice-auth-microservice/internal/shared/id"
)

var tracer = tracing.Tracer("voiceauth-orchestrator")

// MinEnrollDuration and MinVerifyDuration are the duration gates from
// section 4.7; they are fields on Orchestrator (not package constants) so
// MIN_AUDIO_DURATION can override the enrollment gate per deployment.
const DefaultMinVerifyDuration = 1.0

// Orchestrator wires C1-C6 behind the Enroll/Verify operations.
type Orchestrator struct {
	Fetcher    ports.AudioFetcher
	Normalizer ports.AudioNormalizer
	Capture    ports.CaptureEngine
	Extractor  ports.EmbeddingExtractor
	Judge      ports.SimilarityJudge
	Repo       ports.UserRepository

	Threshold         float64
	MinEnrollDuration float64
	MinVerifyDuration float64
}

func New(
	fetcher ports.AudioFetcher,
	normalizer ports.AudioNormalizer,
	capture ports.CaptureEngine,
	extractor ports.EmbeddingExtractor,
	judge ports.SimilarityJudge,
	repo ports.UserRepository,
	threshold float64,
	minEnrollDuration float64,
) *Orchestrator {
	return &Orchestrator{
		Fetcher:           fetcher,
		Normalizer:        normalizer,
		Capture:           capture,
		Extractor:         extractor,
		Judge:             judge,
		Repo:              repo,
		Threshold:         threshold,
		MinEnrollDuration: minEnrollDuration,
		MinVerifyDuration: DefaultMinVerifyDuration,
	}
}

// EnrollResult is returned by Enroll on success.
type EnrollResult struct {
	Status string
	Score  float64
}

// Enroll fetches audio_url, normalizes and embeds it, and stores the
// resulting voiceprint for phone, replacing any prior enrollment (P5).
func (o *Orchestrator) Enroll(ctx context.Context, phone, audioURL string) (*EnrollResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Enroll", trace.WithAttributes(
		attribute.String("voiceauth.phone", phone),
	))
	defer span.End()

	result, err := o.enroll(ctx, phone, audioURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.EnrollTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
	} else {
		metrics.EnrollTotal.WithLabelValues("enrolled").Inc()
	}
	return result, err
}

func (o *Orchestrator) enroll(ctx context.Context, phone, audioURL string) (*EnrollResult, error) {
	raw, err := o.Fetcher.Fetch(ctx, audioURL)
	if err != nil {
		return nil, wrapStage(err, "download")
	}

	wav, err := o.Normalizer.Normalize(ctx, raw)
	if err != nil {
		return nil, wrapStage(err, "processing")
	}

	dur, err := o.Normalizer.DurationSeconds(wav)
	if err != nil {
		return nil, wrapStage(err, "processing")
	}
	if dur < o.MinEnrollDuration {
		return nil, domain.NewDetail(domain.KindTooShort, "processing", fmt.Sprintf("duration %.2fs below minimum %.2fs", dur, o.MinEnrollDuration))
	}

	vec, err := o.Extractor.Extract(ctx, wav)
	if err != nil {
		return nil, wrapStage(err, "embedding")
	}
	if !o.Extractor.Validate(vec) {
		return nil, domain.New(domain.KindEmbeddingInvalid, "embedding", nil)
	}

	user := models.NewUser(phone, vec, time.Now().UTC())
	if _, err := o.Repo.UpsertUser(ctx, user); err != nil {
		return nil, domain.New(domain.KindStoreError, "store", err)
	}

	return &EnrollResult{Status: "enrolled", Score: 1.0}, nil
}

// VerifyResult is always returned alongside a nil error for every
// business outcome (match, mismatch, not-enrolled, too-short); only
// connection/capture/store failures surface as errors.
type VerifyResult struct {
	Success bool
	Message string
	Score   *float64
}

// Verify captures live audio from listenURL and compares it against phone's
// stored voiceprint. Exactly one AuthAttempt is logged for any call that
// reaches a comparison result, plus the not-enrolled and capture-failure
// paths; a client-cancelled request logs nothing (P6).
func (o *Orchestrator) Verify(ctx context.Context, phone, listenURL, callID string) (*VerifyResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Verify", trace.WithAttributes(
		attribute.String("voiceauth.phone", phone),
		attribute.String("voiceauth.call_id", callID),
	))
	defer span.End()

	result, err := o.verify(ctx, phone, listenURL, callID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.VerifyTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
	} else {
		span.SetAttributes(attribute.Bool("voiceauth.success", result.Success))
		outcome := "mismatch"
		if result.Success {
			outcome = "match"
		}
		metrics.VerifyTotal.WithLabelValues(outcome).Inc()
		if result.Score != nil {
			metrics.VerifyScore.Observe(*result.Score)
		}
	}
	return result, err
}

func (o *Orchestrator) verify(ctx context.Context, phone, listenURL, callID string) (*VerifyResult, error) {
	user, err := o.Repo.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			o.logAttempt(ctx, phone, false, 0.0, callID)
			return &VerifyResult{Success: false, Message: "not enrolled"}, nil
		}
		return nil, domain.New(domain.KindStoreError, "store", err)
	}

	wav, err := o.Capture.Capture(ctx, listenURL)
	if err != nil {
		if ctx.Err() != nil {
			// Client aborted; the attempt has no outcome, so it is not logged.
			return nil, domain.New(domain.KindConnectionError, "capture", ctx.Err())
		}
		o.logAttempt(ctx, phone, false, 0.0, callID)
		switch domain.KindOf(err) {
		case domain.KindConnectionClosed:
			return nil, domain.New(domain.KindConnectionClosed, "capture", err)
		case domain.KindNoAudioCaptured:
			return nil, domain.New(domain.KindNoAudioCaptured, "capture", err)
		default:
			return nil, domain.New(domain.KindConnectionError, "capture", err)
		}
	}

	dur, err := o.Normalizer.DurationSeconds(wav)
	if err != nil {
		o.logAttempt(ctx, phone, false, 0.0, callID)
		return &VerifyResult{Success: false, Message: "audio too short"}, nil
	}
	if dur < o.MinVerifyDuration {
		o.logAttempt(ctx, phone, false, 0.0, callID)
		return &VerifyResult{Success: false, Message: "audio too short"}, nil
	}

	live, err := o.Extractor.Extract(ctx, wav)
	if err != nil || !o.Extractor.Validate(live) {
		o.logAttempt(ctx, phone, false, 0.0, callID)
		return &VerifyResult{Success: false, Message: "processing failed"}, nil
	}

	threshold := o.Threshold

	match, score, err := o.Judge.Decide(user.Embedding, live, threshold)
	if err != nil {
		o.logAttempt(ctx, phone, false, 0.0, callID)
		return &VerifyResult{Success: false, Message: "processing failed"}, nil
	}

	o.logAttempt(ctx, phone, match, score, callID)

	message := "verification successful"
	if !match {
		message = fmt.Sprintf("verification failed: %.4f < %.4f", score, threshold)
	}
	scoreCopy := score
	return &VerifyResult{Success: match, Message: message, Score: &scoreCopy}, nil
}

// logAttempt writes the audit row for one Verify call. Failures are
// swallowed per section 7 rule 2: attempt logging never changes the
// caller-visible result.
func (o *Orchestrator) logAttempt(ctx context.Context, phone string, success bool, score float64, callID string) {
	attempt := models.NewAttempt(phone, success, score, callID)
	attempt.ExternalID = id.NewAttempt()

	if _, err := o.Repo.LogAttempt(ctx, attempt); err != nil {
		log.Printf("orchestrator: failed to log attempt phone=%s call_id=%s: %v", phone, callID, err)
	}
}

// wrapStage relabels err with the orchestrator-level stage name (section
// 4.7's "download"/"processing"/"embedding" labels) so logs reflect where in
// Enroll/Verify the failure surfaced, regardless of which stage label the
// originating adapter attached. The Kind that drives HTTP status mapping is
// always preserved.
func wrapStage(err error, stage string) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return &domain.Error{Kind: derr.Kind, Stage: stage, Cause: derr.Cause, Detail: derr.Detail}
	}
	return domain.New(domain.KindInternalError, stage, err)
}

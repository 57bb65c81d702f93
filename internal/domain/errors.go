// Package domain holds error kinds and the wrapper type shared by every
// component in the enrollment/verification pipeline. Components return
// *Error values built with New/NewDetail; the HTTP boundary reads their Kind
// with KindOf (errors.As) and maps it to a status code instead of string
// matching.
package domain

import "errors"

// Kind identifies a taxonomy entry from the error handling design. Its
// string value is what dto.ErrorResponse.Error carries to an HTTP caller.
type Kind string

const (
	KindEmptyInput           Kind = "empty_input"
	KindUnsupportedOrCorrupt Kind = "unsupported_or_corrupt"
	KindTruncatedHeader      Kind = "truncated_header"
	KindValidationFailed     Kind = "validation_failed"
	KindTooShort             Kind = "too_short"

	KindFetchTimeout     Kind = "fetch_timeout"
	KindFetchHTTPStatus  Kind = "fetch_http_status"
	KindEmptyDownload    Kind = "empty_download"

	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindEmbeddingTimeout     Kind = "embedding_timeout"
	KindEmbeddingInvalid     Kind = "embedding_invalid"
	KindWaveformTooShort     Kind = "waveform_too_short"

	KindConnectionError  Kind = "connection_error"
	KindConnectionClosed Kind = "connection_closed"
	KindNoAudioCaptured  Kind = "no_audio_captured"

	KindStoreError     Kind = "store_error"
	KindNotEnrolled    Kind = "not_enrolled"
	KindMissingPhone   Kind = "missing_phone_number"
	KindMissingListen  Kind = "missing_listen_url"
	KindInternalError  Kind = "internal_error"
)

// Error wraps an upstream cause with a taxonomy Kind. The Kind is the only
// part of the error that crosses the HTTP boundary in the response body;
// Cause is logged, never rendered to the caller.
type Error struct {
	Kind    Kind
	Stage   string // which orchestrator step produced it, e.g. "download", "processing"
	Cause   error
	Detail  string // human-readable detail safe to log (never a secret)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	if e.Detail != "" {
		return string(e.Kind) + ": " + e.Detail
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, domain.New(KindTooShort, ...)) style matching by
// Kind alone, independent of Cause/Detail.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a taxonomy error for the given kind.
func New(kind Kind, stage string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Cause: cause}
}

// NewDetail constructs a taxonomy error carrying a loggable detail string
// instead of (or in addition to) a wrapped cause.
func NewDetail(kind Kind, stage, detail string) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: detail}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, returning
// KindInternalError otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalError
}

// Package capture implements the Live Capture Engine (C3): a WebSocket
// audio-stream consumer driven by a silence-gated endpointing state
// machine. fsm.go isolates the transition logic as pure functions over
// (state, event) so the silence-timer invariants are unit-testable without
// any network I/O, per the design notes.
package capture

import (
	"math"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateCapturing
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateCapturing:
		return "capturing"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind distinguishes why a session ended in StateFailed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConnectionError
	FailureConnectionClosed
	FailureNoAudioCaptured
)

// Params are the endpointing configuration values from section 4.3.
type Params struct {
	MinDuration      time.Duration
	SilenceThreshold float64
	SilenceDuration  time.Duration
	MaxDuration      time.Duration
	ConnectTimeout   time.Duration
}

// DefaultParams matches the documented configuration defaults.
func DefaultParams() Params {
	return Params{
		MinDuration:      3 * time.Second,
		SilenceThreshold: 0.01,
		SilenceDuration:  2 * time.Second,
		MaxDuration:      30 * time.Second,
		ConnectTimeout:   10 * time.Second,
	}
}

// SessionState is the mutable capture-time state threaded through the pure
// transition functions. The PCM buffer is owned by the caller, which also
// appends to it; the fsm functions only track HasFrames (set by
// OnAudioFrame) to decide NoAudioCaptured.
type SessionState struct {
	State          State
	Failure        FailureKind
	CaptureStart   time.Time
	SilenceStart   *time.Time // nil means "not currently silent"
	HasFrames      bool
}

// NewSessionState begins a session in StateIdle.
func NewSessionState() *SessionState {
	return &SessionState{State: StateIdle}
}

// OnConnecting transitions Idle -> Connecting.
func (s *SessionState) OnConnecting() {
	s.State = StateConnecting
}

// OnOpen transitions Connecting -> Capturing and records capture_start_ts.
func (s *SessionState) OnOpen(now time.Time) {
	s.State = StateCapturing
	s.CaptureStart = now
	s.SilenceStart = nil
}

// OnConnectFailure transitions Connecting -> Failed(ConnectionError).
func (s *SessionState) OnConnectFailure() {
	s.State = StateFailed
	s.Failure = FailureConnectionError
}

// OnAudioFrame applies the silence-timer rules (section 4.3, steps 1-5) for
// one audio-bearing frame and reports whether stop_condition now holds. A
// zero-length pcm chunk is a no-op per the parse-error policy and never
// reaches here -- callers filter those out before calling OnAudioFrame.
func (s *SessionState) OnAudioFrame(pcm []byte, now time.Time, p Params) (stop bool) {
	if len(pcm) == 0 {
		return s.stopCondition(now, p)
	}

	amplitude := rmsAmplitude(pcm)
	isSilence := amplitude < p.SilenceThreshold

	if isSilence {
		if s.SilenceStart == nil {
			t := now
			s.SilenceStart = &t
		}
	} else {
		s.SilenceStart = nil
	}

	if now.Sub(s.CaptureStart) < p.MinDuration {
		s.SilenceStart = nil
	}

	s.HasFrames = true
	return s.stopCondition(now, p)
}

// rmsAmplitude computes sqrt(mean(x^2))/32767, the [0,1] amplitude proxy
// from the glossary.
func rmsAmplitude(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i < n; i++ {
		sample := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		f := float64(sample)
		sumSquares += f * f
	}
	meanSquare := sumSquares / float64(n)
	return math.Sqrt(meanSquare) / 32767.0
}

// stopCondition implements section 4.3's stop_condition: max duration
// elapsed, or silence has persisted for silence_duration.
func (s *SessionState) stopCondition(now time.Time, p Params) bool {
	if now.Sub(s.CaptureStart) >= p.MaxDuration {
		return true
	}
	if s.SilenceStart != nil && now.Sub(*s.SilenceStart) >= p.SilenceDuration {
		return true
	}
	return false
}

// OnRemoteClose handles "Capturing -- remote close" per the diagram:
// Failed(ConnectionClosed) if no frames were ever buffered, else Draining.
func (s *SessionState) OnRemoteClose() {
	if !s.HasFrames {
		s.State = StateFailed
		s.Failure = FailureConnectionClosed
		return
	}
	s.State = StateDraining
}

// OnStopCondition transitions Capturing -> Draining.
func (s *SessionState) OnStopCondition() {
	s.State = StateDraining
}

// OnDrainComplete transitions Draining -> Done if PCM was buffered, else
// Failed(NoAudioCaptured).
func (s *SessionState) OnDrainComplete() {
	if !s.HasFrames {
		s.State = StateFailed
		s.Failure = FailureNoAudioCaptured
		return
	}
	s.State = StateDone
}

package capture

import (
	"testing"
	"time"
)

func silentFrame(n int) []byte {
	return make([]byte, n*2)
}

func loudFrame(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		buf[2*i] = 0xff
		buf[2*i+1] = 0x7f // 32767, max amplitude sample
	}
	return buf
}

func TestOnAudioFrame_LoudResetsSilenceTimer(t *testing.T) {
	p := DefaultParams()
	s := NewSessionState()
	s.OnConnecting()
	start := time.Now()
	s.OnOpen(start)

	// Well past min_duration so silence timing applies.
	s.CaptureStart = start.Add(-p.MinDuration - time.Second)

	if stop := s.OnAudioFrame(silentFrame(100), start, p); stop {
		t.Fatalf("unexpected stop on first silent frame")
	}
	if s.SilenceStart == nil {
		t.Fatalf("expected silence timer to start")
	}

	// A loud frame shortly after should clear the silence timer.
	if stop := s.OnAudioFrame(loudFrame(100), start.Add(500*time.Millisecond), p); stop {
		t.Fatalf("unexpected stop after loud frame")
	}
	if s.SilenceStart != nil {
		t.Fatalf("expected silence timer to reset after loud frame")
	}
}

func TestOnAudioFrame_StopsAfterSilenceDurationElapsed(t *testing.T) {
	p := DefaultParams()
	s := NewSessionState()
	s.OnConnecting()
	start := time.Now()
	s.OnOpen(start)
	s.CaptureStart = start.Add(-p.MinDuration - time.Second)

	s.OnAudioFrame(silentFrame(100), start, p)
	stop := s.OnAudioFrame(silentFrame(100), start.Add(p.SilenceDuration+time.Millisecond), p)
	if !stop {
		t.Fatalf("expected stop_condition once silence_duration elapses")
	}
}

// B3: silence_duration=0 and min_duration=0 means the very first silent
// frame already satisfies stop_condition.
func TestOnAudioFrame_ZeroDurations_StopsImmediately(t *testing.T) {
	p := Params{
		MinDuration:      0,
		SilenceThreshold: 0.01,
		SilenceDuration:  0,
		MaxDuration:      30 * time.Second,
		ConnectTimeout:   10 * time.Second,
	}
	s := NewSessionState()
	s.OnConnecting()
	start := time.Now()
	s.OnOpen(start)

	stop := s.OnAudioFrame(silentFrame(100), start, p)
	if !stop {
		t.Fatalf("expected immediate stop with zero min/silence durations")
	}
}

// B4: with no audio frame ever seen, stopCondition's elapsed-time check
// still reports stop once max_duration has elapsed, independent of
// OnAudioFrame ever being called. (Engine.Capture itself ends such a stream
// through its max_duration read deadline.)
func TestStopCondition_MaxDurationElapsedWithNoFrames(t *testing.T) {
	p := DefaultParams()
	s := NewSessionState()
	s.OnConnecting()
	start := time.Now()
	s.OnOpen(start)

	if s.stopCondition(start.Add(p.MaxDuration-time.Millisecond), p) {
		t.Fatalf("should not stop before max_duration elapses")
	}
	if !s.stopCondition(start.Add(p.MaxDuration), p) {
		t.Fatalf("expected stop_condition once max_duration elapses")
	}
}

func TestOnRemoteClose_NoFramesIsConnectionClosed(t *testing.T) {
	s := NewSessionState()
	s.OnConnecting()
	s.OnOpen(time.Now())
	s.OnRemoteClose()

	if s.State != StateFailed || s.Failure != FailureConnectionClosed {
		t.Fatalf("expected Failed(ConnectionClosed), got state=%v failure=%v", s.State, s.Failure)
	}
}

func TestOnRemoteClose_WithFramesDrains(t *testing.T) {
	p := DefaultParams()
	s := NewSessionState()
	s.OnConnecting()
	start := time.Now()
	s.OnOpen(start)
	s.OnAudioFrame(loudFrame(100), start, p)

	s.OnRemoteClose()
	if s.State != StateDraining {
		t.Fatalf("expected Draining after remote close with buffered frames, got %v", s.State)
	}
}

func TestOnDrainComplete_NoFramesIsNoAudioCaptured(t *testing.T) {
	s := NewSessionState()
	s.OnConnecting()
	s.OnOpen(time.Now())
	s.OnStopCondition()
	s.OnDrainComplete()

	if s.State != StateFailed || s.Failure != FailureNoAudioCaptured {
		t.Fatalf("expected Failed(NoAudioCaptured), got state=%v failure=%v", s.State, s.Failure)
	}
}

func TestOnDrainComplete_WithFramesIsDone(t *testing.T) {
	p := DefaultParams()
	s := NewSessionState()
	s.OnConnecting()
	start := time.Now()
	s.OnOpen(start)
	s.OnAudioFrame(loudFrame(100), start, p)
	s.OnStopCondition()
	s.OnDrainComplete()

	if s.State != StateDone {
		t.Fatalf("expected Done, got %v", s.State)
	}
}

func TestOnConnectFailure(t *testing.T) {
	s := NewSessionState()
	s.OnConnecting()
	s.OnConnectFailure()

	if s.State != StateFailed || s.Failure != FailureConnectionError {
		t.Fatalf("expected Failed(ConnectionError), got state=%v failure=%v", s.State, s.Failure)
	}
}

func TestRMSAmplitude_SilenceAndFullScale(t *testing.T) {
	if amp := rmsAmplitude(silentFrame(50)); amp != 0 {
		t.Fatalf("expected 0 amplitude for silence, got %v", amp)
	}
	amp := rmsAmplitude(loudFrame(50))
	if amp < 0.99 || amp > 1.0 {
		t.Fatalf("expected near-1.0 amplitude for full-scale samples, got %v", amp)
	}
}

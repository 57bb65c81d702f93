package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/metrics"
	"github.com/Hjhirp/voice-auth-microservice/internal/audio"
	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// frame is the WebSocket wire envelope from section 6: a JSON object that
// optionally carries base64 PCM under "audio". Unknown fields are ignored;
// frames without "audio" don't affect timers.
type frame struct {
	Audio string `json:"audio"`
}

// Engine implements ports.CaptureEngine: it dials listenURL, reads UTF-8
// JSON text frames, and drives the endpointing FSM until Done or Failed,
// dialed the way the teacher's voice/wsclient.go dials its backend
// connection (explicit HandshakeTimeout, context-aware DialContext), but
// consuming plain JSON/base64 text frames instead of the teacher's binary
// envelope protocol -- that wire shape is fixed by this system's own
// contract, not inherited from the teacher.
type Engine struct {
	Params Params
	Dialer *websocket.Dialer
}

func NewEngine(params Params) *Engine {
	return &Engine{
		Params: params,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: params.ConnectTimeout,
		},
	}
}

var _ ports.CaptureEngine = (*Engine)(nil)

// Capture runs one capture session against listenURL and returns a
// canonical WAV blob assembled from the concatenated PCM payloads.
func (e *Engine) Capture(ctx context.Context, listenURL string) ([]byte, error) {
	captureStart := time.Now()
	defer func() { metrics.CaptureDuration.Observe(time.Since(captureStart).Seconds()) }()

	state := NewSessionState()
	state.OnConnecting()

	dialer := e.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: e.Params.ConnectTimeout}
	}

	connectCtx, cancel := context.WithTimeout(ctx, e.Params.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(connectCtx, listenURL, http.Header{})
	if err != nil {
		state.OnConnectFailure()
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, domain.NewDetail(domain.KindConnectionError, "connect", fmt.Sprintf("dial failed (status=%d): %v", status, err))
	}
	defer conn.Close()

	state.OnOpen(time.Now())

	var pcmBuf []byte
	maxDeadline := time.Now().Add(e.Params.MaxDuration)
	if err := conn.SetReadDeadline(maxDeadline); err != nil {
		log.Printf("capture: failed to set read deadline: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, domain.New(domain.KindConnectionError, "connect", ctx.Err())
		default:
		}

		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			// A timed-out read means the max_duration deadline fired, not a
			// remote close -- that's a stop_condition regardless of whether
			// any audio frame ever arrived to evaluate it (B4: an all-JSON,
			// no-audio stream never reaches OnAudioFrame at all).
			var netErr net.Error
			if (errors.As(err, &netErr) && netErr.Timeout()) || !time.Now().Before(maxDeadline) {
				state.OnStopCondition()
				break
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("capture: read error: %v", err)
			}
			state.OnRemoteClose()
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			// Parse-error policy: log and skip, never reset timers.
			log.Printf("capture: skipping non-JSON frame: %v", err)
			continue
		}
		if f.Audio == "" {
			continue
		}

		pcm, err := base64.StdEncoding.DecodeString(f.Audio)
		if err != nil {
			log.Printf("capture: skipping frame with invalid base64 audio: %v", err)
			continue
		}
		if len(pcm) == 0 {
			continue
		}

		pcmBuf = append(pcmBuf, pcm...)
		now := time.Now()
		stop := state.OnAudioFrame(pcm, now, e.Params)
		if stop {
			state.OnStopCondition()
			break
		}
	}

	if state.State == StateFailed && state.Failure == FailureConnectionClosed {
		return nil, domain.New(domain.KindConnectionClosed, "capture", nil)
	}

	state.OnDrainComplete()
	if state.State == StateFailed && state.Failure == FailureNoAudioCaptured {
		return nil, domain.New(domain.KindNoAudioCaptured, "capture", nil)
	}

	return audio.PCMToWAV(pcmBuf, audio.SampleRate, audio.Channels, audio.SampleWidth), nil
}

package audio

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// ffmpegTimeout bounds a single decode invocation; a hung or adversarial
// container should not wedge a request goroutine forever.
const ffmpegTimeout = 20 * time.Second

// Normalizer implements ports.AudioNormalizer. Non-WAV containers are
// decoded by shelling out to ffmpeg, the same tool the system this spec was
// distilled from reaches for via ffmpeg-python -- Go has no standard-library
// or pack-vendored audio codec stack, so an external process is the only
// grounded option for MP3/M4A/OGG/FLAC/WMA decode.
type Normalizer struct {
	// FFmpegPath overrides the binary name/path used to invoke ffmpeg.
	// Defaults to "ffmpeg" (resolved via PATH) when empty.
	FFmpegPath string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{FFmpegPath: "ffmpeg"}
}

var _ ports.AudioNormalizer = (*Normalizer)(nil)

// Normalize decodes input to canonical 16kHz/mono/16-bit PCM WAV. When input
// is already canonical (validates true), it is returned unmodified -- this
// fast path is what makes normalize idempotent on canonical input (P4),
// rather than round-tripping through ffmpeg a second time.
func (n *Normalizer) Normalize(ctx context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, domain.New(domain.KindEmptyInput, "normalize", nil)
	}

	if ok, _ := ValidateWAV(input); ok {
		out := make([]byte, len(input))
		copy(out, input)
		return out, nil
	}

	return n.decodeWithFFmpeg(ctx, input)
}

func (n *Normalizer) decodeWithFFmpeg(ctx context.Context, input []byte) ([]byte, error) {
	ffmpegPath := n.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	// -i pipe:0 reads the container from stdin; -f s16le raw PCM would skip
	// the WAV header, so we ask ffmpeg to emit a WAV container directly and
	// trust our own duration math over its, per the design notes.
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ar", "16000",
		"-ac", "1",
		"-sample_fmt", "s16",
		"-f", "wav",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, domain.NewDetail(domain.KindUnsupportedOrCorrupt, "normalize", stderr.String())
	}

	out := stdout.Bytes()
	if ok, reason := ValidateWAV(out); !ok {
		return nil, domain.NewDetail(domain.KindUnsupportedOrCorrupt, "normalize", "ffmpeg output failed validation: "+reason)
	}
	return out, nil
}

// Validate matches ports.AudioNormalizer.Validate.
func (n *Normalizer) Validate(wav []byte) (bool, string) {
	return ValidateWAV(wav)
}

// DurationSeconds matches ports.AudioNormalizer.DurationSeconds.
func (n *Normalizer) DurationSeconds(wav []byte) (float64, error) {
	return DurationSeconds(wav)
}

// PCMToWAV matches ports.AudioNormalizer.PCMToWAV.
func (n *Normalizer) PCMToWAV(pcm []byte, sampleRate, channels, sampleWidth int) []byte {
	return PCMToWAV(pcm, sampleRate, channels, sampleWidth)
}

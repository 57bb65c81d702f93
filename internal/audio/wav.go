// Package audio implements the canonical-WAV normalization path (C1) and the
// bounded HTTP fetcher (C2). Both are pure/stateless over their inputs; no
// component here talks to the repository or the orchestrator.
package audio

import (
	"encoding/binary"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain"
)

// Canonical format constants, fixed by the wire contract in spec section 6.
const (
	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	SampleWidth    = BitsPerSample / 8
	HeaderSize     = 44
	bytesPerSecond = SampleRate * Channels * SampleWidth
)

// PCMToWAV emits a fixed 44-byte RIFF/WAVE header around pcm, matching the
// exact byte layout from the spec: chunk_id, chunk_size, format,
// subchunk1 (fmt), subchunk2 (data), all little-endian. No streaming
// encoder is used -- the header is computed directly from len(pcm).
func PCMToWAV(pcm []byte, sampleRate, channels, sampleWidth int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * sampleWidth
	blockAlign := channels * sampleWidth

	buf := make([]byte, HeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dataSize+36))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(sampleWidth*8))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// ValidateWAV checks RIFF/WAVE magic and the canonical fmt fields. It never
// returns an error; callers distinguish failure by the bool and read reason
// for diagnostics, matching the spec's (ok, reason) signature.
func ValidateWAV(wav []byte) (bool, string) {
	if len(wav) < HeaderSize {
		return false, "truncated header"
	}
	if string(wav[0:4]) != "RIFF" {
		return false, "missing RIFF magic"
	}
	if string(wav[8:12]) != "WAVE" {
		return false, "missing WAVE subchunk"
	}
	if string(wav[12:16]) != "fmt " {
		return false, "missing fmt subchunk"
	}
	channels := binary.LittleEndian.Uint16(wav[22:24])
	if channels != 1 {
		return false, "channels != 1"
	}
	sampleRate := binary.LittleEndian.Uint32(wav[24:28])
	if sampleRate != SampleRate {
		return false, "sample_rate != 16000"
	}
	bits := binary.LittleEndian.Uint16(wav[34:36])
	if bits != BitsPerSample {
		return false, "bits_per_sample != 16"
	}
	return true, ""
}

// DurationSeconds derives playback duration purely from byte count, never
// from an upstream hint: duration = (total_bytes - 44) / (16000*1*2).
func DurationSeconds(wav []byte) (float64, error) {
	if len(wav) < HeaderSize {
		return 0, domain.New(domain.KindTruncatedHeader, "duration", nil)
	}
	dataBytes := len(wav) - HeaderSize
	return float64(dataBytes) / float64(bytesPerSecond), nil
}

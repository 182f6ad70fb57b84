// Package pcm implements the client-side audio codec primitives shared by the
// live voice session and the text-to-speech utilities: Base64 transport
// encoding, float ↔ 16-bit signed PCM conversion, and the Base64 [Envelope]
// value type used on the realtime channel.
//
// These functions sit on the hot path — they run once per captured or played
// audio buffer (every ~100–250 ms) — so they allocate only their output
// buffers and perform no per-sample allocation.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDecode is returned by [DecodeBase64] when the input is not valid
// standard Base64.
var ErrDecode = errors.New("pcm: invalid base64 payload")

// ErrMalformedAudio is returned by [PCM16ToFloats] when the byte length of a
// PCM buffer is not a whole number of frames for the given channel count.
var ErrMalformedAudio = errors.New("pcm: byte length is not a whole number of frames")

// EncodeBase64 encodes raw bytes as standard Base64 text. The output always
// decodes back to the exact input via [DecodeBase64].
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard Base64 text into raw bytes. Returns an error
// wrapping [ErrDecode] if the input is not valid Base64.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// FloatsToPCM16 converts floating-point samples in [-1.0, 1.0) to
// little-endian 16-bit signed PCM, two bytes per sample, preserving
// channel-interleaved order. Each sample maps to round(s * 32768).
//
// Out-of-range samples are clamped to the int16 range. Clamping produces a
// flat-topped (clipped) waveform instead of the sign-inverted artifacts that
// two's-complement wraparound would cause.
func FloatsToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(math.Round(float64(s) * 32768))
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloats converts little-endian 16-bit signed PCM into one float32
// slice per channel, dividing each sample by 32768. The frame count is
// len(pcm) / 2 / channels.
//
// Returns an error wrapping [ErrMalformedAudio] if len(pcm) is not a multiple
// of 2*channels, or an error if channels is not positive.
func PCM16ToFloats(pcm []byte, channels int) ([][]float32, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("pcm: channel count must be positive, got %d", channels)
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d channel(s)", ErrMalformedAudio, len(pcm), channels)
	}

	frames := len(pcm) / 2 / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			out[ch][i] = float32(sample) / 32768.0
		}
	}
	return out, nil
}

// PCM16ToFloatsMono is a convenience wrapper around [PCM16ToFloats] for
// single-channel audio, returning the one channel directly.
func PCM16ToFloatsMono(pcm []byte) ([]float32, error) {
	chans, err := PCM16ToFloats(pcm, 1)
	if err != nil {
		return nil, err
	}
	return chans[0], nil
}

// Duration returns the playback duration of a 16-bit PCM buffer.
func Duration(byteLen, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := byteLen / 2 / channels
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// Envelope is the transport wrapper for one outbound audio chunk on the
// realtime channel: an opaque Base64 payload paired with its MIME type.
// It is a value type — created fresh per chunk and never mutated.
type Envelope struct {
	// Data is the Base64-encoded audio payload.
	Data string

	// MIMEType identifies the payload format, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// NewEnvelope wraps a raw PCM buffer in an [Envelope] tagged with the
// audio/pcm MIME type for the given sample rate.
func NewEnvelope(pcm []byte, sampleRate int) Envelope {
	return Envelope{
		Data:     EncodeBase64(pcm),
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
	}
}

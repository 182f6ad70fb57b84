// Package realtime implements the client side of the bidirectional streaming
// channel used for live voice conversation. It connects to the remote
// generative service over WebSocket and exchanges JSON messages: outbound
// audio travels as Base64 media chunks, inbound messages carry transcription
// deltas, synthesised audio, turn-completion and interruption signals.
//
// Inbound traffic is surfaced as a stream of [ServerEvent] values on a
// buffered channel so that callers can drive their control flow as a linear
// receive loop rather than nested callbacks.
package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/pvanloo/sonoria/pkg/pcm"
)

// Compile-time assertion that Client satisfies the Channel interface.
var _ Channel = (*Client)(nil)

// ErrChannel wraps remote streaming failures surfaced by the channel.
var ErrChannel = errors.New("realtime: channel failure")

// ErrClosed is returned by [Client.Send] after the channel has been closed.
var ErrClosed = errors.New("realtime: channel is closed")

const (
	// eventChanDepth is the buffer depth of the Events channel. Consumers
	// must drain promptly; a full buffer stalls the receive loop.
	eventChanDepth = 64

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
)

// ServerEvent is one decoded inbound message. All fields are optional and may
// co-occur in a single message.
type ServerEvent struct {
	// InputTranscription is a transcription delta of the user's speech.
	InputTranscription string

	// OutputTranscription is a transcription delta of the model's speech.
	OutputTranscription string

	// Audio is a decoded chunk of synthesised model speech (16-bit mono PCM),
	// empty when the message carried no inline audio.
	Audio []byte

	// AudioMIME is the declared MIME type of Audio, e.g. "audio/pcm;rate=24000".
	AudioMIME string

	// TurnComplete signals that the current utterance exchange is finished.
	TurnComplete bool

	// Interrupted signals barge-in: the user began speaking over in-progress
	// model audio and all pending playback must be cancelled immediately.
	Interrupted bool

	// Err carries a remote protocol-level error. When set, the other fields
	// are empty and the session should be torn down.
	Err error
}

// Channel is the duplex streaming connection consumed by the capture/playback
// engine. It is an interface so tests can substitute an in-memory
// implementation.
type Channel interface {
	// Send delivers one outbound audio chunk. Returns an error if the channel
	// is closed or the write fails.
	Send(ctx context.Context, env pcm.Envelope) error

	// Events returns the stream of decoded inbound messages. The channel is
	// closed when the connection ends; call Err afterwards to learn whether
	// it ended cleanly.
	Events() <-chan ServerEvent

	// Err returns the error that terminated the connection, or nil if it was
	// closed deliberately.
	Err() error

	// Close terminates the connection and closes the Events channel.
	// Idempotent.
	Close() error
}

// Config configures a [Dial] attempt.
type Config struct {
	// URL is the WebSocket endpoint of the realtime service.
	URL string

	// APIKey authenticates the connection; appended as a query parameter.
	APIKey string

	// Model selects the conversational model for the session.
	Model string

	// Instructions is an optional system-level prompt applied at setup.
	Instructions string
}

// ── Wire types (outbound) ─────────────────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model             string             `json:"model"`
	GenerationConfig  generationConfig   `json:"generationConfig"`
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

// ── Wire types (inbound) ──────────────────────────────────────────────────────

type serverMessage struct {
	ServerContent *serverContent `json:"serverContent,omitempty"`
	Error         *remoteError   `json:"error,omitempty"`
}

type remoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text string `json:"text"`
}

// Package transcript maintains the conversation log of a live voice session.
//
// The remote service streams transcription text as incremental deltas for
// both sides of the conversation. Deltas collect in an [Accumulator] until
// the service signals the end of a turn, at which point the accumulated text
// is flushed into the append-only [Log] as one or two [Turn] entries, the
// user's speech always preceding the model's reply.
package transcript

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Speaker identifies which side of the conversation produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Turn is one completed utterance in the conversation log. Turns are never
// mutated after being appended.
type Turn struct {
	// ID uniquely identifies the turn.
	ID uuid.UUID

	// Speaker is who produced the text.
	Speaker Speaker

	// Text is the full transcription of the utterance, trimmed of
	// surrounding whitespace.
	Text string
}

// Log is an ordered, append-only record of conversation turns. Safe for
// concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a turn for speaker with the given text and returns it.
func (l *Log) Append(speaker Speaker, text string) Turn {
	turn := Turn{ID: uuid.New(), Speaker: speaker, Text: text}

	l.mu.Lock()
	l.turns = append(l.turns, turn)
	l.mu.Unlock()

	return turn
}

// Turns returns a snapshot of all turns in append order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Accumulator collects streamed transcription deltas for the in-progress
// turn, one buffer per speaker. Safe for concurrent use.
type Accumulator struct {
	mu     sync.Mutex
	input  strings.Builder
	output strings.Builder
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AddInput appends a delta of the user's transcription.
func (a *Accumulator) AddInput(delta string) {
	a.mu.Lock()
	a.input.WriteString(delta)
	a.mu.Unlock()
}

// AddOutput appends a delta of the model's transcription.
func (a *Accumulator) AddOutput(delta string) {
	a.mu.Lock()
	a.output.WriteString(delta)
	a.mu.Unlock()
}

// FlushTo trims both buffers and appends the non-empty ones to log, the user
// turn first, then the model turn. Both buffers are reset afterwards. Returns
// the turns appended, which may be empty.
func (a *Accumulator) FlushTo(log *Log) []Turn {
	a.mu.Lock()
	userText := strings.TrimSpace(a.input.String())
	modelText := strings.TrimSpace(a.output.String())
	a.input.Reset()
	a.output.Reset()
	a.mu.Unlock()

	var turns []Turn
	if userText != "" {
		turns = append(turns, log.Append(SpeakerUser, userText))
	}
	if modelText != "" {
		turns = append(turns, log.Append(SpeakerModel, modelText))
	}
	return turns
}

// Reset discards any accumulated deltas without flushing.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.input.Reset()
	a.output.Reset()
	a.mu.Unlock()
}

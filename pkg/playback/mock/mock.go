// Package mock provides an in-memory [playback.Sink] with a manually advanced
// clock, for exercising scheduling behaviour in tests without an audio device.
package mock

import (
	"sync"
	"time"

	"github.com/pvanloo/sonoria/pkg/playback"
)

// Compile-time assertion that Sink satisfies the playback interface.
var _ playback.Sink = (*Sink)(nil)

// Start records one buffer submitted to the sink.
type Start struct {
	PCM     []byte
	At      time.Duration
	Stopped bool

	onDone func()
}

// Sink is a scripted playback device. The clock only moves when the test
// calls [Sink.Advance]; buffers only complete when the test calls
// [Sink.Complete].
type Sink struct {
	mu     sync.Mutex
	now    time.Duration
	starts []*Start
	closed bool
}

// New creates a Sink with the clock at zero.
func New() *Sink {
	return &Sink{}
}

// Now implements [playback.Sink].
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the playback clock forward by d.
func (s *Sink) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += d
}

// Start implements [playback.Sink]. It records the buffer and returns a
// handle whose Stop marks the record as stopped.
func (s *Sink) Start(pcm []byte, at time.Duration, onDone func()) (playback.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Start{PCM: pcm, At: at, onDone: onDone}
	s.starts = append(s.starts, st)
	return &handle{sink: s, start: st}, nil
}

// Complete invokes the completion callback of the i-th started buffer, as if
// it had finished playing naturally.
func (s *Sink) Complete(i int) {
	s.mu.Lock()
	st := s.starts[i]
	s.mu.Unlock()

	if st.onDone != nil {
		st.onDone()
	}
}

// Starts returns a snapshot of all buffers submitted so far.
func (s *Sink) Starts() []Start {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Start, len(s.starts))
	for i, st := range s.starts {
		out[i] = *st
	}
	return out
}

// Close implements [playback.Sink].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type handle struct {
	sink  *Sink
	start *Start
}

func (h *handle) Stop() {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.start.Stopped = true
}

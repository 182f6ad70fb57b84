// Package playback schedules decoded audio chunks for gap-minimising,
// strictly sequential playback on an output [Sink].
//
// The [Scheduler] owns the "next start time" cursor and the set of buffers
// that are scheduled but not yet finished, so that a barge-in interruption
// can stop every pending buffer immediately and let the next chunk start at
// the current playback clock instead of queueing behind stale audio.
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/pvanloo/sonoria/pkg/pcm"
)

// ErrClosed is returned by [Scheduler.Schedule] after [Scheduler.Close].
var ErrClosed = errors.New("playback: scheduler is closed")

// Handle refers to one buffer submitted to a [Sink]. Stop aborts playback of
// that buffer; stopping an already-finished buffer is a no-op. Stop must be
// safe to call more than once and from any goroutine.
type Handle interface {
	Stop()
}

// Sink is an audio output device accepting PCM buffers for playback at a
// scheduled position on its own monotonic clock.
//
// Start must return quickly (it may hand the buffer to a background writer,
// never play it inline) and must not invoke onDone before returning. onDone
// is called exactly once when the buffer finishes playing naturally; it is
// not called for buffers aborted via [Handle.Stop].
type Sink interface {
	// Now returns the current position of the playback clock.
	Now() time.Duration

	// Start schedules pcm (16-bit mono at the scheduler's sample rate) to
	// begin playing at the given clock position.
	Start(pcm []byte, at time.Duration, onDone func()) (Handle, error)

	// Close stops the device and releases it. Idempotent.
	Close() error
}

// Scheduler sequences inbound audio chunks onto a [Sink] in strict arrival
// order with no overlap. All methods are safe for concurrent use, though in
// practice chunks arrive from a single receive loop.
type Scheduler struct {
	sink       Sink
	sampleRate int

	mu        sync.Mutex
	nextStart time.Duration
	active    map[uint64]Handle
	seq       uint64
	closed    bool
}

// NewScheduler creates a Scheduler that plays 16-bit mono PCM at sampleRate
// through sink. The caller retains ownership of sink and must close it after
// closing the scheduler.
func NewScheduler(sink Sink, sampleRate int) *Scheduler {
	return &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		active:     make(map[uint64]Handle),
	}
}

// Schedule submits one decoded chunk for playback and returns its start
// position on the sink clock.
//
// The start position is max(nextStart, sink.Now()), which guarantees both
// that chunks never overlap (each starts no earlier than the previous chunk's
// end) and that a chunk arriving after a long silence plays immediately
// instead of at a stale future cursor. The cursor then advances by the
// chunk's duration.
func (s *Scheduler) Schedule(chunk []byte) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	start := s.nextStart
	if now := s.sink.Now(); now > start {
		start = now
	}
	dur := pcm.Duration(len(chunk), s.sampleRate, 1)
	s.nextStart = start + dur

	id := s.seq
	s.seq++

	handle, err := s.sink.Start(chunk, start, func() { s.finished(id) })
	if err != nil {
		// Roll the cursor back so the next chunk is not scheduled after a
		// buffer that never played.
		s.nextStart = start
		return 0, err
	}
	s.active[id] = handle
	return start, nil
}

// Interrupt stops every scheduled or playing buffer, clears the active set,
// and resets the cursor to zero so the next chunk starts at the current
// playback clock. Used for barge-in: interruption is immediate and leaves no
// orphaned buffers behind. Returns the number of buffers stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	clear(s.active)
	s.nextStart = 0
	s.mu.Unlock()

	// Stop outside the lock: a sink may invoke completion callbacks
	// synchronously from Stop.
	for _, h := range handles {
		h.Stop()
	}
	return len(handles)
}

// ActiveCount reports how many buffers are scheduled or playing.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart returns the current cursor position: the earliest clock position
// the next chunk may start at.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Close interrupts all playback and rejects further Schedule calls.
// Idempotent. The underlying sink is not closed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Interrupt()
}

// finished removes a naturally completed buffer from the active set. A buffer
// already removed by [Scheduler.Interrupt] is ignored.
func (s *Scheduler) finished(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

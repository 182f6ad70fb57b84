// Package mock provides a scripted [device.Microphone] for tests.
package mock

import (
	"sync"

	"github.com/pvanloo/sonoria/pkg/device"
)

// Compile-time interface assertion.
var _ device.Microphone = (*Microphone)(nil)

// Microphone delivers frames pushed by the test through [Microphone.Push].
type Microphone struct {
	frames chan []float32

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// New creates a Microphone with a frame buffer of the given depth.
func New(depth int) *Microphone {
	return &Microphone{frames: make(chan []float32, depth)}
}

// Push delivers one frame to the consumer. Returns false if the microphone
// is closed or the buffer is full.
func (m *Microphone) Push(frame []float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	select {
	case m.frames <- frame:
		return true
	default:
		return false
	}
}

// Frames implements [device.Microphone].
func (m *Microphone) Frames() <-chan []float32 { return m.frames }

// Close implements [device.Microphone]. Idempotent.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.frames)
		m.mu.Unlock()
	})
	return nil
}

// Closed reports whether Close has been called.
func (m *Microphone) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

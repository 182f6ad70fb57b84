// Package mock provides a scriptable in-memory [realtime.Channel] for
// exercising the capture/playback engine without a live connection.
package mock

import (
	"context"
	"sync"

	"github.com/pvanloo/sonoria/pkg/pcm"
	"github.com/pvanloo/sonoria/pkg/realtime"
)

// Compile-time interface assertion.
var _ realtime.Channel = (*Channel)(nil)

// Channel records everything sent through it and emits whatever events the
// test scripts via [Channel.Emit].
type Channel struct {
	events chan realtime.ServerEvent

	mu      sync.Mutex
	sent    []pcm.Envelope
	sendErr error
	errVal  error
	closed  bool

	closeOnce sync.Once
	emitOnce  sync.Once
}

// New creates a Channel with a generous event buffer.
func New() *Channel {
	return &Channel{events: make(chan realtime.ServerEvent, 64)}
}

// Send implements [realtime.Channel].
func (c *Channel) Send(_ context.Context, env pcm.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return realtime.ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, env)
	return nil
}

// FailSends makes every subsequent Send return err.
func (c *Channel) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Sent returns a snapshot of all envelopes sent so far.
func (c *Channel) Sent() []pcm.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]pcm.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

// Emit delivers one inbound event to the consumer.
func (c *Channel) Emit(ev realtime.ServerEvent) {
	c.events <- ev
}

// Fail records err as the terminal error and closes the Events channel, as
// if the connection had dropped.
func (c *Channel) Fail(err error) {
	c.mu.Lock()
	c.errVal = err
	c.mu.Unlock()
	c.emitOnce.Do(func() { close(c.events) })
}

// Events implements [realtime.Channel].
func (c *Channel) Events() <-chan realtime.ServerEvent { return c.events }

// Err implements [realtime.Channel].
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errVal
}

// Close implements [realtime.Channel]. Idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.emitOnce.Do(func() { close(c.events) })
	})
	return nil
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/pvanloo/sonoria/pkg/pcm"
)

// Client is the WebSocket implementation of [Channel].
type Client struct {
	conn   *websocket.Conn
	events chan ServerEvent

	mu     sync.Mutex
	errVal error
	closed bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	eventOnce sync.Once
}

// Dial connects to the realtime service, sends the setup message, and starts
// the receive and keepalive loops. The returned Client is ready to accept
// audio; its Events channel delivers inbound messages until the connection
// ends.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	wsURL := fmt.Sprintf("%s?key=%s", cfg.URL, cfg.APIKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrChannel, err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		events: make(chan ServerEvent, eventChanDepth),
		ctx:    sessCtx,
		cancel: sessCancel,
		done:   make(chan struct{}),
	}

	if err := c.sendSetup(cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("%w: setup: %v", ErrChannel, err)
	}

	go c.receiveLoop()
	go c.keepaliveLoop()

	return c, nil
}

// sendSetup sends the initial session configuration message.
func (c *Client) sendSetup(cfg Config) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", cfg.Model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"audio"},
			},
		},
	}
	if cfg.Instructions != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: cfg.Instructions}},
		}
	}
	return c.writeJSON(msg)
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// Send implements [Channel]. The envelope travels as a single media chunk in
// a realtimeInput message.
func (c *Client) Send(ctx context.Context, env pcm.Envelope) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{MIMEType: env.MIMEType, Data: env.Data},
			},
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("%w: send: %v", ErrChannel, err)
	}
	return nil
}

// receiveLoop reads messages from the WebSocket and emits decoded events.
// It owns the events channel and closes it when it exits.
func (c *Client) receiveLoop() {
	defer c.closeEvents()

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			// Deliberate close: exit cleanly without recording an error.
			if c.ctx.Err() != nil {
				return
			}
			c.setErr(fmt.Errorf("%w: %v", ErrChannel, err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}

		c.dispatch(&msg)
	}
}

// dispatch converts one wire message into zero or more ServerEvents.
func (c *Client) dispatch(msg *serverMessage) {
	if msg.Error != nil {
		text := msg.Error.Message
		if text == "" {
			text = "unknown error"
		}
		c.emit(ServerEvent{Err: fmt.Errorf("%w: remote: %s", ErrChannel, text)})
	}

	sc := msg.ServerContent
	if sc == nil {
		return
	}

	ev := ServerEvent{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.InputTranscription != nil {
		ev.InputTranscription = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscription = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil {
				continue
			}
			audio, err := pcm.DecodeBase64(p.InlineData.Data)
			if err != nil || len(audio) == 0 {
				continue
			}
			// A message with multiple audio parts yields one event per part
			// so that playback order matches part order.
			if len(ev.Audio) > 0 {
				c.emit(ev)
				ev = ServerEvent{}
			}
			ev.Audio = audio
			ev.AudioMIME = p.InlineData.MIMEType
		}
	}

	if ev.Audio != nil || ev.InputTranscription != "" || ev.OutputTranscription != "" ||
		ev.TurnComplete || ev.Interrupted {
		c.emit(ev)
	}
}

// emit delivers ev unless the session is shutting down.
func (c *Client) emit(ev ServerEvent) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// keepaliveLoop sends WebSocket pings to keep the connection alive.
func (c *Client) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, keepaliveTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errVal == nil {
		c.errVal = err
	}
}

func (c *Client) closeEvents() {
	c.eventOnce.Do(func() { close(c.events) })
}

// Events implements [Channel].
func (c *Client) Events() <-chan ServerEvent { return c.events }

// Err implements [Channel].
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errVal
}

// Close implements [Channel]. Idempotent; a deliberate close never records a
// connection error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()    // unblocks receiveLoop and keepaliveLoop
		close(c.done) // signals keepaliveLoop
		c.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

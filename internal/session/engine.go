// Package session implements the streaming audio capture/playback engine for
// live voice conversation.
//
// An [Engine] owns the full duplex path: it captures microphone frames,
// converts them to 16-bit PCM, and streams them to the realtime channel
// through a bounded send queue; inbound events are consumed as a linear
// receive loop that schedules model audio for gapless playback, accumulates
// transcription deltas into the conversation log, and honours barge-in
// interruptions by cancelling all pending playback.
//
// The engine is an explicit state machine (Idle → Connecting → Streaming →
// Closing → Idle). At most one session may be active per engine; the
// microphone and the audio output device are owned exclusively while
// streaming.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pvanloo/sonoria/internal/observe"
	"github.com/pvanloo/sonoria/internal/transcript"
	"github.com/pvanloo/sonoria/pkg/device"
	"github.com/pvanloo/sonoria/pkg/pcm"
	"github.com/pvanloo/sonoria/pkg/playback"
	"github.com/pvanloo/sonoria/pkg/realtime"
)

// ErrAlreadyActive is returned by [Engine.Start] while a session is running.
// The microphone and output device are owned exclusively; a second session
// requires stopping the first.
var ErrAlreadyActive = errors.New("session: a session is already active")

// ErrStopped is returned by [Engine.Start] when [Engine.Stop] was called while
// the session was still connecting; everything acquired during startup has
// been released and the engine is Idle.
var ErrStopped = errors.New("session: stopped during startup")

// State is the engine lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateClosing    State = "closing"
)

// defaultQueueDepth bounds the outbound send queue when the config leaves it
// unset.
const defaultQueueDepth = 32

// Dialer opens the realtime channel for a session.
type Dialer func(ctx context.Context) (realtime.Channel, error)

// MicOpener acquires the microphone for a session.
type MicOpener func() (device.Microphone, error)

// SinkOpener acquires the audio output device for a session.
type SinkOpener func() (playback.Sink, error)

// Config wires an [Engine] to its collaborators. Dial, OpenMic, and OpenSink
// are required.
type Config struct {
	Dial     Dialer
	OpenMic  MicOpener
	OpenSink SinkOpener

	// CaptureRate is the microphone sample rate in Hz; it tags outbound
	// envelopes. Required.
	CaptureRate int

	// PlaybackRate is the sample rate in Hz of inbound model audio. Required.
	PlaybackRate int

	// QueueDepth bounds the outbound send queue. Defaults to 32.
	QueueDepth int

	// Log receives completed conversation turns. When nil the engine creates
	// its own.
	Log *transcript.Log

	// Metrics records pipeline counters. When nil, [observe.DefaultMetrics]
	// is used.
	Metrics *observe.Metrics

	// OnError is invoked once, outside any engine lock, when a streaming
	// session fails; the engine has already begun teardown. May be nil.
	OnError func(error)
}

// Engine is the streaming capture/playback state machine. Safe for concurrent
// use.
type Engine struct {
	cfg     Config
	log     *transcript.Log
	metrics *observe.Metrics

	mu          sync.Mutex
	state       State
	stopPending bool
	cancel      context.CancelFunc
	queue       *sendQueue
	channel     realtime.Channel
	mic         device.Microphone
	sink        playback.Sink
	sched       *playback.Scheduler
	wg          sync.WaitGroup
	dropped     uint64
}

// New creates an idle Engine. Returns an error when a required collaborator
// or rate is missing.
func New(cfg Config) (*Engine, error) {
	if cfg.Dial == nil || cfg.OpenMic == nil || cfg.OpenSink == nil {
		return nil, errors.New("session: Dial, OpenMic, and OpenSink are required")
	}
	if cfg.CaptureRate <= 0 || cfg.PlaybackRate <= 0 {
		return nil, fmt.Errorf("session: sample rates must be positive, got capture %d playback %d", cfg.CaptureRate, cfg.PlaybackRate)
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	e := &Engine{
		cfg:     cfg,
		log:     cfg.Log,
		metrics: cfg.Metrics,
		state:   StateIdle,
	}
	if e.log == nil {
		e.log = transcript.NewLog()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Log returns the conversation log the engine appends to.
func (e *Engine) Log() *transcript.Log { return e.log }

// Dropped returns the number of outbound chunks discarded by the send queue
// across all sessions of this engine.
func (e *Engine) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.dropped
	if e.queue != nil {
		d += e.queue.Dropped()
	}
	return d
}

// Start acquires the microphone, opens the realtime channel and the output
// device, and begins streaming. Returns [ErrAlreadyActive] when a session is
// already running, or [ErrStopped] when [Engine.Stop] was called while the
// session was still connecting. A failure during startup releases everything
// acquired so far and leaves the engine Idle.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrAlreadyActive
	}
	e.state = StateConnecting
	e.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "session.start")
	defer span.End()

	mic, err := e.cfg.OpenMic()
	if err != nil {
		e.setIdle()
		span.RecordError(err)
		return fmt.Errorf("session: open microphone: %w", err)
	}

	ch, err := e.cfg.Dial(ctx)
	if err != nil {
		_ = mic.Close()
		e.setIdle()
		span.RecordError(err)
		return fmt.Errorf("session: open channel: %w", err)
	}

	sink, err := e.cfg.OpenSink()
	if err != nil {
		_ = ch.Close()
		_ = mic.Close()
		e.setIdle()
		span.RecordError(err)
		return fmt.Errorf("session: open output device: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sessCtx, sessSpan := observe.StartSpan(sessCtx, "session.run")
	queue := newSendQueue(e.cfg.QueueDepth)
	sched := playback.NewScheduler(sink, e.cfg.PlaybackRate)

	e.mu.Lock()
	if e.stopPending {
		// Stop arrived while we were connecting; hand everything back instead
		// of entering a session the caller already asked to end.
		e.stopPending = false
		e.state = StateIdle
		e.mu.Unlock()
		cancel()
		sessSpan.End()
		queue.Close()
		sched.Close()
		_ = sink.Close()
		_ = ch.Close()
		_ = mic.Close()
		return ErrStopped
	}
	e.state = StateStreaming
	e.cancel = cancel
	e.queue = queue
	e.channel = ch
	e.mic = mic
	e.sink = sink
	e.sched = sched
	e.mu.Unlock()

	e.metrics.ActiveSessions.Add(sessCtx, 1)
	started := time.Now()

	accum := transcript.NewAccumulator()
	g, gctx := errgroup.WithContext(sessCtx)
	g.Go(func() error { return e.captureLoop(gctx, mic, queue) })
	g.Go(func() error { return e.sendLoop(gctx, queue, ch) })
	g.Go(func() error { return e.receiveLoop(gctx, ch, sched, sink, accum) })
	g.Go(func() error {
		// Wakes a sendLoop blocked in queue.Pop when any loop fails or the
		// session is stopped.
		<-gctx.Done()
		queue.Close()
		return nil
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := g.Wait()
		e.metrics.ActiveSessions.Add(context.Background(), -1)
		e.metrics.SessionDuration.Record(context.Background(), time.Since(started).Seconds())
		// Chunks still queued at teardown were never popped.
		e.metrics.QueueDepth.Add(context.Background(), -int64(queue.Len()))

		// Deliberate stop cancels the session context first; only an
		// unprompted failure surfaces to the caller.
		if err != nil && sessCtx.Err() == nil {
			sessSpan.RecordError(err)
			observe.Logger(sessCtx).Error("session failed", "error", err)
			go e.Stop()
			if e.cfg.OnError != nil {
				e.cfg.OnError(err)
			}
		}
		sessSpan.End()
	}()

	return nil
}

// Stop tears the session down: capture halts, the channel closes, pending
// playback is cancelled so nothing plays after return, and the engine goes
// back to Idle. Idempotent; a no-op when no session is active. Stop during a
// still-connecting [Engine.Start] aborts the startup: Start releases what it
// acquired and returns [ErrStopped].
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateConnecting {
		e.stopPending = true
		e.mu.Unlock()
		return
	}
	if e.state != StateStreaming {
		e.mu.Unlock()
		return
	}
	e.state = StateClosing
	cancel := e.cancel
	queue := e.queue
	ch := e.channel
	mic := e.mic
	sink := e.sink
	sched := e.sched
	e.mu.Unlock()

	cancel()
	queue.Close()
	_ = mic.Close()
	_ = ch.Close()
	sched.Close()
	_ = sink.Close()

	e.wg.Wait()

	e.mu.Lock()
	e.dropped += queue.Dropped()
	e.cancel = nil
	e.queue = nil
	e.channel = nil
	e.mic = nil
	e.sink = nil
	e.sched = nil
	e.state = StateIdle
	e.mu.Unlock()
}

func (e *Engine) setIdle() {
	e.mu.Lock()
	e.state = StateIdle
	e.stopPending = false
	e.mu.Unlock()
}

// captureLoop converts microphone frames to PCM and feeds the send queue.
// Exits when the microphone closes or the session is cancelled.
func (e *Engine) captureLoop(ctx context.Context, mic device.Microphone, queue *sendQueue) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-mic.Frames():
			if !ok {
				return nil
			}
			before := queue.Dropped()
			if !queue.Push(pcm.FloatsToPCM16(frame)) {
				return nil
			}
			d := queue.Dropped() - before
			if d > 0 {
				e.metrics.ChunksDropped.Add(ctx, int64(d))
			}
			// A push onto a full queue evicts one chunk, leaving occupancy flat.
			e.metrics.QueueDepth.Add(ctx, 1-int64(d))
		}
	}
}

// sendLoop drains the queue into the channel in capture order.
func (e *Engine) sendLoop(ctx context.Context, queue *sendQueue, ch realtime.Channel) error {
	for {
		chunk, ok := queue.Pop()
		if !ok {
			return nil
		}
		e.metrics.QueueDepth.Add(ctx, -1)
		if ctx.Err() != nil {
			return nil
		}
		env := pcm.NewEnvelope(chunk, e.cfg.CaptureRate)
		if err := ch.Send(ctx, env); err != nil {
			if ctx.Err() != nil || errors.Is(err, realtime.ErrClosed) {
				return nil
			}
			return fmt.Errorf("send audio: %w", err)
		}
		e.metrics.ChunksSent.Add(ctx, 1)
	}
}

// receiveLoop consumes inbound events in arrival order. Interruption is
// processed before any audio carried by later events, so barge-in cancels
// exactly the playback scheduled so far.
func (e *Engine) receiveLoop(ctx context.Context, ch realtime.Channel, sched *playback.Scheduler, sink playback.Sink, accum *transcript.Accumulator) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch.Events():
			if !ok {
				if err := ch.Err(); err != nil && ctx.Err() == nil {
					return fmt.Errorf("channel: %w", err)
				}
				return nil
			}
			if err := e.handleEvent(ctx, ev, sched, sink, accum); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev realtime.ServerEvent, sched *playback.Scheduler, sink playback.Sink, accum *transcript.Accumulator) error {
	if ev.Err != nil {
		e.metrics.ChannelErrors.Add(ctx, 1)
		return ev.Err
	}

	if ev.Interrupted {
		stopped := sched.Interrupt()
		e.metrics.Interruptions.Add(ctx, 1)
		observe.Logger(ctx).Debug("barge-in", "cancelled_buffers", stopped)
	}

	if len(ev.Audio) > 0 {
		start, err := sched.Schedule(ev.Audio)
		if err != nil {
			if errors.Is(err, playback.ErrClosed) {
				return nil
			}
			return fmt.Errorf("schedule playback: %w", err)
		}
		e.metrics.ChunksPlayed.Add(ctx, 1)
		if lead := start - sink.Now(); lead > 0 {
			e.metrics.ScheduleLead.Record(ctx, lead.Seconds())
		}
	}

	if ev.InputTranscription != "" {
		accum.AddInput(ev.InputTranscription)
	}
	if ev.OutputTranscription != "" {
		accum.AddOutput(ev.OutputTranscription)
	}

	if ev.TurnComplete {
		for _, turn := range accum.FlushTo(e.log) {
			e.metrics.RecordTurn(ctx, string(turn.Speaker))
		}
	}
	return nil
}

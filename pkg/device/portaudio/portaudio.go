// Package portaudio adapts local audio hardware to the device and playback
// abstractions using the PortAudio bindings. It provides [Microphone] for
// 16 kHz mono float32 capture and [Speaker], a [playback.Sink] that plays
// 16-bit mono PCM at a fixed output rate.
//
// PortAudio is initialised on first open and terminated when the last open
// device is closed.
package portaudio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/pvanloo/sonoria/pkg/device"
	"github.com/pvanloo/sonoria/pkg/playback"
)

// Compile-time interface assertions.
var _ device.Microphone = (*Microphone)(nil)
var _ playback.Sink = (*Speaker)(nil)

// frameChanDepth bounds the number of captured frames queued towards the
// consumer before frames are dropped.
const frameChanDepth = 8

// initMu guards the PortAudio library init/terminate reference count.
var (
	initMu   sync.Mutex
	initRefs int
)

func acquireLib() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("%w: initialise portaudio: %v", device.ErrDeviceAccess, err)
		}
	}
	initRefs++
	return nil
}

func releaseLib() {
	initMu.Lock()
	defer initMu.Unlock()
	initRefs--
	if initRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// ── Microphone ────────────────────────────────────────────────────────────────

// Microphone captures mono float32 frames from the default input device.
type Microphone struct {
	stream *portaudio.Stream
	buf    []float32
	frames chan []float32

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// OpenMicrophone opens the default input device for mono capture at
// sampleRate, delivering frameSize samples per frame. Returns an error
// wrapping [device.ErrDeviceAccess] if the device cannot be opened.
func OpenMicrophone(sampleRate, frameSize int) (*Microphone, error) {
	if err := acquireLib(); err != nil {
		return nil, err
	}

	m := &Microphone{
		buf:    make([]float32, frameSize),
		frames: make(chan []float32, frameChanDepth),
		done:   make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, m.buf)
	if err != nil {
		releaseLib()
		return nil, fmt.Errorf("%w: open input stream: %v", device.ErrDeviceAccess, err)
	}
	m.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		releaseLib()
		return nil, fmt.Errorf("%w: start input stream: %v", device.ErrDeviceAccess, err)
	}

	m.wg.Add(1)
	go m.captureLoop()
	return m, nil
}

// captureLoop reads frames from the device until Close. Each frame is copied
// out of the stream buffer; frames are dropped when the consumer lags.
func (m *Microphone) captureLoop() {
	defer m.wg.Done()
	defer close(m.frames)

	for {
		select {
		case <-m.done:
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			slog.Warn("microphone read failed, frame skipped", "err", err)
			continue
		}

		frame := make([]float32, len(m.buf))
		copy(frame, m.buf)

		select {
		case m.frames <- frame:
		case <-m.done:
			return
		default:
			// Consumer is behind; drop rather than block capture.
		}
	}
}

// Frames implements [device.Microphone].
func (m *Microphone) Frames() <-chan []float32 { return m.frames }

// Close implements [device.Microphone]. Idempotent.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		_ = m.stream.Stop()
		m.closeErr = m.stream.Close()
		m.wg.Wait()
		releaseLib()
	})
	return m.closeErr
}

// ── Speaker ───────────────────────────────────────────────────────────────────

// Speaker plays 16-bit mono PCM buffers through the default output device,
// implementing [playback.Sink]. The playback clock starts at zero when the
// speaker is opened.
type Speaker struct {
	sampleRate int
	frameSize  int
	epoch      time.Time

	writeMu sync.Mutex // serialises stream writes
	stream  *portaudio.Stream
	buf     []int16

	closeOnce sync.Once
	closeErr  error
}

// OpenSpeaker opens the default output device for mono playback at
// sampleRate. frameSize is the size of the device write buffer in samples.
func OpenSpeaker(sampleRate, frameSize int) (*Speaker, error) {
	if err := acquireLib(); err != nil {
		return nil, err
	}

	s := &Speaker{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		buf:        make([]int16, frameSize),
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), frameSize, s.buf)
	if err != nil {
		releaseLib()
		return nil, fmt.Errorf("%w: open output stream: %v", device.ErrDeviceAccess, err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		releaseLib()
		return nil, fmt.Errorf("%w: start output stream: %v", device.ErrDeviceAccess, err)
	}

	s.epoch = time.Now()
	return s, nil
}

// Now implements [playback.Sink].
func (s *Speaker) Now() time.Duration {
	return time.Since(s.epoch)
}

// Start implements [playback.Sink]. The buffer is handed to a background
// writer goroutine that waits until the scheduled position and then streams
// the PCM to the device in frameSize chunks.
func (s *Speaker) Start(pcm []byte, at time.Duration, onDone func()) (playback.Handle, error) {
	h := &speakerHandle{stop: make(chan struct{})}
	go s.play(pcm, at, h, onDone)
	return h, nil
}

func (s *Speaker) play(pcm []byte, at time.Duration, h *speakerHandle, onDone func()) {
	if wait := at - s.Now(); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-h.stop:
			return
		case <-timer.C:
		}
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	for off := 0; off < len(samples); off += s.frameSize {
		select {
		case <-h.stop:
			return
		default:
		}

		end := min(off+s.frameSize, len(samples))
		s.writeMu.Lock()
		n := copy(s.buf, samples[off:end])
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		err := s.stream.Write()
		s.writeMu.Unlock()
		if err != nil {
			slog.Warn("speaker write failed, buffer truncated", "err", err)
			break
		}
	}

	select {
	case <-h.stop:
	default:
		if onDone != nil {
			onDone()
		}
	}
}

// Close implements [playback.Sink]. Idempotent.
func (s *Speaker) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.stream.Stop()
		s.closeErr = s.stream.Close()
		s.writeMu.Unlock()
		releaseLib()
	})
	return s.closeErr
}

type speakerHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *speakerHandle) Stop() {
	h.once.Do(func() { close(h.stop) })
}

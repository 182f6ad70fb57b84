// Package device defines the capture-side abstractions for local audio
// hardware. Concrete adapters live in subpackages (device/portaudio for real
// hardware, device/mock for tests).
//
// A device is owned exclusively by at most one live session at a time;
// adapters must fail to open rather than silently share a hardware handle
// between two capture graphs.
package device

import "errors"

// ErrDeviceAccess is returned when a microphone or speaker cannot be opened:
// permission denied, no device present, or the device is already in use.
var ErrDeviceAccess = errors.New("device: access denied or device unavailable")

// Microphone is an exclusive handle on an audio input device delivering
// fixed-size frames of floating-point samples.
type Microphone interface {
	// Frames returns the channel on which captured frames arrive. Each frame
	// holds the configured number of mono samples in [-1.0, 1.0). The channel
	// is closed when the microphone is closed. Frames are dropped, never
	// queued unboundedly, when the consumer falls behind — capture must not
	// block.
	Frames() <-chan []float32

	// Close stops capture, releases the device, and closes the Frames
	// channel. Idempotent.
	Close() error
}

package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"
)

// MJPEG is a [Source] backed by a raw motion-JPEG stream: concatenated JPEG
// images with no container metadata. Frames decode independently, so FrameAt
// is a pure index lookup and needs no sequential seeking.
type MJPEG struct {
	frames   [][]byte
	interval time.Duration
	bounds   image.Rectangle
}

var _ Source = (*MJPEG)(nil)

// OpenMJPEG reads a motion-JPEG stream from path. The stream carries no
// timing information, so the caller declares the recorded frame rate; the
// stream duration is the frame count over that rate.
func OpenMJPEG(path string, fps float64) (*MJPEG, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("video: source frame rate must be positive, got %v", fps)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVideoLoad, err)
	}
	frames := splitJPEGs(data)
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s contains no JPEG frames", ErrVideoLoad, filepath.Base(path))
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frames[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: first frame: %v", ErrVideoLoad, err)
	}
	return &MJPEG{
		frames:   frames,
		interval: time.Duration(float64(time.Second) / fps),
		bounds:   image.Rect(0, 0, cfg.Width, cfg.Height),
	}, nil
}

// Duration returns the stream length at the declared frame rate.
func (m *MJPEG) Duration() time.Duration {
	return time.Duration(len(m.frames)) * m.interval
}

// Bounds returns the pixel dimensions of the first frame.
func (m *MJPEG) Bounds() image.Rectangle { return m.bounds }

// FrameAt decodes the frame covering ts. Timestamps map onto frame indices at
// the declared rate; ts must be within [0, Duration).
func (m *MJPEG) FrameAt(ctx context.Context, ts time.Duration) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ts < 0 || ts >= m.Duration() {
		return nil, fmt.Errorf("video: timestamp %v outside stream of %v", ts, m.Duration())
	}
	idx := int(ts / m.interval)
	if idx >= len(m.frames) {
		idx = len(m.frames) - 1
	}
	img, err := jpeg.Decode(bytes.NewReader(m.frames[idx]))
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", ErrVideoLoad, idx, err)
	}
	return img, nil
}

// splitJPEGs cuts the stream at SOI/EOI marker pairs. Entropy-coded JPEG data
// byte-stuffs 0xFF, so the markers cannot occur inside a frame.
func splitJPEGs(data []byte) [][]byte {
	var frames [][]byte
	start := -1
	for i := 0; i+1 < len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		switch data[i+1] {
		case 0xD8: // start of image
			if start < 0 {
				start = i
			}
		case 0xD9: // end of image
			if start >= 0 {
				frames = append(frames, data[start:i+2])
				start = -1
				i++
			}
		}
	}
	return frames
}

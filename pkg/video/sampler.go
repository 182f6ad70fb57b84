// Package video extracts evenly spaced still frames from a video source for
// downstream analysis. Sampling drives the source through timed seeks, one
// frame per timestamp, and encodes each settled frame as JPEG at the source's
// natural resolution.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// ErrVideoLoad wraps failures to open or decode the video source.
var ErrVideoLoad = errors.New("video: cannot load source")

// jpegQuality matches the 0.8 encoder quality used for analysis frames.
const jpegQuality = 80

// Source is a seekable video decoder. It has a single playback position, so
// FrameAt calls must be strictly sequential; FrameAt returns only after the
// seek has settled on a decodable frame.
type Source interface {
	// Duration returns the total length of the video.
	Duration() time.Duration

	// Bounds returns the natural pixel dimensions of the video.
	Bounds() image.Rectangle

	// FrameAt seeks to ts and returns the frame at that position.
	FrameAt(ctx context.Context, ts time.Duration) (image.Image, error)
}

// Frame is one extracted still image.
type Frame struct {
	// Data is the JPEG-encoded image.
	Data []byte

	// MIMEType is always "image/jpeg".
	MIMEType string

	// Timestamp is the position in the source video the frame was taken at.
	Timestamp time.Duration

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int
}

// ExtractFrames samples src at fps frames per second starting from timestamp
// zero, stopping when the next timestamp would reach the video's duration or
// when maxFrames frames have been captured, whichever comes first. Frames are
// returned in increasing timestamp order.
//
// The context cancels an in-progress extraction between seeks; a cancelled
// call returns the context error and no frames.
func ExtractFrames(ctx context.Context, src Source, fps float64, maxFrames int) ([]Frame, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrVideoLoad)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("video: frames per second must be positive, got %v", fps)
	}
	if maxFrames <= 0 {
		return nil, fmt.Errorf("video: max frames must be positive, got %d", maxFrames)
	}

	duration := src.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("%w: source reports no duration", ErrVideoLoad)
	}

	interval := time.Duration(float64(time.Second) / fps)
	frames := make([]Frame, 0, maxFrames)

	for i := 0; i < maxFrames; i++ {
		ts := time.Duration(i) * interval
		if ts >= duration {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := src.FrameAt(ctx, ts)
		if err != nil {
			return nil, fmt.Errorf("video: frame at %v: %w", ts, err)
		}

		frame, err := encodeFrame(img, ts)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	return frames, nil
}

func encodeFrame(img image.Image, ts time.Duration) (Frame, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Frame{}, fmt.Errorf("video: encode frame at %v: %w", ts, err)
	}
	b := img.Bounds()
	return Frame{
		Data:      buf.Bytes(),
		MIMEType:  "image/jpeg",
		Timestamp: ts,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

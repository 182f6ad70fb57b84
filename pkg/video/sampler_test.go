package video_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/pvanloo/sonoria/pkg/video"
)

// fakeSource serves synthetic frames and records every requested timestamp.
type fakeSource struct {
	duration time.Duration
	bounds   image.Rectangle
	frameErr error
	failAt   int // FrameAt call index that returns frameErr; -1 disables

	calls []time.Duration
}

func newFakeSource(duration time.Duration) *fakeSource {
	return &fakeSource{
		duration: duration,
		bounds:   image.Rect(0, 0, 64, 48),
		failAt:   -1,
	}
}

func (s *fakeSource) Duration() time.Duration { return s.duration }
func (s *fakeSource) Bounds() image.Rectangle { return s.bounds }

func (s *fakeSource) FrameAt(ctx context.Context, ts time.Duration) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failAt >= 0 && len(s.calls) == s.failAt {
		return nil, s.frameErr
	}
	s.calls = append(s.calls, ts)

	img := image.NewRGBA(s.bounds)
	// Shade varies with timestamp so frames are distinguishable.
	shade := uint8(ts / time.Second)
	for y := s.bounds.Min.Y; y < s.bounds.Max.Y; y++ {
		for x := s.bounds.Min.X; x < s.bounds.Max.X; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	return img, nil
}

func TestExtractFrames_DurationBound(t *testing.T) {
	t.Parallel()

	src := newFakeSource(30 * time.Second)
	frames, err := video.ExtractFrames(context.Background(), src, 1, 50)
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 30 {
		t.Fatalf("frame count = %d; want 30", len(frames))
	}
	for i, f := range frames {
		want := time.Duration(i) * time.Second
		if f.Timestamp != want {
			t.Errorf("frame %d timestamp = %v; want %v", i, f.Timestamp, want)
		}
	}
}

func TestExtractFrames_MaxFramesCap(t *testing.T) {
	t.Parallel()

	src := newFakeSource(120 * time.Second)
	frames, err := video.ExtractFrames(context.Background(), src, 1, 50)
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 50 {
		t.Fatalf("frame count = %d; want 50", len(frames))
	}
	last := frames[len(frames)-1]
	if want := 49 * time.Second; last.Timestamp != want {
		t.Errorf("last timestamp = %v; want %v", last.Timestamp, want)
	}
}

func TestExtractFrames_IncreasingOrder(t *testing.T) {
	t.Parallel()

	src := newFakeSource(10 * time.Second)
	frames, err := video.ExtractFrames(context.Background(), src, 2, 100)
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 20 {
		t.Fatalf("frame count = %d; want 20", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Timestamp <= frames[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing at %d: %v <= %v",
				i, frames[i].Timestamp, frames[i-1].Timestamp)
		}
	}
	// Seeks must be sequential and match the returned frames.
	if len(src.calls) != len(frames) {
		t.Errorf("seek count = %d; want %d", len(src.calls), len(frames))
	}
}

func TestExtractFrames_JPEGOutput(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2 * time.Second)
	frames, err := video.ExtractFrames(context.Background(), src, 1, 10)
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frame count = %d; want 2", len(frames))
	}
	for i, f := range frames {
		if f.MIMEType != "image/jpeg" {
			t.Errorf("frame %d MIMEType = %q", i, f.MIMEType)
		}
		if f.Width != 64 || f.Height != 48 {
			t.Errorf("frame %d dims = %dx%d; want 64x48", i, f.Width, f.Height)
		}
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			t.Fatalf("frame %d does not decode as JPEG: %v", i, err)
		}
		if got := img.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
			t.Errorf("frame %d decoded dims = %v", i, got)
		}
	}
}

func TestExtractFrames_Cancellation(t *testing.T) {
	t.Parallel()

	src := newFakeSource(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := video.ExtractFrames(ctx, src, 1, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if len(src.calls) != 0 {
		t.Errorf("cancelled extraction performed %d seeks; want 0", len(src.calls))
	}
}

func TestExtractFrames_SourceFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource(time.Minute)
	src.failAt = 3
	src.frameErr = errors.New("decoder stall")

	_, err := video.ExtractFrames(context.Background(), src, 1, 10)
	if err == nil || !errors.Is(err, src.frameErr) {
		t.Fatalf("err = %v; want wrapped decoder stall", err)
	}
}

func TestExtractFrames_InvalidArgs(t *testing.T) {
	t.Parallel()

	src := newFakeSource(time.Minute)

	if _, err := video.ExtractFrames(context.Background(), nil, 1, 10); !errors.Is(err, video.ErrVideoLoad) {
		t.Errorf("nil source: err = %v; want ErrVideoLoad", err)
	}
	if _, err := video.ExtractFrames(context.Background(), src, 0, 10); err == nil {
		t.Error("zero fps should fail")
	}
	if _, err := video.ExtractFrames(context.Background(), src, 1, 0); err == nil {
		t.Error("zero maxFrames should fail")
	}
	if _, err := video.ExtractFrames(context.Background(), newFakeSource(0), 1, 10); !errors.Is(err, video.ErrVideoLoad) {
		t.Error("zero-duration source should fail with ErrVideoLoad")
	}
}

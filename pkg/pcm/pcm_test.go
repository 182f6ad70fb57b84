package pcm_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pvanloo/sonoria/pkg/pcm"
)

func TestBase64RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0x01, 0x02, 0x03, 0x04},
		{0xFF, 0xFE, 0x80, 0x7F, 0x00},
	}
	for _, in := range inputs {
		got, err := pcm.DecodeBase64(pcm.EncodeBase64(in))
		if err != nil {
			t.Fatalf("DecodeBase64: %v", err)
		}
		if string(got) != string(in) {
			t.Errorf("round trip = %v; want %v", got, in)
		}
	}
}

func TestDecodeBase64_Invalid(t *testing.T) {
	_, err := pcm.DecodeBase64("not*base64!")
	if !errors.Is(err, pcm.ErrDecode) {
		t.Errorf("err = %v; want ErrDecode", err)
	}
}

func TestFloatsToPCM16_KnownValues(t *testing.T) {
	got := pcm.FloatsToPCM16([]float32{0, 0.5, -0.5})
	want := []byte{
		0x00, 0x00, // 0
		0x00, 0x40, // 16384
		0x00, 0xC0, // -16384
	}
	if len(got) != len(want) {
		t.Fatalf("length = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %#x; want %#x", i, got[i], want[i])
		}
	}
}

func TestFloatsToPCM16_ClampsOutOfRange(t *testing.T) {
	out := pcm.FloatsToPCM16([]float32{1.5, -1.5, 1.0})
	samples, err := pcm.PCM16ToFloatsMono(out)
	if err != nil {
		t.Fatalf("PCM16ToFloatsMono: %v", err)
	}
	// 1.5 and 1.0 both clamp to 32767; -1.5 clamps to -32768.
	if samples[0] < 0.99 {
		t.Errorf("sample 0 = %f; want ~1.0 (clamped, not wrapped)", samples[0])
	}
	if samples[1] > -0.99 {
		t.Errorf("sample 1 = %f; want ~-1.0 (clamped, not wrapped)", samples[1])
	}
	if samples[2] < 0.99 {
		t.Errorf("sample 2 = %f; want ~1.0", samples[2])
	}
}

func TestFloatPCMRoundTrip_WithinQuantisationError(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.999, -1.0, 0.123456, -0.654321}
	out, err := pcm.PCM16ToFloatsMono(pcm.FloatsToPCM16(in))
	if err != nil {
		t.Fatalf("PCM16ToFloatsMono: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d; want %d", len(out), len(in))
	}
	const eps = 1.0 / 32768.0
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > eps {
			t.Errorf("sample %d: got %f, want %f (diff %g > %g)", i, out[i], in[i], diff, eps)
		}
	}
}

func TestPCM16ToFloats_Stereo(t *testing.T) {
	// Two interleaved stereo frames: (L=0.5, R=-0.5), (L=0.25, R=-0.25).
	interleaved := pcm.FloatsToPCM16([]float32{0.5, -0.5, 0.25, -0.25})
	chans, err := pcm.PCM16ToFloats(interleaved, 2)
	if err != nil {
		t.Fatalf("PCM16ToFloats: %v", err)
	}
	if len(chans) != 2 {
		t.Fatalf("channels = %d; want 2", len(chans))
	}
	if len(chans[0]) != 2 || len(chans[1]) != 2 {
		t.Fatalf("frames per channel = %d/%d; want 2/2", len(chans[0]), len(chans[1]))
	}
	if chans[0][0] < 0.49 || chans[1][0] > -0.49 {
		t.Errorf("frame 0 = (%f, %f); want (~0.5, ~-0.5)", chans[0][0], chans[1][0])
	}
}

func TestPCM16ToFloats_MalformedLength(t *testing.T) {
	_, err := pcm.PCM16ToFloats([]byte{0x01, 0x02, 0x03}, 1)
	if !errors.Is(err, pcm.ErrMalformedAudio) {
		t.Errorf("err = %v; want ErrMalformedAudio", err)
	}
	// Even byte count but not a whole number of stereo frames.
	_, err = pcm.PCM16ToFloats([]byte{0x01, 0x02}, 2)
	if !errors.Is(err, pcm.ErrMalformedAudio) {
		t.Errorf("err = %v; want ErrMalformedAudio", err)
	}
}

func TestPCM16ToFloats_InvalidChannels(t *testing.T) {
	if _, err := pcm.PCM16ToFloats([]byte{0x01, 0x02}, 0); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestDuration(t *testing.T) {
	// 48000 bytes of 24 kHz mono = 24000 frames = 1 s.
	if got := pcm.Duration(48000, 24000, 1); got != time.Second {
		t.Errorf("Duration = %v; want 1s", got)
	}
	// 4096 frames at 16 kHz = 256 ms.
	if got := pcm.Duration(8192, 16000, 1); got != 256*time.Millisecond {
		t.Errorf("Duration = %v; want 256ms", got)
	}
}

func TestNewEnvelope(t *testing.T) {
	env := pcm.NewEnvelope([]byte{0x01, 0x02}, 16000)
	if env.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q; want audio/pcm;rate=16000", env.MIMEType)
	}
	got, err := pcm.DecodeBase64(env.Data)
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	if string(got) != "\x01\x02" {
		t.Errorf("payload = %v; want [1 2]", got)
	}
}

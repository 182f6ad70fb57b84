package wav_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pvanloo/sonoria/pkg/wav"
)

func TestBuild_HeaderExactness(t *testing.T) {
	pcm := make([]byte, 1000)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	out, err := wav.Build(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out) != 1044 {
		t.Fatalf("length = %d; want 1044", len(out))
	}

	le := binary.LittleEndian
	if got := le.Uint32(out[4:8]); got != 1036 {
		t.Errorf("fileSize = %d; want 1036", got)
	}
	if got := le.Uint32(out[24:28]); got != 24000 {
		t.Errorf("sampleRate = %d; want 24000", got)
	}
	if got := le.Uint32(out[40:44]); got != 1000 {
		t.Errorf("dataSize = %d; want 1000", got)
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if got := le.Uint16(out[20:22]); got != 1 {
		t.Errorf("audioFormat = %d; want 1 (PCM)", got)
	}
	if got := le.Uint16(out[34:36]); got != 16 {
		t.Errorf("bitsPerSample = %d; want 16", got)
	}
	// PCM payload is copied verbatim after the header.
	for i := range pcm {
		if out[44+i] != pcm[i] {
			t.Fatalf("payload byte %d = %#x; want %#x", i, out[44+i], pcm[i])
		}
	}
}

func TestBuild_StereoRates(t *testing.T) {
	out, err := wav.Build(make([]byte, 64), 48000, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	le := binary.LittleEndian
	if got := le.Uint32(out[28:32]); got != 48000*2*2 {
		t.Errorf("byteRate = %d; want %d", got, 48000*2*2)
	}
	if got := le.Uint16(out[32:34]); got != 4 {
		t.Errorf("blockAlign = %d; want 4", got)
	}
}

func TestBuild_InvalidFormat(t *testing.T) {
	cases := []struct {
		rate, channels int
	}{
		{0, 1},
		{-1, 1},
		{24000, 0},
		{24000, -2},
	}
	for _, c := range cases {
		if _, err := wav.Build(nil, c.rate, c.channels); !errors.Is(err, wav.ErrInvalidFormat) {
			t.Errorf("Build(rate=%d, channels=%d) err = %v; want ErrInvalidFormat", c.rate, c.channels, err)
		}
	}
}

func TestParse_BuildRoundTrip(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := wav.Build(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	info, err := wav.Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.SampleRate != 24000 {
		t.Errorf("SampleRate = %d; want 24000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d; want 1", info.Channels)
	}
	if info.DataOffset != wav.HeaderSize {
		t.Errorf("DataOffset = %d; want %d", info.DataOffset, wav.HeaderSize)
	}
	if info.DataSize != len(pcm) {
		t.Errorf("DataSize = %d; want %d", info.DataSize, len(pcm))
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("short"),
		[]byte("NOTARIFFFILE"),
		[]byte("RIFF\x00\x00\x00\x00NOPE"),
	}
	for _, c := range cases {
		if _, err := wav.Parse(c); !errors.Is(err, wav.ErrMalformed) {
			t.Errorf("Parse(%q) err = %v; want ErrMalformed", c, err)
		}
	}
}

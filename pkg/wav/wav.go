// Package wav builds and parses RIFF/WAVE containers for 16-bit linear PCM.
//
// [Build] serialises a completed PCM buffer into a canonical 44-byte-header
// WAV file, as produced for text-to-speech downloads. [Parse] walks the chunk
// list of an existing container to locate the format and data chunks, which
// is more robust than assuming a fixed 44-byte offset.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the byte length of the canonical header written by [Build].
const HeaderSize = 44

// ErrInvalidFormat is returned by [Build] when the sample rate or channel
// count is not positive.
var ErrInvalidFormat = errors.New("wav: sample rate and channel count must be positive")

// ErrMalformed is returned by [Parse] when the input is not a well-formed
// RIFF/WAVE container.
var ErrMalformed = errors.New("wav: malformed RIFF/WAVE container")

// Build serialises pcm into a WAV byte buffer with a canonical 44-byte
// little-endian header: RIFF/WAVE magic, a 16-byte "fmt " sub-chunk
// (PCM format 1, 16 bits per sample), and a "data" sub-chunk followed by the
// PCM payload verbatim.
//
// The header invariants are fileSize = 36 + len(pcm),
// byteRate = sampleRate*channels*2 and blockAlign = channels*2.
func Build(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidFormat, sampleRate, channels)
	}

	out := make([]byte, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16) // fmt sub-chunk size
	le.PutUint16(out[20:22], 1)  // PCM
	le.PutUint16(out[22:24], uint16(channels))
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*channels*2)) // byte rate
	le.PutUint16(out[32:34], uint16(channels*2))            // block align
	le.PutUint16(out[34:36], 16)                            // bits per sample

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)

	return out, nil
}

// Info holds the format metadata extracted from a RIFF/WAVE header.
type Info struct {
	DataOffset int // byte offset of the first PCM sample
	DataSize   int // byte length of the PCM payload
	SampleRate int // samples per second
	Channels   int // 1 = mono, 2 = stereo
}

// Parse scans the RIFF chunk list in b and returns the data offset and audio
// format from the "fmt " sub-chunk. Returns an error wrapping [ErrMalformed]
// if b is not a valid RIFF/WAVE container or the fmt or data chunk is absent.
func Parse(b []byte) (Info, error) {
	if len(b) < 12 {
		return Info{}, fmt.Errorf("%w: %d bytes is too short for a RIFF header", ErrMalformed, len(b))
	}
	if string(b[0:4]) != "RIFF" {
		return Info{}, fmt.Errorf("%w: missing RIFF magic", ErrMalformed)
	}
	if string(b[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("%w: missing WAVE identifier", ErrMalformed)
	}

	var info Info
	foundFmt := false

	// Walk chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(b) {
		chunkID := string(b[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(b) {
				fmtData := b[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return Info{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			info.DataOffset = offset + 8
			info.DataSize = chunkSize
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Info{}, fmt.Errorf("%w: missing data chunk", ErrMalformed)
}

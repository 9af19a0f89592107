// Package wav reads and writes WAV (RIFF) audio containers.
//
// The reader walks the RIFF chunk list instead of assuming the canonical
// 44-byte layout, so files with LIST/fact/cue chunks between fmt and data
// parse fine. Only uncompressed 16-bit PCM is supported; any channel
// count and sample rate are accepted and left to the caller to normalize.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrFormat is wrapped by every parse error so callers can classify
// malformed or unsupported input without matching message text.
var ErrFormat = errors.New("wav: malformed file")

// formatPCM is the fmt-chunk audio format tag for uncompressed PCM.
const formatPCM = 1

// Audio holds decoded PCM audio. Samples are interleaved when Channels
// is greater than one.
type Audio struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames (samples per channel).
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the playing time of the audio.
func (a *Audio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

// Decode parses a WAV file held in memory.
func Decode(data []byte) (*Audio, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: %d bytes is too short for a RIFF header", ErrFormat, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE container", ErrFormat)
	}

	var (
		audio   Audio
		sawFmt  bool
		sawData bool
	)

	// Walk the chunk list. Chunk payloads are padded to even lengths.
	off := 12
	for off+8 <= len(data) && !sawData {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("%w: chunk %q overruns file", ErrFormat, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk is %d bytes, want at least 16", ErrFormat, size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			rate := binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])

			if format != formatPCM {
				return nil, fmt.Errorf("%w: unsupported codec %d, only PCM is supported", ErrFormat, format)
			}
			if bits != 16 {
				return nil, fmt.Errorf("%w: unsupported bit depth %d, only 16-bit is supported", ErrFormat, bits)
			}
			if channels == 0 {
				return nil, fmt.Errorf("%w: zero channels", ErrFormat)
			}
			if rate == 0 {
				return nil, fmt.Errorf("%w: zero sample rate", ErrFormat)
			}
			audio.Channels = int(channels)
			audio.SampleRate = int(rate)
			sawFmt = true

		case "data":
			if !sawFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrFormat)
			}
			if size%2 != 0 {
				return nil, fmt.Errorf("%w: data chunk has odd length %d", ErrFormat, size)
			}
			audio.Samples = make([]int16, size/2)
			for i := range audio.Samples {
				audio.Samples[i] = int16(binary.LittleEndian.Uint16(data[body+2*i : body+2*i+2]))
			}
			sawData = true
		}

		off = body + size
		if size%2 == 1 {
			off++ // pad byte
		}
	}

	if !sawFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrFormat)
	}
	if !sawData {
		return nil, fmt.Errorf("%w: missing data chunk", ErrFormat)
	}
	if len(audio.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty data chunk", ErrFormat)
	}
	if len(audio.Samples)%audio.Channels != 0 {
		return nil, fmt.Errorf("%w: sample count %d not divisible by %d channels", ErrFormat, len(audio.Samples), audio.Channels)
	}
	return &audio, nil
}

// Encode writes audio as a canonical 44-byte-header WAV file.
func Encode(a *Audio) ([]byte, error) {
	if len(a.Samples) == 0 {
		return nil, errors.New("wav: no samples to encode")
	}
	if a.Channels <= 0 {
		return nil, fmt.Errorf("wav: invalid channel count %d", a.Channels)
	}
	if a.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", a.SampleRate)
	}

	dataSize := len(a.Samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(a.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(a.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(a.SampleRate*a.Channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(a.Channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range a.Samples {
		binary.LittleEndian.PutUint16(buf[44+2*i:46+2*i], uint16(s))
	}
	return buf, nil
}

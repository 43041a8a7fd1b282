// Package wav wraps raw little-endian PCM into a RIFF/WAVE container and
// reads it back.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	headerSize   = 44
	maxChunkSize = 256 * 1024 * 1024
)

// Format describes interleaved integer PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Mono24K16 is what speech models return: 24 kHz, one channel, 16-bit.
var Mono24K16 = Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitDepth <= 0 || f.BitDepth%8 != 0 {
		return fmt.Errorf("wav: invalid format %+v", f)
	}
	return nil
}

// BlockAlign is the size in bytes of one frame across all channels.
func (f Format) BlockAlign() int { return f.Channels * f.BitDepth / 8 }

// ByteRate is the number of PCM bytes per second.
func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// Duration returns the playback time of n PCM bytes.
func (f Format) Duration(n int) time.Duration {
	br := f.ByteRate()
	if br <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(br))
}

// Encode returns a complete WAV file holding pcm. A trailing partial
// frame is rejected since players would misalign every following sample.
func Encode(pcm []byte, f Format) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if len(pcm)%f.BlockAlign() != 0 {
		return nil, fmt.Errorf("wav: %d bytes is not a whole number of %d-byte frames", len(pcm), f.BlockAlign())
	}
	if len(pcm) > maxChunkSize {
		return nil, fmt.Errorf("wav: pcm too large (%d bytes)", len(pcm))
	}
	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm))
	if err := WriteHeader(&buf, f, len(pcm)); err != nil {
		return nil, err
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// WriteHeader writes the 44-byte canonical header for dataSize bytes of PCM.
func WriteHeader(w io.Writer, f Format, dataSize int) error {
	if err := f.validate(); err != nil {
		return err
	}
	header := make([]byte, headerSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(header[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(header[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(header[34:36], uint16(f.BitDepth))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	return nil
}

// Decode parses a WAV file and returns its format and PCM payload.
// Unknown chunks (LIST, fact, ...) are skipped.
func Decode(data []byte) (Format, []byte, error) {
	r := bytes.NewReader(data)
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return Format{}, nil, fmt.Errorf("wav: read header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Format{}, nil, errors.New("wav: invalid header")
	}

	var (
		format    Format
		fmtParsed bool
	)
	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			return Format{}, nil, fmt.Errorf("wav: read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])
		if chunkSize > maxChunkSize {
			return Format{}, nil, fmt.Errorf("wav: chunk %s too large (%d bytes)", strings.TrimSpace(chunkID), chunkSize)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Format{}, nil, errors.New("wav: invalid fmt chunk")
			}
			payload := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, payload); err != nil {
				return Format{}, nil, fmt.Errorf("wav: read fmt chunk: %w", err)
			}
			if audioFmt := binary.LittleEndian.Uint16(payload[0:2]); audioFmt != 1 {
				return Format{}, nil, fmt.Errorf("wav: unsupported audio format %d", audioFmt)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(payload[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(payload[4:8])),
				BitDepth:   int(binary.LittleEndian.Uint16(payload[14:16])),
			}
			if err := format.validate(); err != nil {
				return Format{}, nil, err
			}
			fmtParsed = true
		case "data":
			if !fmtParsed {
				return Format{}, nil, errors.New("wav: data chunk before fmt chunk")
			}
			if int64(chunkSize) > int64(r.Len()) {
				return Format{}, nil, fmt.Errorf("wav: data chunk truncated (%d of %d bytes)", r.Len(), chunkSize)
			}
			pcm := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return Format{}, nil, fmt.Errorf("wav: read data: %w", err)
			}
			return format, pcm, nil
		default:
			skip := int64(chunkSize)
			if skip%2 == 1 {
				skip++
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return Format{}, nil, fmt.Errorf("wav: skip chunk %s: %w", strings.TrimSpace(chunkID), err)
			}
		}
	}
}

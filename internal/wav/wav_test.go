package wav

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x00, 0x10, 0xFF, 0x7F, 0x01, 0x00}
	out, err := Encode(pcm, Mono24K16)
	require.NoError(t, err)
	require.Len(t, out, headerSize+len(pcm))

	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]))

	format, data, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, Mono24K16, format)
	assert.Equal(t, pcm, data)
}

func TestEncodeEmptyPCM(t *testing.T) {
	t.Parallel()

	out, err := Encode(nil, Mono24K16)
	require.NoError(t, err)
	format, data, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 1, format.Channels)
	assert.Empty(t, data)
}

func TestEncodeRejectsPartialFrame(t *testing.T) {
	t.Parallel()

	_, err := Encode([]byte{0x01, 0x02, 0x03}, Mono24K16)
	assert.Error(t, err)

	_, err = Encode([]byte{0x01}, Format{SampleRate: 8000, Channels: 1, BitDepth: 12})
	assert.Error(t, err)
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 2, 3, 4}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16000))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(64000))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(4))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	format, data, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Format{SampleRate: 16000, Channels: 2, BitDepth: 16}, format)
	assert.Equal(t, pcm, data)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, _, err := Decode([]byte("not-a-wav"))
	assert.Error(t, err)

	out, err := Encode([]byte{1, 2, 3, 4}, Mono24K16)
	require.NoError(t, err)
	_, _, err = Decode(out[:len(out)-2])
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, Mono24K16.Duration(48000))
	assert.Equal(t, 500*time.Millisecond, Mono24K16.Duration(24000))
	assert.Zero(t, Format{}.Duration(100))
}

package audio

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1000, -1000, 32767, -32768, 42}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	encoded, err := EncodeWAV(PCM{Data: data, SampleRate: 24000, Channels: 1})
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(encoded[:4]))
	require.Equal(t, "WAVE", string(encoded[8:12]))
	require.Len(t, encoded, 44+len(data))

	decoded, err := DecodeWAV(encoded)
	require.NoError(t, err)
	require.Equal(t, 24000, decoded.SampleRate)
	require.Equal(t, 1, decoded.Channels)
	require.Equal(t, data, decoded.Data)
}

func TestEncodeWAVRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := EncodeWAV(PCM{Data: []byte{1}, SampleRate: 16000, Channels: 1})
	require.Error(t, err)
	_, err = EncodeWAV(PCM{Data: []byte{1, 2}, SampleRate: 0, Channels: 1})
	require.Error(t, err)
	_, err = EncodeWAV(PCM{Data: []byte{1, 2}, SampleRate: 16000, Channels: 0})
	require.Error(t, err)
}

func TestDecodeWAVInvalid(t *testing.T) {
	t.Parallel()

	_, err := DecodeWAV([]byte("definitely not riff data"))
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	t.Parallel()

	p := PCM{Data: make([]byte, 48000*2*2), SampleRate: 48000, Channels: 2}
	require.InDelta(t, 1.0, p.Duration(), 1e-9)
	require.Zero(t, PCM{}.Duration())
}

func TestSeekBuffer(t *testing.T) {
	t.Parallel()

	var sb seekBuffer
	_, _ = sb.Write([]byte("hello world"))
	_, err := sb.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, _ = sb.Write([]byte("J"))
	pos, err := sb.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.EqualValues(t, 11, pos)
	require.Equal(t, "Jello world", string(sb.Bytes()))
}

// Package audio encodes synthesized PCM into the WAV container and back.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ContainerWAV is the only container the pipeline emits.
const ContainerWAV = "wav"

// PCM is interleaved signed 16-bit little-endian audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Data)/2/p.Channels) / float64(p.SampleRate)
}

// EncodeWAV wraps 16-bit PCM in a WAV container.
func EncodeWAV(pcm PCM) ([]byte, error) {
	if pcm.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", pcm.SampleRate)
	}
	if pcm.Channels <= 0 {
		return nil, fmt.Errorf("channels must be positive, got %d", pcm.Channels)
	}
	if len(pcm.Data)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: pcm.Channels, SampleRate: pcm.SampleRate},
		SourceBitDepth: 16,
	}
	samples := make([]int, len(pcm.Data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm.Data[i*2:])))
	}
	buffer.Data = samples

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, pcm.SampleRate, 16, pcm.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeWAV reads a PCM WAV file and converts its samples to 16-bit PCM.
func DecodeWAV(data []byte) (PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}

	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = 16
	}
	out := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(rescale(s, depth))))
	}
	return PCM{Data: out, SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}

func rescale(sample, depth int) int {
	switch {
	case depth == 8:
		// 8-bit wav is unsigned
		return (sample - 128) << 8
	case depth > 16:
		return sample >> (depth - 16)
	case depth < 16:
		return sample << (16 - depth)
	default:
		return sample
	}
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

var _ io.WriteSeeker = (*seekBuffer)(nil)

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		if end > cap(s.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, s.buf)
			s.buf = grown
		} else {
			s.buf = s.buf[:end]
		}
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = int(next)
	return next, nil
}

func (s *seekBuffer) Bytes() []byte { return s.buf }

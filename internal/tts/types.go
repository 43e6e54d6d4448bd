package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-reader/internal/audio"
)

// ErrNoAudio is returned by Collect when a backend finished without emitting audio.
var ErrNoAudio = errors.New("tts: synthesizer produced no audio")

// Style carries the delivery knobs passed through to the backend.
type Style struct {
	EmotionIntensity float64 `json:"emotion_intensity"`
	StyleAdherence   float64 `json:"style_adherence"`
}

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID string
	Text      string
	VoicePath string
	Style     Style
}

// SynthChunk contains 16-bit little-endian PCM data.
type SynthChunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio. Implementations close
// both channels when they are done and send at most one error.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// Collect drains a synthesis stream into a single PCM buffer. If ctx is
// cancelled first, the remaining stream is drained in the background.
func Collect(ctx context.Context, chunks <-chan SynthChunk, errs <-chan error) (audio.PCM, error) {
	var (
		out      audio.PCM
		received bool
		firstErr error
	)
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			go drain(chunks, errs)
			return audio.PCM{}, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if firstErr != nil {
				continue
			}
			if !received {
				out.SampleRate = chunk.SampleRate
				out.Channels = chunk.Channels
				received = true
			} else if chunk.SampleRate != out.SampleRate || chunk.Channels != out.Channels {
				firstErr = fmt.Errorf("tts: chunk %d format %dHz/%dch does not match %dHz/%dch",
					chunk.Sequence, chunk.SampleRate, chunk.Channels, out.SampleRate, out.Channels)
				continue
			}
			out.Data = append(out.Data, chunk.PCM...)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return audio.PCM{}, firstErr
	}
	if !received {
		return audio.PCM{}, ErrNoAudio
	}
	return out, nil
}

func drain(chunks <-chan SynthChunk, errs <-chan error) {
	for chunks != nil || errs != nil {
		select {
		case _, ok := <-chunks:
			if !ok {
				chunks = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}

// Render runs one request through s and collects the result.
func Render(ctx context.Context, s Synthesizer, req SynthRequest) (audio.PCM, error) {
	chunks, errs := s.Synthesize(ctx, req)
	return Collect(ctx, chunks, errs)
}

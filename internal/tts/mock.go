package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"unicode/utf8"
)

// Each rune of input produces this many milliseconds of audio.
const mockMillisPerRune = 40

type mockSynth struct {
	sampleRate int
	channels   int
}

// NewMockSynth returns a backend that emits a quiet tone whose length tracks
// the input text. It still requires the voice reference file to exist.
func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		if err := ctx.Err(); err != nil {
			errs <- err
			return
		}
		if req.VoicePath == "" {
			errs <- fmt.Errorf("mock tts: voice reference path is empty")
			return
		}
		if _, err := os.Stat(req.VoicePath); err != nil {
			errs <- fmt.Errorf("mock tts: voice reference: %w", err)
			return
		}
		chunks <- SynthChunk{
			SessionID:  req.SessionID,
			Sequence:   0,
			SampleRate: m.sampleRate,
			Channels:   m.channels,
			PCM:        m.tone(utf8.RuneCountInString(req.Text), req.Style.EmotionIntensity),
			Final:      true,
		}
	}()
	return chunks, errs
}

func (m *mockSynth) tone(runes int, intensity float64) []byte {
	frames := m.sampleRate * runes * mockMillisPerRune / 1000
	amplitude := 1000 + 3000*intensity
	pcm := make([]byte, 0, frames*m.channels*2)
	for i := 0; i < frames; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*220*float64(i)/float64(m.sampleRate)))
		for c := 0; c < m.channels; c++ {
			pcm = append(pcm, byte(v), byte(uint16(v)>>8))
		}
	}
	return pcm
}

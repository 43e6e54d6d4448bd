package session

import (
	"fmt"

	"github.com/loqalabs/loqa-reader/internal/config"
	"github.com/loqalabs/loqa-reader/internal/text"
	"github.com/loqalabs/loqa-reader/internal/tts"
)

// Settings are the per-session narration knobs.
type Settings struct {
	EmotionIntensity float64 `json:"emotion_intensity"`
	StyleAdherence   float64 `json:"style_adherence"`
	ChunkMaxLength   int     `json:"chunk_max_length"`
}

func DefaultSettings(cfg config.NarrationConfig) Settings {
	return Settings{
		EmotionIntensity: cfg.EmotionIntensity,
		StyleAdherence:   cfg.StyleAdherence,
		ChunkMaxLength:   cfg.ChunkMaxLength,
	}
}

// Validate rejects out of range values before any chunking happens.
func (s Settings) Validate() error {
	if s.EmotionIntensity < 0 || s.EmotionIntensity > 1 {
		return &text.InvalidConfigError{Field: "emotion_intensity", Value: s.EmotionIntensity, Reason: "must be between 0 and 1"}
	}
	if s.StyleAdherence < 0 || s.StyleAdherence > 1 {
		return &text.InvalidConfigError{Field: "style_adherence", Value: s.StyleAdherence, Reason: "must be between 0 and 1"}
	}
	if s.ChunkMaxLength < config.MinChunkMaxLength || s.ChunkMaxLength > config.MaxChunkMaxLength {
		return &text.InvalidConfigError{Field: "chunk_max_length", Value: s.ChunkMaxLength, Reason: fmt.Sprintf("must be between %d and %d", config.MinChunkMaxLength, config.MaxChunkMaxLength)}
	}
	return nil
}

func (s Settings) style() tts.Style {
	return tts.Style{EmotionIntensity: s.EmotionIntensity, StyleAdherence: s.StyleAdherence}
}

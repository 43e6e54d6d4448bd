package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.Mode != "mock" {
		t.Fatalf("expected mock tts mode, got %q", cfg.TTS.Mode)
	}
	if cfg.Narration.ChunkMaxLength != 500 {
		t.Fatalf("expected default chunk length 500, got %d", cfg.Narration.ChunkMaxLength)
	}
	if cfg.Narration.EmotionIntensity != 0.5 || cfg.Narration.StyleAdherence != 0.5 {
		t.Fatalf("unexpected style defaults: %+v", cfg.Narration)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loqa.yaml")
	data := `
runtime_name: reader-test
tts:
  mode: http
  endpoint: http://localhost:9000/tts
narration:
  chunk_max_length: 250
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "reader-test" {
		t.Fatalf("expected runtime name override, got %q", cfg.RuntimeName)
	}
	if cfg.TTS.Endpoint != "http://localhost:9000/tts" {
		t.Fatalf("expected endpoint from file")
	}
	if cfg.Narration.ChunkMaxLength != 250 {
		t.Fatalf("expected chunk length 250, got %d", cfg.Narration.ChunkMaxLength)
	}
	if cfg.TTS.SampleRate != 24000 {
		t.Fatalf("expected default sample rate to survive partial file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_ENABLED", "true")
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_BUS_USERNAME", "alice")
	t.Setenv("LOQA_BUS_PASSWORD", "secret")
	t.Setenv("LOQA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_JOURNAL_PATH", "./tmp.db")
	t.Setenv("LOQA_JOURNAL_RETENTION_MODE", "persistent")
	t.Setenv("LOQA_JOURNAL_RETENTION_DAYS", "7")
	t.Setenv("LOQA_TTS_MODE", "exec")
	t.Setenv("LOQA_TTS_COMMAND", "python3 synth.py --device cpu")
	t.Setenv("LOQA_NARRATION_EMOTION_INTENSITY", "0.8")
	t.Setenv("LOQA_NARRATION_CHUNK_MAX_LENGTH", "750")
	t.Setenv("LOQA_NARRATION_MAX_DOCUMENT_BYTES", "1048576")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Bus.Enabled {
		t.Fatal("expected bus enabled override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Journal.Path != "./tmp.db" || cfg.Journal.RetentionMode != "persistent" || cfg.Journal.RetentionDays != 7 {
		t.Fatalf("expected journal overrides, got %+v", cfg.Journal)
	}
	if cfg.TTS.Mode != "exec" || cfg.TTS.Command != "python3 synth.py --device cpu" {
		t.Fatalf("expected tts overrides, got %+v", cfg.TTS)
	}
	if cfg.Narration.EmotionIntensity != 0.8 {
		t.Fatalf("expected emotion override, got %v", cfg.Narration.EmotionIntensity)
	}
	if cfg.Narration.ChunkMaxLength != 750 {
		t.Fatalf("expected chunk length override, got %d", cfg.Narration.ChunkMaxLength)
	}
	if cfg.Narration.MaxDocumentBytes != 1<<20 {
		t.Fatalf("expected max document bytes override, got %d", cfg.Narration.MaxDocumentBytes)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"chunk_max_length": func(c *Config) { c.Narration.ChunkMaxLength = 50 },
		"emotion_intensity": func(c *Config) { c.Narration.EmotionIntensity = 1.5 },
		"style_adherence":  func(c *Config) { c.Narration.StyleAdherence = -0.1 },
		"tts.mode":         func(c *Config) { c.TTS.Mode = "cloud" },
		"tts.command":      func(c *Config) { c.TTS.Mode = "exec" },
		"tts.endpoint":     func(c *Config) { c.TTS.Mode = "http" },
		"retention_mode":   func(c *Config) { c.Journal.RetentionMode = "forever" },
		"log_level":        func(c *Config) { c.Telemetry.LogLevel = "chatty" },
	}
	for want, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		err := validate(cfg)
		if err == nil {
			t.Fatalf("expected validation error mentioning %s", want)
		}
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error mentioning %s, got %v", want, err)
		}
	}
}

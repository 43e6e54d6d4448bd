package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-reader/internal/config"
	"github.com/loqalabs/loqa-reader/internal/document"
	"github.com/loqalabs/loqa-reader/internal/logging"
	"github.com/loqalabs/loqa-reader/internal/narrator"
	"github.com/loqalabs/loqa-reader/internal/session"
	"github.com/loqalabs/loqa-reader/internal/text"
	"github.com/loqalabs/loqa-reader/internal/tts"
)

var version = "0.1.0-dev"

type narrateOptions struct {
	configPath string
	document   string
	voice      string
	outDir     string
	chunk      int
	maxLength  int
	emotion    float64
	adherence  float64
}

func main() {
	var opts narrateOptions
	narrateCmd := flag.NewFlagSet("narrate", flag.ExitOnError)
	narrateCmd.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	narrateCmd.StringVar(&opts.document, "document", "", "Document to narrate (pdf, docx, epub, txt)")
	narrateCmd.StringVar(&opts.voice, "voice", "", "Reference voice sample")
	narrateCmd.StringVar(&opts.outDir, "out", "narration", "Directory for chunk-NNNN.wav files")
	narrateCmd.IntVar(&opts.chunk, "chunk", -1, "Only synthesize this chunk index")
	narrateCmd.IntVar(&opts.maxLength, "max", 0, "Chunk length override (100-1000)")
	narrateCmd.Float64Var(&opts.emotion, "emotion", -1, "Emotion intensity override (0-1)")
	narrateCmd.Float64Var(&opts.adherence, "adherence", -1, "Style adherence override (0-1)")

	var (
		chunksDoc string
		chunksMax int
	)
	chunksCmd := flag.NewFlagSet("chunks", flag.ExitOnError)
	chunksCmd.StringVar(&chunksDoc, "document", "", "Document to chunk")
	chunksCmd.IntVar(&chunksMax, "max", 500, "Maximum chunk length")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'narrate', 'chunks' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "narrate":
		narrateCmd.Parse(os.Args[2:])
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err := runNarrate(ctx, opts, os.Stdout)
		stop()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "chunks":
		chunksCmd.Parse(os.Args[2:])
		if err := runChunks(chunksDoc, chunksMax, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runChunks(path string, maxLength int, out io.Writer) error {
	if path == "" {
		return errors.New("-document is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	raw, err := document.ExtractFile(filepath.Base(path), data)
	if err != nil {
		return err
	}
	chunks, err := text.Split(text.Normalize(raw), maxLength)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		fmt.Fprintf(out, "%4d  %s\n", c.Index, c.Text)
	}
	fmt.Fprintf(out, "%d chunks\n", len(chunks))
	return nil
}

func runNarrate(ctx context.Context, opts narrateOptions, out io.Writer) error {
	if opts.document == "" || opts.voice == "" {
		return errors.New("-document and -voice are required")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Telemetry, os.Stderr, logging.FormatText)
	if err != nil {
		return err
	}
	defer closeLog()

	synth, err := tts.New(cfg.TTS)
	if err != nil {
		return fmt.Errorf("initialize tts: %w", err)
	}
	orchestrator := narrator.New(synth, narrator.Options{
		VoiceDir:     cfg.TTS.VoiceTempDir,
		ChunkTimeout: time.Duration(cfg.TTS.TimeoutMS) * time.Millisecond,
	}, logger)
	sessions := session.NewManager(cfg.Narration, orchestrator, session.Deps{}, logger)
	s, err := sessions.Create(ctx)
	if err != nil {
		return err
	}

	settings := s.Settings()
	if opts.maxLength > 0 {
		settings.ChunkMaxLength = opts.maxLength
	}
	if opts.emotion >= 0 {
		settings.EmotionIntensity = opts.emotion
	}
	if opts.adherence >= 0 {
		settings.StyleAdherence = opts.adherence
	}
	if _, err := s.Configure(ctx, settings); err != nil {
		return err
	}

	docData, err := os.ReadFile(opts.document)
	if err != nil {
		return err
	}
	info, err := s.Load(ctx, filepath.Base(opts.document), docData)
	if err != nil {
		return err
	}
	voiceData, err := os.ReadFile(opts.voice)
	if err != nil {
		return err
	}
	if err := s.SetVoice(ctx, voiceData); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d characters, %d chunks\n", info.Document, info.Characters, info.Chunks)

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if opts.chunk >= 0 {
		if _, err := s.GenerateOne(ctx, opts.chunk); err != nil {
			return err
		}
		return writeChunk(s, opts.outDir, opts.chunk, out)
	}

	summary, genErr := s.GenerateAll(ctx, func(p narrator.Progress) {
		status := "ok"
		if p.Err != nil {
			status = "failed: " + p.Err.Error()
		}
		fmt.Fprintf(out, "[%d/%d] chunk %d %s\n", p.Completed, p.Total, p.Index, status)
	})
	for i := 0; i < summary.Total; i++ {
		if err := writeChunk(s, opts.outDir, i, out); err != nil && !errors.Is(err, errNoAudio) {
			return err
		}
	}
	fmt.Fprintln(out, summary.Message())
	logger.Info("narration finished",
		slog.String("document", info.Document),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", len(summary.Failed)),
		slog.String("out", opts.outDir),
	)
	return genErr
}

var errNoAudio = errors.New("no audio")

func writeChunk(s *session.Session, dir string, index int, out io.Writer) error {
	result, ok, err := s.Audio(index)
	if err != nil {
		return err
	}
	if !ok {
		return errNoAudio
	}
	path := filepath.Join(dir, fmt.Sprintf("chunk-%04d.wav", index))
	if err := os.WriteFile(path, result.Audio, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "wrote %s (%.1fs)\n", path, result.Duration)
	return nil
}

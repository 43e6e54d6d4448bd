// Package narrator turns chunked text into per-chunk audio using a voice
// cloning synthesizer.
//
// An Orchestrator is single flight: one GenerateOne or GenerateAll runs at a
// time, and chunks of a batch are synthesized strictly in index order. The
// voice sample is written to a temporary file for the duration of one call or
// one batch and removed on every exit path.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-reader/internal/audio"
	"github.com/loqalabs/loqa-reader/internal/audiostore"
	"github.com/loqalabs/loqa-reader/internal/journal"
	"github.com/loqalabs/loqa-reader/internal/text"
	"github.com/loqalabs/loqa-reader/internal/tts"
	"github.com/loqalabs/loqa-reader/internal/voice"
)

const instrumentationName = "github.com/loqalabs/loqa-reader/narrator"

// Recorder receives journal events. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, sessionID string, typ journal.EventType, payload any) error
}

// SynthesisFailure reports that one chunk produced no audio.
type SynthesisFailure struct {
	Index int
	Err   error
}

func (e *SynthesisFailure) Error() string {
	return fmt.Sprintf("synthesis failed for chunk %d: %v", e.Index, e.Err)
}

func (e *SynthesisFailure) Unwrap() error { return e.Err }

// Job is everything one generation needs besides the target store.
type Job struct {
	SessionID string
	Chunks    []text.Chunk
	Voice     []byte
	Style     tts.Style
}

// Progress is reported after every chunk of a batch, whatever its outcome.
type Progress struct {
	Index     int
	Completed int
	Total     int
	Succeeded bool
	Err       error
}

type ProgressFunc func(Progress)

// Summary describes a finished batch.
type Summary struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Failed    []int `json:"failed,omitempty"`
	Cancelled bool  `json:"cancelled,omitempty"`
}

func (s Summary) Message() string {
	return fmt.Sprintf("Generated audio for %d out of %d chunks", s.Succeeded, s.Total)
}

type Options struct {
	// VoiceDir holds temporary voice files; empty means os.TempDir.
	VoiceDir     string
	ChunkTimeout time.Duration
	Recorder     Recorder
}

type Orchestrator struct {
	mu       sync.Mutex
	synth    tts.Synthesizer
	voiceDir string
	timeout  time.Duration
	recorder Recorder
	log      *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics
}

func New(synth tts.Synthesizer, opts Options, logger *slog.Logger) *Orchestrator {
	log := logger.With(slog.String("component", "narrator"))
	m, err := newMetrics(otel.Meter(instrumentationName))
	if err != nil {
		log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		m = noopMetrics()
	}
	return &Orchestrator{
		synth:    synth,
		voiceDir: opts.VoiceDir,
		timeout:  opts.ChunkTimeout,
		recorder: opts.Recorder,
		log:      log,
		tracer:   otel.Tracer(instrumentationName),
		metrics:  m,
	}
}

// GenerateOne synthesizes a single chunk into store. The voice file lives
// only for this call. A failed synthesis leaves an absence marker in the
// slot and returns *SynthesisFailure.
func (o *Orchestrator) GenerateOne(ctx context.Context, store *audiostore.Store, job Job, index int) (audiostore.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if index < 0 || index >= len(job.Chunks) || index >= store.Len() {
		return audiostore.Result{}, &audiostore.IndexError{Index: index, Len: len(job.Chunks)}
	}

	ctx, span := o.tracer.Start(ctx, "narrator.generate_one", trace.WithAttributes(
		attribute.String("session_id", job.SessionID),
		attribute.Int("chunk.index", index),
	))
	defer span.End()

	ref, err := voice.Acquire(o.voiceDir, job.Voice, o.log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "voice acquisition failed")
		return audiostore.Result{}, err
	}
	defer ref.Release()

	chunk := job.Chunks[index]
	result, err := o.synthesize(ctx, "single", job, ref.Path(), chunk)
	if err != nil {
		failure := &SynthesisFailure{Index: index, Err: err}
		o.markFailed(ctx, store, job.SessionID, failure)
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return audiostore.Result{}, failure
	}
	if err := store.Set(index, result); err != nil {
		return audiostore.Result{}, err
	}
	o.record(ctx, job.SessionID, journal.EventChunkSynthesized, chunkEvent(index, result))
	return result, nil
}

// GenerateAll resets store to len(job.Chunks) slots and synthesizes every
// chunk in order with a single voice file. Per-chunk failures become absent
// slots and never end the batch. Only voice acquisition failure or ctx
// cancellation return an error; in the latter case the summary still covers
// the chunks attempted so far.
func (o *Orchestrator) GenerateAll(ctx context.Context, store *audiostore.Store, job Job, progress ProgressFunc) (Summary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := len(job.Chunks)
	store.Reset(total)
	summary := Summary{Total: total}
	if total == 0 {
		return summary, nil
	}

	ctx, span := o.tracer.Start(ctx, "narrator.generate_all", trace.WithAttributes(
		attribute.String("session_id", job.SessionID),
		attribute.Int("chunks.total", total),
	))
	defer span.End()

	log := o.log.With(slog.String("session_id", job.SessionID))
	started := time.Now()

	ref, err := voice.Acquire(o.voiceDir, job.Voice, o.log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "voice acquisition failed")
		o.record(ctx, job.SessionID, journal.EventBatchFailed, map[string]any{"error": err.Error()})
		log.Error("batch aborted", slog.String("error", err.Error()))
		return summary, err
	}
	defer ref.Release()

	for i, chunk := range job.Chunks {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			break
		}

		result, err := o.synthesize(ctx, "batch", job, ref.Path(), chunk)
		if err == nil {
			err = store.Set(i, result)
		}
		if err != nil {
			failure := &SynthesisFailure{Index: i, Err: err}
			o.markFailed(ctx, store, job.SessionID, failure)
			summary.Failed = append(summary.Failed, i)
			err = failure
		} else {
			summary.Succeeded++
			o.record(ctx, job.SessionID, journal.EventChunkSynthesized, chunkEvent(i, result))
		}

		if progress != nil {
			progress(Progress{
				Index:     i,
				Completed: i + 1,
				Total:     total,
				Succeeded: err == nil,
				Err:       err,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("chunks.succeeded", summary.Succeeded),
		attribute.Int("chunks.failed", len(summary.Failed)),
	)

	if summary.Cancelled {
		err := ctx.Err()
		span.SetStatus(codes.Error, "cancelled")
		o.record(ctx, job.SessionID, journal.EventBatchFailed, map[string]any{
			"error":     err.Error(),
			"succeeded": summary.Succeeded,
			"total":     total,
		})
		log.Warn("batch cancelled",
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("total", total))
		return summary, err
	}

	o.record(ctx, job.SessionID, journal.EventBatchCompleted, map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"total":     total,
	})
	log.Info(summary.Message(), slog.Duration("elapsed", time.Since(started)))
	return summary, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, mode string, job Job, voicePath string, chunk text.Chunk) (result audiostore.Result, err error) {
	ctx, span := o.tracer.Start(ctx, "narrator.synthesize_chunk", trace.WithAttributes(
		attribute.Int("chunk.index", chunk.Index),
		attribute.Int("chunk.runes", len([]rune(chunk.Text))),
	))
	started := time.Now()
	defer func() {
		o.metrics.observe(ctx, mode, time.Since(started).Seconds(), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
		}
		span.End()
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	pcm, err := tts.Render(ctx, o.synth, tts.SynthRequest{
		SessionID: job.SessionID,
		Text:      chunk.Text,
		VoicePath: voicePath,
		Style:     job.Style,
	})
	if err != nil {
		return audiostore.Result{}, err
	}
	wav, err := audio.EncodeWAV(pcm)
	if err != nil {
		return audiostore.Result{}, fmt.Errorf("encode wav: %w", err)
	}
	return audiostore.Result{
		Audio:      wav,
		Format:     audio.ContainerWAV,
		SampleRate: pcm.SampleRate,
		Channels:   pcm.Channels,
		Duration:   pcm.Duration(),
	}, nil
}

func (o *Orchestrator) markFailed(ctx context.Context, store *audiostore.Store, sessionID string, failure *SynthesisFailure) {
	if err := store.MarkFailed(failure.Index, failure.Err.Error()); err != nil {
		o.log.Warn("failed to mark chunk", slog.Int("index", failure.Index), slog.String("error", err.Error()))
	}
	o.log.Warn("chunk synthesis failed",
		slog.String("session_id", sessionID),
		slog.Int("index", failure.Index),
		slog.String("error", failure.Err.Error()))
	o.record(ctx, sessionID, journal.EventChunkFailed, map[string]any{
		"index": failure.Index,
		"error": failure.Err.Error(),
	})
}

func (o *Orchestrator) record(ctx context.Context, sessionID string, typ journal.EventType, payload any) {
	if o.recorder == nil {
		return
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := o.recorder.Record(ctx, sessionID, typ, payload); err != nil {
		o.log.Warn("journal write failed", slog.String("type", string(typ)), slog.String("error", err.Error()))
	}
}

func chunkEvent(index int, r audiostore.Result) map[string]any {
	return map[string]any{
		"index":            index,
		"bytes":            len(r.Audio),
		"duration_seconds": r.Duration,
	}
}

// Package session holds the per-user narration state: the loaded document,
// its chunks, the voice sample, settings and the audio produced so far.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"lukechampine.com/blake3"

	"github.com/loqalabs/loqa-reader/internal/audiostore"
	"github.com/loqalabs/loqa-reader/internal/document"
	"github.com/loqalabs/loqa-reader/internal/journal"
	"github.com/loqalabs/loqa-reader/internal/narrator"
	"github.com/loqalabs/loqa-reader/internal/protocol"
	"github.com/loqalabs/loqa-reader/internal/text"
	"github.com/loqalabs/loqa-reader/internal/voice"
)

const previewLength = 500

var (
	ErrNoDocument       = errors.New("no document loaded")
	ErrNoVoice          = errors.New("no voice sample loaded")
	ErrNotFound         = errors.New("session not found")
	ErrDocumentTooLarge = errors.New("document too large")
	ErrTooManySessions  = errors.New("too many sessions")
)

// Generator produces audio for chunks. *narrator.Orchestrator satisfies it.
type Generator interface {
	GenerateOne(ctx context.Context, store *audiostore.Store, job narrator.Job, index int) (audiostore.Result, error)
	GenerateAll(ctx context.Context, store *audiostore.Store, job narrator.Job, progress narrator.ProgressFunc) (narrator.Summary, error)
}

// Publisher broadcasts progress. *bus.Client satisfies it.
type Publisher interface {
	Publish(subject string, v any) error
}

// Info summarises a session for listings.
type Info struct {
	ID             string    `json:"id"`
	Document       string    `json:"document,omitempty"`
	Format         string    `json:"format,omitempty"`
	DocumentDigest string    `json:"document_digest,omitempty"`
	Characters     int       `json:"characters"`
	Preview        string    `json:"preview,omitempty"`
	Chunks         int       `json:"chunks"`
	Completed      int       `json:"completed"`
	HasVoice       bool      `json:"has_voice"`
	VoiceDigest    string    `json:"voice_digest,omitempty"`
	Settings       Settings  `json:"settings"`
	CreatedAt      time.Time `json:"created_at"`
}

type Session struct {
	id          string
	createdAt   time.Time
	maxDocBytes int64
	gen         Generator
	pub         Publisher
	rec         narrator.Recorder
	log         *slog.Logger

	mu          sync.RWMutex
	docName     string
	format      document.Format
	docDigest   string
	text        string
	chunks      []text.Chunk
	settings    Settings
	voice       []byte
	voiceDigest string
	store       *audiostore.Store
}

func (s *Session) ID() string { return s.id }

// Load extracts, normalizes and chunks a document, replacing whatever the
// session held before. Previously generated audio is discarded.
func (s *Session) Load(ctx context.Context, name string, data []byte) (Info, error) {
	if s.maxDocBytes > 0 && int64(len(data)) > s.maxDocBytes {
		return Info{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrDocumentTooLarge, len(data), s.maxDocBytes)
	}
	doc, err := document.New(name, data)
	if err != nil {
		return Info{}, err
	}
	raw, err := document.Extract(doc)
	if err != nil {
		return Info{}, err
	}
	canonical := text.Normalize(raw)

	s.mu.Lock()
	chunks, err := text.Split(canonical, s.settings.ChunkMaxLength)
	if err != nil {
		s.mu.Unlock()
		return Info{}, err
	}
	s.docName = name
	s.format = doc.Format
	s.docDigest = digest(data)
	s.text = canonical
	s.chunks = chunks
	s.store = newStore(len(chunks))
	info := s.infoLocked()
	s.mu.Unlock()

	s.log.Info("document loaded",
		slog.String("document", name),
		slog.String("format", string(doc.Format)),
		slog.Int("characters", info.Characters),
		slog.Int("chunks", len(chunks)))
	s.record(ctx, journal.EventDocumentLoaded, map[string]any{
		"name":       name,
		"format":     doc.Format,
		"bytes":      len(data),
		"digest":     info.DocumentDigest,
		"characters": info.Characters,
		"chunks":     len(chunks),
	})
	return info, nil
}

// SetVoice stores the reference sample used for every later generation.
func (s *Session) SetVoice(ctx context.Context, sample []byte) error {
	if len(sample) == 0 {
		return voice.ErrEmptySample
	}
	d := digest(sample)
	s.mu.Lock()
	s.voice = append([]byte(nil), sample...)
	s.voiceDigest = d
	s.mu.Unlock()

	s.record(ctx, journal.EventVoiceLoaded, map[string]any{"bytes": len(sample), "digest": d})
	return nil
}

// Configure replaces the settings. A new chunk length re-chunks the current
// text and discards generated audio.
func (s *Session) Configure(ctx context.Context, settings Settings) (Info, error) {
	if err := settings.Validate(); err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	rechunk := settings.ChunkMaxLength != s.settings.ChunkMaxLength && s.docName != ""
	if rechunk {
		chunks, err := text.Split(s.text, settings.ChunkMaxLength)
		if err != nil {
			s.mu.Unlock()
			return Info{}, err
		}
		s.chunks = chunks
		s.store = newStore(len(chunks))
	}
	s.settings = settings
	info := s.infoLocked()
	s.mu.Unlock()

	s.record(ctx, journal.EventSettingsChanged, map[string]any{"settings": settings, "rechunked": rechunk})
	return info, nil
}

func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Session) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

func (s *Session) Chunks() []text.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]text.Chunk(nil), s.chunks...)
}

// Audio returns the stored result for chunk i; ok is false when absent.
func (s *Session) Audio(i int) (audiostore.Result, bool, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	return store.Get(i)
}

func (s *Session) Slots() []audiostore.SlotState {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	return store.Snapshot()
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// Ready reports whether a document and a voice sample are both loaded.
func (s *Session) Ready() error {
	_, _, err := s.job()
	return err
}

func (s *Session) GenerateOne(ctx context.Context, index int) (audiostore.Result, error) {
	job, store, err := s.job()
	if err != nil {
		return audiostore.Result{}, err
	}
	return s.gen.GenerateOne(ctx, store, job, index)
}

// GenerateAll synthesizes every chunk. Progress goes to fn and, when a
// publisher is wired, to the bus.
func (s *Session) GenerateAll(ctx context.Context, fn narrator.ProgressFunc) (narrator.Summary, error) {
	job, store, err := s.job()
	if err != nil {
		return narrator.Summary{}, err
	}
	summary, err := s.gen.GenerateAll(ctx, store, job, func(p narrator.Progress) {
		s.publish(protocol.ProgressSubject(s.id), progressMessage(s.id, p))
		if fn != nil {
			fn(p)
		}
	})
	done := protocol.NarrationDone{
		SessionID: s.id,
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Message:   summary.Message(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		done.Error = err.Error()
	}
	s.publish(protocol.DoneSubject(s.id), done)
	return summary, err
}

func (s *Session) job() (narrator.Job, *audiostore.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.docName == "" {
		return narrator.Job{}, nil, ErrNoDocument
	}
	if len(s.voice) == 0 {
		return narrator.Job{}, nil, ErrNoVoice
	}
	return narrator.Job{
		SessionID: s.id,
		Chunks:    append([]text.Chunk(nil), s.chunks...),
		Voice:     s.voice,
		Style:     s.settings.style(),
	}, s.store, nil
}

func (s *Session) infoLocked() Info {
	info := Info{
		ID:          s.id,
		Document:    s.docName,
		Format:      string(s.format),
		Chunks:      len(s.chunks),
		Completed:   s.store.CompletedCount(),
		HasVoice:    len(s.voice) > 0,
		VoiceDigest: s.voiceDigest,
		Settings:    s.settings,
		CreatedAt:   s.createdAt,
	}
	if s.docName != "" {
		info.DocumentDigest = s.docDigest
		info.Characters = utf8.RuneCountInString(s.text)
		info.Preview = text.Preview(s.text, previewLength)
	}
	return info
}

func (s *Session) publish(subject string, v any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(subject, v); err != nil {
		s.log.Warn("failed to publish progress", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

func (s *Session) record(ctx context.Context, typ journal.EventType, payload any) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(ctx, s.id, typ, payload); err != nil {
		s.log.Warn("journal write failed", slog.String("type", string(typ)), slog.String("error", err.Error()))
	}
}

func progressMessage(sessionID string, p narrator.Progress) protocol.NarrationProgress {
	msg := protocol.NarrationProgress{
		SessionID: sessionID,
		Index:     p.Index,
		Completed: p.Completed,
		Total:     p.Total,
		Succeeded: p.Succeeded,
		Timestamp: time.Now().UTC(),
	}
	if p.Err != nil {
		msg.Error = p.Err.Error()
	}
	return msg
}

func newStore(n int) *audiostore.Store {
	st := audiostore.New()
	st.Reset(n)
	return st
}

func digest(data []byte) string {
	h := blake3.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

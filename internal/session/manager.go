package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-reader/internal/audiostore"
	"github.com/loqalabs/loqa-reader/internal/config"
	"github.com/loqalabs/loqa-reader/internal/narrator"
)

// Journal is the subset of *journal.Journal a Manager needs.
type Journal interface {
	narrator.Recorder
	OpenSession(ctx context.Context, sessionID string) error
	CloseSession(ctx context.Context, sessionID string) error
}

// Deps are optional collaborators shared by every session.
type Deps struct {
	Publisher Publisher
	Journal   Journal
}

type Manager struct {
	cfg      config.NarrationConfig
	gen      Generator
	deps     Deps
	log      *slog.Logger
	clock    func() time.Time
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg config.NarrationConfig, gen Generator, deps Deps, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		gen:      gen,
		deps:     deps,
		log:      logger.With(slog.String("component", "sessions")),
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
	if err := m.initMetrics(otel.Meter("github.com/loqalabs/loqa-reader/session")); err != nil {
		m.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return m
}

// Create starts an empty session with the configured default settings.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.cfg.MaxSessions)
	}
	id := uuid.NewString()
	s := &Session{
		id:          id,
		createdAt:   m.clock().UTC(),
		maxDocBytes: m.cfg.MaxDocumentBytes,
		gen:         m.gen,
		pub:         m.deps.Publisher,
		log:         m.log.With(slog.String("session_id", id)),
		settings:    DefaultSettings(m.cfg),
		store:       audiostore.New(),
	}
	if m.deps.Journal != nil {
		s.rec = m.deps.Journal
	}
	m.sessions[id] = s
	m.mu.Unlock()

	if m.deps.Journal != nil {
		if err := m.deps.Journal.OpenSession(ctx, id); err != nil {
			m.log.Warn("journal session open failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
	m.log.Info("session created", slog.String("session_id", id))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if m.deps.Journal != nil {
		if err := m.deps.Journal.CloseSession(ctx, id); err != nil {
			m.log.Warn("journal session close failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
	m.log.Info("session deleted", slog.String("session_id", id))
	return nil
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) initMetrics(meter metric.Meter) error {
	gauge, err := meter.Int64ObservableGauge("reader.sessions.active", metric.WithDescription("Number of open narration sessions"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, int64(m.Len()))
		return nil
	}, gauge)
	return err
}

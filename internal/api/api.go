// Package api exposes narration sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/loqalabs/loqa-reader/internal/journal"
	"github.com/loqalabs/loqa-reader/internal/session"
)

// Journal is the read side of *journal.Journal.
type Journal interface {
	Events(ctx context.Context, sessionID string, limit int) ([]journal.Event, error)
}

type API struct {
	sessions *session.Manager
	journal  Journal
	maxBody  int64
	logger   *slog.Logger
}

// New builds the API. maxBody caps uploaded documents and voice samples.
func New(sessions *session.Manager, j Journal, maxBody int64, logger *slog.Logger) *API {
	return &API{
		sessions: sessions,
		journal:  j,
		maxBody:  maxBody,
		logger:   logger.With(slog.String("component", "api")),
	}
}

func (api *API) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Recoverer)

	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", api.createSession)
		r.Get("/", api.listSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.getSession)
			r.Delete("/", api.deleteSession)
			r.Put("/document", api.putDocument)
			r.Put("/voice", api.putVoice)
			r.Put("/settings", api.putSettings)
			r.Get("/chunks", api.listChunks)
			r.Post("/chunks/{index}/audio", api.generateChunk)
			r.Get("/chunks/{index}/audio", api.getChunkAudio)
			r.Post("/audio", api.generateAll)
			r.Get("/audio/ws", api.streamAll)
			r.Get("/events", api.listEvents)
		})
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

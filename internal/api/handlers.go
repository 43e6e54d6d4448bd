package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/loqalabs/loqa-reader/internal/audiostore"
	"github.com/loqalabs/loqa-reader/internal/narrator"
	"github.com/loqalabs/loqa-reader/internal/session"
)

type sessionView struct {
	session.Info
	Slots []audiostore.SlotState `json:"slots"`
}

type chunkView struct {
	Index   int                `json:"index"`
	Label   string             `json:"label"`
	Text    string             `json:"text"`
	Ready   bool               `json:"ready"`
	Failure string             `json:"failure,omitempty"`
	Audio   *audiostore.Result `json:"audio,omitempty"`
}

type summaryView struct {
	narrator.Summary
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (api *API) session(r *http.Request) (*session.Session, error) {
	return api.sessions.Get(chi.URLParam(r, "id"))
}

func (api *API) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, api.maxBody)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", session.ErrDocumentTooLarge, api.maxBody)
		}
		return nil, err
	}
	return data, nil
}

func (api *API) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := api.sessions.Create(r.Context())
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Info())
}

func (api *API) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.sessions.List())
}

func (api *API) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{Info: s.Info(), Slots: s.Slots()})
}

func (api *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := api.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) putDocument(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		api.badRequest(w, "query parameter name is required")
		return
	}
	data, err := api.readBody(w, r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	info, err := s.Load(r.Context(), name, data)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (api *API) putVoice(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	data, err := api.readBody(w, r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if err := s.SetVoice(r.Context(), data); err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

func (api *API) putSettings(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	settings := s.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		api.badRequest(w, "invalid settings body: "+err.Error())
		return
	}
	info, err := s.Configure(r.Context(), settings)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (api *API) listChunks(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	chunks := s.Chunks()
	slots := s.Slots()
	out := make([]chunkView, len(chunks))
	for i, c := range chunks {
		out[i] = chunkView{Index: c.Index, Label: c.Label(), Text: c.Text}
		if i < len(slots) {
			out[i].Ready = slots[i].Ready
			out[i].Failure = slots[i].Failure
			out[i].Audio = slots[i].Result
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func chunkIndex(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "index"))
}

func (api *API) generateChunk(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	index, err := chunkIndex(r)
	if err != nil {
		api.badRequest(w, "chunk index must be an integer")
		return
	}
	result, err := s.GenerateOne(r.Context(), index)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *API) getChunkAudio(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	index, err := chunkIndex(r)
	if err != nil {
		api.badRequest(w, "chunk index must be an integer")
		return
	}
	result, ok, err := s.Audio(index)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("no audio for chunk %d", index)})
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="chunk-%04d.wav"`, index))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

func (api *API) generateAll(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	summary, err := s.GenerateAll(r.Context(), nil)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryView{Summary: summary, Message: summary.Message()})
}

func (api *API) listEvents(w http.ResponseWriter, r *http.Request) {
	if _, err := api.session(r); err != nil {
		api.writeError(w, r, err)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if api.journal == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	events, err := api.journal.Events(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if events == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

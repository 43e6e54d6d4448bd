package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/loqalabs/loqa-reader/internal/audiostore"
	"github.com/loqalabs/loqa-reader/internal/document"
	"github.com/loqalabs/loqa-reader/internal/narrator"
	"github.com/loqalabs/loqa-reader/internal/session"
	"github.com/loqalabs/loqa-reader/internal/text"
	"github.com/loqalabs/loqa-reader/internal/voice"
)

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var (
		unsupported *document.UnsupportedFormatError
		extraction  *document.ExtractionError
		invalid     *text.InvalidConfigError
		index       *audiostore.IndexError
		acquisition *voice.AcquisitionError
		synthesis   *narrator.SynthesisFailure
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &index):
		return http.StatusNotFound
	case errors.As(err, &acquisition):
		return http.StatusInternalServerError
	case errors.As(err, &synthesis):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrNoVoice):
		return http.StatusConflict
	case errors.Is(err, session.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, voice.ErrEmptySample):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (api *API) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

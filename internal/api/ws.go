package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loqalabs/loqa-reader/internal/narrator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

type progressFrame struct {
	Type      string `json:"type"`
	Index     int    `json:"index"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

type doneFrame struct {
	Type string `json:"type"`
	summaryView
}

// streamAll runs a full generation and reports each chunk over a websocket.
// Closing the socket cancels the batch.
func (api *API) streamAll(w http.ResponseWriter, r *http.Request) {
	s, err := api.session(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if err := s.Ready(); err != nil {
		api.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var writeErr error
	send := func(v any) {
		if writeErr != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if writeErr = conn.WriteJSON(v); writeErr != nil {
			cancel()
		}
	}

	summary, err := s.GenerateAll(ctx, func(p narrator.Progress) {
		frame := progressFrame{
			Type:      "progress",
			Index:     p.Index,
			Completed: p.Completed,
			Total:     p.Total,
			Succeeded: p.Succeeded,
		}
		if p.Err != nil {
			frame.Error = p.Err.Error()
		}
		send(frame)
	})

	done := doneFrame{Type: "done", summaryView: summaryView{Summary: summary, Message: summary.Message()}}
	if err != nil {
		done.Error = err.Error()
	}
	send(done)
	if writeErr == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
	}
}

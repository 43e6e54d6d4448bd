package protocol

import "time"

// NarrationProgress is published after every chunk of a batch.
type NarrationProgress struct {
	SessionID string    `json:"session_id"`
	Index     int       `json:"index"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NarrationDone is published once when a batch ends, however it ends.
type NarrationDone struct {
	SessionID string    `json:"session_id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    []int     `json:"failed,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectProgressPrefix = "narration.progress"
	SubjectDonePrefix     = "narration.done"
)

func ProgressSubject(sessionID string) string {
	return SubjectProgressPrefix + "." + sessionID
}

func DoneSubject(sessionID string) string {
	return SubjectDonePrefix + "." + sessionID
}

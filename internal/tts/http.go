package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loqalabs/loqa-reader/internal/audio"
)

// HTTPDoer is the subset of *http.Client used by the HTTP backend.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type httpSynth struct {
	client   HTTPDoer
	endpoint string
}

type httpRequest struct {
	Text             string  `json:"text"`
	SpeakerAudioPath string  `json:"spk_audio_path"`
	EmoWeight        float64 `json:"emo_weight"`
	CfgWeight        float64 `json:"cfg_weight"`
}

type httpServerError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewHTTPSynth posts each request to a voice-cloning server and expects a WAV body back.
func NewHTTPSynth(client HTTPDoer, endpoint string) (Synthesizer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("tts endpoint empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &httpSynth{client: client, endpoint: endpoint}, nil
}

func (h *httpSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		pcm, err := h.call(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		chunks <- SynthChunk{
			SessionID:  req.SessionID,
			Sequence:   0,
			SampleRate: pcm.SampleRate,
			Channels:   pcm.Channels,
			PCM:        pcm.Data,
			Final:      true,
		}
	}()
	return chunks, errs
}

func (h *httpSynth) call(ctx context.Context, req SynthRequest) (audio.PCM, error) {
	body, err := json.Marshal(httpRequest{
		Text:             req.Text,
		SpeakerAudioPath: req.VoicePath,
		EmoWeight:        req.Style.EmotionIntensity,
		CfgWeight:        req.Style.StyleAdherence,
	})
	if err != nil {
		return audio.PCM{}, fmt.Errorf("marshal tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("create tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("call tts server: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("read tts response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr httpServerError
		msg := strings.TrimSpace(string(respBody))
		if len(respBody) != 0 && json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = "unknown error"
		}
		return audio.PCM{}, fmt.Errorf("tts server returned status %d: %s", resp.StatusCode, msg)
	}

	pcm, err := audio.DecodeWAV(respBody)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode tts response: %w", err)
	}
	return pcm, nil
}

package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-reader/internal/audio"
	"github.com/loqalabs/loqa-reader/internal/config"
)

func voiceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestMockSynthScalesWithText(t *testing.T) {
	synth := NewMockSynth(16000, 1)
	path := voiceFile(t)

	short, err := Render(context.Background(), synth, SynthRequest{Text: "Hi.", VoicePath: path})
	require.NoError(t, err)
	long, err := Render(context.Background(), synth, SynthRequest{Text: "Hello there, world.", VoicePath: path})
	require.NoError(t, err)

	require.Equal(t, 16000, short.SampleRate)
	require.Equal(t, 1, short.Channels)
	require.NotEmpty(t, short.Data)
	require.Greater(t, len(long.Data), len(short.Data))
	require.Zero(t, len(long.Data)%2)
}

func TestMockSynthRequiresVoice(t *testing.T) {
	synth := NewMockSynth(16000, 1)
	_, err := Render(context.Background(), synth, SynthRequest{Text: "Hi."})
	require.Error(t, err)

	missing := filepath.Join(t.TempDir(), "gone.wav")
	_, err = Render(context.Background(), synth, SynthRequest{Text: "Hi.", VoicePath: missing})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMockSynthCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	synth := NewMockSynth(16000, 1)
	_, err := Render(ctx, synth, SynthRequest{Text: "Hi.", VoicePath: voiceFile(t)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollectConcatenatesFrames(t *testing.T) {
	chunks := make(chan SynthChunk, 2)
	errs := make(chan error)
	chunks <- SynthChunk{Sequence: 0, SampleRate: 8000, Channels: 1, PCM: []byte{1, 2}}
	chunks <- SynthChunk{Sequence: 1, SampleRate: 8000, Channels: 1, PCM: []byte{3, 4}, Final: true}
	close(chunks)
	close(errs)

	pcm, err := Collect(context.Background(), chunks, errs)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, pcm.Data)
	require.Equal(t, 8000, pcm.SampleRate)
}

func TestCollectRejectsFormatChange(t *testing.T) {
	chunks := make(chan SynthChunk, 2)
	errs := make(chan error)
	chunks <- SynthChunk{SampleRate: 8000, Channels: 1, PCM: []byte{1, 2}}
	chunks <- SynthChunk{Sequence: 1, SampleRate: 16000, Channels: 1, PCM: []byte{3, 4}}
	close(chunks)
	close(errs)

	_, err := Collect(context.Background(), chunks, errs)
	require.Error(t, err)
}

func TestCollectNoAudio(t *testing.T) {
	chunks := make(chan SynthChunk)
	errs := make(chan error)
	close(chunks)
	close(errs)
	_, err := Collect(context.Background(), chunks, errs)
	require.ErrorIs(t, err, ErrNoAudio)
}

func TestCollectPropagatesBackendError(t *testing.T) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	boom := errors.New("model crashed")
	errs <- boom
	close(chunks)
	close(errs)
	_, err := Collect(context.Background(), chunks, errs)
	require.ErrorIs(t, err, boom)
}

func TestHTTPSynthSuccess(t *testing.T) {
	wav, err := audio.EncodeWAV(audio.PCM{Data: []byte{0, 1, 2, 3}, SampleRate: 22050, Channels: 1})
	require.NoError(t, err)

	var observed map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &observed))
		_, _ = w.Write(wav)
	}))
	defer srv.Close()

	synth, err := NewHTTPSynth(srv.Client(), srv.URL)
	require.NoError(t, err)

	pcm, err := Render(context.Background(), synth, SynthRequest{
		Text:      "Hello world.",
		VoicePath: "/tmp/voice.wav",
		Style:     Style{EmotionIntensity: 0.7, StyleAdherence: 0.3},
	})
	require.NoError(t, err)
	require.Equal(t, 22050, pcm.SampleRate)
	require.Equal(t, []byte{0, 1, 2, 3}, pcm.Data)

	require.Equal(t, "Hello world.", observed["text"])
	require.Equal(t, "/tmp/voice.wav", observed["spk_audio_path"])
	require.EqualValues(t, 0.7, observed["emo_weight"])
	require.EqualValues(t, 0.3, observed["cfg_weight"])
}

func TestHTTPSynthServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","error":"speaker prompt too short"}`))
	}))
	defer srv.Close()

	synth, err := NewHTTPSynth(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = Render(context.Background(), synth, SynthRequest{Text: "Hi.", VoicePath: "v.wav"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "speaker prompt too short")
}

func TestHTTPSynthRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not audio"))
	}))
	defer srv.Close()

	synth, err := NewHTTPSynth(srv.Client(), srv.URL)
	require.NoError(t, err)
	_, err = Render(context.Background(), synth, SynthRequest{Text: "Hi.", VoicePath: "v.wav"})
	require.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	synth, err := New(config.TTSConfig{Mode: "mock", SampleRate: 24000, Channels: 1})
	require.NoError(t, err)
	require.IsType(t, &mockSynth{}, synth)

	synth, err = New(config.TTSConfig{Mode: "exec", Command: `python3 "my synth.py" --cpu`, SampleRate: 24000, Channels: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"python3", "my synth.py", "--cpu"}, synth.(*execSynth).cmd)

	synth, err = New(config.TTSConfig{Mode: "http", Endpoint: "http://localhost:9000", TimeoutMS: 1000})
	require.NoError(t, err)
	require.IsType(t, &httpSynth{}, synth)

	_, err = New(config.TTSConfig{Mode: "exec"})
	require.Error(t, err)
	_, err = New(config.TTSConfig{Mode: "cloud"})
	require.Error(t, err)
}

func execScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "synth.sh")
	require.NoError(t, os.WriteFile(path, []byte("cat >/dev/null\n"+body), 0o755))
	return "sh " + path
}

func TestExecSynthReadsFrames(t *testing.T) {
	command := execScript(t, `echo '{"pcm_base64":"AQI="}'
echo '{"pcm_base64":"AwQ=","final":true}'
`)
	synth, err := NewExecSynth(command, 24000, 1)
	require.NoError(t, err)

	pcm, err := Render(context.Background(), synth, SynthRequest{Text: "Hi.", VoicePath: "v.wav"})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, pcm.Data)
	require.Equal(t, 24000, pcm.SampleRate)
}

func TestExecSynthReportsError(t *testing.T) {
	command := execScript(t, `echo '{"error":"out of memory"}'
`)
	synth, err := NewExecSynth(command, 24000, 1)
	require.NoError(t, err)

	_, err = Render(context.Background(), synth, SynthRequest{Text: "Hi.", VoicePath: "v.wav"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of memory")
}

package ai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/pkg/audio"
	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

func whisperClientFor(url string) *WhisperClient {
	return NewWhisperClient(&config.WhisperConfig{Endpoint: url, APIKey: "test-key"}, nil, zap.NewNop())
}

func TestTranscribe_UploadsWAVWrappedPayload(t *testing.T) {
	pcm := make([]byte, 40000)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST got %s", r.Method)
		}
		if got := r.Header.Get("api-key"); got != "test-key" {
			t.Fatalf("expected api-key header, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("invalid multipart body: %v", err)
		}
		if got := r.FormValue("response_format"); got != "text" {
			t.Fatalf("expected response_format=text, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Fatalf("expected audio.wav, got %q", header.Filename)
		}

		wav, err := io.ReadAll(file)
		if err != nil {
			t.Fatalf("failed to read file part: %v", err)
		}
		wavHeader, err := audio.ParseHeader(wav)
		if err != nil {
			t.Fatalf("invalid WAV payload: %v", err)
		}
		if wavHeader.ChunkSize != uint32(36+len(pcm)) {
			t.Errorf("file size: expected %d, got %d", 36+len(pcm), wavHeader.ChunkSize)
		}
		if wavHeader.SampleRate != 16000 || wavHeader.NumChannels != 1 || wavHeader.BitsPerSample != 16 {
			t.Errorf("unexpected format: rate=%d channels=%d bits=%d",
				wavHeader.SampleRate, wavHeader.NumChannels, wavHeader.BitsPerSample)
		}
		if wavHeader.ByteRate != 32000 || wavHeader.BlockAlign != 2 {
			t.Errorf("unexpected rates: byteRate=%d blockAlign=%d", wavHeader.ByteRate, wavHeader.BlockAlign)
		}
		if !bytes.Equal(wav[audio.HeaderSize:], pcm) {
			t.Error("payload does not equal the drained PCM bytes")
		}

		w.Write([]byte("  hello from whisper \n"))
	}))
	defer ts.Close()

	got := whisperClientFor(ts.URL).Transcribe(context.Background(), pcm)
	if got != "hello from whisper" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one remote call, got %d", calls)
	}
}

func TestTranscribe_ShortAudioNeverCallsRemote(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	got := whisperClientFor(ts.URL).Transcribe(context.Background(), make([]byte, MinAudioBytes-1))
	if got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("remote must not be called for short audio, got %d calls", calls)
	}
}

func TestTranscribe_TransientThenSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer ts.Close()

	got := whisperClientFor(ts.URL).Transcribe(context.Background(), make([]byte, MinAudioBytes))
	if got != "recovered" {
		t.Fatalf("expected transcript after retry, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestTranscribe_TransientExhaustionReturnsEmpty(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	got := whisperClientFor(ts.URL).Transcribe(context.Background(), make([]byte, MinAudioBytes))
	if got != "" {
		t.Fatalf("expected empty transcript on exhaustion, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", calls)
	}
}

func TestTranscribe_PermanentErrorNoRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer ts.Close()

	got := whisperClientFor(ts.URL).Transcribe(context.Background(), make([]byte, MinAudioBytes))
	if got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls)
	}
}

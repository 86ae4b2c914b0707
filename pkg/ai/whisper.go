package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/pkg/audio"
	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

// MinAudioBytes is one second of 16 kHz mono PCM-16; shorter payloads carry
// no usable speech and are suppressed before the remote call.
const MinAudioBytes = 32000

const (
	maxRetries = 2
	retryDelay = time.Second
)

// TokenSource supplies bearer tokens for Entra-authenticated deployments.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// WhisperClient is a minimal client for an Azure OpenAI Whisper deployment
type WhisperClient struct {
	endpoint string
	apiKey   string
	tokens   TokenSource // nil when apiKey auth is used
	client   *http.Client
	logger   *zap.Logger
}

// NewWhisperClient creates a Whisper client from the provided config.
// When tokens is non-nil it takes precedence over the API key.
func NewWhisperClient(cfg *config.WhisperConfig, tokens TokenSource, logger *zap.Logger) *WhisperClient {
	return &WhisperClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		tokens:   tokens,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// Transcribe wraps raw 16 kHz mono PCM-16 bytes into a WAV container and
// submits it as a multipart upload requesting plain-text output.
//
// A missed transcription window is acceptable loss, so this never surfaces an
// error: payloads below MinAudioBytes, permanent API failures and exhausted
// retries all yield "".
func (c *WhisperClient) Transcribe(ctx context.Context, pcm []byte) string {
	if len(pcm) < MinAudioBytes {
		c.logger.Debug("audio too short, skipping transcription", zap.Int("bytes", len(pcm)))
		return ""
	}

	wav, err := audio.WAVFromPCM(pcm, audio.SampleRate, audio.Channels, audio.BitsPerSample)
	if err != nil {
		c.logger.Error("failed to encode WAV payload", zap.Error(err))
		return ""
	}

	body, contentType, err := buildMultipart(wav)
	if err != nil {
		c.logger.Error("failed to build multipart upload", zap.Error(err))
		return ""
	}

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		if err := c.authorize(ctx, req); err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("whisper request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read whisper response: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			text = strings.TrimSpace(string(respBody))
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("whisper transient error %d: %s", resp.StatusCode, respBody)
		default:
			return backoff.Permanent(fmt.Errorf("whisper error %d: %s", resp.StatusCode, respBody))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		c.logger.Error("transcription failed", zap.Error(err))
		return ""
	}
	return text
}

func (c *WhisperClient) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		req.Header.Set("api-key", c.apiKey)
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token acquisition failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func buildMultipart(wav []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "text"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

// MinTranscriptChars is the minimum trimmed transcript length worth sending
// to the model.
const MinTranscriptChars = 20

// Canned responses for the starvation and empty-choice cases.
const (
	NotEnoughContentMessage = "Not enough transcript content to generate a summary."
	EmptySummaryMessage     = "The model returned an empty summary."
)

const apiVersion = "2025-04-01-preview"

const systemPrompt = `You are a meeting summarizer. Given a transcript of a meeting, produce a concise summary using bullet points. You must:
- Identify key discussion topics
- Note any decisions made
- List action items if any
- Include speaker names when available in the transcript
Keep the summary brief and well-organized.`

// OpenAIClient is a minimal client for an Azure OpenAI chat deployment
type OpenAIClient struct {
	endpoint   string
	apiKey     string
	deployment string
	tokens     TokenSource // nil when apiKey auth is used
	client     *http.Client
	logger     *zap.Logger
}

// ChatMessage is one turn of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Messages            []ChatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a chat client from the provided config.
// When tokens is non-nil it takes precedence over the API key.
func NewOpenAIClient(cfg *config.OpenAIConfig, tokens TokenSource, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		endpoint:   completionsURL(cfg.Endpoint, cfg.Deployment),
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
		tokens:     tokens,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// completionsURL builds the deployment chat-completions URL. Endpoints that
// already point at a chat/completions path are used as-is so tests can target
// a local server directly.
func completionsURL(base, deployment string) string {
	if strings.Contains(base, "/chat/completions") {
		return base
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(base, "/"), deployment, apiVersion)
}

// Summarize condenses accumulated transcript text into a bullet-point summary.
//
// Unlike transcription, an exhausted retry here surfaces as an error: a failed
// summary means the user receives nothing for a whole interval.
func (c *OpenAIClient) Summarize(ctx context.Context, transcript string) (string, error) {
	if len(strings.TrimSpace(transcript)) < MinTranscriptChars {
		return NotEnoughContentMessage, nil
	}

	reqBody := ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		MaxCompletionTokens: 1024,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var summary string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if err := c.authorize(ctx, req); err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("chat transient error %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("chat error %d", resp.StatusCode))
		}

		var cr ChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse chat response: %w", err))
		}
		if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
			summary = EmptySummaryMessage
			return nil
		}
		summary = cr.Choices[0].Message.Content
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		c.logger.Error("summarization failed", zap.Error(err))
		return "", fmt.Errorf("failed to summarize transcript: %w", err)
	}
	return summary, nil
}

func (c *OpenAIClient) authorize(ctx context.Context, req *http.Request) error {
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

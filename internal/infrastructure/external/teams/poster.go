// Package teams posts finished summaries back to the chat surface through the
// Bot Framework connector REST API.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ConversationReference is the opaque destination handle supplied by the chat
// gateway: enough to address one conversation on one connector instance.
type ConversationReference struct {
	ServiceURL     string `json:"service_url"`
	ConversationID string `json:"conversation_id"`
}

// TokenSource supplies bearer tokens for the connector API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Poster renders summary cards and delivers them to a conversation.
type Poster struct {
	tokens TokenSource // nil disables auth, used by tests and local runs
	client *http.Client
	logger *zap.Logger
}

// NewPoster creates a Poster
func NewPoster(tokens TokenSource, logger *zap.Logger) *Poster {
	return &Poster{
		tokens: tokens,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type activity struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	ContentType string      `json:"contentType"`
	Content     interface{} `json:"content"`
}

// PostSummary formats a summary card and sends it to the conversation. When
// the rich card is rejected it falls back once to a plain-text message with
// the same content; only both failing surfaces an error, which callers log
// and drop so a failed post never kills a timer tick.
func (p *Poster) PostSummary(ctx context.Context, ref ConversationReference, summary string, intervalMinutes int) error {
	card := activity{
		Type: "message",
		Attachments: []attachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content:     buildSummaryCard(summary, intervalMinutes, time.Now()),
		}},
	}
	if err := p.send(ctx, ref, card); err != nil {
		p.logger.Error("failed to send summary card, falling back to plain text",
			zap.String("conversation_id", ref.ConversationID),
			zap.Error(err),
		)
		plain := activity{
			Type: "message",
			Text: fmt.Sprintf("📋 **Meeting Summary** (Last %d minutes)\n\n%s", intervalMinutes, summary),
		}
		if err := p.send(ctx, ref, plain); err != nil {
			return fmt.Errorf("plain-text fallback failed: %w", err)
		}
	}
	return nil
}

func (p *Poster) send(ctx context.Context, ref ConversationReference, act activity) error {
	payload, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	url := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(ref.ServiceURL, "/"), ref.ConversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.tokens != nil {
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("token acquisition failed: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("connector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("connector returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

func buildSummaryCard(summary string, intervalMinutes int, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"type":    "AdaptiveCard",
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"version": "1.4",
		"body": []map[string]interface{}{
			{"type": "TextBlock", "text": "📋 Meeting Summary", "weight": "Bolder", "size": "Medium"},
			{"type": "TextBlock", "text": fmt.Sprintf("Last %d minutes", intervalMinutes), "isSubtle": true, "spacing": "None"},
			{"type": "TextBlock", "text": summary, "wrap": true},
			{"type": "TextBlock", "text": "Generated at " + now.Format("Jan 2, 2006 3:04 PM"), "isSubtle": true, "size": "Small"},
		},
	}
}

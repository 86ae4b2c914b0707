// Package acs is a minimal Azure Communication Services call-automation
// client: enough to answer an incoming call with media streaming, steer it
// into the meeting with DTMF, and hang it up.
package acs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

const apiVersion = "2024-04-15"

// Client signs and sends call-automation requests
type Client struct {
	endpoint    *url.URL
	accessKey   []byte
	callbackURI string
	client      *http.Client
	logger      *zap.Logger
}

// CallResult identifies an answered call
type CallResult struct {
	CallConnectionID string `json:"callConnectionId"`
	ServerCallID     string `json:"serverCallId"`
}

// NewClient parses the connection string ("endpoint=...;accesskey=...") and
// creates a client.
func NewClient(cfg *config.ACSConfig, logger *zap.Logger) (*Client, error) {
	endpoint, accessKey, err := parseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint:    endpoint,
		accessKey:   accessKey,
		callbackURI: strings.TrimRight(cfg.CallbackURI, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}, nil
}

func parseConnectionString(cs string) (*url.URL, []byte, error) {
	var endpoint string
	var accessKey []byte
	for _, part := range strings.Split(cs, ";") {
		k, v, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.ToLower(k) {
		case "endpoint":
			endpoint = v
		case "accesskey":
			key, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid access key: %w", err)
			}
			accessKey = key
		}
	}
	if endpoint == "" || len(accessKey) == 0 {
		return nil, nil, fmt.Errorf("connection string must contain endpoint and accesskey")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	return u, accessKey, nil
}

// AnswerCall answers an incoming call and starts bidirectional media
// streaming towards our WebSocket ingest endpoint.
func (c *Client) AnswerCall(ctx context.Context, incomingCallContext string) (*CallResult, error) {
	wsURL := strings.Replace(strings.Replace(c.callbackURI, "https://", "wss://", 1), "http://", "ws://", 1) + "/ws/audio"

	body := map[string]interface{}{
		"incomingCallContext": incomingCallContext,
		"callbackUri":         c.callbackURI + "/api/callbacks",
		"mediaStreamingOptions": map[string]interface{}{
			"transportUrl":         wsURL,
			"transportType":        "websocket",
			"contentType":          "audio",
			"audioChannelType":     "mixed",
			"startMediaStreaming":  true,
			"enableBidirectional":  true,
			"audioFormat":          "Pcm16KMono",
		},
	}

	respBody, err := c.do(ctx, http.MethodPost, "/calling/callConnections:answer", body)
	if err != nil {
		return nil, fmt.Errorf("failed to answer call: %w", err)
	}

	var result CallResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse answer response: %w", err)
	}
	c.logger.Info("answered incoming call",
		zap.String("call_connection_id", result.CallConnectionID),
		zap.String("server_call_id", result.ServerCallID),
	)
	return &result, nil
}

// HangUp terminates a call for everyone.
func (c *Client) HangUp(ctx context.Context, callConnectionID string) error {
	path := fmt.Sprintf("/calling/callConnections/%s", url.PathEscape(callConnectionID))
	if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("failed to hang up call: %w", err)
	}
	c.logger.Info("ended call", zap.String("call_connection_id", callConnectionID))
	return nil
}

// SendDTMFJoin sends tone "1" to the caller, accepting the meeting's
// "press 1 to join" prompt.
func (c *Client) SendDTMFJoin(ctx context.Context, callConnectionID, callerPhone string) error {
	path := fmt.Sprintf("/calling/callConnections/%s:sendDtmfTones", url.PathEscape(callConnectionID))
	body := map[string]interface{}{
		"tones": []string{"one"},
		"targetParticipant": map[string]interface{}{
			"kind":        "phoneNumber",
			"phoneNumber": map[string]string{"value": callerPhone},
		},
		"operationContext": uuid.New().String(),
	}
	if _, err := c.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("failed to send DTMF tones: %w", err)
	}
	c.logger.Info("sent DTMF join tone", zap.String("call_connection_id", callConnectionID))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	u := *c.endpoint
	u.Path = path
	u.RawQuery = "api-version=" + apiVersion

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, payload)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ACS returned %d: %s", resp.StatusCode, respBody)
	}
	return respBody, nil
}

// sign applies the ACS HMAC-SHA256 request signature scheme.
func (c *Client) sign(req *http.Request, payload []byte) {
	contentHash := sha256.Sum256(payload)
	contentHashB64 := base64.StdEncoding.EncodeToString(contentHash[:])
	date := time.Now().UTC().Format(http.TimeFormat)

	stringToSign := strings.Join([]string{
		req.Method,
		req.URL.RequestURI(),
		date + ";" + req.URL.Host + ";" + contentHashB64,
	}, "\n")

	mac := hmac.New(sha256.New, c.accessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHashB64)
	req.Header.Set("Authorization",
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/store"
)

// streamMessage is the envelope the media streaming transport sends over the
// WebSocket. Only AudioData frames carry payload.
type streamMessage struct {
	Kind      string `json:"kind"`
	AudioData *struct {
		Data   string `json:"data"`
		Silent bool   `json:"silent"`
	} `json:"audioData,omitempty"`
}

// MediaStream accepts media streaming WebSocket connections and feeds decoded
// PCM into the audio buffer store.
//
// The transport does not identify which call a connection belongs to, so
// callers register the expected source key with Bind before the call's media
// starts; each new connection claims the oldest pending key.
type MediaStream struct {
	audio    *store.AudioBufferStore
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	pending []string
}

func NewMediaStream(audio *store.AudioBufferStore, logger *zap.Logger) *MediaStream {
	return &MediaStream{
		audio: audio,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Bind registers a source key for the next inbound media connection.
func (h *MediaStream) Bind(sourceKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, sourceKey)
}

// Unbind drops a pending source key, for calls that end before their media
// connection arrives.
func (h *MediaStream) Unbind(sourceKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, key := range h.pending {
		if key == sourceKey {
			h.pending = append(h.pending[:i], h.pending[i+1:]...)
			return
		}
	}
}

func (h *MediaStream) claim() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 {
		return "", false
	}
	key := h.pending[0]
	h.pending = h.pending[1:]
	return key, true
}

// Handle upgrades the connection and pumps audio frames until the peer
// disconnects. The connection's buffer entry is removed on close so a dead
// stream does not leave audio behind.
func (h *MediaStream) Handle(c echo.Context) error {
	sourceKey, ok := h.claim()
	if !ok {
		h.logger.Warn("media connection with no pending call, rejecting")
		return echo.NewHTTPError(http.StatusConflict, "no call awaiting media")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.mu.Lock()
		h.pending = append([]string{sourceKey}, h.pending...)
		h.mu.Unlock()
		return err
	}
	defer conn.Close()

	connID := uuid.New().String()
	h.logger.Info("media stream connected",
		zap.String("connection_id", connID),
		zap.String("source_key", sourceKey),
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("media stream read error",
					zap.String("connection_id", connID),
					zap.Error(err),
				)
			}
			break
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("skipping unparseable media frame", zap.String("connection_id", connID))
			continue
		}

		switch msg.Kind {
		case "AudioMetadata":
			h.logger.Debug("received audio metadata", zap.String("connection_id", connID))
		case "AudioData":
			if msg.AudioData == nil || msg.AudioData.Silent {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(msg.AudioData.Data)
			if err != nil {
				h.logger.Debug("skipping undecodable audio frame", zap.String("connection_id", connID))
				continue
			}
			h.audio.Append(sourceKey, pcm)
		}
	}

	h.audio.Remove(sourceKey)
	h.logger.Info("media stream disconnected",
		zap.String("connection_id", connID),
		zap.String("source_key", sourceKey),
	)
	return nil
}

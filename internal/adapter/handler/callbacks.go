package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/acs"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/sse"
	"github.com/summarizer-bot/meeting-summarizer/internal/usecase/pipeline"
)

type callbackEvent struct {
	Type string `json:"type"`
	Data struct {
		CallConnectionID string `json:"callConnectionId"`
		ServerCallID     string `json:"serverCallId"`
	} `json:"data"`
}

// Callbacks handles call-automation lifecycle events posted back by ACS.
type Callbacks struct {
	calls    *acs.Client
	registry *acs.CallRegistry
	media    *MediaStream
	pipeline pipeline.Service
	hub      *sse.Hub
	logger   *zap.Logger
}

func NewCallbacks(
	calls *acs.Client,
	registry *acs.CallRegistry,
	media *MediaStream,
	pipeline pipeline.Service,
	hub *sse.Hub,
	logger *zap.Logger,
) *Callbacks {
	return &Callbacks{
		calls:    calls,
		registry: registry,
		media:    media,
		pipeline: pipeline,
		hub:      hub,
		logger:   logger,
	}
}

// Handle processes a batch of callback events.
func (h *Callbacks) Handle(c echo.Context) error {
	var events []callbackEvent
	if err := c.Bind(&events); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback payload")
	}

	for _, event := range events {
		connID := event.Data.CallConnectionID
		switch event.Type {
		case "Microsoft.Communication.CallConnected":
			h.onCallConnected(c, connID)
		case "Microsoft.Communication.CallDisconnected":
			h.onCallDisconnected(connID)
		case "Microsoft.Communication.MediaStreamingStarted":
			h.logger.Info("media streaming started", zap.String("call_connection_id", connID))
		case "Microsoft.Communication.MediaStreamingStopped":
			h.logger.Info("media streaming stopped", zap.String("call_connection_id", connID))
		case "Microsoft.Communication.MediaStreamingFailed":
			h.logger.Error("media streaming failed", zap.String("call_connection_id", connID))
		default:
			h.logger.Debug("ignoring callback", zap.String("type", event.Type))
		}
	}

	return c.NoContent(http.StatusOK)
}

// onCallConnected presses "1" so the bot joins the meeting audio instead of
// staying in the lobby prompt.
func (h *Callbacks) onCallConnected(c echo.Context, callConnectionID string) {
	h.logger.Info("call connected", zap.String("call_connection_id", callConnectionID))

	call, ok := h.registry.Get(callConnectionID)
	if !ok || call.CallerPhone == "" {
		return
	}
	if err := h.calls.SendDTMFJoin(c.Request().Context(), callConnectionID, call.CallerPhone); err != nil {
		h.logger.Error("failed to send join tone",
			zap.String("call_connection_id", callConnectionID),
			zap.Error(err),
		)
	}
}

func (h *Callbacks) onCallDisconnected(callConnectionID string) {
	h.logger.Info("call disconnected", zap.String("call_connection_id", callConnectionID))

	if call, ok := h.registry.Get(callConnectionID); ok {
		h.media.Unbind(call.ServerCallID)
		h.registry.Remove(callConnectionID)
	}
	meetingID := "call-" + callConnectionID
	h.pipeline.Stop(meetingID)
	h.hub.Broadcast(sse.GlobalKey, sse.Event{Type: "call-ended", Data: meetingID})
}

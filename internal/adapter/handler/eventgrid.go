package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/acs"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/teams"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/sse"
	"github.com/summarizer-bot/meeting-summarizer/internal/usecase/pipeline"
	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

const (
	eventTypeSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"
	eventTypeIncomingCall           = "Microsoft.Communication.IncomingCall"
)

type eventGridEvent struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type subscriptionValidationData struct {
	ValidationCode string `json:"validationCode"`
}

type incomingCallData struct {
	IncomingCallContext string `json:"incomingCallContext"`
	From                struct {
		RawID       string `json:"rawId"`
		PhoneNumber *struct {
			Value string `json:"value"`
		} `json:"phoneNumber,omitempty"`
	} `json:"from"`
}

// EventGrid handles the Event Grid subscription on the incoming-call topic.
type EventGrid struct {
	cfg      *config.Config
	calls    *acs.Client
	registry *acs.CallRegistry
	media    *MediaStream
	pipeline pipeline.Service
	hub      *sse.Hub
	logger   *zap.Logger
}

func NewEventGrid(
	cfg *config.Config,
	calls *acs.Client,
	registry *acs.CallRegistry,
	media *MediaStream,
	pipeline pipeline.Service,
	hub *sse.Hub,
	logger *zap.Logger,
) *EventGrid {
	return &EventGrid{
		cfg:      cfg,
		calls:    calls,
		registry: registry,
		media:    media,
		pipeline: pipeline,
		hub:      hub,
		logger:   logger,
	}
}

// Handle processes a batch of Event Grid events. The validation handshake is
// answered synchronously; incoming calls are answered and their pipelines
// armed.
func (h *EventGrid) Handle(c echo.Context) error {
	var events []eventGridEvent
	if err := c.Bind(&events); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event payload")
	}

	for _, event := range events {
		switch event.EventType {
		case eventTypeSubscriptionValidation:
			var data subscriptionValidationData
			if err := json.Unmarshal(event.Data, &data); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid validation event")
			}
			h.logger.Info("answering event grid validation handshake")
			return c.JSON(http.StatusOK, map[string]string{
				"validationResponse": data.ValidationCode,
			})

		case eventTypeIncomingCall:
			var data incomingCallData
			if err := json.Unmarshal(event.Data, &data); err != nil {
				h.logger.Error("failed to parse incoming call event", zap.Error(err))
				continue
			}
			h.handleIncomingCall(c, data)

		default:
			h.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		}
	}

	return c.NoContent(http.StatusOK)
}

func (h *EventGrid) handleIncomingCall(c echo.Context, data incomingCallData) {
	ctx := c.Request().Context()

	result, err := h.calls.AnswerCall(ctx, data.IncomingCallContext)
	if err != nil {
		h.logger.Error("failed to answer incoming call", zap.Error(err))
		return
	}

	callerPhone := ""
	if data.From.PhoneNumber != nil {
		callerPhone = data.From.PhoneNumber.Value
	}
	h.registry.Add(&acs.ActiveCall{
		CallConnectionID: result.CallConnectionID,
		ServerCallID:     result.ServerCallID,
		CallerPhone:      callerPhone,
	})

	// The media WebSocket for this call will claim this key when it connects.
	h.media.Bind(result.ServerCallID)

	meetingID := "call-" + result.CallConnectionID
	destination := teams.ConversationReference{
		ServiceURL:     h.cfg.Teams.ServiceURL,
		ConversationID: h.cfg.Teams.ConversationID,
	}
	h.pipeline.Start(meetingID, result.ServerCallID, destination)

	h.hub.Broadcast(sse.GlobalKey, sse.Event{Type: "call-answered", Data: meetingID})
}

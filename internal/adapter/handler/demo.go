package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/errors"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/acs"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/sse"
	"github.com/summarizer-bot/meeting-summarizer/internal/usecase/pipeline"
)

// StopMeetingRequest asks for a running meeting to be torn down.
type StopMeetingRequest struct {
	MeetingID string `json:"meetingId" validate:"required"`
	HangUp    bool   `json:"hangUp"`
}

// Demo exposes the introspection surface: live status, transcripts and
// manual teardown for operating the bot during a meeting.
type Demo struct {
	pipeline pipeline.Service
	registry *acs.CallRegistry
	calls    *acs.Client
	hub      *sse.Hub
	logger   *zap.Logger
}

func NewDemo(pipeline pipeline.Service, registry *acs.CallRegistry, calls *acs.Client, hub *sse.Hub, logger *zap.Logger) *Demo {
	return &Demo{
		pipeline: pipeline,
		registry: registry,
		calls:    calls,
		hub:      hub,
		logger:   logger,
	}
}

// Status reports active meetings and call count.
func (h *Demo) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"activeMeetings": h.pipeline.ActiveMeetings(),
		"activeCalls":    h.registry.Count(),
	})
}

// Transcript returns the accumulated transcript for one meeting without
// consuming it.
func (h *Demo) Transcript(c echo.Context) error {
	meetingID := c.Param("id")
	found := false
	for _, id := range h.pipeline.ActiveMeetings() {
		if id == meetingID {
			found = true
			break
		}
	}
	if !found {
		appErr := errors.ErrNotFound("meeting")
		return c.JSON(appErr.HTTPCode, appErr)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"meetingId":  meetingID,
		"transcript": h.pipeline.CurrentTranscript(meetingID),
	})
}

// Stop tears a meeting down, optionally hanging up the underlying call.
func (h *Demo) Stop(c echo.Context) error {
	var req StopMeetingRequest
	if err := c.Bind(&req); err != nil {
		appErr := errors.ErrInvalidArgument("invalid request body")
		return c.JSON(appErr.HTTPCode, appErr)
	}
	if err := c.Validate(&req); err != nil {
		appErr := errors.ErrInvalidArgument(err.Error())
		return c.JSON(appErr.HTTPCode, appErr)
	}

	h.pipeline.Stop(req.MeetingID)

	if req.HangUp {
		// Meeting ids are derived from the call connection id.
		callConnectionID := req.MeetingID
		if len(callConnectionID) > 5 && callConnectionID[:5] == "call-" {
			callConnectionID = callConnectionID[5:]
		}
		if call, ok := h.registry.Get(callConnectionID); ok {
			if err := h.calls.HangUp(c.Request().Context(), call.CallConnectionID); err != nil {
				h.logger.Error("failed to hang up call",
					zap.String("call_connection_id", call.CallConnectionID),
					zap.Error(err),
				)
				appErr := errors.ErrUpstream(err, "call automation")
				return c.JSON(appErr.HTTPCode, appErr)
			}
			h.registry.Remove(callConnectionID)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "stopped", "meetingId": req.MeetingID})
}

// Events streams pipeline events for a meeting (or "global") as
// server-sent events until the client disconnects.
func (h *Demo) Events(c echo.Context) error {
	meetingID := c.Param("id")
	if meetingID == "" {
		meetingID = sse.GlobalKey
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := h.hub.Subscribe(meetingID)
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

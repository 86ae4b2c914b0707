// Package sse fans live pipeline events out to demo/introspection clients.
package sse

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one server-sent event payload
type Event struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	Timestamp string `json:"timestamp"`
}

// Hub tracks subscriber channels per meeting id. The "global" key receives
// process-level events such as answered calls.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[chan Event]struct{}
	logger  *zap.Logger
}

// GlobalKey addresses subscribers not bound to a single meeting.
const GlobalKey = "global"

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[chan Event]struct{}),
		logger:  logger,
	}
}

// Subscribe registers a listener for a meeting id. The returned cancel func
// must be called when the client disconnects.
func (h *Hub) Subscribe(meetingID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.clients[meetingID] == nil {
		h.clients[meetingID] = make(map[chan Event]struct{})
	}
	h.clients[meetingID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.clients[meetingID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.clients, meetingID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers an event to all subscribers of a meeting. Slow clients
// are skipped rather than blocked on.
func (h *Hub) Broadcast(meetingID string, ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients[meetingID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("meeting_id", meetingID))
		}
	}
}

// MeetingEvent implements the pipeline notifier contract.
func (h *Hub) MeetingEvent(meetingID, eventType, data string) {
	h.Broadcast(meetingID, Event{Type: eventType, Data: data})
}

// Package dashboard fans out live refresh events to connected dashboards.
package dashboard

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/logging"
	"tg_weather_bot/internal/metrics"
)

// MessageType tags every frame pushed to dashboards.
const MessageType = "dashboardUpdate"

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Event names published by the bot and the admin API.
const (
	EventStart       = "start"
	EventHelp        = "help"
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventBlock       = "block"
	EventUnblock     = "unblock"
	EventDelete      = "delete"
)

// Event is a state change worth refreshing the dashboard for. Extra fields
// are merged into the payload next to event and chatId.
type Event struct {
	Name   string
	ChatID string
	Extra  map[string]any
}

type envelope struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Encode renders the frame sent to subscribers.
func (e Event) Encode() ([]byte, error) {
	payload := make(map[string]any, len(e.Extra)+2)
	for k, v := range e.Extra {
		payload[k] = v
	}
	payload["event"] = e.Name
	payload["chatId"] = e.ChatID

	return json.Marshal(envelope{Type: MessageType, Payload: payload})
}

// Hub delivers each published event at most once to every subscriber that
// has room in its buffer. Publish never blocks.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *logrus.Entry
}

// NewHub constructs a Hub. A non-positive buffer uses DefaultBuffer.
func NewHub(buffer int, logger *logrus.Entry) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Publish broadcasts the event to all current subscribers.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}

	frame, err := event.Encode()
	if err != nil {
		h.logger.WithFields(logging.Fields{
			"event":   "dashboard_encode_failed",
			"name":    event.Name,
			"chat_id": event.ChatID,
			"error":   err,
		}).Error("failed to encode dashboard event")
		return
	}

	metrics.IncDashboardEvent(event.Name)

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- frame:
		default:
			metrics.IncDashboardDropped()
			h.logger.WithFields(logging.Fields{
				"event": "dashboard_event_dropped",
				"name":  event.Name,
			}).Warn("dashboard subscriber buffer full")
		}
	}
}

// Subscribe attaches a new subscriber. Callers must Close it when done.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub: h,
		ch:  make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Count returns the number of attached subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Subscription is one dashboard connection's view of the hub.
type Subscription struct {
	hub *Hub
	ch  chan []byte
}

// Frames yields encoded events in publish order. It is closed by Close.
func (s *Subscription) Frames() <-chan []byte {
	return s.ch
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

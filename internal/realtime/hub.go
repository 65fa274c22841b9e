// Package realtime pushes department changes to websocket clients watching an
// event. Rooms are keyed by event ID and fanned out across instances through
// Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// RoomPublisher publishes an encoded event to every instance.
type RoomPublisher interface {
	Publish(eventID uuid.UUID, event string, payload []byte) error
}

// RoomSubscriber subscribes to an event's channel and invokes handler for incoming events.
type RoomSubscriber interface {
	Subscribe(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_id -> set of connections and broadcasts messages.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    RoomPublisher
	sub    RoomSubscriber
}

// NewHub creates a websocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub RoomPublisher, sub RoomSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its event room. The first client of a room starts
// the Redis subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		if h.sub != nil {
			eventID := c.EventID
			cancel, err := h.sub.Subscribe(eventID, func(event string, payload []byte) {
				h.Broadcast(eventID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe event room failed", zap.String("event_id", eventID.String()), zap.Error(err))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.rooms[c.EventID][c.ID] = c
	h.logger.Debug("client joined event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client. The last client out cancels the subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.rooms[c.EventID]
	if !ok {
		return
	}
	if _, ok := m[c.ID]; !ok {
		return
	}
	delete(m, c.ID)
	close(c.send)
	if len(m) == 0 {
		delete(h.rooms, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.logger.Debug("client left event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to the local clients of an event room.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode broadcast failed", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping message", zap.String("client_id", c.ID))
		}
	}
}

// PublishEvent delivers an event to the room on every instance. With Redis the
// subscription performs the local broadcast, so clients get each event once.
func (h *Hub) PublishEvent(eventID uuid.UUID, event string, payload interface{}) {
	if h.pub == nil {
		h.Broadcast(eventID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.pub.Publish(eventID, event, data); err != nil {
		h.logger.Warn("publish event failed, broadcasting locally", zap.String("event_id", eventID.String()), zap.Error(err))
		h.Broadcast(eventID, event, json.RawMessage(data))
	}
}

// ClientCount returns the number of local clients in an event room.
func (h *Hub) ClientCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil
	}
	return json.Marshal(payload)
}

package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veomenu/veomenu/internal/metrics"
)

// Message represents a real-time sync notification broadcast to the clients
// of one instance.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub maintains the active WebSocket clients grouped by instance and
// broadcasts messages to one instance's clients at a time.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a new Hub. The metrics parameter may be nil.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Register adds a client to its instance's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.instanceID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.instanceID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.WSConnected()
}

// Unregister removes a client from its room and closes its send channel.
// Empty rooms are dropped so idle instances do not accumulate.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.instanceID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
			h.metrics.WSDisconnected()
		}
		if len(room) == 0 {
			delete(h.rooms, c.instanceID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client connected for the instance.
func (h *Hub) Broadcast(instanceID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[instanceID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full; drop rather than block the broadcaster.
		}
	}
}

// ClientCount returns the number of clients connected for the instance.
func (h *Hub) ClientCount(instanceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[instanceID])
}

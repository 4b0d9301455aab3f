package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is the envelope pushed to every connected dashboard client.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	clients map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan []byte

	mu  sync.RWMutex
	log *zap.Logger
}

// NewHub creates a new broadcast hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan []byte, 64),
		log:        log,
	}
}

// Run processes register/unregister/broadcast events until the hub is closed.
// Call it from a dedicated goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if existing, ok := h.clients[client.ID]; ok {
				// Replace a stale connection for the same client ID
				close(existing.send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Debug("websocket client registered", zap.String("client_id", client.ID))

		case client := <-h.Unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.ID]; ok && current == client {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("websocket client unregistered", zap.String("client_id", client.ID))

		case message := <-h.Broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop the connection rather than block the hub
					delete(h.clients, id)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent marshals an event envelope and fans it out to all clients.
func (h *Hub) BroadcastEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Warn("failed to marshal websocket event", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case h.Broadcast <- data:
	default:
		h.log.Warn("websocket broadcast queue full, dropping event", zap.String("type", eventType))
	}
}

// GetClient returns the client registered under the given ID
func (h *Hub) GetClient(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[id]
	return client, ok
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

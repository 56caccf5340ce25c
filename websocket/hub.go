package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"
)

// Event is one message on the admin triage feed
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub manages WebSocket connections and broadcasting
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for all clients
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	mutex sync.RWMutex

	// Statistics
	connectedClients int
	eventsSent       int64
	eventsDropped    int64

	stop chan struct{}
	once sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.connectedClients = 0
			h.mutex.Unlock()
			return

		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			log.Infof("Client connected. Total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.Infof("Client disconnected. Total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.eventsSent++
			h.mutex.Unlock()
		}
	}
}

// Stop ends Run and closes every client
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// Publish queues an event for every connected client. It never blocks:
// when the broadcast buffer is full the event is dropped.
func (h *Hub) Publish(eventType string, data interface{}) {
	message := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).Warn("Failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.mutex.Lock()
		h.eventsDropped++
		h.mutex.Unlock()
		log.WithField("type", eventType).Warn("Broadcast buffer full, dropping event")
	}
}

// GetStats returns the number of connected clients and events sent
func (h *Hub) GetStats() (int, int64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.eventsSent
}

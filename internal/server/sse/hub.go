package sse

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client is a single connected SSE subscriber.
type Client chan []byte

// CaptureEvent is the payload broadcast when a new capture row is persisted.
type CaptureEvent struct {
	ID          uint      `json:"id"`
	CapturedAt  time.Time `json:"captured_at"`
	CameraID    int       `json:"camera_id"`
	PeopleCount *int      `json:"people_count"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
}

// Hub manages the set of active SSE clients and broadcasts events to them.
type Hub struct {
	clients    map[Client]bool
	broadcast  chan []byte
	register   chan Client
	unregister chan Client
}

// NewHub creates a new hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan Client),
		unregister: make(chan Client),
	}
}

// Run dispatches registrations and broadcasts until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Debugf("SSE client registered (%d active)", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Debugf("SSE client unregistered (%d active)", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client <- message:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, client)
					close(client)
				}
			}
		}
	}
}

// Register adds a new subscriber and returns its channel.
func (h *Hub) Register() Client {
	client := make(Client, 8)
	h.register <- client
	return client
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// BroadcastCapture sends a new-capture event to every subscriber.
func (h *Hub) BroadcastCapture(event CaptureEvent) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("Failed to marshal SSE capture event")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Warn("SSE broadcast queue full, dropping capture event")
	}
}

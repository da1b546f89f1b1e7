package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/triagehub/triagehub/internal/database"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens in the CORS middleware; the feed itself
	// is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// IncidentEvent is the message pushed to websocket subscribers whenever an
// incident is created or changes.
type IncidentEvent struct {
	Type     string             `json:"type"`
	Incident *database.Incident `json:"incident"`
}

// WSHub broadcasts incident updates to connected websocket clients. It
// implements services.IncidentNotifier so the import pipeline can push
// events without knowing about websockets.
type WSHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewWSHub creates an empty hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*websocket.Conn]bool)}
}

// NotifyIncident broadcasts an incident update to all subscribers. Slow or
// dead clients are dropped.
func (hub *WSHub) NotifyIncident(incident *database.Incident) {
	event := IncidentEvent{Type: "incident_updated", Incident: incident}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for conn := range hub.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (hub *WSHub) ClientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

func (hub *WSHub) register(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.clients[conn] = true
}

func (hub *WSHub) unregister(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.clients[conn] {
		delete(hub.clients, conn)
		conn.Close()
	}
}

// handleIncidentWS handles GET /api/ws/incidents, upgrading to a websocket
// that streams incident updates.
func (h *APIHandler) handleIncidentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	h.hub.register(conn)
	log.Printf("Websocket client connected: %s (%d active)", r.RemoteAddr, h.hub.ClientCount())

	// The feed is push-only. The read loop only drains control frames and
	// detects disconnects.
	go func() {
		defer h.hub.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

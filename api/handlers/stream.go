package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is one lifecycle notification pushed to connected clients
type Event struct {
	Kind   string    `json:"kind"`
	Action string    `json:"action"`
	ID     string    `json:"id"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// Hub fans lifecycle events out to every connected websocket client
type Hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn

	events chan Event
}

func NewHub() *Hub {
	return &Hub{
		clients: map[string]*websocket.Conn{},
		events:  make(chan Event, 64),
	}
}

// Run consumes the event channel and writes to every client. Clients that
// fail a write are dropped.
func (h *Hub) Run() {
	for ev := range h.events {
		h.mu.Lock()
		for id, conn := range h.clients {
			if err := conn.WriteJSON(ev); err != nil {
				zap.S().Debugw("dropping stream client", "client", id)
				conn.Close()
				delete(h.clients, id)
			}
		}
		h.mu.Unlock()
	}
}

// Broadcast queues an event without blocking the caller. If the buffer is
// full the event is dropped, the stream is advisory.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}

func (h *Hub) add(conn *websocket.Conn) string {
	id := uuid.New().String()
	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()
	return id
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	if conn, ok := h.clients[id]; ok {
		conn.Close()
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// Stream upgrades authenticated requests to a websocket fed by the hub
type Stream struct {
	Hub *Hub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHandler upgrades the connection and keeps it registered until the
// client goes away.
func (s Stream) ServeHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().With(err).Error("failed to upgrade websocket")
		return
	}

	id := s.Hub.add(conn)
	zap.S().Debugw("stream client connected", "client", id)

	// reads are discarded, the stream is push only. A read error means the
	// client disconnected.
	go func() {
		defer s.Hub.remove(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

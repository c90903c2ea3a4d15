// Package timerapi exposes the timer core over HTTP: task management
// routes and a WebSocket feed that pushes next_exec/value changes to a
// status dashboard. Grounded on the teacher's spotifysearch WebSocket
// idiom, generalized from a single extension connection to a broadcast
// hub serving any number of dashboard clients.
package timerapi

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strefethen/timer-hub-go/internal/timer"
)

const (
	hubPingInterval = 30 * time.Second
	hubWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from any origin
	},
}

// StatusEvent is pushed to every connected dashboard client whenever a
// task's next_exec or value changes.
type StatusEvent struct {
	Type string          `json:"type"` // "status"
	Task timer.TaskStatus `json:"task"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan StatusEvent
}

// Hub manages WebSocket connections to any number of status dashboards
// and broadcasts StatusEvents to all of them.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub builds an empty Hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{logger: logger, clients: make(map[*hubClient]struct{})}
}

// Broadcast pushes status to every connected client. Slow/dead clients
// are dropped rather than blocking the broadcaster.
func (h *Hub) Broadcast(status timer.TaskStatus) {
	event := StatusEvent{Type: "status", Task: status}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.logger.Printf("timerapi: dropping slow dashboard client")
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
}

// Connections reports how many dashboard clients are currently
// attached.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serve upgrades r into a WebSocket connection and registers it with
// the hub until the client disconnects.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &hubClient{conn: conn, send: make(chan StatusEvent, 16)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

// readPump drains (and discards) incoming frames purely to detect
// disconnects; the dashboard is a read-only consumer of this feed.
func (h *Hub) readPump(client *hubClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(hubPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
			if err := client.conn.WriteJSON(event); err != nil {
				h.remove(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(client)
				return
			}
		}
	}
}

func (h *Hub) remove(client *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	client.conn.Close()
}

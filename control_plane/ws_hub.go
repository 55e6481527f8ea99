package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuqk23/PileFlow/control_plane/observability"
)

const maxWSConnections = 50

// MonitorHub manages admin WebSocket connections and broadcasts the live
// station view once per second. Single broadcaster pattern prevents N
// duplicate tickers.
type MonitorHub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	api        *API
}

// NewMonitorHub creates a new WebSocket hub.
func NewMonitorHub(api *API) *MonitorHub {
	return &MonitorHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		api:        api,
	}
}

// Run starts the hub's main loop.
func (h *MonitorHub) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxWSConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("WebSocket connection rejected: max connections (%d) reached", maxWSConnections)
				continue
			}
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedMonitors.Set(float64(total))
			log.Printf("Monitor client registered. Total: %d", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedMonitors.Set(float64(total))
			log.Printf("Monitor client unregistered. Total: %d", total)

		case <-ticker.C:
			h.broadcastAll(ctx)
		}
	}
}

// Register hands a connection to the hub loop.
func (h *MonitorHub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes a connection from the hub loop.
func (h *MonitorHub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

func (h *MonitorHub) broadcastAll(ctx context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	piles, err := h.api.store.ListPiles(ctx)
	if err != nil {
		log.Printf("Failed to collect pile stats for monitor broadcast: %v", err)
		return
	}
	payload := map[string]interface{}{
		"snapshot": h.api.sched.Snapshot(),
		"piles":    piles,
	}

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("WebSocket write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *MonitorHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Printf("Shutting down WebSocket hub with %d clients", len(h.clients))
	for conn := range h.clients {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"timewarden/internal/events"
)

// RefreshHub pushes engine events to connected clients over WebSocket
// so a UI can re-pull state when the reconciler reports changes. The
// channel is broadcast-only; clients never send frames.
type RefreshHub struct {
	bus      *events.Bus
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewRefreshHub creates a hub subscribed to every bus event.
func NewRefreshHub(bus *events.Bus) *RefreshHub {
	h := &RefreshHub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	bus.Subscribe(h.broadcast)
	return h
}

// Serve upgrades the request and keeps the connection until the client
// goes away.
// GET /ws
func (h *RefreshHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("handlers: websocket upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	// Reads are only for detecting disconnects.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *RefreshHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast fans one event out to every connection. A failing
// connection is dropped.
func (h *RefreshHub) broadcast(e events.Event) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(e); err != nil {
			log.Printf("handlers: websocket write: %v", err)
			h.drop(c)
		}
	}
}

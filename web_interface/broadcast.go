package web_interface

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"ema-rejection/logging"
)

// hub tracks connected websocket clients and fans status payloads out to
// them. A client that fails a write is dropped.
type hub struct {
	logger   logging.LoggerInterface
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newHub(logger logging.LoggerInterface) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The status server binds to loopback; cross-origin pages on the
			// same host are allowed.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

func (h *hub) handleWS(rw http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Websocket client connected (%d total)", n)

	// Drain the read side so pings and close frames are processed.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Websocket client disconnected (%d total)", n)
}

// broadcast sends the payload to every connected client.
func (h *hub) broadcast(payload interface{}) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			h.logger.Warning("Dropping websocket client after write error: %v", err)
			h.drop(conn)
		}
	}
}

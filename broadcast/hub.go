package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub relays broadcast.Message between connected processes: a message
// received from one connection is forwarded to every other connection,
// never back to its sender, so a star topology of N replicas never loops.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[*websocket.Conn]bool
}

// NewHub starts an empty relay. If logger is nil, slog.Default() is used.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, conns: make(map[*websocket.Conn]bool)}
}

// Handler upgrades incoming HTTP requests to websocket connections and
// relays messages between them.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("broadcast: hub upgrade failed", "error", err)
			return
		}
		h.mu.Lock()
		h.conns[conn] = true
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.conns, conn)
			h.mu.Unlock()
			_ = conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				h.logger.Warn("broadcast: hub dropping malformed message", "error", err)
				continue
			}
			h.relay(conn, data)
		}
	}
}

func (h *Hub) relay(sender *websocket.Conn, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.conns {
		if conn == sender {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("broadcast: hub relay failed", "error", err)
		}
	}
}

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
)

// RemoteChannel is a Channel that delivers to local subscribers the same
// way Local does, and additionally mirrors every pushed message to a Hub
// over websocket, so replicas running in separate processes (or separate
// machines) still observe each other's repo-update notifications.
type RemoteChannel struct {
	*Local
	conn   *websocket.Conn
	logger *slog.Logger
}

// DialRemoteChannel connects to a Hub at wsURL and returns a channel that
// fans out locally as well as over the wire. Messages arriving from the
// hub are delivered only to local subscribers, never re-sent to the hub,
// since the hub already relays them to every other connected peer.
func DialRemoteChannel(ctx context.Context, wsURL string, buffer int, logger *slog.Logger) (*RemoteChannel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial hub: %w", err)
	}
	rc := &RemoteChannel{Local: NewLocal(buffer), conn: conn, logger: logger}
	go rc.readLoop()
	return rc, nil
}

func (rc *RemoteChannel) readLoop() {
	for {
		_, data, err := rc.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			rc.logger.Warn("broadcast: remote channel dropping malformed message", "error", err)
			continue
		}
		rc.Local.Push(msg)
	}
}

// Push delivers msg to local subscribers and forwards it to the hub.
func (rc *RemoteChannel) Push(msg Message) {
	rc.Local.Push(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		rc.logger.Warn("broadcast: remote channel marshal failed", "error", err)
		return
	}
	if err := rc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		rc.logger.Warn("broadcast: remote channel send failed", "error", err)
	}
}

// Close stops local dispatch and closes the hub connection.
func (rc *RemoteChannel) Close() {
	rc.Local.Close()
	_ = rc.conn.Close()
}

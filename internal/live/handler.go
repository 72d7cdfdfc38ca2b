package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowmetrics/flowmetrics/internal/logger"
)

// SubscribeRequest is the first message a client must send after the
// websocket upgrade
type SubscribeRequest struct {
	SubscribeRules []string `json:"subscribe_rules"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  ReadBufferSize,
	WriteBufferSize: WriteBufferSize,
	// Origin checks belong to the gateway in front of this service
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes to a gorilla connection. Broadcast and close
// frames may come from different goroutines, and gorilla permits only
// one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) closeWithPolicyViolation(reason string) {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.mu.Unlock()
	_ = c.conn.Close()
}

// Handler upgrades /live-stats requests and serves the subscription
// lifecycle: read the subscribe message, register the connection, make
// sure every requested rule has a poll task, then hold the connection
// open until the client goes away.
func Handler(registry *Registry, updater *Updater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn(LogMsgUpgradeFailed, "error", err)
			return
		}
		conn := &wsConn{conn: raw}

		rules, err := readSubscribe(raw)
		if err != nil || len(rules) == 0 {
			log.Info(LogMsgEmptySubscribe, "remote_addr", raw.RemoteAddr().String())
			conn.closeWithPolicyViolation("subscribe_rules must list at least one rule")
			return
		}

		registry.Connect(conn, rules)
		for _, ruleID := range rules {
			updater.EnsureRuleTask(ruleID)
		}
		log.Info(LogMsgClientConnected, "remote_addr", raw.RemoteAddr().String(), "rules", rules)

		// Drain the connection; clients send nothing meaningful after the
		// subscribe message, but reads are how we learn they left.
		for {
			if _, _, err := raw.ReadMessage(); err != nil {
				break
			}
		}

		registry.Disconnect(conn)
		_ = conn.Close()
		log.Info(LogMsgClientDisconnected, "remote_addr", raw.RemoteAddr().String())
	}
}

// readSubscribe reads and parses the handshake message within the
// handshake deadline
func readSubscribe(conn *websocket.Conn) ([]string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, payload, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var req SubscribeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	rules := make([]string, 0, len(req.SubscribeRules))
	for _, id := range req.SubscribeRules {
		if id != "" {
			rules = append(rules, id)
		}
	}
	return rules, nil
}

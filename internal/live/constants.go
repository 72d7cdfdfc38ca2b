package live

import "time"

// Connection settings
const (
	// ReadBufferSize is the websocket read buffer size
	ReadBufferSize = 1024

	// WriteBufferSize is the websocket write buffer size
	WriteBufferSize = 1024

	// HandshakeTimeout bounds the wait for the subscribe message
	HandshakeTimeout = 10 * time.Second

	// WriteTimeout is the timeout for writing to client connections
	WriteTimeout = 10 * time.Second
)

// Log messages
const (
	LogMsgUpgradeFailed      = "Websocket upgrade failed"
	LogMsgClientConnected    = "Live client connected"
	LogMsgClientDisconnected = "Live client disconnected"
	LogMsgEmptySubscribe     = "Client sent no subscribe_rules, closing"
	LogMsgSendFailed         = "Send failed, dropping subscriber"
	LogMsgPollerStarted      = "Rule poller started"
	LogMsgPollerStopped      = "Rule poller stopped, no subscribers"
	LogMsgSnapshotFailed     = "Failed to fetch rule snapshot"
)

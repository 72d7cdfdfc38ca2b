package ingest

// Log messages
const (
	LogMsgWorkerStarted       = "Ingress worker started"
	LogMsgWorkerStopped       = "Ingress worker stopped"
	LogMsgWorkerGetFailed     = "Failed to read from admission queue"
	LogMsgWorkerPublishFailed = "Failed to publish batch, dropping and continuing"
)

package clickhouse

// Table names
const (
	TableEventsFact = "events_fact"
	TableEventsAgg  = "events_agg"
)

// DefaultTopN bounds the top-event-types list in live snapshots when the
// rule does not set top_n.
const DefaultTopN = 5

// Log messages
const (
	LogMsgConnected          = "ClickHouse connected"
	LogMsgDisconnected       = "ClickHouse disconnected"
	LogMsgInsertFailed       = "ClickHouse insert failed, invalidating connection"
	LogMsgFactRowsWritten    = "Fact rows written"
	LogMsgConnectionRestored = "ClickHouse connection re-established"
)

package mongodb

import "time"

// Collection names
const (
	CollectionEventsRaw = "events_raw"
	CollectionRules     = "aggregation_rules"
	CollectionLocks     = "aggregation_locks"
)

// LockID is the fixed identifier of the scheduler lock singleton
const LockID = "aggregation_scheduler_lock"

// ConnectTimeout bounds the initial connect and ping
const ConnectTimeout = 10 * time.Second

// Log messages
const (
	LogMsgConnected       = "MongoDB connected"
	LogMsgDisconnected    = "MongoDB disconnected"
	LogMsgInvalidRuleDoc  = "Invalid rule document skipped"
	LogMsgEventsArchived  = "Events archived"
	LogMsgLockAcquired    = "Scheduler lock acquired"
	LogMsgLockReleased    = "Scheduler lock released"
	LogMsgLockContention  = "Scheduler lock held elsewhere"
)

package aggregation

// Log messages
const (
	LogMsgSchedulerStarted  = "Aggregation scheduler started"
	LogMsgLockAcquireFailed = "Lock acquire failed"
	LogMsgLockReleaseFailed = "Lock release failed"
	LogMsgRuleLoadFailed    = "Failed to load active rules"
	LogMsgNoActiveRules     = "No active aggregation rules"
	LogMsgRunningRule       = "Running aggregation rule"
	LogMsgRuleFailed        = "Aggregation rule failed"
)

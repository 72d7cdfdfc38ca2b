package sink

// Log messages
const (
	LogMsgEventExcluded = "Event archived but excluded from fact table"
)

package kafka

import "time"

// Consumer group tuning
const (
	SessionTimeout    = 30 * time.Second
	HeartbeatInterval = 10 * time.Second
)

// Log messages
const (
	LogMsgProducerStarted      = "Kafka producer started"
	LogMsgProducerStopped      = "Kafka producer stopped"
	LogMsgBatchSendFailed      = "Kafka batch send failed"
	LogMsgBatchDropped         = "Kafka batch dropped after exhausting retries"
	LogMsgUnexpectedError      = "Unexpected Kafka error, aborting batch"
	LogMsgConsumerStarted      = "Kafka consumer started"
	LogMsgConsumerStopped      = "Kafka consumer stopped"
	LogMsgEmptyMessageSkipped  = "Empty message skipped"
	LogMsgMalformedJSONSkipped = "Malformed JSON message skipped"
	LogMsgBatchFlushed         = "Batch flushed and offsets committed"
	LogMsgRebalance            = "Consumer group session ending, flushing partial batch"
)

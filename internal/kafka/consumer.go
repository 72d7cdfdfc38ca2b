package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// Sink accepts a batch of raw events for durable storage. The consumer
// commits offsets only after this call succeeds.
type Sink interface {
	InsertEvents(ctx context.Context, events []map[string]interface{}) error
}

// ConsumerConfig configures the batched log consumer
type ConsumerConfig struct {
	Topic     string
	GroupID   string
	BatchSize int
}

// Consumer reads the partitioned log as part of a consumer group, batches
// messages and flushes them through the sink before committing offsets.
// A crash between sink write and commit re-delivers the batch on restart;
// nothing is silently lost.
type Consumer struct {
	group  sarama.ConsumerGroup
	config ConsumerConfig
	sink   Sink
}

// NewConsumerConfig builds the sarama configuration for the consumer group
func NewConsumerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V2_6_0_0
	c.Consumer.Offsets.Initial = sarama.OffsetOldest
	c.Consumer.Offsets.AutoCommit.Enable = false
	c.Consumer.Group.Session.Timeout = SessionTimeout
	c.Consumer.Group.Heartbeat.Interval = HeartbeatInterval
	return c
}

// NewConsumer joins the named consumer group on the configured topic
func NewConsumer(brokers []string, cfg ConsumerConfig, sink Sink) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, cfg.GroupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to join consumer group %s: %w", cfg.GroupID, err)
	}
	logger.Info(LogMsgConsumerStarted, "group", cfg.GroupID, "topic", cfg.Topic)
	return &Consumer{group: group, config: cfg, sink: sink}, nil
}

// Consume runs until the context is cancelled or a non-recoverable error
// occurs. Group rebalances re-enter the claim loop transparently.
func (c *Consumer) Consume(ctx context.Context) error {
	handler := &groupHandler{sink: c.sink, batchSize: c.config.BatchSize}

	for {
		if err := c.group.Consume(ctx, []string{c.config.Topic}, handler); err != nil {
			return fmt.Errorf("consumer group session failed: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close releases the group membership
func (c *Consumer) Close() error {
	err := c.group.Close()
	logger.Info(LogMsgConsumerStopped)
	return err
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	sink      Sink
	batchSize int
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim accumulates parsed messages into a batch and flushes it
// through the sink when the size threshold is reached. Offsets are marked
// and committed only after a successful flush; a sink failure escalates
// and forces redelivery of the whole batch.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := logger.FromContext(sess.Context())

	batch := make([]map[string]interface{}, 0, h.batchSize)
	msgs := make([]*sarama.ConsumerMessage, 0, h.batchSize)

	for msg := range claim.Messages() {
		metrics.EventsConsumed.Inc()

		event, ok := parseMessage(log, msg.Value)
		if !ok {
			// Malformed payloads cannot be meaningfully retried: skip and
			// advance the offset. Committing here is only safe while no
			// flushed-pending messages are buffered.
			metrics.MessagesSkipped.Inc()
			sess.MarkMessage(msg, "")
			if len(msgs) == 0 {
				sess.Commit()
			}
			continue
		}

		batch = append(batch, event)
		msgs = append(msgs, msg)

		if len(batch) >= h.batchSize {
			if err := h.flush(sess, batch, msgs); err != nil {
				return err
			}
			batch = batch[:0]
			msgs = msgs[:0]
		}
	}

	// The claim ends on rebalance or shutdown; flush the partial batch so
	// its offsets commit before the group membership changes.
	if len(batch) > 0 {
		log.Info(LogMsgRebalance, "pending", len(batch))
		if err := h.flush(sess, batch, msgs); err != nil {
			return err
		}
	}

	return nil
}

func (h *groupHandler) flush(sess sarama.ConsumerGroupSession, batch []map[string]interface{}, msgs []*sarama.ConsumerMessage) error {
	if err := h.sink.InsertEvents(sess.Context(), batch); err != nil {
		return fmt.Errorf("sink write failed, offsets not committed: %w", err)
	}

	for _, msg := range msgs {
		sess.MarkMessage(msg, "")
	}
	sess.Commit()

	metrics.BatchesFlushed.Inc()
	logger.FromContext(sess.Context()).Debug(LogMsgBatchFlushed, "batch_size", len(batch))
	return nil
}

// parseMessage deserializes a raw log message. Empty, non-JSON and
// non-object payloads are rejected.
func parseMessage(log *slog.Logger, raw []byte) (map[string]interface{}, bool) {
	if len(raw) == 0 {
		log.Warn(LogMsgEmptyMessageSkipped)
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		log.Warn(LogMsgMalformedJSONSkipped, "error", err)
		return nil, false
	}
	if obj == nil {
		log.Warn(LogMsgMalformedJSONSkipped, "error", "null payload")
		return nil, false
	}

	return obj, true
}

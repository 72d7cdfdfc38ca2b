package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// ProducerConfig configures the batched event producer
type ProducerConfig struct {
	Topic           string
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxInFlight     int
	Linger          time.Duration
	MaxMessageBytes int
}

// Producer publishes event batches to the partitioned log. Publishes are
// keyed by user ID so per-user order is preserved, idempotence is enabled
// so broker-side retries cannot duplicate a message, and a counting gate
// bounds concurrent in-flight publishes.
type Producer struct {
	producer sarama.SyncProducer
	config   ProducerConfig
	inflight chan struct{}
}

// NewProducerConfig builds the sarama configuration for the producer
func NewProducerConfig(cfg ProducerConfig) *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V2_6_0_0
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Idempotent = true
	c.Net.MaxOpenRequests = 1 // required by idempotent mode
	c.Producer.Return.Successes = true
	c.Producer.Compression = sarama.CompressionLZ4
	c.Producer.Flush.Frequency = cfg.Linger
	c.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	return c
}

// NewProducer connects to the brokers and returns a Producer
func NewProducer(brokers []string, cfg ProducerConfig) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, NewProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	logger.Info(LogMsgProducerStarted, "brokers", brokers, "topic", cfg.Topic)
	return newProducer(sp, cfg), nil
}

func newProducer(sp sarama.SyncProducer, cfg ProducerConfig) *Producer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1000
	}
	return &Producer{
		producer: sp,
		config:   cfg,
		inflight: make(chan struct{}, cfg.MaxInFlight),
	}
}

// SendBatch publishes every event in the batch concurrently, keyed by
// user ID. Transient failures retry the entire batch with linearly
// increasing backoff up to the retry ceiling; the batch is then dropped.
// Non-transient failures abort immediately without retry. Duplicate
// delivery on partial failure is tolerated downstream by idempotent
// consumer writes.
func (p *Producer) SendBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		err := p.sendOnce(ctx, events)
		if err == nil {
			metrics.EventsPublished.Add(float64(len(events)))
			return nil
		}

		if !isTransient(err) {
			log.Error(LogMsgUnexpectedError, "error", err)
			return err
		}

		lastErr = err
		metrics.ProducerBatchRetries.Inc()
		log.Warn(LogMsgBatchSendFailed,
			"attempt", attempt,
			"max_retries", p.config.MaxRetries,
			"error", err)

		select {
		case <-time.After(p.config.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	metrics.ProducerBatchesDropped.Inc()
	log.Error(LogMsgBatchDropped, "batch_size", len(events), "error", lastErr)
	return fmt.Errorf("batch dropped after %d attempts: %w", p.config.MaxRetries, lastErr)
}

func (p *Producer) sendOnce(ctx context.Context, events []domain.Event) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, event := range events {
		event := event
		g.Go(func() error {
			select {
			case p.inflight <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-p.inflight }()

			value, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to serialize event %s: %w", event.EventID, err)
			}

			msg := &sarama.ProducerMessage{
				Topic: p.config.Topic,
				Key:   sarama.StringEncoder(event.UserID),
				Value: sarama.ByteEncoder(value),
			}

			_, _, err = p.producer.SendMessage(msg)
			return err
		})
	}

	return g.Wait()
}

// Close shuts down the underlying producer
func (p *Producer) Close() error {
	err := p.producer.Close()
	logger.Info(LogMsgProducerStopped)
	return err
}

// isTransient reports whether a publish failure is worth retrying.
// Connection-level and retriable broker errors qualify; everything else
// aborts the batch.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sarama.ErrOutOfBrokers) || errors.Is(err, sarama.ErrNotConnected) {
		return true
	}

	var kerr sarama.KError
	if errors.As(err, &kerr) {
		switch kerr {
		case sarama.ErrRequestTimedOut,
			sarama.ErrNetworkException,
			sarama.ErrLeaderNotAvailable,
			sarama.ErrNotLeaderForPartition,
			sarama.ErrNotEnoughReplicas,
			sarama.ErrNotEnoughReplicasAfterAppend:
			return true
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

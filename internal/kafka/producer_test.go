package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetrics/flowmetrics/internal/domain"
)

func testProducerConfig() ProducerConfig {
	return ProducerConfig{
		Topic:           "events_raw",
		MaxRetries:      3,
		RetryBackoff:    time.Millisecond,
		MaxInFlight:     10,
		Linger:          time.Millisecond,
		MaxMessageBytes: 5 * 1024 * 1024,
	}
}

func makeEvents(userID string, n int) []domain.Event {
	events := make([]domain.Event, n)
	for i := range events {
		events[i] = domain.Event{
			EventID:   fmt.Sprintf("%s-%d", userID, i),
			UserID:    userID,
			EventType: "click",
			Timestamp: time.Date(2026, 1, 16, 18, 0, 0, 0, time.UTC),
		}
	}
	return events
}

func TestSendBatchPublishesAllEvents(t *testing.T) {
	cfg := testProducerConfig()
	mp := mocks.NewSyncProducer(t, NewProducerConfig(cfg))
	for i := 0; i < 3; i++ {
		mp.ExpectSendMessageAndSucceed()
	}

	p := newProducer(mp, cfg)
	err := p.SendBatch(context.Background(), makeEvents("u1", 3))
	require.NoError(t, err)
	require.NoError(t, mp.Close())
}

func TestSendBatchEmptyIsNoop(t *testing.T) {
	cfg := testProducerConfig()
	mp := mocks.NewSyncProducer(t, NewProducerConfig(cfg))

	p := newProducer(mp, cfg)
	assert.NoError(t, p.SendBatch(context.Background(), nil))
	require.NoError(t, mp.Close())
}

func TestSendBatchRetriesTransientFailure(t *testing.T) {
	cfg := testProducerConfig()
	mp := mocks.NewSyncProducer(t, NewProducerConfig(cfg))
	mp.ExpectSendMessageAndFail(sarama.ErrLeaderNotAvailable)
	mp.ExpectSendMessageAndSucceed()

	p := newProducer(mp, cfg)
	err := p.SendBatch(context.Background(), makeEvents("u1", 1))
	require.NoError(t, err)
	require.NoError(t, mp.Close())
}

func TestSendBatchDropsAfterRetryCeiling(t *testing.T) {
	cfg := testProducerConfig()
	cfg.MaxRetries = 2
	mp := mocks.NewSyncProducer(t, NewProducerConfig(cfg))
	mp.ExpectSendMessageAndFail(sarama.ErrRequestTimedOut)
	mp.ExpectSendMessageAndFail(sarama.ErrRequestTimedOut)

	p := newProducer(mp, cfg)
	err := p.SendBatch(context.Background(), makeEvents("u1", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropped")
	require.NoError(t, mp.Close())
}

func TestSendBatchAbortsOnNonTransientFailure(t *testing.T) {
	cfg := testProducerConfig()
	mp := mocks.NewSyncProducer(t, NewProducerConfig(cfg))
	mp.ExpectSendMessageAndFail(sarama.ErrMessageSizeTooLarge)

	p := newProducer(mp, cfg)
	err := p.SendBatch(context.Background(), makeEvents("u1", 1))
	require.Error(t, err)
	// No further expectations were queued: a second attempt would have
	// failed the mock, so reaching Close proves there was no retry.
	require.NoError(t, mp.Close())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	var netErr net.Error = timeoutErr{}

	assert.True(t, isTransient(sarama.ErrOutOfBrokers))
	assert.True(t, isTransient(sarama.ErrLeaderNotAvailable))
	assert.True(t, isTransient(sarama.ErrRequestTimedOut))
	assert.True(t, isTransient(fmt.Errorf("wrapped: %w", sarama.ErrNetworkException)))
	assert.True(t, isTransient(netErr))

	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("serialization failed")))
	assert.False(t, isTransient(sarama.ErrMessageSizeTooLarge))
}

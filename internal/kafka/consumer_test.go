package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	ctx context.Context

	mu        sync.Mutex
	marked    int64 // highest marked next-offset
	committed int64 // marked value at last Commit
	commits   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{ctx: context.Background(), marked: -1, committed: -1}
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "test-member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) Context() context.Context   { return s.ctx }

func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset > s.marked {
		s.marked = offset
	}
}

func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.MarkOffset(msg.Topic, msg.Partition, msg.Offset+1, metadata)
}

func (s *fakeSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	s.committed = s.marked
}

func (s *fakeSession) committedOffset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

func (s *fakeSession) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func newFakeClaim(payloads ...[]byte) *fakeClaim {
	c := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, len(payloads))}
	for i, p := range payloads {
		c.msgs <- &sarama.ConsumerMessage{
			Topic:     "events_raw",
			Partition: 0,
			Offset:    int64(i),
			Value:     p,
		}
	}
	close(c.msgs)
	return c
}

func (c *fakeClaim) Topic() string                            { return "events_raw" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

type fakeSink struct {
	mu      sync.Mutex
	batches [][]map[string]interface{}
	err     error
}

func (s *fakeSink) InsertEvents(ctx context.Context, events []map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	batch := make([]map[string]interface{}, len(events))
	copy(batch, events)
	s.batches = append(s.batches, batch)
	return nil
}

func validPayload(eventID string) []byte {
	return []byte(`{"event_id":"` + eventID + `","user_id":"u1","event_type":"click","timestamp":"2026-01-16T18:00:00Z"}`)
}

func TestConsumeClaimFlushesAtThreshold(t *testing.T) {
	sess := newFakeSession()
	claim := newFakeClaim(validPayload("e0"), validPayload("e1"), validPayload("e2"))
	sink := &fakeSink{}

	h := &groupHandler{sink: sink, batchSize: 2}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	// One threshold flush of two events, one tail flush of the remainder.
	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[1], 1)

	assert.Equal(t, 2, sess.commitCount())
	assert.Equal(t, int64(3), sess.committedOffset())
}

func TestConsumeClaimCommitNeverPrecedesSinkWrite(t *testing.T) {
	sess := newFakeSession()
	claim := newFakeClaim(validPayload("e0"), validPayload("e1"))
	sink := &fakeSink{err: errors.New("clickhouse unreachable")}

	h := &groupHandler{sink: sink, batchSize: 2}
	err := h.ConsumeClaim(sess, claim)

	require.Error(t, err)
	assert.Equal(t, 0, sess.commitCount())
	assert.Equal(t, int64(-1), sess.committedOffset())
}

func TestConsumeClaimSkipsMalformedAndAdvances(t *testing.T) {
	sess := newFakeSession()
	claim := newFakeClaim([]byte("not json"), []byte(""), []byte("[1,2,3]"), []byte("null"))
	sink := &fakeSink{}

	h := &groupHandler{sink: sink, batchSize: 10}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	assert.Empty(t, sink.batches)
	// Each skip with an empty buffer commits individually.
	assert.Equal(t, 4, sess.commitCount())
	assert.Equal(t, int64(4), sess.committedOffset())
}

func TestConsumeClaimMalformedDoesNotCommitBufferedBatch(t *testing.T) {
	sess := newFakeSession()
	claim := newFakeClaim(validPayload("e0"), []byte("not json"))
	sink := &fakeSink{}

	h := &groupHandler{sink: sink, batchSize: 10}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	// The malformed message is marked but must not commit while a valid
	// unflushed event is buffered; the tail flush commits both together.
	require.Len(t, sink.batches, 1)
	assert.Equal(t, 1, sess.commitCount())
	assert.Equal(t, int64(2), sess.committedOffset())
}

func TestParseMessage(t *testing.T) {
	log := slog.Default()

	obj, ok := parseMessage(log, validPayload("e1"))
	require.True(t, ok)
	assert.Equal(t, "e1", obj["event_id"])

	_, ok = parseMessage(log, nil)
	assert.False(t, ok)

	_, ok = parseMessage(log, []byte("{broken"))
	assert.False(t, ok)

	_, ok = parseMessage(log, []byte(`"just a string"`))
	assert.False(t, ok)

	_, ok = parseMessage(log, []byte("null"))
	assert.False(t, ok)
}

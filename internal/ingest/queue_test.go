package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetrics/flowmetrics/internal/domain"
)

func testBatch(userID string, n int) []domain.Event {
	batch := make([]domain.Event, n)
	for i := range batch {
		batch[i] = domain.Event{
			EventID:   userID + "-evt",
			UserID:    userID,
			EventType: "click",
			Timestamp: time.Now().UTC(),
		}
	}
	return batch
}

func TestPutFailsWhenFull(t *testing.T) {
	q := NewAdmissionQueue(2)

	require.NoError(t, q.Put(testBatch("u1", 1)))
	require.NoError(t, q.Put(testBatch("u2", 1)))

	assert.True(t, q.Full())
	assert.ErrorIs(t, q.Put(testBatch("u3", 1)), ErrOverloaded)

	// Draining one slot makes room again.
	_, err := q.Get(context.Background())
	require.NoError(t, err)

	assert.False(t, q.Full())
	assert.NoError(t, q.Put(testBatch("u3", 1)))
}

func TestGetFIFOOrder(t *testing.T) {
	q := NewAdmissionQueue(3)

	require.NoError(t, q.Put(testBatch("first", 1)))
	require.NoError(t, q.Put(testBatch("second", 1)))
	require.NoError(t, q.Put(testBatch("third", 1)))

	for _, want := range []string{"first", "second", "third"} {
		batch, err := q.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, batch[0].UserID)
	}
}

func TestGetBlocksUntilCancelled(t *testing.T) {
	q := NewAdmissionQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitDrainedReturnsOnceEmpty(t *testing.T) {
	q := NewAdmissionQueue(2)
	require.NoError(t, q.Put(testBatch("u1", 1)))
	require.NoError(t, q.Put(testBatch("u2", 1)))

	go func() {
		for i := 0; i < 2; i++ {
			if _, err := q.Get(context.Background()); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, q.WaitDrained(ctx))
	assert.Equal(t, 0, q.Depth())
}

func TestWaitDrainedGivesUpOnContextExpiry(t *testing.T) {
	q := NewAdmissionQueue(1)
	require.NoError(t, q.Put(testBatch("u1", 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.WaitDrained(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Depth(), "undelivered batch stays queued")
}

func TestDepthTracksQueuedBatches(t *testing.T) {
	q := NewAdmissionQueue(4)
	assert.Equal(t, 0, q.Depth())

	require.NoError(t, q.Put(testBatch("u1", 2)))
	require.NoError(t, q.Put(testBatch("u2", 2)))
	assert.Equal(t, 2, q.Depth())

	_, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, q.Depth())
}

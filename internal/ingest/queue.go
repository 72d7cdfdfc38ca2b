package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// ErrOverloaded is returned when the admission queue is at capacity.
// Callers surface it as a retryable overload response.
var ErrOverloaded = errors.New("admission queue at capacity")

// AdmissionQueue is the bounded FIFO buffer between the ingress endpoint
// and the producer worker. Queue depth is the sole backpressure signal
// exposed to the ingress boundary.
type AdmissionQueue struct {
	batches chan []domain.Event
}

// NewAdmissionQueue creates a queue with the given fixed capacity
func NewAdmissionQueue(capacity int) *AdmissionQueue {
	return &AdmissionQueue{
		batches: make(chan []domain.Event, capacity),
	}
}

// Put enqueues a batch. Fails immediately with ErrOverloaded when the
// queue is at capacity; there is no blocking retry inside this call.
func (q *AdmissionQueue) Put(batch []domain.Event) error {
	select {
	case q.batches <- batch:
		metrics.AdmissionQueueDepth.Set(float64(len(q.batches)))
		return nil
	default:
		return ErrOverloaded
	}
}

// Get blocks until a batch is available or the context is cancelled.
// Batches are delivered in FIFO order.
func (q *AdmissionQueue) Get(ctx context.Context) ([]domain.Event, error) {
	select {
	case batch := <-q.batches:
		metrics.AdmissionQueueDepth.Set(float64(len(q.batches)))
		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitDrained blocks until the queue is empty or the context expires.
// Used at shutdown so batches admitted before the stop signal still get
// handed to the worker.
func (q *AdmissionQueue) WaitDrained(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if len(q.batches) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Full is a non-blocking capacity probe used by the ingress boundary to
// fail fast rather than block the calling request.
func (q *AdmissionQueue) Full() bool {
	return len(q.batches) == cap(q.batches)
}

// Depth returns the current number of queued batches
func (q *AdmissionQueue) Depth() int {
	return len(q.batches)
}

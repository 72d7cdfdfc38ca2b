package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
)

// Producer publishes a batch of events to the partitioned log
type Producer interface {
	SendBatch(ctx context.Context, events []domain.Event) error
}

// Worker drains the admission queue and drives the producer, decoupling
// request latency from log-publish latency. Exactly one worker runs per
// process so publish order stays close to ingress order.
type Worker struct {
	queue    *AdmissionQueue
	producer Producer
	wg       sync.WaitGroup
}

// NewWorker creates a new ingress worker
func NewWorker(queue *AdmissionQueue, producer Producer) *Worker {
	return &Worker{
		queue:    queue,
		producer: producer,
	}
}

// Start launches the drain loop. Cancel the context to stop it.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Wait blocks until the drain loop has exited
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := logger.FromContext(ctx)
	log.Info(LogMsgWorkerStarted)

	for {
		batch, err := w.queue.Get(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info(LogMsgWorkerStopped)
				return
			}
			log.Error(LogMsgWorkerGetFailed, "error", err)
			continue
		}

		// A failed publish must not terminate the loop; the next batch
		// is still processed.
		if err := w.producer.SendBatch(ctx, batch); err != nil {
			log.Error(LogMsgWorkerPublishFailed, "error", err, "batch_size", len(batch))
		}
	}
}

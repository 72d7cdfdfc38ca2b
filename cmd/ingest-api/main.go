package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/config"
	"github.com/flowmetrics/flowmetrics/internal/ingest"
	"github.com/flowmetrics/flowmetrics/internal/kafka"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/server"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Ingestion API failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("ingest-api")
	if err != nil {
		return err
	}

	logger.InitLogger(logger.NewConfig(
		cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Version, cfg.Environment, false))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.ProducerConfig{
		Topic:           cfg.KafkaTopic,
		MaxRetries:      cfg.ProducerMaxRetries,
		RetryBackoff:    cfg.ProducerRetryBackoff,
		MaxInFlight:     cfg.ProducerMaxInFlight,
		Linger:          cfg.ProducerLinger,
		MaxMessageBytes: cfg.ProducerMaxMessage,
	})
	if err != nil {
		return err
	}
	defer producer.Close()

	queue := ingest.NewAdmissionQueue(cfg.QueueCapacity)
	worker := ingest.NewWorker(queue, producer)

	// The worker outlives the signal context so the queue can be drained
	// after the HTTP server stops accepting requests.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.Start(workerCtx)

	srv := server.NewIngestServer(cfg.Port, server.IngestDeps{
		Queue:               queue,
		MaxEventsPerRequest: cfg.MaxEventsPerRequest,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down ingestion API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Server forced shutdown", "error", err)
	}

	// Drain admitted batches before cancelling the worker, bounded so a
	// dead broker cannot hang shutdown. Anything still queued when the
	// deadline hits is dropped.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDrain()
	if err := queue.WaitDrained(drainCtx); err != nil {
		logger.Warn("Admission queue not fully drained", "error", err, "depth", queue.Depth())
	}

	stopWorker()
	worker.Wait()
	return nil
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowmetrics/flowmetrics/internal/aggregation"
	"github.com/flowmetrics/flowmetrics/internal/clickhouse"
	"github.com/flowmetrics/flowmetrics/internal/config"
	"github.com/flowmetrics/flowmetrics/internal/kafka"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/mongodb"
	"github.com/flowmetrics/flowmetrics/internal/sink"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event processor failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("event-processor")
	if err != nil {
		return err
	}

	logger.InitLogger(logger.NewConfig(
		cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Version, cfg.Environment, false))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongo, err := mongodb.NewClient(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongo.Close(closeCtx); err != nil {
			logger.Error("MongoDB close failed", "error", err)
		}
	}()

	ch := clickhouse.NewClient(clickhouse.Config{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDB,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
	})
	defer ch.Close()

	writer := sink.NewDualWriter(mongo, ch)
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, kafka.ConsumerConfig{
		Topic:     cfg.KafkaTopic,
		GroupID:   cfg.KafkaGroupID,
		BatchSize: cfg.ConsumerBatch,
	}, writer)
	if err != nil {
		return err
	}
	defer consumer.Close()

	scheduler := aggregation.NewScheduler(
		mongo.Lock(),
		mongo,
		aggregation.NewEngine(ch),
		aggregation.SchedulerConfig{
			LockTTL:           cfg.LockTTL,
			LockRetryInterval: cfg.LockRetryInterval,
			CycleInterval:     cfg.CycleInterval,
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Consume(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	err = g.Wait()
	logger.Info("Event processor stopped")
	return err
}

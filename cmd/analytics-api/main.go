package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/clickhouse"
	"github.com/flowmetrics/flowmetrics/internal/config"
	"github.com/flowmetrics/flowmetrics/internal/handler"
	"github.com/flowmetrics/flowmetrics/internal/live"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/mongodb"
	"github.com/flowmetrics/flowmetrics/internal/server"
	"github.com/flowmetrics/flowmetrics/internal/stats"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Analytics API failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("analytics-api")
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

	statsService := stats.NewService(mongo, ch)
	registry := live.NewRegistry()
	updater := live.NewUpdater(ctx, registry, statsService, cfg.PushInterval)

	srv := server.NewAnalyticsServer(cfg.Port, server.AnalyticsDeps{
		Stats:    statsService,
		Rules:    mongo,
		Registry: registry,
		Updater:  updater,
		HealthDeps: map[string]handler.Pinger{
			"mongodb":    mongo,
			"clickhouse": ch,
		},
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

	logger.Info("Shutting down analytics API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Server forced shutdown", "error", err)
	}

	updater.Wait()
	return nil
}

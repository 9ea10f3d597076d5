package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/drivewatch/sensor-hub/internal/adapter/file"
	httpadapter "github.com/drivewatch/sensor-hub/internal/adapter/http"
	kafkaadapter "github.com/drivewatch/sensor-hub/internal/adapter/kafka"
	"github.com/drivewatch/sensor-hub/internal/adapter/ws"
	"github.com/drivewatch/sensor-hub/internal/config"
	"github.com/drivewatch/sensor-hub/internal/observability"
	"github.com/drivewatch/sensor-hub/internal/pipeline"
	"github.com/drivewatch/sensor-hub/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	gateway := file.NewSnapshot(cfg.DataFile, logger)
	recordStore := store.New(gateway, logger)
	recordStore.Load(context.Background())

	hub := ws.NewHub(logger, metrics)

	// Kafka forwarding is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var forwarder pipeline.Forwarder
	var forwarderClose func() error
	if cfg.KafkaEnabled {
		kf := kafkaadapter.NewForwarder(cfg, logger)
		forwarder = kf
		forwarderClose = kf.Close
		logger.Info("kafka forwarding enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka forwarding disabled")
	}

	p := pipeline.New(recordStore, hub, forwarder, logger, metrics)

	push := ws.NewHandler(p, clock, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, recordStore, p, push, cfg.StaticDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	hub.Shutdown()
	if forwarderClose != nil {
		if err := forwarderClose(); err != nil {
			logger.Error("kafka forwarder close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

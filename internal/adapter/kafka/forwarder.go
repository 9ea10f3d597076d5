// Package kafka publishes accepted readings to a Kafka topic so downstream
// consumers (analytics, alerting) can tap the stream without polling the
// query API. Forwarding is optional and feature-flagged via configuration.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/drivewatch/sensor-hub/internal/config"
	"github.com/drivewatch/sensor-hub/internal/domain"
)

// Forwarder produces one message per accepted reading.
// It implements pipeline.Forwarder.
type Forwarder struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewForwarder creates a Kafka producer for the configured sink topic.
func NewForwarder(cfg *config.Config, logger *slog.Logger) *Forwarder {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Forwarder{writer: w, logger: logger}
}

// Forward serializes and publishes a single reading.
func (f *Forwarder) Forward(ctx context.Context, r domain.Reading) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	return f.writer.WriteMessages(ctx, msg)
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}

// serializeToMessage marshals a reading into a Kafka message keyed by event
// type so consumers can partition per event.
func serializeToMessage(r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Event),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte(r.Event)},
			{Key: "timestamp", Value: []byte(r.Timestamp)},
			{Key: "mac", Value: []byte(r.MAC)},
		},
	}, nil
}

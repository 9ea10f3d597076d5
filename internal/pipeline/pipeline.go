// Package pipeline implements the ingestion-and-fan-out core: validate a
// candidate reading, record it durably, then reflect it to every live
// subscriber, strictly in that order.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drivewatch/sensor-hub/internal/domain"
	"github.com/drivewatch/sensor-hub/internal/observability"
)

// Store is the record of accepted readings.
type Store interface {
	Append(ctx context.Context, r domain.Reading) error
	Snapshot() []domain.Reading
	Len() int
	Ready() bool
}

// Subscriber is one live push-channel connection. Enqueue must not block;
// it reports false when the connection cannot take the frame right now, in
// which case the frame is dropped for that subscriber.
type Subscriber interface {
	Enqueue(payload []byte) bool
	Close()
}

// Registry tracks live subscribers and fans serialized readings out to them.
type Registry interface {
	Register(sub Subscriber)
	Unregister(sub Subscriber)
	Broadcast(r domain.Reading)
}

// Forwarder publishes accepted readings to an external sink (Kafka).
type Forwarder interface {
	Forward(ctx context.Context, r domain.Reading) error
}

// Pipeline serializes all mutations of the record store and registry.
//
// The mutex stands in for the single-threaded event loop of the original
// deployment: append+persist+broadcast run as one atomic unit relative to
// other ingestions, and a subscriber's backlog capture and registration run
// atomically relative to broadcasts. A reading racing a new subscriber lands
// either in its backlog or as its first live frame, never both or neither.
type Pipeline struct {
	mu        sync.Mutex
	store     Store
	registry  Registry
	forwarder Forwarder // nil when Kafka forwarding is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. Pass a nil forwarder to disable Kafka forwarding.
func New(store Store, registry Registry, forwarder Forwarder, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		store:     store,
		registry:  registry,
		forwarder: forwarder,
		logger:    logger,
		metrics:   metrics,
	}
}

// Ingest validates and normalizes a candidate reading, appends it to the
// store (which persists the snapshot), and broadcasts it to subscribers.
//
// A validation failure wraps [domain.ErrValidation]; nothing is stored or
// broadcast. A persist failure propagates and suppresses the broadcast, so
// subscribers never see a reading that was not durably recorded. Forwarding
// to Kafka is best-effort and never fails the ingestion.
func (p *Pipeline) Ingest(ctx context.Context, payload domain.Payload) (domain.Reading, error) {
	reading, err := domain.NewReading(payload)
	if err != nil {
		p.metrics.ReadingsRejected.Inc()
		return domain.Reading{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	if err := p.store.Append(ctx, reading); err != nil {
		p.metrics.PersistErrors.Inc()
		return domain.Reading{}, err
	}
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	p.metrics.ReadingsAccepted.Inc()
	p.metrics.StoredReadings.Set(float64(p.store.Len()))

	p.logger.Info("reading accepted",
		"event", reading.Event,
		"timestamp", reading.Timestamp,
		"mac", reading.MAC,
	)

	if p.forwarder != nil {
		if err := p.forwarder.Forward(ctx, reading); err != nil {
			p.metrics.ForwardErrors.Inc()
			p.logger.Warn("kafka forward failed", "error", err, "event", reading.Event)
		} else {
			p.metrics.ReadingsForwarded.Inc()
		}
	}

	p.registry.Broadcast(reading)
	return reading, nil
}

// Attach sends the full current backlog to sub as a single JSON-array frame,
// then registers it for live broadcasts. Runs under the ingest mutex so the
// backlog-then-live ordering has no gap and no duplicate.
func (p *Pipeline) Attach(sub Subscriber) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	backlog := p.store.Snapshot()
	payload, err := json.Marshal(backlog)
	if err != nil {
		return fmt.Errorf("encode backlog: %w", err)
	}
	if !sub.Enqueue(payload) {
		return errors.New("subscriber rejected backlog frame")
	}
	p.metrics.BacklogSize.Observe(float64(len(backlog)))

	p.registry.Register(sub)
	return nil
}

// Detach removes a subscriber. Safe to call for subscribers that never
// completed Attach.
func (p *Pipeline) Detach(sub Subscriber) {
	p.registry.Unregister(sub)
}

// CheckReadiness returns nil once the record store has loaded its snapshot.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.store.Ready() {
		return errors.New("record store has not loaded its snapshot yet")
	}
	return nil
}

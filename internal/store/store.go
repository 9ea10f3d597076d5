// Package store holds the in-memory record of every accepted reading,
// mirrored to durable storage through a gateway.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/drivewatch/sensor-hub/internal/domain"
)

// Gateway mirrors the in-memory sequence to durable storage.
type Gateway interface {
	Load(ctx context.Context) ([]domain.Reading, error)
	Persist(ctx context.Context, readings []domain.Reading) error
}

// Store is the single source of truth for queries and subscriber backlogs:
// an append-only, insertion-ordered sequence of readings for the life of the
// process. Only the ingestion path mutates it.
type Store struct {
	mu       sync.RWMutex
	readings []domain.Reading
	gateway  Gateway
	logger   *slog.Logger
	loaded   atomic.Bool
}

// New creates an empty Store backed by the given gateway. Call Load before
// serving traffic.
func New(gateway Gateway, logger *slog.Logger) *Store {
	return &Store{gateway: gateway, logger: logger}
}

// Load initializes the store from the durable snapshot. A load failure
// (corrupt snapshot) is recovered by starting empty; it never fails the
// process.
func (s *Store) Load(ctx context.Context) {
	readings, err := s.gateway.Load(ctx)
	if err != nil {
		s.logger.Warn("snapshot load failed, starting with empty store", "error", err)
		readings = nil
	} else {
		s.logger.Info("snapshot loaded", "readings", len(readings))
	}

	s.mu.Lock()
	s.readings = readings
	s.mu.Unlock()
	s.loaded.Store(true)
}

// Append adds a reading to the end of the sequence and persists the full
// sequence through the gateway. On persist failure the reading stays in
// memory (the sequence is append-only) but the error propagates so the
// ingestion is reported as failed and never broadcast.
func (s *Store) Append(ctx context.Context, r domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, r)
	if err := s.gateway.Persist(ctx, s.readings); err != nil {
		return fmt.Errorf("persist reading sequence: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the full current sequence.
func (s *Store) Snapshot() []domain.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Len reports the number of stored readings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Ready reports whether Load has completed.
func (s *Store) Ready() bool {
	return s.loaded.Load()
}

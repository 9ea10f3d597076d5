package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivewatch/sensor-hub/internal/domain"
	"github.com/drivewatch/sensor-hub/internal/store"
)

type mockGateway struct {
	loadReadings []domain.Reading
	loadErr      error
	persistErr   error
	persisted    [][]domain.Reading
}

func (m *mockGateway) Load(_ context.Context) ([]domain.Reading, error) {
	return m.loadReadings, m.loadErr
}

func (m *mockGateway) Persist(_ context.Context, readings []domain.Reading) error {
	if m.persistErr != nil {
		return m.persistErr
	}
	seq := make([]domain.Reading, len(readings))
	copy(seq, readings)
	m.persisted = append(m.persisted, seq)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testReading(t *testing.T, event string) domain.Reading {
	t.Helper()
	r, err := domain.NewReading(domain.Payload{
		Event:     event,
		Value:     json.RawMessage(`1`),
		Timestamp: "2024-03-01 14:22:05",
	})
	require.NoError(t, err)
	return r
}

func TestLoad_PopulatesFromGateway(t *testing.T) {
	gw := &mockGateway{loadReadings: []domain.Reading{testReading(t, "a"), testReading(t, "b")}}
	s := store.New(gw, discardLogger())

	assert.False(t, s.Ready())
	s.Load(context.Background())

	assert.True(t, s.Ready())
	assert.Equal(t, 2, s.Len())
}

func TestLoad_RecoverFromGatewayError(t *testing.T) {
	gw := &mockGateway{loadErr: errors.New("corrupt snapshot")}
	s := store.New(gw, discardLogger())

	s.Load(context.Background())

	assert.True(t, s.Ready())
	assert.Equal(t, 0, s.Len())
}

func TestAppend_PersistsFullSequence(t *testing.T) {
	gw := &mockGateway{}
	s := store.New(gw, discardLogger())
	s.Load(context.Background())

	require.NoError(t, s.Append(context.Background(), testReading(t, "a")))
	require.NoError(t, s.Append(context.Background(), testReading(t, "b")))

	assert.Equal(t, 2, s.Len())
	require.Len(t, gw.persisted, 2)
	assert.Len(t, gw.persisted[0], 1)
	assert.Len(t, gw.persisted[1], 2)
	assert.Equal(t, "a", gw.persisted[1][0].Event)
	assert.Equal(t, "b", gw.persisted[1][1].Event)
}

func TestAppend_PersistFailure(t *testing.T) {
	gw := &mockGateway{persistErr: errors.New("disk full")}
	s := store.New(gw, discardLogger())
	s.Load(context.Background())

	err := s.Append(context.Background(), testReading(t, "a"))
	require.Error(t, err)

	// The in-memory sequence keeps the reading; only durability failed.
	assert.Equal(t, 1, s.Len())
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	gw := &mockGateway{}
	s := store.New(gw, discardLogger())
	s.Load(context.Background())
	require.NoError(t, s.Append(context.Background(), testReading(t, "a")))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Event = "mutated"

	assert.Equal(t, "a", s.Snapshot()[0].Event)
}

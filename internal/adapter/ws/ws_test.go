package ws_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivewatch/sensor-hub/internal/adapter/file"
	"github.com/drivewatch/sensor-hub/internal/adapter/ws"
	"github.com/drivewatch/sensor-hub/internal/domain"
	"github.com/drivewatch/sensor-hub/internal/observability"
	"github.com/drivewatch/sensor-hub/internal/pipeline"
	"github.com/drivewatch/sensor-hub/internal/store"
)

// newTestStack wires a real store (temp snapshot file), hub, and pipeline
// behind an httptest server exposing only the websocket endpoint.
func newTestStack(t *testing.T) (*pipeline.Pipeline, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	metrics := observability.NewMetricsForTesting()

	gateway := file.NewSnapshot(filepath.Join(t.TempDir(), "sensor_data.json"), logger)
	s := store.New(gateway, logger)
	s.Load(context.Background())

	hub := ws.NewHub(logger, metrics)
	p := pipeline.New(s, hub, nil, logger, metrics)

	srv := httptest.NewServer(ws.NewHandler(p, clockwork.NewRealClock(), logger))
	t.Cleanup(srv.Close)
	return p, srv
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gws.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return payload
}

func ingest(t *testing.T, p *pipeline.Pipeline, event string) {
	t.Helper()
	_, err := p.Ingest(context.Background(), domain.Payload{
		Event:     event,
		Value:     json.RawMessage(`1`),
		Timestamp: "2024-03-01 14:22:05",
	})
	require.NoError(t, err)
}

func TestSubscription_BacklogThenLive(t *testing.T) {
	p, srv := newTestStack(t)

	ingest(t, p, "before-1")
	ingest(t, p, "before-2")

	conn := dial(t, srv)

	// First frame: the full backlog as one JSON array.
	var backlog []domain.Reading
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &backlog))
	require.Len(t, backlog, 2)
	assert.Equal(t, "before-1", backlog[0].Event)
	assert.Equal(t, "before-2", backlog[1].Event)

	// Subsequent frames: one JSON object per accepted reading, in order.
	ingest(t, p, "after-1")
	ingest(t, p, "after-2")

	var live domain.Reading
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &live))
	assert.Equal(t, "after-1", live.Event)
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &live))
	assert.Equal(t, "after-2", live.Event)
}

func TestSubscription_EmptyBacklog(t *testing.T) {
	_, srv := newTestStack(t)

	conn := dial(t, srv)

	frame := readFrame(t, conn)
	assert.JSONEq(t, `[]`, string(frame))
}

func TestSubscription_DisconnectStopsDelivery(t *testing.T) {
	p, srv := newTestStack(t)

	conn := dial(t, srv)
	readFrame(t, conn) // backlog

	require.NoError(t, conn.Close())

	// Give the read pump a moment to observe the close and detach.
	time.Sleep(100 * time.Millisecond)

	// Must not panic or block with no subscribers left.
	ingest(t, p, "after-close")
}

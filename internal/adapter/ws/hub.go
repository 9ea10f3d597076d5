// Package ws implements the push channel: a gorilla/websocket hub that
// tracks live subscribers and fans accepted readings out to them.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/drivewatch/sensor-hub/internal/domain"
	"github.com/drivewatch/sensor-hub/internal/observability"
	"github.com/drivewatch/sensor-hub/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from arbitrary origins on the local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is the subscriber registry. It implements pipeline.Registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[pipeline.Subscriber]struct{}
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHub creates an empty registry.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[pipeline.Subscriber]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a subscriber to the active set.
func (h *Hub) Register(sub pipeline.Subscriber) {
	h.mu.Lock()
	h.clients[sub] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.SubscribersConnected.Set(float64(total))
	h.logger.Info("subscriber connected", "total", total)
}

// Unregister removes a subscriber and closes its outbound queue. Safe to
// call for subscribers that were never registered, and idempotent.
func (h *Hub) Unregister(sub pipeline.Subscriber) {
	h.mu.Lock()
	_, ok := h.clients[sub]
	if ok {
		delete(h.clients, sub)
		sub.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SubscribersConnected.Set(float64(total))
		h.logger.Info("subscriber disconnected", "total", total)
	}
}

// Broadcast serializes the reading once and offers it to every live
// subscriber. A subscriber that cannot take the frame right now is silently
// skipped; that is a normal disconnect race, not a fault.
func (h *Hub) Broadcast(r domain.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		h.logger.Error("encode reading for broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.clients {
		sub.Enqueue(payload)
	}
	h.metrics.BroadcastsSent.Inc()
}

// Shutdown unregisters every subscriber, closing their outbound queues so
// their write pumps drain and exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for sub := range h.clients {
		delete(h.clients, sub)
		sub.Close()
	}
	h.mu.Unlock()

	h.metrics.SubscribersConnected.Set(0)
	h.logger.Info("all subscribers disconnected")
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

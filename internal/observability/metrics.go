package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest-and-fan-out pipeline.
type Metrics struct {
	ReadingsAccepted prometheus.Counter
	ReadingsRejected prometheus.Counter
	PersistErrors    prometheus.Counter
	PersistDuration  prometheus.Histogram
	StoredReadings   prometheus.Gauge

	// Push-channel metrics.
	BroadcastsSent       prometheus.Counter
	SubscribersConnected prometheus.Gauge
	BacklogSize          prometheus.Histogram

	// Kafka forwarder metrics.
	ReadingsForwarded prometheus.Counter
	ForwardErrors     prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ReadingsAccepted,
		m.ReadingsRejected,
		m.PersistErrors,
		m.PersistDuration,
		m.StoredReadings,
		m.BroadcastsSent,
		m.SubscribersConnected,
		m.BacklogSize,
		m.ReadingsForwarded,
		m.ForwardErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_hub",
			Name:      "readings_accepted_total",
			Help:      "Total readings that passed validation and were stored.",
		}),
		ReadingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_hub",
			Name:      "readings_rejected_total",
			Help:      "Total ingestion payloads rejected by validation.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_hub",
			Name:      "persist_errors_total",
			Help:      "Total snapshot write failures during ingestion.",
		}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensor_hub",
			Name:      "persist_duration_seconds",
			Help:      "Duration of the append-and-persist step per accepted reading.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		StoredReadings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensor_hub",
			Name:      "stored_readings",
			Help:      "Current number of readings in the record store.",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_hub",
			Name:      "broadcasts_total",
			Help:      "Total readings fanned out to the push channel.",
		}),
		SubscribersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensor_hub",
			Name:      "subscribers_connected",
			Help:      "Currently connected push-channel subscribers.",
		}),
		BacklogSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensor_hub",
			Name:      "backlog_size",
			Help:      "Number of readings sent as backlog per new subscriber.",
			Buckets:   []float64{0, 1, 10, 100, 1000, 10000},
		}),
		ReadingsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_hub",
			Name:      "readings_forwarded_total",
			Help:      "Total readings published to the Kafka sink topic.",
		}),
		ForwardErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_hub",
			Name:      "forward_errors_total",
			Help:      "Total Kafka publish failures (best-effort, never fail ingestion).",
		}),
	}
}

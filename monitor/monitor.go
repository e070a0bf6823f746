// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers        prometheus.Gauge
	WatchedRooms         prometheus.Gauge
	MessagesReceived     prometheus.Counter
	MessageLatency       prometheus.Histogram
	Transactions         *prometheus.CounterVec
	TransactionLatency   *prometheus.HistogramVec
	TransactionConflicts prometheus.Counter
	HeartbeatFailures    prometheus.Counter
	Uptime               prometheus.GaugeFunc
}

func NewMetrics(namespace string, reg prometheus.Registerer, startTime time.Time) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected gateway sessions",
		}),
		WatchedRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_rooms",
			Help:      "Number of rooms with at least one live subscription",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_transactions_total",
			Help:      "Room transactions by operation and outcome",
		}, []string{"op", "result"}),
		TransactionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_transaction_seconds",
			Help:      "Room transaction latency including conflict retries",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"}),
		TransactionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_transaction_conflicts_total",
			Help:      "Optimistic commits rejected because the room changed underneath",
		}),
		HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_failures_total",
			Help:      "Heartbeat ticks that failed and were discarded",
		}),
		Uptime: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		}, func() float64 {
			return time.Since(startTime).Seconds()
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.WatchedRooms,
		m.MessagesReceived,
		m.MessageLatency,
		m.Transactions,
		m.TransactionLatency,
		m.TransactionConflicts,
		m.HeartbeatFailures,
		m.Uptime,
	)

	return m
}

// Monitor records gateway and room engine metrics. A nil *Monitor is valid
// and records nothing.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	start := time.Now()
	return &Monitor{
		metrics:   NewMetrics(namespace, reg, start),
		registry:  reg,
		startTime: start,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// NewServer returns the /metrics HTTP server; the caller runs it.
func (m *Monitor) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func (m *Monitor) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

func (m *Monitor) IncOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetWatchedRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.WatchedRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

// ObserveTransaction records one engine operation; result is "ok", an error
// code, or "error".
func (m *Monitor) ObserveTransaction(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.Transactions.WithLabelValues(op, result).Inc()
	m.metrics.TransactionLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveConflict implements persistence.TxObserver.
func (m *Monitor) ObserveConflict() {
	if m == nil {
		return
	}
	m.metrics.TransactionConflicts.Inc()
}

func (m *Monitor) IncHeartbeatFailures() {
	if m == nil {
		return
	}
	m.metrics.HeartbeatFailures.Inc()
}

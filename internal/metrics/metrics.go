// internal/metrics/metrics.go

// Package metrics exposes broker instrumentation for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statusbroker"

// Metrics is the set of collectors one broker process reports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	RequestLatency prometheus.Histogram
	QueueDepth     prometheus.Gauge
	BusyWorkers    prometheus.Gauge
	Connections    prometheus.Gauge
	Shed           prometheus.Counter

	SnapshotRecords prometheus.Gauge
	SnapshotSkipped prometheus.Gauge
	SnapshotVersion prometheus.Gauge
	RefreshFailures prometheus.Counter
	RefreshDuration prometheus.Histogram

	MirrorWrites *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests answered, by reply code.",
		}, []string{"code"}),

		RequestLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to reply.",
			Buckets:   prometheus.DefBuckets,
		}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Requests waiting for an idle worker.",
		}),

		BusyWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently handling a request.",
		}),

		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Open client connections.",
		}),

		Shed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_shed_total",
			Help:      "Requests rejected because the dispatch queue stayed full.",
		}),

		SnapshotRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Distinct services in the current snapshot.",
		}),

		SnapshotSkipped: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_skipped_lines",
			Help:      "Malformed records skipped by the last successful load.",
		}),

		SnapshotVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_version",
			Help:      "Version number of the published snapshot.",
		}),

		RefreshFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Status file loads that failed and kept the previous snapshot.",
		}),

		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Status file load time.",
			Buckets:   prometheus.DefBuckets,
		}),

		MirrorWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_writes_total",
			Help:      "Modbus mirror writes, by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// NewServer builds the HTTP server for the /metrics endpoint.
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ---- nil-safe recorders ----

func (m *Metrics) ObserveRequest(code string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(code).Inc()
	m.RequestLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(records, skipped int, version uint64, d time.Duration) {
	if m == nil {
		return
	}
	m.SnapshotRecords.Set(float64(records))
	m.SnapshotSkipped.Set(float64(skipped))
	m.SnapshotVersion.Set(float64(version))
	m.RefreshDuration.Observe(d.Seconds())
}

func (m *Metrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.RefreshFailures.Inc()
}

func (m *Metrics) QueueAdd(delta float64) {
	if m == nil {
		return
	}
	m.QueueDepth.Add(delta)
}

func (m *Metrics) WorkerBusy(delta float64) {
	if m == nil {
		return
	}
	m.BusyWorkers.Add(delta)
}

func (m *Metrics) ConnAdd(delta float64) {
	if m == nil {
		return
	}
	m.Connections.Add(delta)
}

func (m *Metrics) RequestShed() {
	if m == nil {
		return
	}
	m.Shed.Inc()
}

func (m *Metrics) MirrorWrite(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.MirrorWrites.WithLabelValues(result).Inc()
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coldvault"

// Metrics counts lifecycle items on a private registry. A CLI run is too short
// to be scraped, so the registry is exported once as a node_exporter textfile.
type Metrics struct {
	reg *prometheus.Registry

	items    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

// NewMetrics creates and registers the lifecycle collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items processed by operation and outcome.",
		}, []string{"op", "outcome"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_bytes_total",
			Help:      "Bytes of successfully processed items by operation.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of the batch phase of an operation.",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600},
		}, []string{"op"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run of an operation finished.",
		}, []string{"op"}),
	}
	m.reg.MustRegister(m.items, m.bytes, m.duration, m.lastRun)
	return m
}

// ObserveItem counts one finished item.
func (m *Metrics) ObserveItem(op, outcome string, size int64) {
	m.items.WithLabelValues(op, outcome).Inc()
	if outcome == "succeeded" && size > 0 {
		m.bytes.WithLabelValues(op).Add(float64(size))
	}
}

// ObserveRun records the duration of one operation finishing at end.
func (m *Metrics) ObserveRun(op string, d time.Duration, end time.Time) {
	m.duration.WithLabelValues(op).Observe(d.Seconds())
	m.lastRun.WithLabelValues(op).Set(float64(end.Unix()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// WriteTextfile writes all metrics in the text exposition format to path,
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

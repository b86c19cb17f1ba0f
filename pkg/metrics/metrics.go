// Package metrics collects and exposes Prometheus metrics for online time
// tracking.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives tracking events. The accumulator and flusher report
// through it.
type Recorder interface {
	SetOpenSessions(n int)
	RecordCommitted(seconds int64)
	RecordFlush(duration time.Duration, identities int, err error)
	RecordStorageError(op string)
}

// Noop returns a Recorder that discards everything.
func Noop() Recorder { return noop{} }

type noop struct{}

func (noop) SetOpenSessions(int)                   {}
func (noop) RecordCommitted(int64)                 {}
func (noop) RecordFlush(time.Duration, int, error) {}
func (noop) RecordStorageError(string)             {}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	openSessions  prometheus.Gauge
	committed     prometheus.Counter
	flushes       prometheus.Counter
	flushFailures prometheus.Counter
	flushLatency  prometheus.Histogram
	flushed       prometheus.Counter
	storageErrors *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "onlinetime_open_sessions",
			Help: "Number of identities with an open session.",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onlinetime_committed_seconds_total",
			Help: "Seconds committed to the ledger, negative adjustments excluded.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onlinetime_flushes_total",
			Help: "Number of flushes of open sessions.",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onlinetime_flush_failures_total",
			Help: "Number of flushes that failed to write the ledger.",
		}),
		flushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "onlinetime_flush_duration_seconds",
			Help:    "Time spent flushing open sessions.",
			Buckets: prometheus.DefBuckets,
		}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onlinetime_flushed_identities_total",
			Help: "Identities whose open session was flushed.",
		}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onlinetime_storage_errors_total",
			Help: "Storage failures by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.openSessions,
		c.committed,
		c.flushes,
		c.flushFailures,
		c.flushLatency,
		c.flushed,
		c.storageErrors,
	)

	return c
}

// SetOpenSessions implements Recorder.
func (c *Collector) SetOpenSessions(n int) {
	c.openSessions.Set(float64(n))
}

// RecordCommitted implements Recorder. Non-positive amounts are ignored so
// the counter stays monotonic.
func (c *Collector) RecordCommitted(seconds int64) {
	if seconds > 0 {
		c.committed.Add(float64(seconds))
	}
}

// RecordFlush implements Recorder.
func (c *Collector) RecordFlush(duration time.Duration, identities int, err error) {
	c.flushes.Inc()
	c.flushLatency.Observe(duration.Seconds())
	if err != nil {
		c.flushFailures.Inc()
		return
	}
	c.flushed.Add(float64(identities))
}

// RecordStorageError implements Recorder.
func (c *Collector) RecordStorageError(op string) {
	c.storageErrors.WithLabelValues(op).Inc()
}

// Handler returns an HTTP handler serving /metrics from gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

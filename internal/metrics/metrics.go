// Package metrics holds the Prometheus collectors for batch runs, remote calls and audits.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ctsmirror"

type Metrics struct {
	reg *prometheus.Registry

	linesTotal    *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	pollWait      prometheus.Histogram
	remoteTotal   *prometheus.CounterVec
	auditMissing  *prometheus.CounterVec
	mirrorWrites  *prometheus.CounterVec
	runsInFlight  prometheus.Gauge
	lastAuditTime prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		linesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_lines_total",
			Help:      "Input lines by final ledger status.",
		}, []string{"status"}),
		batchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_operations_total",
			Help:      "Remote batch create operations by outcome.",
		}, []string{"result"}),
		pollWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_poll_wait_seconds",
			Help:      "Time spent waiting for a group of batch operations to finish.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		remoteTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Single-entity remote calls by operation and result.",
		}, []string{"op", "result"}),
		auditMissing: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_missing_total",
			Help:      "Mirror rows whose remote entity no longer exists.",
		}, []string{"kind"}),
		mirrorWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_writes_total",
			Help:      "Mirror rows written by kind and source (create, sync, delete, prune).",
		}, []string{"kind", "source"}),
		runsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_runs_in_flight",
			Help:      "Batch runs currently executing.",
		}),
		lastAuditTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_audit_timestamp_seconds",
			Help:      "Unix time of the last completed mirror audit.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Line(status string) {
	if m == nil {
		return
	}
	m.linesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Batch(result string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) PollWait(d time.Duration) {
	if m == nil {
		return
	}
	m.pollWait.Observe(d.Seconds())
}

func (m *Metrics) Remote(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.remoteTotal.WithLabelValues(op, result).Inc()
}

func (m *Metrics) AuditMissing(kind string) {
	if m == nil {
		return
	}
	m.auditMissing.WithLabelValues(kind).Inc()
}

func (m *Metrics) AuditDone(at time.Time) {
	if m == nil {
		return
	}
	m.lastAuditTime.Set(float64(at.Unix()))
}

func (m *Metrics) MirrorWrite(kind, source string) {
	if m == nil {
		return
	}
	m.mirrorWrites.WithLabelValues(kind, source).Inc()
}

// RunStarted marks a batch run in flight; call the returned func when it ends.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.runsInFlight.Inc()
	return m.runsInFlight.Dec
}

package ygggo_mysqlrw

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// PrometheusHooks counts and times statement executions through the
// execute hooks. Register it on a prometheus.Registerer, then Install it on
// a Manager.
type PrometheusHooks struct {
	executions *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	started    *xsync.MapOf[*DB, time.Time]
}

// NewPrometheusHooks creates the collectors under namespace.
func NewPrometheusHooks(namespace string) *PrometheusHooks {
	return &PrometheusHooks{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mysql_executions_total",
				Help:      "Successful statement executions",
			},
			[]string{"rw_type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mysql_execution_failures_total",
				Help:      "Failed statement executions",
			},
			[]string{"rw_type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mysql_execution_duration_seconds",
				Help:      "Statement execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"rw_type"},
		),
		started: xsync.NewMapOf[*DB, time.Time](),
	}
}

// Register adds the collectors to reg.
func (h *PrometheusHooks) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{h.executions, h.failures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return reg.Register(h.duration)
}

// Install sets the hooks on m, replacing any previous ones.
func (h *PrometheusHooks) Install(m *Manager) {
	m.SetBeforeExecuteHook(h.Before)
	m.SetAfterExecuteHook(h.After)
	m.SetFailedExecuteHook(h.Failed)
}

func (h *PrometheusHooks) Before(d *DB) {
	h.started.Store(d, time.Now())
}

func (h *PrometheusHooks) After(d *DB) {
	rw := d.RWType().String()
	h.executions.WithLabelValues(rw).Inc()
	if start, ok := h.started.LoadAndDelete(d); ok {
		h.duration.WithLabelValues(rw).Observe(time.Since(start).Seconds())
	}
}

// Failed counts a failed execution and drops its start time.
func (h *PrometheusHooks) Failed(d *DB) {
	h.failures.WithLabelValues(d.RWType().String()).Inc()
	h.started.Delete(d)
}

// Collectors exposes the underlying collectors.
func (h *PrometheusHooks) Collectors() []prometheus.Collector {
	return []prometheus.Collector{h.executions, h.failures, h.duration}
}

package ygggo_mysqlrw

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricsInstrumentationName = "github.com/yggai/ygggo_mysqlrw"
)

// Metrics holds all the metric instruments.
type Metrics struct {
	connectionsTotal metric.Int64Counter
	reconnectsTotal  metric.Int64Counter
	retriesTotal     metric.Int64Counter

	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram

	transactionsTotal   metric.Int64Counter
	transactionDuration metric.Float64Histogram
}

// EnableMetrics enables or disables metrics collection.
func (m *Manager) EnableMetrics(enabled bool) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.metricsEnabled = enabled
	if enabled && m.metrics == nil {
		m.metrics = newMetrics(m.meterProvider)
	}
}

// SetMeterProvider sets a custom meter provider for metrics.
func (m *Manager) SetMeterProvider(provider metric.MeterProvider) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.meterProvider = provider
	if m.metricsEnabled {
		m.metrics = newMetrics(provider)
	}
}

func newMetrics(provider metric.MeterProvider) *Metrics {
	var meter metric.Meter
	if provider != nil {
		meter = provider.Meter(metricsInstrumentationName)
	} else {
		meter = otel.Meter(metricsInstrumentationName)
	}
	mt := &Metrics{}
	mt.connectionsTotal, _ = meter.Int64Counter(
		"ygggo_mysqlrw_connections_total",
		metric.WithDescription("Total number of physical connections opened"),
	)
	mt.reconnectsTotal, _ = meter.Int64Counter(
		"ygggo_mysqlrw_reconnects_total",
		metric.WithDescription("Idle connections replaced before use"),
	)
	mt.retriesTotal, _ = meter.Int64Counter(
		"ygggo_mysqlrw_retries_total",
		metric.WithDescription("Statements retried after a transient error"),
	)
	mt.queriesTotal, _ = meter.Int64Counter(
		"ygggo_mysqlrw_queries_total",
		metric.WithDescription("Total number of statement executions"),
	)
	mt.queryDuration, _ = meter.Float64Histogram(
		"ygggo_mysqlrw_query_duration_seconds",
		metric.WithDescription("Duration of statement executions"),
		metric.WithUnit("s"),
	)
	mt.transactionsTotal, _ = meter.Int64Counter(
		"ygggo_mysqlrw_transactions_total",
		metric.WithDescription("Total number of transaction boundaries"),
	)
	mt.transactionDuration, _ = meter.Float64Histogram(
		"ygggo_mysqlrw_transaction_duration_seconds",
		metric.WithDescription("Duration of BEGIN, COMMIT and ROLLBACK"),
		metric.WithUnit("s"),
	)
	return mt
}

// activeMetrics returns the instruments, or nil while metrics are off.
func (m *Manager) activeMetrics() *Metrics {
	if m == nil {
		return nil
	}
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	if !m.metricsEnabled {
		return nil
	}
	return m.metrics
}

func (m *Manager) metricsOn() bool {
	return m.activeMetrics() != nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Manager) recordConnectionOpened(ctx context.Context) {
	mt := m.activeMetrics()
	if mt == nil {
		return
	}
	mt.connectionsTotal.Add(ctx, 1)
}

func (m *Manager) recordReconnect(ctx context.Context, rw Intent) {
	mt := m.activeMetrics()
	if mt == nil {
		return
	}
	mt.reconnectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rw_type", rw.String())))
}

func (m *Manager) recordRetry(ctx context.Context, rw Intent) {
	mt := m.activeMetrics()
	if mt == nil {
		return
	}
	mt.retriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rw_type", rw.String())))
}

// recordQuery records one statement execution.
func (m *Manager) recordQuery(ctx context.Context, operation string, rw Intent, duration time.Duration, err error) {
	mt := m.activeMetrics()
	if mt == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("rw_type", rw.String()),
		attribute.String("status", statusOf(err)),
	)
	mt.queriesTotal.Add(ctx, 1, attrs)
	mt.queryDuration.Record(ctx, duration.Seconds(), attrs)
}

// recordTransaction records one BEGIN, COMMIT or ROLLBACK.
func (m *Manager) recordTransaction(ctx context.Context, event string, duration time.Duration, err error) {
	mt := m.activeMetrics()
	if mt == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("status", statusOf(err)),
	)
	mt.transactionsTotal.Add(ctx, 1, attrs)
	mt.transactionDuration.Record(ctx, duration.Seconds(), attrs)
}

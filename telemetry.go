package ygggo_mysqlrw

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/yggai/ygggo_mysqlrw"
	instrumentationVersion = "v0.1.0"
)

// tracerFor resolves the tracer from the current global provider.
func tracerFor() trace.Tracer {
	return otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
}

// EnableTelemetry enables or disables OpenTelemetry tracing. Connections
// opened while it is on also go through the otelsql driver wrapper.
func (m *Manager) EnableTelemetry(enabled bool) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	m.telemetryEnabled = enabled
	m.obsMu.Unlock()
}

func (m *Manager) tracing() bool {
	if m == nil {
		return false
	}
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	return m.telemetryEnabled
}

// startSpan creates a span with the common database attributes. The span
// is nil while tracing is off.
func (m *Manager) startSpan(ctx context.Context, operation, query string, rw Intent) (context.Context, trace.Span) {
	if !m.tracing() {
		return ctx, nil
	}

	spanName := fmt.Sprintf("ygggo_mysqlrw.%s", operation)
	ctx, span := tracerFor().Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("db.system", "mysql"),
		attribute.String("db.operation", operation),
		attribute.String("db.rw_type", rw.String()),
	)
	if query != "" {
		span.SetAttributes(attribute.String("db.statement", query))
	}
	return ctx, span
}

// finishSpan completes a span with error handling.
func (m *Manager) finishSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

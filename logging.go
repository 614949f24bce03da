package ygggo_mysqlrw

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

var (
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
)

// EnableLogging enables or disables structured statement logging.
func (m *Manager) EnableLogging(enabled bool) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.loggingEnabled = enabled
	if enabled && m.logger == nil {
		m.logger = defaultLogger
	}
}

// SetLogger sets a custom logger.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	m.logger = logger
	m.obsMu.Unlock()
}

// SetSlowQueryThreshold logs statements slower than d at WARN. Zero disables it.
func (m *Manager) SetSlowQueryThreshold(d time.Duration) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	m.slowQueryThreshold = d
	m.obsMu.Unlock()
}

// activeLogger returns the logger, or nil while logging is off.
func (m *Manager) activeLogger() *slog.Logger {
	if m == nil {
		return nil
	}
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	if !m.loggingEnabled {
		return nil
	}
	return m.logger
}

func (m *Manager) logging() bool {
	return m.activeLogger() != nil
}

func (m *Manager) slowThreshold() time.Duration {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	return m.slowQueryThreshold
}

// logQuery logs one physical statement execution.
func (m *Manager) logQuery(ctx context.Context, operation, query string, args []any, duration time.Duration, rw Intent, ep EndpointConfig, err error) {
	logger := m.activeLogger()
	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("query", query),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
		slog.String("rw_type", rw.String()),
		slog.String("endpoint", ep.address()),
	}
	// argument values may be sensitive
	if len(args) > 0 {
		attrs = append(attrs, slog.Int("arg_count", len(args)))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("status", "error"),
			slog.String("error", err.Error()),
		)
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			attrs = append(attrs, slog.Int("error_code", int(me.Number)))
		}
	} else {
		attrs = append(attrs, slog.String("status", "success"))
	}

	if slow := m.slowThreshold(); slow > 0 && duration > slow {
		logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
		return
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	logger.LogAttrs(ctx, level, "database query executed", attrs...)
}

// logConnection logs a connection being opened.
func (m *Manager) logConnection(ctx context.Context, event string, ep EndpointConfig, duration time.Duration, err error) {
	logger := m.activeLogger()
	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("event", event),
		slog.String("endpoint", ep.address()),
		slog.String("dbname", ep.DBName),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("status", "error"),
			slog.String("error", err.Error()),
		)
		logger.LogAttrs(ctx, slog.LevelError, "database connection event", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))
	logger.LogAttrs(ctx, slog.LevelDebug, "database connection event", attrs...)
}

// logTransaction logs a real BEGIN, COMMIT or ROLLBACK.
func (m *Manager) logTransaction(ctx context.Context, event string, depth int, duration time.Duration, err error) {
	logger := m.activeLogger()
	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("event", event),
		slog.Int("depth", depth),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("status", "error"),
			slog.String("error", err.Error()),
		)
		logger.LogAttrs(ctx, slog.LevelError, "database transaction event", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))
	logger.LogAttrs(ctx, slog.LevelInfo, "database transaction event", attrs...)
}

// logRetry logs the reconnect that precedes the single retry.
func (m *Manager) logRetry(ctx context.Context, query string, rw Intent, cause error) {
	logger := m.activeLogger()
	if logger == nil {
		return
	}
	logger.LogAttrs(ctx, slog.LevelWarn, "retrying statement after reconnect",
		slog.String("query", query),
		slog.String("rw_type", rw.String()),
		slog.String("error", cause.Error()),
	)
}

// PoolStats summarizes the shared pool.
type PoolStats struct {
	Connections int
	Keys        []string
}

// PoolStats returns the pooled connection count and keys.
func (m *Manager) PoolStats() PoolStats {
	keys := m.pool.Keys()
	return PoolStats{Connections: len(keys), Keys: keys}
}

// LogPoolStats writes the pool statistics at DEBUG.
func (m *Manager) LogPoolStats(ctx context.Context) {
	logger := m.activeLogger()
	if logger == nil {
		return
	}
	stats := m.PoolStats()
	logger.LogAttrs(ctx, slog.LevelDebug, "connection pool stats",
		slog.Int("total_connections", stats.Connections),
	)
}

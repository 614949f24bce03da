package ygggo_mysqlrw

import (
	"context"
	"log/slog"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorInfo is what a Reporter receives for one failure.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Host    string `json:"host"`
	HostIP  string `json:"host_ip"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	RWType  string `json:"rw_type"`
	PreSQL  string `json:"pre_sql"`
	Params  []any  `json:"params,omitempty"`
	Trace   string `json:"trace,omitempty"`
	Err     error  `json:"-"`
}

// Reporter receives connect and execution failures. Duplicate key errors go
// to Warn, everything else to Error.
type Reporter interface {
	Error(ctx context.Context, info ErrorInfo)
	Warn(ctx context.Context, info ErrorInfo)
}

// ReporterFunc reports both severities through one callback.
type ReporterFunc func(ctx context.Context, level slog.Level, info ErrorInfo)

func (f ReporterFunc) Error(ctx context.Context, info ErrorInfo) { f(ctx, slog.LevelError, info) }
func (f ReporterFunc) Warn(ctx context.Context, info ErrorInfo)  { f(ctx, slog.LevelWarn, info) }

func errorInfo(e *DBError) ErrorInfo {
	return ErrorInfo{
		Code:    e.Code,
		Message: e.Message,
		Host:    e.Endpoint.Host,
		HostIP:  e.Endpoint.HostIP,
		Port:    e.Endpoint.Port,
		DBName:  e.Endpoint.DBName,
		RWType:  e.RWType.String(),
		PreSQL:  e.SQL,
		Params:  e.Params,
		Err:     e,
	}
}

func (m *Manager) currentReporter() Reporter {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	return m.reporter
}

func (m *Manager) reportError(ctx context.Context, e *DBError) {
	r := m.currentReporter()
	if r == nil || e == nil {
		return
	}
	info := errorInfo(e)
	if e.Kind == KindDuplicate || e.Code == ErrCodeDuplicateEntry {
		r.Warn(ctx, info)
		return
	}
	info.Trace = string(debug.Stack())
	r.Error(ctx, info)
}

// SetReporter replaces the failure reporter. It is safe to call while
// statements run.
func (m *Manager) SetReporter(r Reporter) {
	if m == nil {
		return
	}
	m.obsMu.Lock()
	m.reporter = r
	m.obsMu.Unlock()
}

// SlogReporter writes failures to a slog logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter reports to l, or to the package default JSON logger.
func NewSlogReporter(l *slog.Logger) *SlogReporter {
	if l == nil {
		l = defaultLogger
	}
	return &SlogReporter{logger: l}
}

func (r *SlogReporter) Error(ctx context.Context, info ErrorInfo) {
	r.logger.LogAttrs(ctx, slog.LevelError, "mysql error", infoAttrs(info)...)
}

func (r *SlogReporter) Warn(ctx context.Context, info ErrorInfo) {
	r.logger.LogAttrs(ctx, slog.LevelWarn, "mysql warning", infoAttrs(info)...)
}

func infoAttrs(info ErrorInfo) []slog.Attr {
	attrs := []slog.Attr{
		slog.Int("code", info.Code),
		slog.String("message", info.Message),
		slog.String("host", info.Host),
		slog.String("host_ip", info.HostIP),
		slog.Int("port", info.Port),
		slog.String("dbname", info.DBName),
		slog.String("rw_type", info.RWType),
		slog.String("pre_sql", info.PreSQL),
		slog.Any("params", info.Params),
	}
	if info.Trace != "" {
		attrs = append(attrs, slog.String("trace", info.Trace))
	}
	return attrs
}

// ZapReporter writes failures to a zap logger.
type ZapReporter struct {
	logger *zap.Logger
}

func NewZapReporter(l *zap.Logger) *ZapReporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapReporter{logger: l}
}

func (r *ZapReporter) Error(_ context.Context, info ErrorInfo) {
	fields := zapFields(info)
	if info.Trace != "" {
		fields = append(fields, zap.String("trace", info.Trace))
	}
	r.logger.Error("mysql error", fields...)
}

func (r *ZapReporter) Warn(_ context.Context, info ErrorInfo) {
	r.logger.Warn("mysql warning", zapFields(info)...)
}

func zapFields(info ErrorInfo) []zap.Field {
	return []zap.Field{
		zap.Int("code", info.Code),
		zap.String("message", info.Message),
		zap.String("host", info.Host),
		zap.String("host_ip", info.HostIP),
		zap.Int("port", info.Port),
		zap.String("dbname", info.DBName),
		zap.String("rw_type", info.RWType),
		zap.String("pre_sql", info.PreSQL),
		zap.Any("params", info.Params),
	}
}

var (
	_ Reporter = (*SlogReporter)(nil)
	_ Reporter = (*ZapReporter)(nil)
	_ Reporter = ReporterFunc(nil)
)

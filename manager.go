package ygggo_mysqlrw

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// Manager owns what DB handles share: the connection pool, the error
// reporter, logging, telemetry and the execute hooks. Create one per process
// (or per test) and hand out one DB per worker.
type Manager struct {
	pool     *ConnPool
	resolver *HostResolver
	connects singleflight.Group

	// obsMu guards the observability settings below, which may change
	// while statements run.
	obsMu    sync.RWMutex
	reporter Reporter

	logger             *slog.Logger
	loggingEnabled     bool
	slowQueryThreshold time.Duration

	slowMu  sync.RWMutex
	slowLog *SlowQueryLog

	telemetryEnabled bool

	metricsEnabled bool
	meterProvider  metric.MeterProvider
	metrics        *Metrics

	hookMu sync.RWMutex
	before ExecuteHook
	after  ExecuteHook
	failed ExecuteHook

	intn func(n int) int
	now  func() time.Time

	instMu    sync.Mutex
	instances map[string]*DB
}

// Option configures a Manager.
type Option func(*Manager)

// WithPool shares an existing pool between managers.
func WithPool(p *ConnPool) Option { return func(m *Manager) { m.pool = p } }

// WithReporter sets where connect and execution failures are reported.
func WithReporter(r Reporter) Option { return func(m *Manager) { m.reporter = r } }

// WithLogger sets the slog logger and enables logging.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
		m.loggingEnabled = l != nil
	}
}

func WithResolver(r *HostResolver) Option { return func(m *Manager) { m.resolver = r } }

// WithRand replaces the slave picker; intn returns a value in [0, n).
func WithRand(intn func(n int) int) Option { return func(m *Manager) { m.intn = intn } }

// WithClock replaces time.Now for idle tracking.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithSlowQueryThreshold(d time.Duration) Option {
	return func(m *Manager) { m.slowQueryThreshold = d }
}

// WithSlowQueryLog records statements slower than the log's threshold.
func WithSlowQueryLog(l *SlowQueryLog) Option { return func(m *Manager) { m.slowLog = l } }

func WithTelemetry(enabled bool) Option { return func(m *Manager) { m.telemetryEnabled = enabled } }

// WithMetrics enables metrics on mp, or on the global provider when mp is nil.
func WithMetrics(mp metric.MeterProvider) Option {
	return func(m *Manager) {
		m.meterProvider = mp
		m.metricsEnabled = true
	}
}

// NewManager creates a Manager with its own pool unless WithPool is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{instances: map[string]*DB{}}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = NewConnPool()
	}
	if m.resolver == nil {
		m.resolver = NewHostResolver(defaultResolverSize)
	}
	if m.reporter == nil {
		m.reporter = NewSlogReporter(nil)
	}
	if m.intn == nil {
		m.intn = rand.IntN
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.metricsEnabled {
		m.metrics = newMetrics(m.meterProvider)
	}
	return m
}

// Pool returns the shared connection pool.
func (m *Manager) Pool() *ConnPool { return m.pool }

// New returns a fresh DB for cfg. Handles with equal endpoints share pooled
// connections.
func (m *Manager) New(cfg GroupConfig) *DB {
	return newDB(m, cfg)
}

// Instance returns the DB cached for cfg, creating it on first use. With
// useBackup the backup endpoints replace the slaves. The cached DB is shared
// by every caller, so it suits single goroutine programs; use New otherwise.
func (m *Manager) Instance(cfg GroupConfig, useBackup bool) *DB {
	if useBackup {
		cfg = cfg.withBackups()
	}
	key := instanceKey(cfg)
	m.instMu.Lock()
	defer m.instMu.Unlock()
	if d, ok := m.instances[key]; ok {
		return d
	}
	d := newDB(m, cfg)
	m.instances[key] = d
	return d
}

func instanceKey(cfg GroupConfig) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", cfg))
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Close closes every cached instance and every pooled connection.
func (m *Manager) Close() error {
	m.instMu.Lock()
	for k, d := range m.instances {
		_ = d.Close()
		delete(m.instances, k)
	}
	m.instMu.Unlock()
	return m.pool.Close()
}

func (d *DB) report(ctx context.Context, err *DBError) {
	d.m.reportError(ctx, err)
}

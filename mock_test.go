package ygggo_mysqlrw

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var mockSeq atomic.Int64

// mockEndpoint is one sqlmock backed server reachable through its DSN.
type mockEndpoint struct {
	db   *sql.DB
	mock sqlmock.Sqlmock
	cfg  EndpointConfig
}

func newMockEndpoint(t *testing.T, host string) mockEndpoint {
	t.Helper()
	dsn := fmt.Sprintf("%s_%s_%d", t.Name(), host, mockSeq.Add(1))
	db, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mockEndpoint{
		db:   db,
		mock: mock,
		cfg:  EndpointConfig{Host: host, Port: 3306, DBName: "app", Username: "app", DSN: dsn},
	}
}

// mockGroup is a master with n slaves, all sqlmock backed.
type mockGroup struct {
	cfg    GroupConfig
	master mockEndpoint
	slaves []mockEndpoint
}

func newMockGroup(t *testing.T, slaves int) *mockGroup {
	t.Helper()
	g := &mockGroup{master: newMockEndpoint(t, "master")}
	g.cfg = GroupConfig{Driver: "sqlmock", Master: g.master.cfg}
	for i := 0; i < slaves; i++ {
		s := newMockEndpoint(t, fmt.Sprintf("slave%d", i+1))
		g.slaves = append(g.slaves, s)
		g.cfg.Slaves = append(g.cfg.Slaves, s.cfg)
	}
	return g
}

func (g *mockGroup) expectationsMet(t *testing.T) {
	t.Helper()
	require.NoError(t, g.master.mock.ExpectationsWereMet(), "master")
	for i, s := range g.slaves {
		require.NoError(t, s.mock.ExpectationsWereMet(), "slave %d", i+1)
	}
}

// recordingReporter keeps every reported failure.
type recordingReporter struct {
	mu     sync.Mutex
	errors []ErrorInfo
	warns  []ErrorInfo
}

func (r *recordingReporter) Error(_ context.Context, info ErrorInfo) {
	r.mu.Lock()
	r.errors = append(r.errors, info)
	r.mu.Unlock()
}

func (r *recordingReporter) Warn(_ context.Context, info ErrorInfo) {
	r.mu.Lock()
	r.warns = append(r.warns, info)
	r.mu.Unlock()
}

func (r *recordingReporter) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors), len(r.warns)
}

// fakeClock is a settable clock for idle tracking.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestManager returns a quiet Manager that always picks the first slave.
func newTestManager(t *testing.T, opts ...Option) (*Manager, *recordingReporter) {
	t.Helper()
	rep := &recordingReporter{}
	base := []Option{
		WithReporter(rep),
		WithRand(func(int) int { return 0 }),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	m := NewManager(append(base, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m, rep
}

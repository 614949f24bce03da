package ygggo_mysqlrw

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus is the result of checking every pooled connection.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	LastChecked  time.Time     `json:"last_checked"`
	ResponseTime time.Duration `json:"response_time"`
	Connections  int           `json:"connections"`
	Dropped      int           `json:"dropped"`
	Errors       []HealthError `json:"errors,omitempty"`
}

// HealthError describes one connection that failed its ping.
type HealthError struct {
	Key       string    `json:"key"`
	Endpoint  string    `json:"endpoint"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultHealthCheckTimeout bounds each ping.
const DefaultHealthCheckTimeout = 5 * time.Second

// HealthCheck pings every pooled connection and drops the ones that fail,
// so the next statement routed to them reconnects. Persistent connections
// are checked like any other.
func (m *Manager) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if m == nil {
		return nil, fmt.Errorf("manager is nil")
	}
	start := time.Now()
	status := &HealthStatus{LastChecked: start}
	for _, key := range m.pool.Keys() {
		rec, ok := m.pool.Get(key)
		if !ok {
			continue
		}
		status.Connections++
		pingCtx, cancel := context.WithTimeout(ctx, DefaultHealthCheckTimeout)
		err := rec.Conn().PingContext(pingCtx)
		cancel()
		if err == nil {
			rec.KeepAlive()
			continue
		}
		status.Errors = append(status.Errors, HealthError{
			Key:       key,
			Endpoint:  rec.Config().address(),
			Message:   fmt.Sprintf("ping failed: %v", err),
			Timestamp: time.Now(),
		})
		m.pool.Delete(key)
		status.Dropped++
	}
	status.ResponseTime = time.Since(start)
	status.Healthy = len(status.Errors) == 0
	m.LogPoolStats(ctx)
	return status, nil
}

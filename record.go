package ygggo_mysqlrw

import (
	"database/sql"
	"sync"
	"time"
)

// ConnRecord is one live connection held by the ConnPool: the dedicated
// *sql.Conn, the endpoint it was opened for, the database currently selected
// on it, and when it was last known to be alive.
type ConnRecord struct {
	db     *sql.DB
	conn   *sql.Conn
	config EndpointConfig

	mu      sync.Mutex
	dbName  string
	aliveAt time.Time
	now     func() time.Time
}

func newConnRecord(db *sql.DB, conn *sql.Conn, cfg EndpointConfig, now func() time.Time) *ConnRecord {
	if now == nil {
		now = time.Now
	}
	return &ConnRecord{db: db, conn: conn, config: cfg, aliveAt: now(), now: now}
}

// Conn returns the pinned connection.
func (r *ConnRecord) Conn() *sql.Conn { return r.conn }

// Config returns the endpoint configuration, including the resolved host ip.
func (r *ConnRecord) Config() EndpointConfig { return r.config }

// DBName returns the database currently selected on the connection.
func (r *ConnRecord) DBName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dbName
}

func (r *ConnRecord) SetDBName(name string) {
	r.mu.Lock()
	r.dbName = name
	r.mu.Unlock()
}

// AliveAt returns the last time the connection was used successfully.
func (r *ConnRecord) AliveAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aliveAt
}

// KeepAlive marks the connection as used now.
func (r *ConnRecord) KeepAlive() {
	r.mu.Lock()
	r.aliveAt = r.now()
	r.mu.Unlock()
}

// idleExpired reports whether the record has been idle for at least timeout.
func (r *ConnRecord) idleExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	alive := r.AliveAt()
	return !alive.IsZero() && !alive.Add(timeout).After(r.now())
}

// Close releases the connection and its underlying *sql.DB.
func (r *ConnRecord) Close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.conn != nil {
		err = r.conn.Close()
	}
	if r.db != nil {
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

package ygggo_mysqlrw

import (
	"context"
	"database/sql"
	"time"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
)

// Intent is the read/write classification of a statement.
type Intent int

const (
	// IntentAuto reuses whichever endpoint is already open, preferring the
	// slave, and opens a slave when neither is.
	IntentAuto Intent = iota
	IntentMaster
	IntentSlave
)

func (i Intent) String() string {
	switch i {
	case IntentMaster:
		return "master"
	case IntentSlave:
		return "slave"
	}
	return "auto"
}

// EndpointChoice is the routing decision for one operation.
type EndpointChoice int

const (
	ChooseMaster EndpointChoice = iota
	ChooseSlave
	ReuseSlave
	ReuseMaster
)

func (c EndpointChoice) String() string {
	switch c {
	case ChooseSlave:
		return "choose_slave"
	case ReuseSlave:
		return "reuse_slave"
	case ReuseMaster:
		return "reuse_master"
	}
	return "choose_master"
}

// ResolveEndpoint decides where an operation runs. An active transaction or
// a forced master always wins. With IntentAuto an open slave is reused
// before an open master; with neither open a slave is chosen.
//
// Reusing an open slave after a write on the master can return stale rows.
// Callers that need read-your-writes use IntentMaster or ForceMaster.
func ResolveEndpoint(intent Intent, inTrans, forceMaster, slaveOpen, masterOpen bool) EndpointChoice {
	switch {
	case inTrans || forceMaster || intent == IntentMaster:
		return ChooseMaster
	case intent == IntentSlave:
		return ChooseSlave
	case slaveOpen:
		return ReuseSlave
	case masterOpen:
		return ReuseMaster
	}
	return ChooseSlave
}

func (d *DB) isOpen(key string) bool {
	if key == "" {
		return false
	}
	_, ok := d.m.pool.Get(key)
	return ok
}

// connectionKey routes intent to a pooled connection and returns its key.
func (d *DB) connectionKey(ctx context.Context, intent Intent) (string, error) {
	choice := ResolveEndpoint(intent, d.InTrans(), d.stmt.forceMaster, d.isOpen(d.slaveKey), d.isOpen(d.masterKey))
	if choice == ChooseSlave && len(d.cfg.Slaves) == 0 {
		choice = ChooseMaster
	}
	var (
		key string
		err error
	)
	switch choice {
	case ChooseMaster:
		d.rwType = IntentMaster
		key, err = d.master(ctx)
	case ChooseSlave:
		d.rwType = IntentSlave
		key, err = d.slave(ctx)
	case ReuseSlave:
		d.rwType = IntentSlave
		key = d.slaveKey
		err = d.selectDB(ctx, key)
	case ReuseMaster:
		d.rwType = IntentMaster
		key = d.masterKey
		err = d.selectDB(ctx, key)
	}
	if err != nil {
		return "", err
	}
	if rec, ok := d.m.pool.Get(key); ok && rec.idleExpired(d.cfg.waitTimeout()) {
		if key, err = d.reconnect(ctx, key); err != nil {
			return "", err
		}
	}
	d.lastKey = key
	return key, nil
}

// ConnectionKey routes intent exactly like a statement would and returns the
// pool key of the connection it lands on.
func (d *DB) ConnectionKey(ctx context.Context, intent Intent) (string, error) {
	return d.connectionKey(ctx, intent)
}

// Conn returns the pinned connection intent routes to.
func (d *DB) Conn(ctx context.Context, intent Intent) (*sql.Conn, error) {
	key, err := d.connectionKey(ctx, intent)
	if err != nil {
		return nil, err
	}
	rec, ok := d.m.pool.Get(key)
	if !ok {
		return nil, ErrNoConnection
	}
	return rec.Conn(), nil
}

func (d *DB) master(ctx context.Context) (string, error) {
	if !d.isOpen(d.masterKey) {
		key, err := d.connect(ctx, d.cfg.Master)
		if err != nil {
			return "", err
		}
		d.masterKey = key
	}
	return d.masterKey, d.selectDB(ctx, d.masterKey)
}

// slave connects to the sticky slave, picking one at random on first use.
func (d *DB) slave(ctx context.Context) (string, error) {
	if !d.isOpen(d.slaveKey) {
		if d.slaveIdx < 0 || d.slaveIdx >= len(d.cfg.Slaves) {
			d.slaveIdx = d.m.intn(len(d.cfg.Slaves))
		}
		key, err := d.connect(ctx, d.cfg.Slaves[d.slaveIdx])
		if err != nil {
			return "", err
		}
		d.slaveKey = key
	}
	return d.slaveKey, d.selectDB(ctx, d.slaveKey)
}

// connect returns the pool key for ep, opening the connection when it is
// not pooled yet. Concurrent connects to one endpoint share a single dial.
func (d *DB) connect(ctx context.Context, ep EndpointConfig) (string, error) {
	ep = ep.withDefaults()
	if d.cfg.hostToIP() && ep.HostIP == "" && ep.DSN == "" {
		ep.HostIP = d.m.resolver.Resolve(ctx, ep.Host)
	}
	driver := d.cfg.driver()
	key := fingerprintOf(driver, ep, d.cfg.DSNWithoutDBName)
	d.lastErrorCode = 0
	if d.isOpen(key) {
		return key, nil
	}
	_, err, _ := d.m.connects.Do(key, func() (any, error) {
		if d.isOpen(key) {
			return nil, nil
		}
		rec, err := d.m.open(ctx, driver, ep, d.cfg.DSNWithoutDBName)
		if err != nil {
			return nil, err
		}
		d.m.pool.Set(key, rec)
		return nil, nil
	})
	if err != nil {
		d.lastErrorCode = ErrorCode(err)
		dbErr := &DBError{
			Kind:     KindConnect,
			Code:     d.lastErrorCode,
			Message:  err.Error(),
			RWType:   d.rwType,
			Endpoint: ep,
			Err:      err,
		}
		d.report(ctx, dbErr)
		return "", dbErr
	}
	return key, nil
}

// reconnect replaces an idle pooled connection. Inside a transaction the old
// connection is kept so the transaction never spans two connections.
func (d *DB) reconnect(ctx context.Context, key string) (string, error) {
	if d.InTrans() {
		return key, nil
	}
	rec, ok := d.m.pool.Get(key)
	if !ok {
		return key, nil
	}
	ep := rec.Config()
	d.m.pool.Delete(key)
	d.m.recordReconnect(ctx, d.rwType)
	newKey, err := d.connect(ctx, ep)
	if err != nil {
		return "", err
	}
	if key == d.masterKey {
		d.masterKey = newKey
	}
	if key == d.slaveKey {
		d.slaveKey = newKey
	}
	return newKey, d.selectDB(ctx, newKey)
}

// targetDBName is the database this handle's current endpoint wants. Pooled
// connections are shared across groups in DSNWithoutDBName mode, so the
// record's own config may name another group's database.
func (d *DB) targetDBName() string {
	if d.rwType == IntentSlave && d.slaveIdx >= 0 && d.slaveIdx < len(d.cfg.Slaves) {
		return d.cfg.Slaves[d.slaveIdx].DBName
	}
	return d.cfg.Master.DBName
}

// selectDB issues USE when connections are opened without a database and
// the pooled connection currently points at another one.
func (d *DB) selectDB(ctx context.Context, key string) error {
	if !d.cfg.DSNWithoutDBName {
		return nil
	}
	rec, ok := d.m.pool.Get(key)
	if !ok {
		return nil
	}
	target := d.targetDBName()
	if target == "" || rec.DBName() == target {
		return nil
	}
	q := "USE " + escapeTable(target)
	if _, err := rec.Conn().ExecContext(ctx, q); err != nil {
		d.lastErrorCode = ErrorCode(err)
		dbErr := &DBError{
			Kind:     KindExec,
			Code:     d.lastErrorCode,
			Message:  err.Error(),
			SQL:      q,
			RWType:   d.rwType,
			Endpoint: rec.Config(),
			Err:      err,
		}
		d.report(ctx, dbErr)
		return dbErr
	}
	rec.SetDBName(target)
	rec.KeepAlive()
	return nil
}

// closeConnects drops this handle's master and slave connections from the
// pool. Persistent connections survive unless force is set. The next slave
// use picks a slave at random again.
func (d *DB) closeConnects(force bool) {
	for _, key := range []string{d.masterKey, d.slaveKey} {
		if key == "" {
			continue
		}
		if rec, ok := d.m.pool.Get(key); ok && !force && rec.Config().IsPersistent {
			continue
		}
		d.m.pool.Delete(key)
	}
	d.masterKey, d.slaveKey = "", ""
	d.slaveIdx = -1
}

// Close releases the handle's non-persistent connections. An open
// transaction is rolled back by the driver when its connection closes.
func (d *DB) Close() error {
	if d.tx != nil {
		_ = d.tx.Rollback()
		d.tx = nil
		d.depth = 0
	}
	d.closeConnects(false)
	return nil
}

// open dials one endpoint and pins a single connection from it.
func (m *Manager) open(ctx context.Context, driver string, ep EndpointConfig, withoutDB bool) (*ConnRecord, error) {
	start := time.Now()
	dsn := ep.dsn(withoutDB)
	var (
		db  *sql.DB
		err error
	)
	if m.tracing() {
		db, err = otelsql.Open(driver, dsn, otelsql.WithAttributes(attribute.String("db.system", "mysql")))
	} else {
		db, err = sql.Open(driver, dsn)
	}
	if err != nil {
		m.logConnection(ctx, "open", ep, time.Since(start), err)
		return nil, err
	}
	db.SetMaxOpenConns(1)
	dialCtx := ctx
	if ep.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, time.Duration(ep.ConnectTimeout)*time.Second)
		defer cancel()
	}
	conn, err := db.Conn(dialCtx)
	if err == nil {
		err = conn.PingContext(dialCtx)
		if err != nil {
			_ = conn.Close()
		}
	}
	m.logConnection(ctx, "open", ep, time.Since(start), err)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	m.recordConnectionOpened(ctx)
	rec := newConnRecord(db, conn, ep, m.now)
	if !withoutDB {
		rec.SetDBName(ep.DBName)
	}
	return rec, nil
}

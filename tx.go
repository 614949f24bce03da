package ygggo_mysqlrw

import (
	"context"
	"database/sql"
	"time"
)

// InTrans reports whether a transaction is active.
func (d *DB) InTrans() bool { return d.depth > 0 }

// TransDepth returns the nesting depth; 0 when idle.
func (d *DB) TransDepth() int { return d.depth }

// BeginTrans starts a transaction on the master. Nested calls only increase
// the depth: there are no savepoints, so an inner RollbackTrans rolls back
// nothing until the outermost one runs. The transaction lives on the
// connection for as long as ctx does.
func (d *DB) BeginTrans(ctx context.Context) error {
	d.depth++
	if d.depth > 1 {
		return nil
	}
	err := d.txBoundary(ctx, "begin", func(rec *ConnRecord) error {
		tx, err := rec.Conn().BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		d.tx = tx
		return nil
	})
	if err != nil {
		d.depth = 0
		d.tx = nil
	}
	return err
}

// CommitTrans commits when leaving the outermost level. Outside a
// transaction it does nothing and succeeds.
func (d *DB) CommitTrans(ctx context.Context) error {
	return d.endTrans(ctx, "commit", (*sql.Tx).Commit)
}

// RollbackTrans rolls back when leaving the outermost level. Outside a
// transaction it does nothing and succeeds.
func (d *DB) RollbackTrans(ctx context.Context) error {
	return d.endTrans(ctx, "rollback", (*sql.Tx).Rollback)
}

func (d *DB) endTrans(ctx context.Context, event string, end func(*sql.Tx) error) error {
	if d.depth == 0 {
		return nil
	}
	if d.depth > 1 {
		d.depth--
		return nil
	}
	tx := d.tx
	err := d.txBoundary(ctx, event, func(*ConnRecord) error {
		if tx == nil {
			return sql.ErrTxDone
		}
		return end(tx)
	})
	d.tx = nil
	d.depth = 0
	return err
}

// txBoundary runs one BEGIN, COMMIT or ROLLBACK against the master connection.
func (d *DB) txBoundary(ctx context.Context, event string, fn func(*ConnRecord) error) error {
	d.lastErrorCode = 0
	key, err := d.connectionKey(ctx, IntentMaster)
	if err != nil {
		return err
	}
	rec, ok := d.m.pool.Get(key)
	if !ok {
		return ErrNoConnection
	}
	start := time.Now()
	_, span := d.m.startSpan(ctx, event, "", IntentMaster)
	err = fn(rec)
	dur := time.Since(start)
	d.m.finishSpan(span, err)
	d.m.logTransaction(ctx, event, d.depth, dur, err)
	d.m.recordTransaction(ctx, event, dur, err)
	if err != nil {
		d.lastErrorCode = ErrorCode(err)
		dbErr := &DBError{
			Kind:     KindExec,
			Code:     d.lastErrorCode,
			Message:  err.Error(),
			SQL:      txStatement(event),
			RWType:   IntentMaster,
			Endpoint: rec.Config(),
			Err:      err,
		}
		d.report(ctx, dbErr)
		return dbErr
	}
	rec.KeepAlive()
	return nil
}

func txStatement(event string) string {
	switch event {
	case "begin":
		return "BEGIN"
	case "commit":
		return "COMMIT"
	}
	return "ROLLBACK"
}

// WithinTrans runs fn inside BeginTrans / CommitTrans, rolling back when fn
// fails. Nested use joins the enclosing transaction.
func (d *DB) WithinTrans(ctx context.Context, fn func(*DB) error) error {
	if err := d.BeginTrans(ctx); err != nil {
		return err
	}
	if err := fn(d); err != nil {
		_ = d.RollbackTrans(ctx)
		return err
	}
	return d.CommitTrans(ctx)
}

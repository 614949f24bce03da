package ygggo_mysqlrw

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"vitess.io/vitess/go/vt/sqlparser"
)

const timeLayout = "2006-01-02 15:04:05"

// preparer is satisfied by *sql.Conn and *sql.Tx.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// expandPlaceholders rewrites every ? whose parameter is a list into one ?
// per element and flattens the parameters to match. Parameters past the last
// marker are dropped.
func expandPlaceholders(preSQL string, params []any) (string, []any) {
	segs := strings.Split(preSQL, "?")
	markers := len(segs) - 1
	if markers == 0 || len(params) == 0 {
		return preSQL, nil
	}
	var b strings.Builder
	b.WriteString(segs[0])
	out := make([]any, 0, len(params))
	used := 0
	for i := 1; i <= markers; i++ {
		if used < len(params) {
			p := params[used]
			used++
			if list, ok := asList(p); ok {
				b.WriteString(placeholders(len(list)))
				out = append(out, list...)
			} else {
				b.WriteByte('?')
				out = append(out, p)
			}
		} else {
			b.WriteByte('?')
		}
		b.WriteString(segs[i])
	}
	return b.String(), out
}

// bindValue maps a parameter to the driver type it is sent as: integers as
// int64, bools as bool, nil as NULL, everything else as a string.
func bindValue(v any) any {
	if dv, ok := v.(driver.Valuer); ok {
		if val, err := dv.Value(); err == nil {
			v = val
		}
	}
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return uintValue(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return uintValue(t)
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(timeLayout)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func uintValue(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

func bindParams(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = bindValue(p)
	}
	return out
}

// run executes one statement on the connection intent routes to. scan, when
// set, consumes the result rows; otherwise the statement is an Exec. A
// retryable driver error outside a transaction drops this handle's
// connections, reconnects and runs the statement once more.
func (d *DB) run(ctx context.Context, preSQL string, params []any, intent Intent, scan func(*sql.Rows) error) (sql.Result, error) {
	query, args := expandPlaceholders(preSQL, params)
	args = bindParams(args)
	d.curSQL, d.curParams = query, args

	var (
		res sql.Result
		ep  EndpointConfig
	)
	op := func(attempt int) error {
		d.lastErrorCode = 0
		key, err := d.connectionKey(ctx, intent)
		if err != nil {
			return err
		}
		rec, ok := d.m.pool.Get(key)
		if !ok {
			return ErrNoConnection
		}
		ep = rec.Config()
		res, err = d.execOn(ctx, rec, query, args, scan)
		if err != nil {
			d.lastErrorCode = ErrorCode(err)
			return err
		}
		rec.KeepAlive()
		return nil
	}
	classify := func(err error) ErrorClass {
		if d.tx != nil {
			return ErrClassUnknown
		}
		return Classify(err)
	}
	onRetry := func(err error) {
		d.m.logRetry(ctx, query, d.rwType, err)
		d.m.recordRetry(ctx, d.rwType)
		d.closeConnects(true)
	}

	err := retryWithPolicy(ctx, execRetryPolicy, op, classify, onRetry)
	if err == nil {
		return res, nil
	}
	var de *DBError
	if errors.As(err, &de) || errors.Is(err, ErrNoConnection) {
		return nil, err
	}
	kind := KindExec
	if Classify(err) == ErrClassDuplicate {
		kind = KindDuplicate
	}
	dbErr := &DBError{
		Kind:     kind,
		Code:     ErrorCode(err),
		Message:  err.Error(),
		SQL:      preSQL,
		Params:   params,
		RWType:   d.rwType,
		Endpoint: ep,
		Err:      err,
	}
	d.report(ctx, dbErr)
	return nil, dbErr
}

// execOn prepares and runs query on rec, or on the open transaction.
func (d *DB) execOn(ctx context.Context, rec *ConnRecord, query string, args []any, scan func(*sql.Rows) error) (res sql.Result, err error) {
	var p preparer = rec.Conn()
	if d.tx != nil {
		p = d.tx
	}
	operation := "exec"
	if scan != nil {
		operation = "query"
	}
	d.m.beforeExecute(d)
	start := time.Now()
	spanCtx, span := d.m.startSpan(ctx, operation, query, d.rwType)
	defer func() {
		dur := time.Since(start)
		d.m.finishSpan(span, err)
		d.m.logQuery(ctx, operation, query, args, dur, d.rwType, rec.Config(), err)
		d.m.recordQuery(ctx, operation, d.rwType, dur, err)
		d.m.observeSlow(query, len(args), dur, d.rwType, rec.Config(), err)
		if err == nil {
			d.m.afterExecute(d)
		} else {
			d.m.failedExecute(d)
		}
	}()

	stmt, err := p.PrepareContext(spanCtx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	if scan == nil {
		return stmt.ExecContext(spanCtx, args...)
	}
	rows, err := stmt.QueryContext(spanCtx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if err = scan(rows); err != nil {
		return nil, err
	}
	return nil, rows.Err()
}

// scanRow reads the current row into a Row. Byte slices become strings.
func scanRow(rows *sql.Rows) (Row, error) {
	m := map[string]any{}
	if err := sqlx.MapScan(rows, m); err != nil {
		return nil, err
	}
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
	return Row(m), nil
}

func (d *DB) pending() ([]string, [][]any, error) {
	if err := d.stmt.err; err != nil {
		return nil, nil, err
	}
	pres, params := d.PrepareSQL(), d.Params()
	if len(pres) == 0 || pres[0] == "" {
		return nil, nil, ErrEmptyStatement
	}
	return pres, params, nil
}

// Exec runs the pending statement on the master. Batch statements run chunk
// by chunk and stop at the first failure. A batch with no rows succeeds
// without touching the server. The builder is reset afterwards.
func (d *DB) Exec(ctx context.Context) (bool, error) {
	defer d.resetAfter()
	d.executed = true
	d.affected = 0
	pres, params, err := d.pending()
	if errors.Is(err, ErrEmptyStatement) && d.stmt.kind.batch() {
		return true, nil
	}
	if err != nil {
		d.execErr = err
		return false, err
	}
	for i, pre := range pres {
		res, err := d.run(ctx, pre, params[i], IntentMaster, nil)
		if err != nil {
			d.execErr = err
			return false, err
		}
		d.lastResult = res
		if n, err := res.RowsAffected(); err == nil {
			d.affected += n
		}
	}
	return true, nil
}

func (d *DB) readIntent() Intent {
	if d.stmt.kind == KindRaw {
		return d.stmt.rawIntent
	}
	return IntentSlave
}

// Fetch runs the pending statement and returns its first row. A query that
// matches nothing returns an empty, non-nil Row and no error.
func (d *DB) Fetch(ctx context.Context) (Row, error) {
	defer d.resetAfter()
	pres, params, err := d.pending()
	if err == nil && d.stmt.kind.batch() {
		err = usageErr("fetch", "%s statements cannot be fetched", d.stmt.kind)
	}
	d.executed = true
	if err != nil {
		d.execErr = err
		return nil, err
	}
	row := Row{}
	_, err = d.run(ctx, pres[0], params[0], d.readIntent(), func(rows *sql.Rows) error {
		row, d.affected = Row{}, 0
		if !rows.Next() {
			return rows.Err()
		}
		r, err := scanRow(rows)
		if err != nil {
			return err
		}
		row, d.affected = r, 1
		return nil
	})
	if err != nil {
		d.execErr = err
		return nil, err
	}
	return row, nil
}

// FetchAll runs the pending statement and returns every row. A query that
// matches nothing returns an empty, non-nil slice and no error.
func (d *DB) FetchAll(ctx context.Context) ([]Row, error) {
	defer d.resetAfter()
	pres, params, err := d.pending()
	if err == nil && d.stmt.kind.batch() {
		err = usageErr("fetch_all", "%s statements cannot be fetched", d.stmt.kind)
	}
	d.executed = true
	if err != nil {
		d.execErr = err
		return nil, err
	}
	out := []Row{}
	_, err = d.run(ctx, pres[0], params[0], d.readIntent(), func(rows *sql.Rows) error {
		out = out[:0]
		for rows.Next() {
			r, err := scanRow(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		d.affected = int64(len(out))
		return rows.Err()
	})
	if err != nil {
		d.execErr = err
		return nil, err
	}
	return out, nil
}

// AffectedRows returns the rows touched by the last statement, executing the
// pending one first if nothing ran since it was started. A failed execution
// returns its error, which is distinct from zero rows.
func (d *DB) AffectedRows(ctx context.Context) (int64, error) {
	if !d.executed {
		if _, err := d.Exec(ctx); err != nil {
			return 0, err
		}
	}
	return d.affected, d.execErr
}

// LastInsertID returns the auto increment id produced on the master by the
// last statement, executing the pending one first if needed. "0" means no
// id is known, not a valid id.
func (d *DB) LastInsertID(ctx context.Context) (string, error) {
	if !d.executed {
		if _, err := d.Exec(ctx); err != nil {
			return "0", err
		}
	}
	if d.execErr != nil {
		return "0", d.execErr
	}
	if d.lastInsertID == "" && d.lastResult != nil {
		if id, err := d.lastResult.LastInsertId(); err == nil && id > 0 {
			d.lastInsertID = strconv.FormatInt(id, 10)
		}
	}
	if d.lastInsertID == "" {
		return "0", nil
	}
	return d.lastInsertID, nil
}

// IsReadSQL reports whether query is a SELECT.
func IsReadSQL(query string) bool {
	return sqlparser.Preview(query) == sqlparser.StmtSelect
}

// RawExec runs a hand written statement directly, without touching the
// statement being built. With IntentAuto a SELECT follows the reuse policy
// and anything else goes to the master.
func (d *DB) RawExec(ctx context.Context, query string, params []any, intent Intent) (bool, error) {
	if intent == IntentAuto && !IsReadSQL(query) {
		intent = IntentMaster
	}
	d.resetResult()
	d.executed = true
	res, err := d.run(ctx, query, params, intent, nil)
	if err != nil {
		d.execErr = err
		return false, err
	}
	d.lastResult = res
	if n, err := res.RowsAffected(); err == nil {
		d.affected = n
	}
	return true, nil
}

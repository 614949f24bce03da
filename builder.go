package ygggo_mysqlrw

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

// StatementKind is the kind of statement a DB is currently building.
type StatementKind int

const (
	KindNone StatementKind = iota
	KindSelect
	KindInsert
	KindInsertBatch
	KindUpdate
	KindUpdateBatch
	KindReplace
	KindReplaceBatch
	KindDelete
	KindRaw
)

func (k StatementKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindInsertBatch:
		return "insert_batch"
	case KindUpdate:
		return "update"
	case KindUpdateBatch:
		return "update_batch"
	case KindReplace:
		return "replace"
	case KindReplaceBatch:
		return "replace_batch"
	case KindDelete:
		return "delete"
	case KindRaw:
		return "raw"
	}
	return "none"
}

func (k StatementKind) batch() bool {
	return k == KindInsertBatch || k == KindUpdateBatch || k == KindReplaceBatch
}

// DefaultBatchSize is the usual rows-per-statement for the batch starters.
// A non-positive size passed to them means 500.
const DefaultBatchSize = 100

const fallbackBatchSize = 500

// Field is one named value of a Record. A Field with an empty Name in an
// Update or MultiWhere record is a raw SQL expression held in Value.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered list of column/value pairs. Its order is the column order.
type Record []Field

// R builds a Record from alternating name, value arguments.
//
//	ygggo_mysqlrw.R("name", "alice", "age", 30)
func R(pairs ...any) Record {
	rec := make(Record, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		rec = append(rec, Field{Name: name, Value: pairs[i+1]})
	}
	return rec
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the non-empty field names in order.
func (r Record) Names() []string {
	out := make([]string, 0, len(r))
	for _, f := range r {
		if f.Name != "" {
			out = append(out, f.Name)
		}
	}
	return out
}

// Row is one fetched result row keyed by column name.
type Row map[string]any

// DB is a statement builder bound to one database group. It routes each
// statement to the master or a slave, executes it, and tracks transaction
// depth. A DB is owned by one goroutine at a time; the ConnPool behind it is
// shared.
type DB struct {
	id  string
	m   *Manager
	cfg GroupConfig

	// routing
	masterKey string
	slaveKey  string
	slaveIdx  int
	lastKey   string
	rwType    Intent

	// transaction
	tx    *sql.Tx
	depth int

	// results, cleared by resetBefore
	executed     bool
	affected     int64
	execErr      error
	lastResult   sql.Result
	lastInsertID string

	lastErrorCode int
	curSQL        string
	curParams     []any

	stmt statement
}

// statement holds every fragment cleared by resetAfter.
type statement struct {
	kind        StatementKind
	distinct    bool
	ignore      bool
	forUpdate   bool
	forceMaster bool

	selectCount string
	fields      string
	tables      string
	joins       string

	where        string
	whereParams  []any
	groupBy      string
	having       string
	havingParams []any
	orderBy      string

	limit, offset, page, count             int
	hasLimit, hasOffset, hasPage, hasCount bool

	values       string
	valuesArr    []string
	params       []any
	paramsArr    [][]any
	onDup        string
	onDupParams  []any
	update       string
	updateArr    []string
	updateWhere  []string
	updateWhereP [][]any
	updateP      [][]any

	rawIntent Intent

	lastPre    []string
	lastParams [][]any

	err error
}

func newDB(m *Manager, cfg GroupConfig) *DB {
	return &DB{
		id:       uuid.NewString(),
		m:        m,
		cfg:      cfg,
		slaveIdx: -1,
	}
}

// ID identifies this handle in logs and spans.
func (d *DB) ID() string { return d.id }

// Config returns the group configuration the handle routes over.
func (d *DB) Config() GroupConfig { return d.cfg }

// Kind returns the kind of the statement being built.
func (d *DB) Kind() StatementKind { return d.stmt.kind }

// CurrentSQL returns the statement and bound arguments of the physical
// execution in progress, or the last one. Execute hooks read it.
func (d *DB) CurrentSQL() (string, []any) { return d.curSQL, d.curParams }

// LastErrorCode returns the driver error number of the last operation, or 0.
func (d *DB) LastErrorCode() int { return d.lastErrorCode }

// LastConnectionKey returns the pool key used by the last routed operation.
func (d *DB) LastConnectionKey() string { return d.lastKey }

// RWType returns the endpoint role used by the last routed operation.
func (d *DB) RWType() Intent { return d.rwType }

// Err returns the pending usage error, if any, without clearing it.
func (d *DB) Err() error { return d.stmt.err }

// Reset clears both results and fragments.
func (d *DB) Reset() *DB {
	d.resetBefore()
	d.resetAfter()
	return d
}

func (d *DB) resetBefore() {
	d.stmt.lastPre, d.stmt.lastParams = nil, nil
	d.resetResult()
}

// resetResult clears the outcome of the last execution only.
func (d *DB) resetResult() {
	d.executed = false
	d.affected = 0
	d.execErr = nil
	d.lastResult = nil
	d.lastInsertID = ""
}

func (d *DB) resetAfter() {
	d.stmt = statement{}
}

func (d *DB) fail(err error) *DB {
	if d.stmt.err == nil {
		d.stmt.err = err
	}
	return d
}

// Select starts a SELECT. With no fields, or "*", every column is selected.
// A single argument may hold a comma separated list.
func (d *DB) Select(fields ...string) *DB {
	d.resetBefore()
	d.stmt.kind = KindSelect
	if len(fields) == 1 {
		fields = strings.Split(fields[0], ",")
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || f == "*" {
			continue
		}
		out = append(out, quoteField(f))
	}
	if len(out) == 0 {
		d.stmt.fields = "*"
	} else {
		d.stmt.fields = strings.Join(out, ",")
	}
	return d
}

// SelectCount starts a SELECT COUNT(field) `alias`. Empty arguments mean
// COUNT(*) aliased as total.
func (d *DB) SelectCount(field, alias string) *DB {
	d.resetBefore()
	d.stmt.kind = KindSelect
	field = strings.TrimSpace(field)
	if field == "" {
		field = "*"
	}
	if alias == "" {
		alias = "total"
	}
	if field != "*" && !strings.HasPrefix(strings.ToLower(field), "distinct ") {
		field = escapeField(field)
	}
	d.stmt.selectCount = "SELECT COUNT(" + field + ") `" + alias + "`"
	return d
}

// Insert starts an INSERT of one record.
func (d *DB) Insert(table string, rec Record) *DB {
	d.resetBefore()
	d.stmt.kind = KindInsert
	d.setValues(table, rec)
	return d
}

// Replace starts a REPLACE of one record.
func (d *DB) Replace(table string, rec Record) *DB {
	d.resetBefore()
	d.stmt.kind = KindReplace
	d.setValues(table, rec)
	return d
}

func (d *DB) setValues(table string, rec Record) {
	d.stmt.tables = escapeTable(table)
	fields := make([]string, 0, len(rec))
	params := make([]any, 0, len(rec))
	for _, f := range rec {
		fields = append(fields, escapeField(f.Name))
		params = append(params, f.Value)
	}
	d.stmt.fields = strings.Join(fields, ",")
	d.stmt.values = "(" + placeholders(len(rec)) + ")"
	d.stmt.params = params
}

// Update starts an UPDATE setting every field of rec. Fields with an empty
// name and the extra exprs are emitted verbatim, e.g. "hits = hits + 1".
func (d *DB) Update(table string, rec Record, exprs ...string) *DB {
	d.resetBefore()
	d.stmt.kind = KindUpdate
	d.stmt.tables = escapeTable(table)
	segs := make([]string, 0, len(rec)+len(exprs))
	params := make([]any, 0, len(rec))
	for _, f := range rec {
		if f.Name == "" {
			if s, ok := f.Value.(string); ok && s != "" {
				segs = append(segs, s)
			}
			continue
		}
		segs = append(segs, escapeField(f.Name)+" = ?")
		params = append(params, f.Value)
	}
	segs = append(segs, exprs...)
	d.stmt.update = strings.Join(segs, ",")
	d.stmt.params = params
	return d
}

// Delete starts a DELETE.
func (d *DB) Delete(table string) *DB {
	d.resetBefore()
	d.stmt.kind = KindDelete
	d.stmt.tables = escapeTable(table)
	return d
}

// Raw sets a hand written statement. intent picks the endpoint for Fetch
// and FetchAll; Exec always runs on the master.
func (d *DB) Raw(preSQL string, params []any, intent Intent) *DB {
	d.resetBefore()
	d.stmt.kind = KindRaw
	d.stmt.rawIntent = intent
	d.stmt.lastPre = []string{preSQL}
	d.stmt.lastParams = [][]any{append([]any(nil), params...)}
	return d
}

// From adds a table, optionally aliased. Repeated calls are comma joined.
func (d *DB) From(table string, alias ...string) *DB {
	t := escapeTable(table)
	if len(alias) > 0 && alias[0] != "" {
		t += " " + escapeTable(alias[0])
	}
	if d.stmt.tables != "" {
		d.stmt.tables += "," + t
	} else {
		d.stmt.tables = t
	}
	return d
}

func (d *DB) Distinct() *DB { d.stmt.distinct = true; return d }

// Ignore turns INSERT into INSERT IGNORE.
func (d *DB) Ignore() *DB { d.stmt.ignore = true; return d }

// ForceMaster routes the next statement to the master whatever its kind.
func (d *DB) ForceMaster() *DB { d.stmt.forceMaster = true; return d }

// ForUpdate appends FOR UPDATE to a SELECT.
func (d *DB) ForUpdate() *DB { d.stmt.forUpdate = true; return d }

// Join adds an inner join. cond is emitted verbatim.
func (d *DB) Join(table, cond string, alias ...string) *DB {
	return d.join("JOIN", table, cond, alias)
}

func (d *DB) LeftJoin(table, cond string, alias ...string) *DB {
	return d.join("LEFT JOIN", table, cond, alias)
}

func (d *DB) RightJoin(table, cond string, alias ...string) *DB {
	return d.join("RIGHT JOIN", table, cond, alias)
}

func (d *DB) join(kw, table, cond string, alias []string) *DB {
	t := escapeTable(table)
	if len(alias) > 0 && alias[0] != "" {
		t += " " + escapeTable(alias[0])
	}
	clause := kw + " " + t + " ON " + cond
	if d.stmt.joins != "" {
		d.stmt.joins += " " + clause
	} else {
		d.stmt.joins = clause
	}
	return d
}

// OnDuplicateKeyUpdate appends ON DUPLICATE KEY UPDATE expr to an INSERT.
func (d *DB) OnDuplicateKeyUpdate(expr string, params ...any) *DB {
	d.stmt.onDup = " ON DUPLICATE KEY UPDATE " + expr
	d.stmt.onDupParams = params
	return d
}

// GroupBy adds grouping fields; each argument may be a comma separated list.
func (d *DB) GroupBy(fields ...string) *DB {
	var out []string
	for _, f := range fields {
		for _, p := range strings.Split(f, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, quoteField(p))
			}
		}
	}
	if len(out) == 0 {
		return d
	}
	if d.stmt.groupBy != "" {
		d.stmt.groupBy += "," + strings.Join(out, ",")
	} else {
		d.stmt.groupBy = strings.Join(out, ",")
	}
	return d
}

// OrderBy adds ordering. field may be "a DESC,b"; dir applies to a single field.
func (d *DB) OrderBy(field string, dir ...string) *DB {
	if len(dir) > 0 && dir[0] != "" {
		field += " " + dir[0]
	}
	var out []string
	for _, p := range strings.Split(field, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, typ, _ := strings.Cut(p, " ")
		out = append(out, orderTerm(name, typ))
	}
	return d.addOrder(out)
}

// OrderByMap adds one ordering term per field; each Value is "ASC" or "DESC".
func (d *DB) OrderByMap(terms Record) *DB {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		typ, _ := t.Value.(string)
		out = append(out, orderTerm(t.Name, typ))
	}
	return d.addOrder(out)
}

func orderTerm(name, typ string) string {
	term := quoteField(strings.TrimSpace(name))
	if strings.EqualFold(strings.TrimSpace(typ), "DESC") {
		term += " DESC"
	}
	return term
}

func (d *DB) addOrder(terms []string) *DB {
	if len(terms) == 0 {
		return d
	}
	if d.stmt.orderBy != "" {
		d.stmt.orderBy += "," + strings.Join(terms, ",")
	} else {
		d.stmt.orderBy = strings.Join(terms, ",")
	}
	return d
}

// Limit sets the row count. Limit and Offset win over Page and Count.
func (d *DB) Limit(n int) *DB { d.stmt.limit, d.stmt.hasLimit = n, true; return d }

func (d *DB) Offset(n int) *DB { d.stmt.offset, d.stmt.hasOffset = n, true; return d }

// Page sets the 1-based page for Count sized pages. Values below 1 mean 1.
func (d *DB) Page(n int) *DB {
	if n < 1 {
		n = 1
	}
	d.stmt.page, d.stmt.hasPage = n, true
	return d
}

// Count sets the page size used with Page.
func (d *DB) Count(n int) *DB { d.stmt.count, d.stmt.hasCount = n, true; return d }

package ygggo_mysqlrw

import "strings"

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// PrepareSQL returns the statement templates: one entry for a single
// statement, one per chunk for the batch kinds. The result is kept until the
// builder is reset or a new statement is started.
func (d *DB) PrepareSQL() []string {
	d.build()
	return d.stmt.lastPre
}

// Params returns the parameters matching PrepareSQL entry by entry.
func (d *DB) Params() [][]any {
	d.build()
	return d.stmt.lastParams
}

// PrepareSQLOne returns the first template, or "".
func (d *DB) PrepareSQLOne() string {
	if pre := d.PrepareSQL(); len(pre) > 0 {
		return pre[0]
	}
	return ""
}

// ParamsOne returns the parameters of the first template.
func (d *DB) ParamsOne() []any {
	if ps := d.Params(); len(ps) > 0 {
		return ps[0]
	}
	return nil
}

func (d *DB) build() {
	s := &d.stmt
	if s.lastPre != nil {
		return
	}
	switch s.kind {
	case KindSelect:
		var b strings.Builder
		if s.selectCount != "" {
			b.WriteString(s.selectCount)
		} else {
			b.WriteString("SELECT ")
			if s.distinct {
				b.WriteString("DISTINCT ")
			}
			b.WriteString(s.fields)
		}
		b.WriteString(" FROM " + s.tables)
		writeClause(&b, "", s.joins)
		writeClause(&b, "WHERE ", s.where)
		writeClause(&b, "GROUP BY ", s.groupBy)
		writeClause(&b, "HAVING ", s.having)
		writeClause(&b, "ORDER BY ", s.orderBy)
		writeClause(&b, "", d.limitSQL())
		if s.forUpdate {
			b.WriteString(" FOR UPDATE")
		}
		d.memo(b.String(), concat(s.whereParams, s.havingParams, d.limitParams()))

	case KindInsert:
		d.memo(d.insertSQL(s.values), concat(s.params, s.onDupParams))

	case KindInsertBatch:
		for i, v := range s.valuesArr {
			s.lastPre = append(s.lastPre, d.insertSQL(v))
			s.lastParams = append(s.lastParams, concat(s.paramsArr[i], s.onDupParams))
		}

	case KindUpdate:
		var b strings.Builder
		b.WriteString("UPDATE " + s.tables)
		writeClause(&b, "", s.joins)
		b.WriteString(" SET " + s.update)
		writeClause(&b, "WHERE ", s.where)
		writeClause(&b, "ORDER BY ", s.orderBy)
		writeClause(&b, "", d.limitSQL())
		d.memo(b.String(), concat(s.params, s.whereParams, d.limitParams()))

	case KindUpdateBatch:
		for i, set := range s.updateArr {
			var b strings.Builder
			b.WriteString("UPDATE " + s.tables)
			writeClause(&b, "", s.joins)
			b.WriteString(" SET " + set + " " + s.updateWhere[i])
			if s.where != "" {
				b.WriteString(" AND (" + s.where + ")")
			}
			writeClause(&b, "ORDER BY ", s.orderBy)
			writeClause(&b, "", d.limitSQL())
			s.lastPre = append(s.lastPre, b.String())
			s.lastParams = append(s.lastParams, concat(s.updateP[i], s.updateWhereP[i], s.whereParams, d.limitParams()))
		}

	case KindReplace:
		d.memo("REPLACE INTO "+s.tables+" ("+s.fields+") VALUES "+s.values, concat(s.params))

	case KindReplaceBatch:
		for i, v := range s.valuesArr {
			s.lastPre = append(s.lastPre, "REPLACE INTO "+s.tables+" ("+s.fields+") VALUES "+v)
			s.lastParams = append(s.lastParams, concat(s.paramsArr[i]))
		}

	case KindDelete:
		var b strings.Builder
		b.WriteString("DELETE FROM " + s.tables)
		writeClause(&b, "WHERE ", s.where)
		writeClause(&b, "ORDER BY ", s.orderBy)
		writeClause(&b, "", d.limitSQL())
		d.memo(b.String(), concat(s.whereParams, d.limitParams()))
	}
	if s.lastPre == nil && s.kind != KindNone {
		s.lastPre = []string{}
		s.lastParams = [][]any{}
	}
}

func (d *DB) memo(pre string, params []any) {
	d.stmt.lastPre = []string{pre}
	d.stmt.lastParams = [][]any{params}
}

func (d *DB) insertSQL(values string) string {
	ignore := ""
	if d.stmt.ignore {
		ignore = "IGNORE "
	}
	return "INSERT " + ignore + "INTO " + d.stmt.tables + " (" + d.stmt.fields + ") VALUES " + values + d.stmt.onDup
}

func writeClause(b *strings.Builder, kw, body string) {
	if body != "" {
		b.WriteString(" " + kw + body)
	}
}

// limitSQL renders the limit clause. Limit/Offset wins over Page/Count.
func (d *DB) limitSQL() string {
	s := &d.stmt
	switch {
	case s.hasLimit && s.hasOffset:
		return "LIMIT ?,?"
	case s.hasLimit:
		return "LIMIT ?"
	case s.hasPage && s.hasCount:
		return "LIMIT ?,?"
	}
	return ""
}

func (d *DB) limitParams() []any {
	s := &d.stmt
	switch {
	case s.hasLimit && s.hasOffset:
		return []any{s.offset, s.limit}
	case s.hasLimit:
		return []any{s.limit}
	case s.hasPage && s.hasCount:
		return []any{(s.page - 1) * s.count, s.count}
	}
	return nil
}

func concat(parts ...[]any) []any {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]any, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

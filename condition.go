package ygggo_mysqlrw

import (
	"fmt"
	"reflect"
	"strings"
)

// emptyInSentinel replaces an empty IN / NOT IN list so the statement stays
// valid and matches nothing.
const emptyInSentinel = -99999

// escapeField wraps an identifier in backticks. "t.f" becomes `t`.`f` and
// "*" is never wrapped.
func escapeField(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "`", "")
	if table, field, ok := strings.Cut(name, "."); ok && table != "" {
		if field == "*" {
			return "`" + table + "`.*"
		}
		return "`" + table + "`.`" + field + "`"
	}
	if name == "*" {
		return name
	}
	return "`" + name + "`"
}

func escapeTable(name string) string {
	return "`" + strings.ReplaceAll(strings.TrimSpace(name), "`", "") + "`"
}

// isRawExpr reports whether a field token is an expression rather than a
// plain column name. Raw expressions are passed through unescaped.
func isRawExpr(s string) bool {
	return strings.ContainsAny(s, "()'\"` \t\n") || strings.Contains(s, "->")
}

func quoteField(s string) string {
	s = strings.TrimSpace(s)
	if isRawExpr(s) {
		return s
	}
	return escapeField(s)
}

// escapeLike escapes the LIKE wildcards in v.
func escapeLike(v string) string {
	return strings.NewReplacer("%", `\%`, "_", `\_`).Replace(v)
}

var scalarOps = map[string]bool{
	"=": true, "!=": true, "<>": true, ">": true, ">=": true, "<": true, "<=": true,
	"LIKE": true, "NOT LIKE": true,
}

var nullOps = map[string]bool{"IS NULL": true, "IS NOT NULL": true}

var listOps = map[string]bool{"IN": true, "NOT IN": true, "BETWEEN": true, "NOT BETWEEN": true}

func normalizeOp(op string) string {
	return strings.ToUpper(strings.Join(strings.Fields(op), " "))
}

func knownOp(op string) bool {
	return scalarOps[op] || nullOps[op] || listOps[op]
}

// asList returns the elements of a slice or array value. []byte is a scalar.
func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case []any:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// condition renders one comparison. field may carry its operator after a
// space ("age >") when op is empty.
func condition(field string, value any, op string) (string, []any, error) {
	field = strings.TrimSpace(field)
	op = normalizeOp(op)
	if name, rest, ok := strings.Cut(field, " "); ok {
		embedded := normalizeOp(rest)
		switch {
		case op == "" && knownOp(embedded):
			field, op = name, embedded
		case op == "" && !isRawExpr(name):
			return "", nil, usageErr("condition", "unsupported operator %q", embedded)
		case op != "" && knownOp(embedded):
			return "", nil, usageErr("condition", "operator given twice for %q", field)
		}
	}
	if op != "" && !knownOp(op) {
		return "", nil, usageErr("condition", "unsupported operator %q", op)
	}
	col := quoteField(field)

	if list, ok := asList(value); ok {
		if op == "" {
			op = "IN"
		}
		switch op {
		case "IN", "NOT IN":
			if len(list) == 0 {
				list = []any{emptyInSentinel}
			}
			return col + " " + op + " (" + placeholders(len(list)) + ")", list, nil
		case "BETWEEN", "NOT BETWEEN":
			lo, hi := any(""), any("")
			if len(list) > 0 {
				lo = list[0]
			}
			if len(list) > 1 {
				hi = list[1]
			}
			return col + " " + op + " ? AND ?", []any{lo, hi}, nil
		}
		return "", nil, usageErr("condition", "operator %s does not take a list value", op)
	}

	if op == "" {
		op = "="
	}
	switch {
	case scalarOps[op]:
		return col + " " + op + " ?", []any{value}, nil
	case nullOps[op]:
		return col + " " + op, nil, nil
	}
	return "", nil, usageErr("condition", "operator %s needs a list value", op)
}

// appendCond joins cond onto clause with conn, unless clause is empty or
// ends with an open group.
func appendCond(clause, conn, cond string) string {
	if clause == "" || strings.HasSuffix(clause, "(") {
		return clause + cond
	}
	return clause + " " + conn + " " + cond
}

func openGroup(clause, conn string) string {
	if clause == "" {
		return "("
	}
	return clause + " " + conn + " ("
}

func (d *DB) addWhere(conn, field string, value any, op []string) *DB {
	sql, params, err := condition(field, value, firstOp(op))
	if err != nil {
		return d.fail(err)
	}
	d.stmt.where = appendCond(d.stmt.where, conn, sql)
	d.stmt.whereParams = append(d.stmt.whereParams, params...)
	return d
}

func (d *DB) addHaving(conn, field string, value any, op []string) *DB {
	sql, params, err := condition(field, value, firstOp(op))
	if err != nil {
		return d.fail(err)
	}
	d.stmt.having = appendCond(d.stmt.having, conn, sql)
	d.stmt.havingParams = append(d.stmt.havingParams, params...)
	return d
}

func firstOp(op []string) string {
	if len(op) == 0 {
		return ""
	}
	return op[0]
}

// Where adds an AND condition. A slice value defaults to IN.
//
//	db.Where("id", 1).Where("age >", 18).Where("status", []int{1, 2})
//	db.Where("name", "a%", "LIKE")
func (d *DB) Where(field string, value any, op ...string) *DB {
	return d.addWhere("AND", field, value, op)
}

// OrWhere adds an OR condition.
func (d *DB) OrWhere(field string, value any, op ...string) *DB {
	return d.addWhere("OR", field, value, op)
}

// rawCond splits a raw condition value into its expression and parameters.
// The value is either the expression itself or []any{expr, params}, where
// params is a []any or a single value.
func rawCond(v any) (string, []any) {
	l, ok := v.([]any)
	if !ok || len(l) == 0 {
		return fmt.Sprint(v), nil
	}
	expr := fmt.Sprint(l[0])
	if len(l) == 2 {
		if p, ok := l[1].([]any); ok {
			return expr, p
		}
	}
	return expr, l[1:]
}

// MultiWhere adds one AND condition per field. A field with an empty name
// holds a raw condition, either a string or []any{expr, params}.
//
//	db.MultiWhere(R("status", 1, "", []any{"age > ? AND age < ?", []any{18, 60}}))
func (d *DB) MultiWhere(conds Record) *DB {
	for _, c := range conds {
		if c.Name == "" {
			expr, params := rawCond(c.Value)
			d.WhereSQL(expr, params...)
			continue
		}
		d.Where(c.Name, c.Value)
	}
	return d
}

func (d *DB) MultiOrWhere(conds Record) *DB {
	for _, c := range conds {
		d.OrWhere(c.Name, c.Value)
	}
	return d
}

// WhereSQL adds a hand written AND condition with its parameters.
func (d *DB) WhereSQL(expr string, params ...any) *DB {
	d.stmt.where = appendCond(d.stmt.where, "AND", expr)
	d.stmt.whereParams = append(d.stmt.whereParams, params...)
	return d
}

func (d *DB) WhereBetween(field string, start, end any) *DB {
	return d.Where(field, []any{start, end}, "BETWEEN")
}

// WhereLike matches value anywhere; % and _ in value are literal.
func (d *DB) WhereLike(field, value string) *DB {
	return d.Where(field, "%"+escapeLike(value)+"%", "LIKE")
}

// WhereLikeBefore matches values ending with value.
func (d *DB) WhereLikeBefore(field, value string) *DB {
	return d.Where(field, "%"+escapeLike(value), "LIKE")
}

// WhereLikeAfter matches values starting with value.
func (d *DB) WhereLikeAfter(field, value string) *DB {
	return d.Where(field, escapeLike(value)+"%", "LIKE")
}

func (d *DB) OrWhereBetween(field string, start, end any) *DB {
	return d.OrWhere(field, []any{start, end}, "BETWEEN")
}

func (d *DB) OrWhereLike(field, value string) *DB {
	return d.OrWhere(field, "%"+escapeLike(value)+"%", "LIKE")
}

func (d *DB) OrWhereLikeBefore(field, value string) *DB {
	return d.OrWhere(field, "%"+escapeLike(value), "LIKE")
}

func (d *DB) OrWhereLikeAfter(field, value string) *DB {
	return d.OrWhere(field, escapeLike(value)+"%", "LIKE")
}

// BeginWhereGroup opens "(" joined by AND; close it with EndWhereGroup.
func (d *DB) BeginWhereGroup() *DB {
	d.stmt.where = openGroup(d.stmt.where, "AND")
	return d
}

func (d *DB) BeginOrWhereGroup() *DB {
	d.stmt.where = openGroup(d.stmt.where, "OR")
	return d
}

func (d *DB) EndWhereGroup() *DB {
	if d.stmt.where != "" {
		d.stmt.where += ")"
	}
	return d
}

func (d *DB) Having(field string, value any, op ...string) *DB {
	return d.addHaving("AND", field, value, op)
}

func (d *DB) OrHaving(field string, value any, op ...string) *DB {
	return d.addHaving("OR", field, value, op)
}

func (d *DB) MultiHaving(conds Record) *DB {
	for _, c := range conds {
		if c.Name == "" {
			expr, params := rawCond(c.Value)
			d.HavingSQL(expr, params...)
			continue
		}
		d.Having(c.Name, c.Value)
	}
	return d
}

func (d *DB) MultiOrHaving(conds Record) *DB {
	for _, c := range conds {
		d.OrHaving(c.Name, c.Value)
	}
	return d
}

func (d *DB) HavingSQL(expr string, params ...any) *DB {
	d.stmt.having = appendCond(d.stmt.having, "AND", expr)
	d.stmt.havingParams = append(d.stmt.havingParams, params...)
	return d
}

func (d *DB) HavingBetween(field string, start, end any) *DB {
	return d.Having(field, []any{start, end}, "BETWEEN")
}

func (d *DB) HavingLike(field, value string) *DB {
	return d.Having(field, "%"+escapeLike(value)+"%", "LIKE")
}

func (d *DB) HavingLikeBefore(field, value string) *DB {
	return d.Having(field, "%"+escapeLike(value), "LIKE")
}

func (d *DB) HavingLikeAfter(field, value string) *DB {
	return d.Having(field, escapeLike(value)+"%", "LIKE")
}

func (d *DB) OrHavingBetween(field string, start, end any) *DB {
	return d.OrHaving(field, []any{start, end}, "BETWEEN")
}

func (d *DB) OrHavingLike(field, value string) *DB {
	return d.OrHaving(field, "%"+escapeLike(value)+"%", "LIKE")
}

func (d *DB) OrHavingLikeBefore(field, value string) *DB {
	return d.OrHaving(field, "%"+escapeLike(value), "LIKE")
}

func (d *DB) OrHavingLikeAfter(field, value string) *DB {
	return d.OrHaving(field, escapeLike(value)+"%", "LIKE")
}

func (d *DB) BeginHavingGroup() *DB {
	d.stmt.having = openGroup(d.stmt.having, "AND")
	return d
}

func (d *DB) BeginOrHavingGroup() *DB {
	d.stmt.having = openGroup(d.stmt.having, "OR")
	return d
}

func (d *DB) EndHavingGroup() *DB {
	if d.stmt.having != "" {
		d.stmt.having += ")"
	}
	return d
}

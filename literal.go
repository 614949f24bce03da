package ygggo_mysqlrw

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQL renders the pending statement with its parameters inlined, one entry
// per statement. It is for logs and debugging only and must never be
// executed. SQL is a terminal call: the builder is reset afterwards, so a
// second call describes whatever was built in between, not the same statement.
func (d *DB) SQL() []string {
	defer d.resetAfter()
	pres, params := d.PrepareSQL(), d.Params()
	out := make([]string, len(pres))
	for i, pre := range pres {
		var ps []any
		if i < len(params) {
			ps = params[i]
		}
		out[i] = inline(pre, ps)
	}
	return out
}

// inline substitutes params into the ? markers of pre. Extra params are dropped.
func inline(pre string, params []any) string {
	segs := strings.Split(pre, "?")
	var b strings.Builder
	b.WriteString(segs[0])
	for i := 1; i < len(segs); i++ {
		if i-1 < len(params) {
			b.WriteString(literal(params[i-1]))
		} else {
			b.WriteByte('?')
		}
		b.WriteString(segs[i])
	}
	return b.String()
}

func literal(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return quoteString(t)
	case []byte:
		return quoteString(string(t))
	case time.Time:
		return quoteString(t.Format(timeLayout))
	}
	if list, ok := asList(v); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			switch item.(type) {
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
				parts[i] = literal(item)
			default:
				parts[i] = quoteString(fmt.Sprint(item))
			}
		}
		return strings.Join(parts, ",")
	}
	return quoteString(fmt.Sprint(v))
}

var slashes = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`, "\x00", `\0`)

func quoteString(s string) string {
	return "'" + slashes.Replace(s) + "'"
}

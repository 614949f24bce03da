package ygggo_mysqlrw

import (
	"fmt"
	"strings"
)

func batchSize(n int) int {
	if n <= 0 {
		return fallbackBatchSize
	}
	return n
}

func chunkRecords(rows []Record, size int) [][]Record {
	var out [][]Record
	for len(rows) > 0 {
		n := min(size, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

// InsertBatch starts a multi-row INSERT split into statements of at most
// onceMaxCount rows. The first record fixes the column order for every row;
// a column missing from a later row is sent as NULL and extra columns are
// ignored.
func (d *DB) InsertBatch(table string, rows []Record, onceMaxCount int) *DB {
	d.resetBefore()
	d.stmt.kind = KindInsertBatch
	d.setBatchValues(table, rows, onceMaxCount)
	return d
}

// ReplaceBatch is InsertBatch for REPLACE.
func (d *DB) ReplaceBatch(table string, rows []Record, onceMaxCount int) *DB {
	d.resetBefore()
	d.stmt.kind = KindReplaceBatch
	d.setBatchValues(table, rows, onceMaxCount)
	return d
}

func (d *DB) setBatchValues(table string, rows []Record, onceMaxCount int) {
	if len(rows) == 0 {
		return
	}
	d.stmt.tables = escapeTable(table)
	keys := rows[0].Names()
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = escapeField(k)
	}
	d.stmt.fields = strings.Join(fields, ",")
	segment := "(" + placeholders(len(keys)) + ")"
	for _, chunk := range chunkRecords(rows, batchSize(onceMaxCount)) {
		segs := make([]string, len(chunk))
		params := make([]any, 0, len(chunk)*len(keys))
		for i, row := range chunk {
			segs[i] = segment
			for _, k := range keys {
				v, _ := row.Get(k)
				params = append(params, v)
			}
		}
		d.stmt.valuesArr = append(d.stmt.valuesArr, strings.Join(segs, ","))
		d.stmt.paramsArr = append(d.stmt.paramsArr, params)
	}
}

// UpdateBatch starts a multi-row UPDATE keyed by the index column:
//
//	UPDATE t SET f = CASE index WHEN ? THEN ? ... ELSE f END, ... WHERE index IN (...)
//
// Rows without the index column are skipped. With forceString the index
// values are sent as strings. Any Where conditions are ANDed onto every chunk.
func (d *DB) UpdateBatch(table string, rows []Record, index string, onceMaxCount int, forceString bool) *DB {
	d.resetBefore()
	d.stmt.kind = KindUpdateBatch
	if len(rows) == 0 {
		return d
	}
	d.stmt.tables = escapeTable(table)
	indexCol := escapeField(index)
	for _, chunk := range chunkRecords(rows, batchSize(onceMaxCount)) {
		set, params, ids := updateCases(chunk, index, indexCol, forceString)
		if set == "" {
			continue
		}
		d.stmt.updateArr = append(d.stmt.updateArr, set)
		d.stmt.updateP = append(d.stmt.updateP, params)
		d.stmt.updateWhere = append(d.stmt.updateWhere, "WHERE "+indexCol+" IN ("+placeholders(len(ids))+")")
		d.stmt.updateWhereP = append(d.stmt.updateWhereP, ids)
	}
	return d
}

type caseWhen struct {
	id    any
	value any
}

func updateCases(chunk []Record, index, indexCol string, forceString bool) (string, []any, []any) {
	var fieldOrder []string
	cases := map[string][]caseWhen{}
	slot := map[string]map[string]int{}
	var ids []any
	seen := map[string]bool{}

	for _, row := range chunk {
		id, ok := row.Get(index)
		if !ok {
			continue
		}
		key := fmt.Sprint(id)
		if forceString {
			id = key
		}
		for _, f := range row {
			if f.Name == "" || f.Name == index {
				continue
			}
			if _, known := cases[f.Name]; !known {
				fieldOrder = append(fieldOrder, f.Name)
				cases[f.Name] = nil
				slot[f.Name] = map[string]int{}
			}
			if i, dup := slot[f.Name][key]; dup {
				cases[f.Name][i].value = f.Value
				continue
			}
			slot[f.Name][key] = len(cases[f.Name])
			cases[f.Name] = append(cases[f.Name], caseWhen{id: id, value: f.Value})
			if !seen[key] {
				seen[key] = true
				ids = append(ids, id)
			}
		}
	}

	segs := make([]string, 0, len(fieldOrder))
	var params []any
	for _, name := range fieldOrder {
		col := escapeField(name)
		var b strings.Builder
		b.WriteString(col + " = CASE " + indexCol + " ")
		for _, c := range cases[name] {
			b.WriteString("WHEN ? THEN ? ")
			params = append(params, c.id, c.value)
		}
		b.WriteString("ELSE " + col + " END")
		segs = append(segs, b.String())
	}
	return strings.Join(segs, ","), params, ids
}

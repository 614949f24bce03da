package ygggo_mysqlrw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondition(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		value  any
		op     string
		sql    string
		params []any
	}{
		{"default equals", "id", 1, "", "`id` = ?", []any{1}},
		{"embedded operator", "age >=", 18, "", "`age` >= ?", []any{18}},
		{"explicit operator", "age", 18, "<", "`age` < ?", []any{18}},
		{"lowercase operator", "name", "a%", "like", "`name` LIKE ?", []any{"a%"}},
		{"slice defaults to IN", "id", []int{1, 2}, "", "`id` IN (?,?)", []any{1, 2}},
		{"not in", "id", []string{"a"}, "NOT IN", "`id` NOT IN (?)", []any{"a"}},
		{"empty in gets sentinel", "id", []int{}, "", "`id` IN (?)", []any{emptyInSentinel}},
		{"between", "age", []any{18, 30}, "BETWEEN", "`age` BETWEEN ? AND ?", []any{18, 30}},
		{"between pads", "age", []any{18}, "between", "`age` BETWEEN ? AND ?", []any{18, ""}},
		{"is null", "deleted_at", nil, "IS NULL", "`deleted_at` IS NULL", nil},
		{"embedded is not null", "deleted_at IS NOT NULL", nil, "", "`deleted_at` IS NOT NULL", nil},
		{"qualified column", "u.id", 3, "", "`u`.`id` = ?", []any{3}},
		{"raw expression", "JSON_EXTRACT(doc, '$.a')", 1, "", "JSON_EXTRACT(doc, '$.a') = ?", []any{1}},
		{"bytes are scalar", "blob", []byte("x"), "", "`blob` = ?", []any{[]byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := condition(tt.field, tt.value, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCondition_UsageErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		op    string
	}{
		{"unknown operator", "id", 1, "FOO"},
		{"unknown embedded operator", "id =!", 1, ""},
		{"operator given twice", "id >", 1, ">"},
		{"list with scalar operator", "id", []int{1}, "="},
		{"scalar with list operator", "id", 1, "IN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := condition(tt.field, tt.value, tt.op)
			var ue *UsageError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, ErrClassUsage, Classify(err))
		})
	}
}

func TestWhere_Connectives(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").Where("a", 1).OrWhere("b", 2).Where("c", 3)
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = ? OR `b` = ? AND `c` = ?", d.PrepareSQLOne())
	assert.Equal(t, []any{1, 2, 3}, d.ParamsOne())
}

func TestWhere_Groups(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").Where("a", 1).BeginOrWhereGroup().Where("b", 2).Where("c", 3).EndWhereGroup()
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = ? OR (`b` = ? AND `c` = ?)", d.PrepareSQLOne())

	d.Reset().Select().From("t").BeginWhereGroup().Where("a", 1).OrWhere("b", 2).EndWhereGroup().Where("c", 3)
	assert.Equal(t, "SELECT * FROM `t` WHERE (`a` = ? OR `b` = ?) AND `c` = ?", d.PrepareSQLOne())
}

func TestWhere_EmptyGroupIsDropped(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").EndWhereGroup()
	assert.Equal(t, "SELECT * FROM `t`", d.PrepareSQLOne())
}

func TestWhere_LikeVariantsEscapeWildcards(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").WhereLike("a", "x_y").WhereLikeBefore("b", "50%").OrWhereLikeAfter("c", "z")
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` LIKE ? AND `b` LIKE ? OR `c` LIKE ?", d.PrepareSQLOne())
	assert.Equal(t, []any{`%x\_y%`, `%50\%`, "z%"}, d.ParamsOne())
}

func TestWhere_BetweenVariants(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").WhereBetween("a", 1, 5).OrWhereBetween("b", "x", "y")
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` BETWEEN ? AND ? OR `b` BETWEEN ? AND ?", d.PrepareSQLOne())
	assert.Equal(t, []any{1, 5, "x", "y"}, d.ParamsOne())
}

func TestMultiWhere_RawEntries(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").MultiWhere(R("a", 1, "", "b > c", "d", []int{4, 5}))
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = ? AND b > c AND `d` IN (?,?)", d.PrepareSQLOne())
	assert.Equal(t, []any{1, 4, 5}, d.ParamsOne())
}

func TestMultiWhere_RawEntriesWithParams(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").MultiWhere(R(
		"a", 1,
		"", []any{"age > ? AND age < ?", []any{18, 60}},
		"", []any{"score = ?", 7},
		"", []any{"flag = 1"},
	))
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = ? AND age > ? AND age < ? AND score = ? AND flag = 1", d.PrepareSQLOne())
	assert.Equal(t, []any{1, 18, 60, 7}, d.ParamsOne())
}

func TestMultiHaving_RawEntries(t *testing.T) {
	d := newBuilder(t)
	d.Select("a").From("t").GroupBy("a").MultiHaving(R("", []any{"COUNT(*) > ?", []any{2}}, "a", 3))
	assert.Equal(t, "SELECT `a` FROM `t` GROUP BY `a` HAVING COUNT(*) > ? AND `a` = ?", d.PrepareSQLOne())
	assert.Equal(t, []any{2, 3}, d.ParamsOne())
}

func TestMultiOrWhere(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").MultiOrWhere(R("a", 1, "b", 2))
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = ? OR `b` = ?", d.PrepareSQLOne())
}

func TestWhereSQL(t *testing.T) {
	d := newBuilder(t)
	d.Select().From("t").Where("a", 1).WhereSQL("created_at > NOW() - INTERVAL ? DAY", 7)
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = ? AND created_at > NOW() - INTERVAL ? DAY", d.PrepareSQLOne())
	assert.Equal(t, []any{1, 7}, d.ParamsOne())
}

func TestHaving(t *testing.T) {
	d := newBuilder(t)
	d.Select("dept", "COUNT(*) cnt").From("t").GroupBy("dept").
		Having("cnt >", 1).
		BeginOrHavingGroup().HavingLike("dept", "ops").OrHavingBetween("cnt", 10, 20).EndHavingGroup()
	assert.Equal(t,
		"SELECT `dept`,COUNT(*) cnt FROM `t` GROUP BY `dept` HAVING `cnt` > ? OR (`dept` LIKE ? OR `cnt` BETWEEN ? AND ?)",
		d.PrepareSQLOne())
	assert.Equal(t, []any{1, "%ops%", 10, 20}, d.ParamsOne())
}

func TestMultiHaving(t *testing.T) {
	d := newBuilder(t)
	d.Select("dept").From("t").GroupBy("dept").MultiHaving(R("a", 1, "b", 2)).HavingSQL("SUM(x) > ?", 3)
	assert.Equal(t, "SELECT `dept` FROM `t` GROUP BY `dept` HAVING `a` = ? AND `b` = ? AND SUM(x) > ?", d.PrepareSQLOne())
	assert.Equal(t, []any{1, 2, 3}, d.ParamsOne())
}

func TestEscapeField(t *testing.T) {
	assert.Equal(t, "`id`", escapeField("id"))
	assert.Equal(t, "`u`.`id`", escapeField("u.id"))
	assert.Equal(t, "`u`.*", escapeField("u.*"))
	assert.Equal(t, "*", escapeField("*"))
	assert.Equal(t, "`id`", escapeField("`id`"))
	assert.Equal(t, "`users`", escapeTable(" users "))
}

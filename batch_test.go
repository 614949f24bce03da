package ygggo_mysqlrw

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRows(n int) []Record {
	rows := make([]Record, n)
	for i := range rows {
		rows[i] = R("id", i+1, "name", "u")
	}
	return rows
}

func TestInsertBatch_Chunks(t *testing.T) {
	d := newBuilder(t)
	d.InsertBatch("users", userRows(250), DefaultBatchSize)

	pres, params := d.PrepareSQL(), d.Params()
	require.Len(t, pres, 3)
	require.Len(t, params, 3)
	for i, want := range []int{100, 100, 50} {
		assert.Equal(t, want, strings.Count(pres[i], "(?,?)"), "chunk %d", i)
		assert.Len(t, params[i], 2*want, "chunk %d", i)
		assert.True(t, strings.HasPrefix(pres[i], "INSERT INTO `users` (`id`,`name`) VALUES (?,?),"))
	}
	assert.Equal(t, 201, params[2][0])
}

func TestInsertBatch_NonPositiveSizeMeans500(t *testing.T) {
	d := newBuilder(t)
	d.InsertBatch("users", userRows(600), 0)
	require.Len(t, d.PrepareSQL(), 2)
	assert.Len(t, d.Params()[0], 1000)
	assert.Len(t, d.Params()[1], 200)
}

func TestInsertBatch_FirstRecordFixesColumns(t *testing.T) {
	d := newBuilder(t)
	d.InsertBatch("users", []Record{
		R("id", 1, "name", "a"),
		R("name", "b", "extra", true),
	}, 10)
	assert.Equal(t, "INSERT INTO `users` (`id`,`name`) VALUES (?,?),(?,?)", d.PrepareSQLOne())
	assert.Equal(t, []any{1, "a", nil, "b"}, d.ParamsOne())
}

func TestInsertBatch_OnDuplicateKeyUpdatePerChunk(t *testing.T) {
	d := newBuilder(t)
	d.InsertBatch("users", userRows(3), 2).Ignore().OnDuplicateKeyUpdate("name = VALUES(name)")
	pres := d.PrepareSQL()
	require.Len(t, pres, 2)
	for _, pre := range pres {
		assert.True(t, strings.HasPrefix(pre, "INSERT IGNORE INTO"))
		assert.True(t, strings.HasSuffix(pre, " ON DUPLICATE KEY UPDATE name = VALUES(name)"))
	}
}

func TestReplaceBatch(t *testing.T) {
	d := newBuilder(t)
	d.ReplaceBatch("users", userRows(2), 100)
	assert.Equal(t, "REPLACE INTO `users` (`id`,`name`) VALUES (?,?),(?,?)", d.PrepareSQLOne())
	assert.Equal(t, KindReplaceBatch, d.Kind())
}

func TestUpdateBatch(t *testing.T) {
	d := newBuilder(t)
	d.UpdateBatch("users", []Record{
		R("id", 1, "name", "a", "age", 10),
		R("id", 2, "name", "b"),
		R("name", "no index"),
	}, "id", 10, false).Where("status", 1)

	assert.Equal(t,
		"UPDATE `users` SET `name` = CASE `id` WHEN ? THEN ? WHEN ? THEN ? ELSE `name` END,"+
			"`age` = CASE `id` WHEN ? THEN ? ELSE `age` END WHERE `id` IN (?,?) AND (`status` = ?)",
		d.PrepareSQLOne())
	assert.Equal(t, []any{1, "a", 2, "b", 1, 10, 1, 2, 1}, d.ParamsOne())
}

func TestUpdateBatch_ForceStringAndDuplicateIDs(t *testing.T) {
	d := newBuilder(t)
	d.UpdateBatch("users", []Record{
		R("id", 7, "name", "first"),
		R("id", 7, "name", "second"),
	}, "id", 10, true)

	assert.Equal(t, "UPDATE `users` SET `name` = CASE `id` WHEN ? THEN ? ELSE `name` END WHERE `id` IN (?)", d.PrepareSQLOne())
	assert.Equal(t, []any{"7", "second", "7"}, d.ParamsOne())
}

func TestUpdateBatch_Chunks(t *testing.T) {
	d := newBuilder(t)
	d.UpdateBatch("users", userRows(5), "id", 2, false)
	pres, params := d.PrepareSQL(), d.Params()
	require.Len(t, pres, 3)
	assert.Len(t, params[0], 2*2+2)
	assert.Len(t, params[2], 1*2+1)
}

func TestUpdateBatch_NoUsableRows(t *testing.T) {
	d := newBuilder(t)
	d.UpdateBatch("users", []Record{R("name", "x")}, "id", 10, false)
	assert.Empty(t, d.PrepareSQL())
}

func TestChunkRecords(t *testing.T) {
	chunks := chunkRecords(userRows(5), 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 1)
	assert.Nil(t, chunkRecords(nil, 2))
	assert.Equal(t, 500, batchSize(-1))
}

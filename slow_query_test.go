package ygggo_mysqlrw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlowQueryLog_Defaults(t *testing.T) {
	l := NewSlowQueryLog(SlowQueryConfig{})
	assert.Equal(t, DefaultSlowQueryConfig(), l.Config())

	l.SetThreshold(0)
	assert.Equal(t, 100*time.Millisecond, l.Config().Threshold)
	l.SetThreshold(time.Second)
	assert.Equal(t, time.Second, l.Config().Threshold)
}

func TestSlowQueryLog_Observe(t *testing.T) {
	l := NewSlowQueryLog(SlowQueryConfig{Threshold: 10 * time.Millisecond, MaxRecords: 3})
	ep := EndpointConfig{Host: "db1", Port: 3306, DBName: "app"}

	assert.False(t, l.Observe("SELECT 1", 0, 5*time.Millisecond, IntentSlave, ep, nil))
	assert.False(t, l.Observe("SELECT 1", 0, 10*time.Millisecond, IntentSlave, ep, nil), "threshold is exclusive")

	assert.True(t, l.Observe("SELECT * FROM `a` WHERE `id` = ?", 1, 20*time.Millisecond, IntentSlave, ep, nil))
	assert.True(t, l.Observe("SELECT * FROM `a` WHERE `id` = ?", 1, 40*time.Millisecond, IntentSlave, ep, nil))
	assert.True(t, l.Observe("DELETE FROM `b`", 0, 30*time.Millisecond, IntentMaster, ep, errors.New("lock wait")))
	assert.True(t, l.Observe("DELETE FROM `b`", 0, 50*time.Millisecond, IntentMaster, ep, nil))

	records := l.Records(0)
	require.Len(t, records, 3, "oldest record dropped")
	assert.Equal(t, 50*time.Millisecond, records[0].Duration)
	assert.Equal(t, "lock wait", records[1].Error)
	assert.Equal(t, "master", records[1].RWType)
	assert.Equal(t, "db1:3306", records[1].Endpoint)
	assert.Equal(t, "app", records[1].DBName)
	assert.NotEmpty(t, records[0].ID)
	assert.Empty(t, records[0].Stack)
	assert.Len(t, l.Records(1), 1)

	patterns := l.Patterns(0)
	require.Len(t, patterns, 2)
	assert.Equal(t, int64(2), patterns[0].Count)
	byQuery := map[string]QueryPattern{}
	for _, p := range patterns {
		byQuery[p.Query] = p
	}
	sel := byQuery["SELECT * FROM `a` WHERE `id` = ?"]
	assert.Equal(t, 30*time.Millisecond, sel.AverageDuration)
	assert.Equal(t, 40*time.Millisecond, sel.MaxDuration)

	stats := l.Stats()
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(2), stats.UniqueQueries)
	assert.Equal(t, 30*time.Millisecond, stats.MinDuration)
	assert.Equal(t, 50*time.Millisecond, stats.MaxDuration)
	assert.Equal(t, 40*time.Millisecond, stats.AverageDuration)
	assert.Len(t, stats.TopQueries, 2)

	l.Clear()
	assert.Empty(t, l.Records(0))
	assert.Empty(t, l.Patterns(0))
	assert.Equal(t, SlowQueryStats{}, l.Stats())
}

func TestSlowQueryLog_PatternEviction(t *testing.T) {
	l := NewSlowQueryLog(SlowQueryConfig{Threshold: time.Millisecond, MaxPatterns: 2})
	ep := EndpointConfig{Host: "db1"}
	for _, q := range []string{"q1", "q2", "q1", "q3"} {
		l.Observe(q, 0, time.Second, IntentMaster, ep, nil)
	}
	patterns := l.Patterns(0)
	require.Len(t, patterns, 2)
	assert.Equal(t, "q1", patterns[0].Query)
	assert.Equal(t, "q3", patterns[1].Query)
}

func TestSlowQueryLog_IncludeStack(t *testing.T) {
	l := NewSlowQueryLog(SlowQueryConfig{Threshold: time.Millisecond, IncludeStack: true})
	l.Observe("q", 0, time.Second, IntentMaster, EndpointConfig{}, nil)
	assert.Contains(t, l.Records(0)[0].Stack, "goroutine")
}

func TestSlowQueryLog_WiredIntoExecution(t *testing.T) {
	g := newMockGroup(t, 0)
	l := NewSlowQueryLog(SlowQueryConfig{Threshold: time.Millisecond})
	m, _ := newTestManager(t, WithSlowQueryLog(l))
	d := m.New(g.cfg)
	ctx := context.Background()

	g.master.mock.ExpectPrepare("DELETE FROM `t` WHERE `id` = ?").ExpectExec().WithArgs(1).
		WillDelayFor(5 * time.Millisecond).
		WillReturnResult(sqlmock.NewResult(0, 1))
	g.master.mock.ExpectPrepare("DELETE FROM `t` WHERE `id` = ?").ExpectExec().WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := d.Delete("t").Where("id", 1).Exec(ctx)
	require.NoError(t, err)
	_, err = d.Delete("t").Where("id", 2).Exec(ctx)
	require.NoError(t, err)

	records := m.SlowQueryLog().Records(0)
	require.Len(t, records, 1)
	assert.Equal(t, "DELETE FROM `t` WHERE `id` = ?", records[0].Query)
	assert.Equal(t, 1, records[0].ArgCount)
	assert.Equal(t, "master", records[0].RWType)

	m.SetSlowQueryLog(nil)
	assert.Nil(t, m.SlowQueryLog())
}

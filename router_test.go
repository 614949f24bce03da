package ygggo_mysqlrw

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endpointKey(g *mockGroup, ep EndpointConfig) string {
	return fingerprintOf(g.cfg.driver(), ep.withDefaults(), g.cfg.DSNWithoutDBName)
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		intent      Intent
		inTrans     bool
		forceMaster bool
		slaveOpen   bool
		masterOpen  bool
		want        EndpointChoice
	}{
		{"transaction wins", IntentSlave, true, false, true, false, ChooseMaster},
		{"force master wins", IntentAuto, false, true, true, true, ChooseMaster},
		{"explicit master", IntentMaster, false, false, true, false, ChooseMaster},
		{"explicit slave", IntentSlave, false, false, false, true, ChooseSlave},
		{"auto reuses slave first", IntentAuto, false, false, true, true, ReuseSlave},
		{"auto reuses master", IntentAuto, false, false, false, true, ReuseMaster},
		{"auto opens slave", IntentAuto, false, false, false, false, ChooseSlave},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveEndpoint(tt.intent, tt.inTrans, tt.forceMaster, tt.slaveOpen, tt.masterOpen)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestRouter_ReadsGoToSlave(t *testing.T) {
	g := newMockGroup(t, 1)
	m, _ := newTestManager(t)
	d := m.New(g.cfg)

	g.slaves[0].mock.ExpectPrepare("SELECT * FROM `users` WHERE `id` = ?").
		ExpectQuery().WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "alice"))

	row, err := d.Select().From("users").Where("id", 7).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(7), "name": "alice"}, row)
	assert.Equal(t, IntentSlave, d.RWType())
	assert.Equal(t, endpointKey(g, g.slaves[0].cfg), d.LastConnectionKey())
	g.expectationsMet(t)
}

func TestRouter_WritesGoToMaster(t *testing.T) {
	g := newMockGroup(t, 1)
	m, _ := newTestManager(t)
	d := m.New(g.cfg)

	g.master.mock.ExpectPrepare("DELETE FROM `users` WHERE `id` = ?").
		ExpectExec().WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := d.Delete("users").Where("id", 7).Exec(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, IntentMaster, d.RWType())
	assert.Equal(t, endpointKey(g, g.master.cfg), d.LastConnectionKey())
	g.expectationsMet(t)
}

func TestRouter_ForceMasterRead(t *testing.T) {
	g := newMockGroup(t, 1)
	m, _ := newTestManager(t)
	d := m.New(g.cfg)

	g.master.mock.ExpectPrepare("SELECT * FROM `users`").
		ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := d.ForceMaster().Select().From("users").FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.Equal(t, endpointKey(g, g.master.cfg), d.LastConnectionKey())
	g.expectationsMet(t)
}

func TestRouter_AutoReusesOpenMaster(t *testing.T) {
	g := newMockGroup(t, 1)
	m, _ := newTestManager(t)
	d := m.New(g.cfg)
	ctx := context.Background()

	g.master.mock.ExpectPrepare("INSERT INTO `users` (`name`) VALUES (?)").
		ExpectExec().WithArgs("a").WillReturnResult(sqlmock.NewResult(1, 1))
	g.master.mock.ExpectPrepare("SELECT 1").
		ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))

	_, err := d.Insert("users", R("name", "a")).Exec(ctx)
	require.NoError(t, err)
	_, err = d.Raw("SELECT 1", nil, IntentAuto).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, IntentMaster, d.RWType())
	g.expectationsMet(t)
}

func TestRouter_AutoPrefersOpenSlave(t *testing.T) {
	g := newMockGroup(t, 1)
	m, _ := newTestManager(t)
	d := m.New(g.cfg)
	ctx := context.Background()

	key, err := d.ConnectionKey(ctx, IntentMaster)
	require.NoError(t, err)
	assert.Equal(t, endpointKey(g, g.master.cfg), key)

	key, err = d.ConnectionKey(ctx, IntentSlave)
	require.NoError(t, err)
	assert.Equal(t, endpointKey(g, g.slaves[0].cfg), key)

	key, err = d.ConnectionKey(ctx, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, endpointKey(g, g.slaves[0].cfg), key)
}

func TestRouter_NoSlavesFallsBackToMaster(t *testing.T) {
	g := newMockGroup(t, 0)
	m, _ := newTestManager(t)
	d := m.New(g.cfg)

	conn, err := d.Conn(context.Background(), IntentSlave)
	require.NoError(t, err)
	assert.NotNil(t, conn)
	assert.Equal(t, IntentMaster, d.RWType())
	assert.Equal(t, endpointKey(g, g.master.cfg), d.LastConnectionKey())
}

func TestRouter_StickySlave(t *testing.T) {
	g := newMockGroup(t, 2)
	picks := 0
	m, _ := newTestManager(t, WithRand(func(n int) int {
		picks++
		return n - 1
	}))
	d := m.New(g.cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key, err := d.ConnectionKey(ctx, IntentSlave)
		require.NoError(t, err)
		assert.Equal(t, endpointKey(g, g.slaves[1].cfg), key)
	}
	assert.Equal(t, 1, picks)

	d.closeConnects(true)
	_, err := d.ConnectionKey(ctx, IntentSlave)
	require.NoError(t, err)
	assert.Equal(t, 2, picks, "a dropped slave is picked again")
}

func TestRouter_IdleConnectionIsReplaced(t *testing.T) {
	g := newMockGroup(t, 0)
	g.cfg.ConnectWaitTimeout = 10
	clock := newFakeClock()
	m, _ := newTestManager(t, WithClock(clock.Now))
	d := m.New(g.cfg)
	ctx := context.Background()

	key, err := d.ConnectionKey(ctx, IntentMaster)
	require.NoError(t, err)
	first, _ := m.Pool().Get(key)

	clock.Advance(5 * time.Second)
	_, err = d.ConnectionKey(ctx, IntentMaster)
	require.NoError(t, err)
	same, _ := m.Pool().Get(key)
	assert.Same(t, first, same)

	clock.Advance(10 * time.Second)
	key2, err := d.ConnectionKey(ctx, IntentMaster)
	require.NoError(t, err)
	assert.Equal(t, key, key2)
	replaced, _ := m.Pool().Get(key2)
	assert.NotSame(t, first, replaced)
}

func TestRouter_SelectsDatabaseWhenDSNHasNone(t *testing.T) {
	g := newMockGroup(t, 0)
	g.cfg.DSNWithoutDBName = true
	m, _ := newTestManager(t)
	d := m.New(g.cfg)
	ctx := context.Background()

	g.master.mock.ExpectExec("USE `app`").WillReturnResult(sqlmock.NewResult(0, 0))
	g.master.mock.ExpectPrepare("DELETE FROM `t`").ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	g.master.mock.ExpectPrepare("DELETE FROM `t`").ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := d.Delete("t").Exec(ctx)
	require.NoError(t, err)
	_, err = d.Delete("t").Exec(ctx)
	require.NoError(t, err)

	rec, ok := m.Pool().Get(d.LastConnectionKey())
	require.True(t, ok)
	assert.Equal(t, "app", rec.DBName())
	g.expectationsMet(t)
}

func TestRouter_SharedServerSwitchesDatabasePerGroup(t *testing.T) {
	srv := newMockEndpoint(t, "shared")
	epA, epB := srv.cfg, srv.cfg
	epA.DBName, epB.DBName = "a", "b"
	m, _ := newTestManager(t)
	ctx := context.Background()
	a := m.New(GroupConfig{Driver: "sqlmock", DSNWithoutDBName: true, Master: epA})
	b := m.New(GroupConfig{Driver: "sqlmock", DSNWithoutDBName: true, Master: epB})

	srv.mock.ExpectExec("USE `a`").WillReturnResult(sqlmock.NewResult(0, 0))
	srv.mock.ExpectPrepare("SELECT * FROM `t`").ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	srv.mock.ExpectExec("USE `b`").WillReturnResult(sqlmock.NewResult(0, 0))
	srv.mock.ExpectPrepare("SELECT * FROM `t`").ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	srv.mock.ExpectExec("USE `a`").WillReturnResult(sqlmock.NewResult(0, 0))
	srv.mock.ExpectPrepare("SELECT * FROM `t`").ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	row, err := a.Select().From("t").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])
	row, err = b.Select().From("t").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row["id"])
	assert.Equal(t, a.LastConnectionKey(), b.LastConnectionKey())
	row, err = a.Select().From("t").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])

	rec, ok := m.Pool().Get(a.LastConnectionKey())
	require.True(t, ok)
	assert.Equal(t, "a", rec.DBName())
	require.NoError(t, srv.mock.ExpectationsWereMet())
}

func TestRouter_ConnectFailureIsReported(t *testing.T) {
	m, rep := newTestManager(t)
	d := m.New(GroupConfig{
		Driver: "sqlmock",
		Master: EndpointConfig{Host: "nowhere", DSN: "not-registered"},
	})

	_, err := d.Delete("t").Exec(context.Background())
	var de *DBError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindConnect, de.Kind)
	assert.Equal(t, ErrClassConnect, Classify(err))
	errs, _ := rep.counts()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 0, m.Pool().Len())
}

func TestRouter_HandlesShareConnections(t *testing.T) {
	g := newMockGroup(t, 1)
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, b := m.New(g.cfg), m.New(g.cfg)
	ka, err := a.ConnectionKey(ctx, IntentSlave)
	require.NoError(t, err)
	kb, err := b.ConnectionKey(ctx, IntentSlave)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Equal(t, 1, m.Pool().Len())
}

func TestRouter_CloseKeepsPersistentConnections(t *testing.T) {
	g := newMockGroup(t, 1)
	g.cfg.Master.IsPersistent = true
	m, _ := newTestManager(t)
	d := m.New(g.cfg)
	ctx := context.Background()

	mk, err := d.ConnectionKey(ctx, IntentMaster)
	require.NoError(t, err)
	sk, err := d.ConnectionKey(ctx, IntentSlave)
	require.NoError(t, err)
	require.Equal(t, 2, m.Pool().Len())

	require.NoError(t, d.Close())
	_, ok := m.Pool().Get(mk)
	assert.True(t, ok)
	_, ok = m.Pool().Get(sk)
	assert.False(t, ok)
}

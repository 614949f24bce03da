// Package ygggo_mysqlrw is a MySQL access layer with read/write splitting.
//
// # Overview
//
// A Manager owns the process wide connection pool. Each DB obtained from it
// is bound to one database group (a master, its slaves and optional backup
// endpoints) and builds one statement at a time through a fluent API:
//
//	m := ggm.NewManager()
//	defer m.Close()
//
//	db := m.New(cfg)
//	row, err := db.Select("id,name").From("users").Where("id", 7).Fetch(ctx)
//
// Reads go to a slave picked at random and kept for the life of the handle.
// Writes, forced reads and everything inside a transaction go to the master.
// With IntentAuto an already open connection is reused, the slave first.
//
// # Connections
//
// Every endpoint is pinned to a single *sql.Conn keyed by a fingerprint of
// its connection parameters, so two handles on the same group share the
// same physical connections. A connection idle for longer than the group's
// wait timeout is replaced before use. A connection error outside a
// transaction drops the handle's connections and the statement runs once
// more on fresh ones.
//
// # Statements
//
// Starters (Select, SelectCount, Insert, Replace, Update, Delete, Raw and the
// batch variants) begin a statement; modifiers refine it; Exec, Fetch,
// FetchAll, AffectedRows and LastInsertID run it and reset the builder.
// Values always travel as bound parameters. A slice bound to a single
// placeholder expands to one placeholder per element, and an empty slice
// becomes a sentinel that matches nothing.
//
//	db.Where("status", []int{1, 2}).Where("age >=", 18)
//	db.BeginWhereGroup().Where("a", 1).OrWhere("b", 2).EndWhereGroup()
//
// SQL renders the statement with literals inlined, for logs only.
//
// # Transactions
//
// BeginTrans, CommitTrans and RollbackTrans count depth. Only the outermost
// pair reaches the server; an inner rollback does nothing until the outer
// one runs.
//
//	err := db.WithinTrans(ctx, func(tx *ggm.DB) error {
//		_, err := tx.Update("accounts", ggm.R("balance", 0)).Where("id", 1).Exec(ctx)
//		return err
//	})
//
// # Observability
//
// Structured logging uses log/slog, tracing and metrics use OpenTelemetry.
// Errors are also handed to a Reporter; SlogReporter and ZapReporter are
// provided. PrometheusHooks exports execution counts and latencies through
// the execute hooks, and a SlowQueryLog keeps the slowest statements in
// memory.
package ygggo_mysqlrw

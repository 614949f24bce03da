package ygggo_mysqlrw

import (
	"context"
	"database/sql"
)

// Executor runs the statement being built. *DB satisfies it.
type Executor interface {
	Exec(ctx context.Context) (bool, error)
	Fetch(ctx context.Context) (Row, error)
	FetchAll(ctx context.Context) ([]Row, error)
	AffectedRows(ctx context.Context) (int64, error)
	LastInsertID(ctx context.Context) (string, error)
}

// Transactor manages depth counted transactions. *DB and *Table satisfy it.
type Transactor interface {
	BeginTrans(ctx context.Context) error
	CommitTrans(ctx context.Context) error
	RollbackTrans(ctx context.Context) error
}

// Compile-time interface checks.
var (
	_ Executor   = (*DB)(nil)
	_ Transactor = (*DB)(nil)
	_ Transactor = (*Table)(nil)
	_ preparer   = (*sql.Conn)(nil)
	_ preparer   = (*sql.Tx)(nil)
)

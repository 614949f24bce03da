package ygggo_mysqlrw

import (
	"database/sql/driver"
	"errors"
	"fmt"

	mysql "github.com/go-sql-driver/mysql"
)

// ErrorClass groups driver errors by how the engine reacts to them.
type ErrorClass int

const (
	ErrClassUnknown ErrorClass = iota
	// ErrClassRetryable errors are retried once after a forced reconnect.
	ErrClassRetryable
	// ErrClassDuplicate is a duplicate key violation, reported at warn level.
	ErrClassDuplicate
	ErrClassConnect
	ErrClassUsage
)

// MySQL error numbers the engine cares about.
const (
	ErrCodeDuplicateEntry   = 1062 // ER_DUP_ENTRY
	ErrCodeQueryInterrupted = 1317 // ER_QUERY_INTERRUPTED
	ErrCodeServerGone       = 2006 // CR_SERVER_GONE_ERROR
	ErrCodeServerLost       = 2013 // CR_SERVER_LOST
)

var (
	ErrNoConnection   = errors.New("ygggo_mysqlrw: no usable connection")
	ErrEmptyStatement = errors.New("ygggo_mysqlrw: no statement to execute")
)

// Kind tells which stage produced a DBError.
type Kind string

const (
	KindConnect   Kind = "connect"
	KindExec      Kind = "exec"
	KindDuplicate Kind = "duplicate"
)

// DBError carries a failed connect or execution together with the statement
// and endpoint that produced it.
type DBError struct {
	Kind     Kind
	Code     int
	Message  string
	SQL      string
	Params   []any
	RWType   Intent
	Endpoint EndpointConfig
	Err      error
}

func (e *DBError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("ygggo_mysqlrw: %s error %d: %s [sql: %s]", e.Kind, e.Code, e.Message, e.SQL)
	}
	return fmt.Sprintf("ygggo_mysqlrw: %s error %d: %s", e.Kind, e.Code, e.Message)
}

func (e *DBError) Unwrap() error { return e.Err }

// UsageError reports a malformed builder call. It is never retried or reported.
type UsageError struct {
	Op      string
	Message string
}

func (e *UsageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("ygggo_mysqlrw: %s: %s", e.Op, e.Message)
	}
	return "ygggo_mysqlrw: " + e.Message
}

// ErrorCode extracts the MySQL error number from err, or 0.
func ErrorCode(err error) int {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return int(me.Number)
	}
	var de *DBError
	if errors.As(err, &de) {
		return de.Code
	}
	return 0
}

// Classify maps an error to its ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrClassUnknown
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		return ErrClassUsage
	}
	var de *DBError
	if errors.As(err, &de) && de.Kind == KindConnect {
		return ErrClassConnect
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return ErrClassRetryable
	}
	switch ErrorCode(err) {
	case ErrCodeQueryInterrupted, ErrCodeServerGone, ErrCodeServerLost:
		return ErrClassRetryable
	case ErrCodeDuplicateEntry:
		return ErrClassDuplicate
	}
	return ErrClassUnknown
}

// IsDuplicateKey reports whether err is a duplicate key violation.
func IsDuplicateKey(err error) bool { return Classify(err) == ErrClassDuplicate }

func usageErr(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Message: fmt.Sprintf(format, args...)}
}

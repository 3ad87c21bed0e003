package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for database operations.
var (
	ErrNoRows            = errors.New("db: no rows")
	ErrDuplicate         = errors.New("db: duplicate key")
	ErrUndefinedObject   = errors.New("db: undefined object")
	ErrInvalidIdentifier = errors.New("db: invalid identifier")
	ErrPermissionDenied  = errors.New("db: permission denied")
)

// Op constants name the failing statement class for error context.
const (
	OpConnect = "connect"
	OpPing    = "ping"
	OpBegin   = "begin"
	OpCommit  = "commit"
	OpSetRole = "set role"
	OpQuery   = "query"
	OpExec    = "exec"
	OpScanRow = "scan"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// PostgreSQL error codes this service cares about.
const (
	codeUniqueViolation  = "23505"
	codeUndefinedTable   = "42P01"
	codeUndefinedObject  = "42704"
	codeInvalidRoleSpec  = "22023"
	codeInsufficientPriv = "42501"
)

// Normalize maps backend-specific failures onto the package sentinels,
// keeping the original error in the chain for server-side diagnostics.
func Normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Op: op, Err: errors.Join(ErrNoRows, err)}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &Error{Op: op, Err: errors.Join(ErrDuplicate, err)}
		case codeUndefinedTable, codeUndefinedObject, codeInvalidRoleSpec:
			return &Error{Op: op, Err: errors.Join(ErrUndefinedObject, err)}
		case codeInsufficientPriv:
			return &Error{Op: op, Err: errors.Join(ErrPermissionDenied, err)}
		}
	}
	return &Error{Op: op, Err: err}
}

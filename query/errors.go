package query

import "errors"

// ErrInvalidArgument is returned for out-of-range pagination bounds or
// empty SQL text (spec.md §7's InvalidArgument kind).
var ErrInvalidArgument = errors.New("query: invalid argument")

// ErrInconsistentRowCounts is returned by refresh when a dirty table is
// pending (its columns disagree on row count) at the moment a snapshot for
// registration is attempted.
var ErrInconsistentRowCounts = errors.New("query: inconsistent row counts")

// SqlError wraps a parse/plan failure surfaced by the underlying SQL
// engine. Position is the zero-based byte offset the engine reported, or
// -1 if it did not report one. DuckDB's driver errors do not currently
// carry a position, so Position is always -1 in this implementation; the
// field is kept because spec.md §7 describes it as optional, not absent.
type SqlError struct {
	Message  string
	Position int
}

func (e *SqlError) Error() string { return "query: sql error: " + e.Message }

// ExecutionError wraps a runtime failure while executing an already
// planned query (e.g. DuckDB rejecting a row during COUNT(*), a type
// coercion failure).
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return "query: execution error: " + e.Message }

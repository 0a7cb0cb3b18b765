// Package arrowdb is an in-memory, columnar, SQL-queryable table engine
// meant to be embedded in a long-running server (behind an Arrow Flight SQL
// RPC) or in a single-threaded sandbox (behind a thin host binding over
// user-supplied Parquet files).
//
// The packages under this module split along the engine's own seams:
//
//	types      scalar type tags and table schemas
//	column     per-column chunked, zero-copy mutation primitives
//	table      a named, row-count-consistent collection of columns
//	database   a concurrent registry of tables
//	parquet    Parquet <-> Table import/export
//	query      the SQL execution adapter (wraps DuckDB) and pagination
//	host       the sandbox and Flight SQL host bindings
//
// This file holds the error taxonomy shared by every layer. No core
// operation panics on user input; all failure modes are reported through
// these error values so that callers (including both host bindings) can
// branch on error kind with errors.Is / errors.As.
package arrowdb

import "errors"

// Sentinel errors for kinds that carry no structured data beyond their
// message. Use errors.Is to test for these.
var (
	// ErrNotFound is returned by table or column lookups that miss.
	ErrNotFound = errors.New("arrowdb: not found")

	// ErrDuplicateTable is returned by Database.AddTable when the name is
	// already registered.
	ErrDuplicateTable = errors.New("arrowdb: duplicate table")

	// ErrDuplicateName is returned by Table.AddColumn when the column name
	// collides with an existing column.
	ErrDuplicateName = errors.New("arrowdb: duplicate column name")

	// ErrOutOfBounds is returned when a row or column index exceeds the
	// current length of the structure being addressed.
	ErrOutOfBounds = errors.New("arrowdb: index out of bounds")

	// ErrInconsistentRowCounts is returned by Table.Snapshot (and anything
	// built on it, such as write_parquet or a query execution) when the
	// table's columns do not currently share a row count.
	ErrInconsistentRowCounts = errors.New("arrowdb: inconsistent row counts")

	// ErrInvalidArgument is returned for malformed pagination bounds, empty
	// SQL text, and similar caller errors that are not a lookup miss.
	ErrInvalidArgument = errors.New("arrowdb: invalid argument")
)

// TypeMismatchError is returned when an incoming column array's scalar type
// disagrees with a column's declared type.
type TypeMismatchError struct {
	Column   string
	Declared string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return "arrowdb: column " + e.Column + ": declared type " + e.Declared + ", got " + e.Got
}

// RowCountMismatchError is returned when a column array's length disagrees
// with the table's current row count at add-column time. Per-column appends
// are not checked; they leave the table pending instead.
type RowCountMismatchError struct {
	Column   string
	Expected int
	Got      int
}

func (e *RowCountMismatchError) Error() string {
	return "arrowdb: column " + e.Column + ": expected row count to match table"
}

// UnsupportedTypeError is returned when a Parquet logical type has no
// mapping to ArrowDB's closed scalar type enumeration.
type UnsupportedTypeError struct {
	Description string
}

func (e *UnsupportedTypeError) Error() string {
	return "arrowdb: unsupported parquet type: " + e.Description
}

// SqlError wraps a parse or plan failure surfaced by the Query Engine
// Adapter's underlying SQL engine. Position is the zero-based byte offset
// into the SQL text where the engine reported the failure, or -1 if the
// engine did not report one.
type SqlError struct {
	Message  string
	Position int
}

func (e *SqlError) Error() string {
	return "arrowdb: sql error: " + e.Message
}

// ExecutionError wraps a runtime failure surfaced while executing an
// already-planned query (e.g. a division by zero, a constraint violation).
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return "arrowdb: execution error: " + e.Message
}

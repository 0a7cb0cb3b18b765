package database

import "errors"

// Sentinel errors for the database registry (spec.md §7). These mirror
// table's shapes one layer up; host bindings re-wrap them against the
// module-root taxonomy in errors.go rather than importing table directly.
var (
	// ErrDuplicateTable is returned by AddTable when the name is taken.
	ErrDuplicateTable = errors.New("database: duplicate table name")

	// ErrNotFound is returned by Get/GetMut/RemoveTableStrict when no table
	// with that name is registered.
	ErrNotFound = errors.New("database: table not found")
)

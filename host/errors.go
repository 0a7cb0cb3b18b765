package host

import (
	"errors"

	"github.com/arrowdb/arrowdb"
	"github.com/arrowdb/arrowdb/database"
	"github.com/arrowdb/arrowdb/parquet"
	"github.com/arrowdb/arrowdb/query"
	"github.com/arrowdb/arrowdb/table"
)

// Re-exported so that callers of either host binding can compare error
// kinds with errors.Is/errors.As against the single taxonomy in the
// module root's errors.go (spec.md §7), without importing column, table,
// database, parquet or query directly.
var (
	ErrNotFound              = arrowdb.ErrNotFound
	ErrDuplicateTable        = arrowdb.ErrDuplicateTable
	ErrInvalidArgument       = arrowdb.ErrInvalidArgument
	ErrInconsistentRowCounts = arrowdb.ErrInconsistentRowCounts
)

// TranslateError maps an error surfaced by a core package (column, table,
// database, parquet, query) to its module-root equivalent. Both host
// bindings call this at their boundary so a caller on either side of the
// sandbox/Flight SQL split only ever needs to know about one error
// taxonomy.
func TranslateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound), errors.Is(err, table.ErrNotFound):
		return arrowdb.ErrNotFound
	case errors.Is(err, database.ErrDuplicateTable):
		return arrowdb.ErrDuplicateTable
	case errors.Is(err, table.ErrDuplicateName):
		return arrowdb.ErrDuplicateName
	case errors.Is(err, table.ErrOutOfBounds):
		return arrowdb.ErrOutOfBounds
	case errors.Is(err, query.ErrInvalidArgument):
		return arrowdb.ErrInvalidArgument
	case errors.Is(err, query.ErrInconsistentRowCounts),
		errors.Is(err, table.ErrInconsistentRowCounts),
		errors.Is(err, parquet.ErrInconsistentRowCounts):
		return arrowdb.ErrInconsistentRowCounts
	}

	switch e := err.(type) {
	case *query.SqlError:
		return &arrowdb.SqlError{Message: e.Message, Position: e.Position}
	case *query.ExecutionError:
		return &arrowdb.ExecutionError{Message: e.Message}
	case *parquet.UnsupportedTypeError:
		return &arrowdb.UnsupportedTypeError{Description: e.Description}
	case *table.TypeMismatchError:
		return &arrowdb.TypeMismatchError{Column: e.Column, Declared: e.Declared, Got: e.Got}
	case *table.RowCountMismatchError:
		return &arrowdb.RowCountMismatchError{Column: e.Column, Expected: e.Expected, Got: e.Got}
	}
	return err
}

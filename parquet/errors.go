package parquet

import "errors"

// ErrInconsistentRowCounts is returned by WriteParquet when the table being
// exported is in pending state (spec.md §4.4's InconsistentRowCounts kind).
var ErrInconsistentRowCounts = errors.New("parquet: inconsistent row counts")

// UnsupportedTypeError is returned by ReadParquet when a column's Parquet
// logical type (surfaced to us as its decoded Arrow type) has no scalar
// mapping in types.ScalarType (spec.md §3/§4.4's UnsupportedType kind).
type UnsupportedTypeError struct {
	Description string
}

func (e *UnsupportedTypeError) Error() string {
	return "parquet: unsupported type: " + e.Description
}

// Package table implements ArrowDB's Table (spec.md §4.2): a named,
// ordered collection of columns that share a row count invariant, with a
// pending-state discipline that lets callers mutate one column at a time
// without paying for cross-column atomicity.
package table

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/arrowdb/arrowdb/column"
	"github.com/arrowdb/arrowdb/types"
)

// State is the table's position in the empty -> consistent -> pending -> ...
// lifecycle from spec.md §4.2.
type State int

const (
	// Empty: the table has no columns (row count is 0 by definition).
	Empty State = iota
	// Consistent: every column has the same logical length.
	Consistent
	// Pending: at least one column's length disagrees with the others,
	// following a per-column mutation that was not mirrored to every
	// column. Only Snapshot (and anything built on it) rejects this state;
	// the table remains otherwise fully usable.
	Pending
)

// Table is a named, ordered list of columns. A *Table is not internally
// synchronized: callers serialize access to one Table through
// database.Database's per-entry lock, exactly as column.Column expects
// callers to serialize through Table.
type Table struct {
	name    string
	columns []*column.Column
}

// New creates an empty table.
func New(name string) *Table {
	return &Table{name: name}
}

func (t *Table) Name() string      { return t.name }
func (t *Table) NumColumns() int   { return len(t.columns) }

// ColumnNames returns the table's column names in their current order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name()
	}
	return names
}

// ColumnIndex returns the position of the named column, or (-1, false) if
// absent.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.columns {
		if c.Name() == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns the column at index, bounds-checked.
func (t *Table) Column(index int) (*column.Column, error) {
	if index < 0 || index >= len(t.columns) {
		return nil, ErrOutOfBounds
	}
	return t.columns[index], nil
}

// RowCount returns the table's nominal row count: the first column's
// current length, or 0 if the table has no columns. While the table is
// Pending this is only one of several disagreeing lengths; callers that
// need the authoritative count must first resolve to Consistent (e.g. via
// Snapshot, which fails loudly rather than guessing).
func (t *Table) RowCount() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// State reports the table's current position in the lifecycle.
func (t *Table) State() State {
	if len(t.columns) == 0 {
		return Empty
	}
	want := t.columns[0].Len()
	for _, c := range t.columns[1:] {
		if c.Len() != want {
			return Pending
		}
	}
	return Consistent
}

// AddColumn inserts a new column at index. The new column's array must
// have a length equal to the table's current row count, unless the table
// is empty, in which case the array establishes the row count.
func (t *Table) AddColumn(index int, name string, typ types.ScalarType, nullable bool, initial arrow.Array) error {
	if index < 0 || index > len(t.columns) {
		return ErrOutOfBounds
	}
	if _, exists := t.ColumnIndex(name); exists {
		return ErrDuplicateName
	}

	got, ok := types.ScalarTypeFromArrow(initial.DataType())
	if !ok || got != typ {
		gotName := "unmappable"
		if ok {
			gotName = got.String()
		}
		return &TypeMismatchError{Column: name, Declared: typ.String(), Got: gotName}
	}

	if len(t.columns) > 0 {
		want := t.RowCount()
		if initial.Len() != want {
			return &RowCountMismatchError{Column: name, Expected: want, Got: initial.Len()}
		}
	}

	col := column.New(name, typ, nullable)
	if err := col.Append(initial); err != nil {
		return translateColumnErr(name, err)
	}

	t.columns = append(t.columns, nil)
	copy(t.columns[index+1:], t.columns[index:])
	t.columns[index] = col
	return nil
}

// DeleteColumn removes the column at index. If it was the last remaining
// column, the table's row count resets to zero (this repository's decision
// on spec.md §9's open question: see DESIGN.md). The removed column's
// backing buffers are released.
func (t *Table) DeleteColumn(index int) error {
	if index < 0 || index >= len(t.columns) {
		return ErrOutOfBounds
	}
	t.columns[index].Release()
	t.columns = append(t.columns[:index], t.columns[index+1:]...)
	return nil
}

// Release drops every column's reference to its backing buffers. Called by
// database.Database when a table is removed.
func (t *Table) Release() {
	for _, c := range t.columns {
		c.Release()
	}
	t.columns = nil
}

// AppendColumnData adds rows to one column. It does not check the
// table-wide row-count invariant: that check happens only at Snapshot time
// (spec.md §4.2's pending-state policy).
func (t *Table) AppendColumnData(index int, arr arrow.Array) error {
	col, err := t.Column(index)
	if err != nil {
		return err
	}
	if err := col.Append(arr); err != nil {
		return translateColumnErr(col.Name(), err)
	}
	return nil
}

// InsertColumnData inserts rows into one column at row, splitting its host
// chunk zero-copy.
func (t *Table) InsertColumnData(index, row int, arr arrow.Array) error {
	col, err := t.Column(index)
	if err != nil {
		return err
	}
	if err := col.InsertAt(row, arr); err != nil {
		return translateColumnErr(col.Name(), err)
	}
	return nil
}

// UpdateColumnData replaces exactly one row in one column.
func (t *Table) UpdateColumnData(index, row int, arr arrow.Array) error {
	col, err := t.Column(index)
	if err != nil {
		return err
	}
	if err := col.UpdateAt(row, arr); err != nil {
		return translateColumnErr(col.Name(), err)
	}
	return nil
}

// DeleteColumnData removes rows [start, end) from one column.
func (t *Table) DeleteColumnData(index, start, end int) error {
	col, err := t.Column(index)
	if err != nil {
		return err
	}
	if err := col.DeleteRange(start, end); err != nil {
		return translateColumnErr(col.Name(), err)
	}
	return nil
}

// Snapshot assembles a consistent, zero-copy columnar view of the table's
// current columns: an arrow.Table whose per-column data is the column
// store's existing chunk list (arrow.Chunked), not a concatenated copy.
// Returns ErrInconsistentRowCounts if the table is Pending.
func (t *Table) Snapshot() (arrow.Table, error) {
	if t.State() == Pending {
		return nil, ErrInconsistentRowCounts
	}

	rowCount := int64(t.RowCount())
	fields := make([]arrow.Field, len(t.columns))
	cols := make([]arrow.Column, len(t.columns))
	for i, c := range t.columns {
		field := arrow.Field{Name: c.Name(), Type: typeOf(c), Nullable: c.Nullable()}
		fields[i] = field

		chunks := c.Chunks()
		arrs := make([]arrow.Array, len(chunks))
		for j, ch := range chunks {
			arrs[j] = ch.Array
		}
		chunked := arrow.NewChunked(field.Type, arrs)
		cols[i] = *arrow.NewColumn(field, chunked)
		chunked.Release()
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewTable(schema, cols, rowCount), nil
}

func typeOf(c *column.Column) arrow.DataType {
	f := types.Field{Name: c.Name(), Type: c.TypeTag(), Nullable: c.Nullable()}
	// Timestamp timezone and Decimal precision/scale are not tracked by
	// column.Column itself (it only carries the scalar tag); callers that
	// need those refinements read them from the first chunk's concrete
	// arrow.DataType instead of the tag-only mapping.
	if chunks := c.Chunks(); len(chunks) > 0 {
		return chunks[0].Array.DataType()
	}
	return f.ArrowType()
}

func translateColumnErr(colName string, err error) error {
	if me, ok := err.(*column.TypeMismatchError); ok {
		return &TypeMismatchError{Column: me.Column, Declared: me.Declared, Got: me.Got}
	}
	if err == column.ErrOutOfBounds {
		return ErrOutOfBounds
	}
	return err
}

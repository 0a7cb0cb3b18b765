// Package column implements ArrowDB's column store: a named, typed column
// as an ordered sequence of immutable, zero-copy chunks (spec.md §4.1).
//
// A *Column is not internally synchronized. Callers mutate a column only
// while holding the owning Table's exclusive lock (database.Database.GetMut
// arranges this); this mirrors the teacher's catalog.Table contract of
// "implementations must be goroutine-safe", pushed one layer up since here
// the synchronizing layer is the Table/Database, not the column itself.
package column

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowdb/arrowdb/types"
)

// CompactChunkThreshold and CompactMinChunkRows are the default fragmentation
// thresholds from spec.md §4.1: compact when there are more than
// CompactChunkThreshold chunks, or when any chunk has fewer than
// CompactMinChunkRows rows.
const (
	CompactChunkThreshold = 16
	CompactMinChunkRows   = 64
)

// Column is one logical column: a name, a scalar type, a nullability flag,
// and an ordered list of chunks whose lengths sum to the column's logical
// length.
type Column struct {
	name     string
	typ      types.ScalarType
	nullable bool
	chunks   []Chunk
	length   int
}

// New creates an empty column of the given name, type, and nullability.
func New(name string, typ types.ScalarType, nullable bool) *Column {
	return &Column{name: name, typ: typ, nullable: nullable}
}

func (c *Column) Name() string             { return c.name }
func (c *Column) TypeTag() types.ScalarType { return c.typ }
func (c *Column) Nullable() bool            { return c.nullable }
func (c *Column) Len() int                  { return c.length }

// Chunks returns the column's current chunk list. The slice and its
// elements are owned by the Column; callers must not Release them.
func (c *Column) Chunks() []Chunk {
	return c.chunks
}

// Release drops this column's reference to every chunk's backing buffer.
// Callers that own a Column outside of a Table/Database lifecycle (tests,
// mainly) must call this exactly once when done.
func (c *Column) Release() {
	for _, ch := range c.chunks {
		ch.Release()
	}
	c.chunks = nil
	c.length = 0
}

func (c *Column) checkType(arr arrow.Array) error {
	got, ok := types.ScalarTypeFromArrow(arr.DataType())
	if !ok || got != c.typ {
		gotName := "unmappable"
		if ok {
			gotName = got.String()
		}
		return &TypeMismatchError{Column: c.name, Declared: c.typ.String(), Got: gotName}
	}
	return nil
}

// TypeMismatchError is returned by Append/InsertAt/UpdateAt when an
// incoming array's scalar type disagrees with the column's declared type
// (spec.md §7's TypeMismatch kind). The table package translates it into
// its own exported table.TypeMismatchError.
type TypeMismatchError struct {
	Column   string
	Declared string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("column %s: declared type %s, got %s", e.Column, e.Declared, e.Got)
}

// ErrOutOfBounds is returned by InsertAt/UpdateAt/DeleteRange when the
// requested row index is outside the column's current length
// (spec.md §7's OutOfBounds kind).
var ErrOutOfBounds = errors.New("column: index out of bounds")

// Append extends the chunk list with arr. O(1) in the number of existing
// rows: no existing chunk is touched.
func (c *Column) Append(arr arrow.Array) error {
	if err := c.checkType(arr); err != nil {
		return err
	}
	arr.Retain()
	c.chunks = append(c.chunks, Chunk{Array: arr})
	c.length += arr.Len()
	return nil
}

// locate returns the index of the chunk containing row, and the row's
// offset within that chunk. row must be in [0, length).
func (c *Column) locate(row int) (chunkIdx, offset int) {
	acc := 0
	for i, ch := range c.chunks {
		n := ch.Len()
		if row < acc+n {
			return i, row - acc
		}
		acc += n
	}
	return len(c.chunks), 0
}

// InsertAt splits the chunk containing row into a prefix and suffix
// zero-copy slice and inserts arr between them. row == Len() appends past
// the end of the last chunk (equivalent to Append).
func (c *Column) InsertAt(row int, arr arrow.Array) error {
	if row < 0 || row > c.length {
		return ErrOutOfBounds
	}
	if err := c.checkType(arr); err != nil {
		return err
	}
	if row == c.length {
		return c.Append(arr)
	}

	idx, offset := c.locate(row)
	host := c.chunks[idx]
	prefix := host.slice(0, offset)
	suffix := host.slice(offset, host.Len())
	host.Release()

	arr.Retain()
	mid := Chunk{Array: arr}

	replacement := make([]Chunk, 0, len(c.chunks)+2)
	replacement = append(replacement, c.chunks[:idx]...)
	replacement = appendNonEmpty(replacement, prefix)
	replacement = append(replacement, mid)
	replacement = appendNonEmpty(replacement, suffix)
	replacement = append(replacement, c.chunks[idx+1:]...)

	c.chunks = replacement
	c.length += arr.Len()
	return nil
}

// UpdateAt replaces exactly one row, splitting the host chunk into prefix,
// a new single-row chunk, and a suffix starting at row+1. arr must have
// exactly one row.
func (c *Column) UpdateAt(row int, arr arrow.Array) error {
	if arr.Len() != 1 {
		return fmt.Errorf("column: UpdateAt requires a single-row array, got %d rows", arr.Len())
	}
	if row < 0 || row >= c.length {
		return ErrOutOfBounds
	}
	if err := c.checkType(arr); err != nil {
		return err
	}

	idx, offset := c.locate(row)
	host := c.chunks[idx]
	prefix := host.slice(0, offset)
	suffix := host.slice(offset+1, host.Len())
	host.Release()

	arr.Retain()
	mid := Chunk{Array: arr}

	replacement := make([]Chunk, 0, len(c.chunks)+2)
	replacement = append(replacement, c.chunks[:idx]...)
	replacement = appendNonEmpty(replacement, prefix)
	replacement = append(replacement, mid)
	replacement = appendNonEmpty(replacement, suffix)
	replacement = append(replacement, c.chunks[idx+1:]...)

	c.chunks = replacement
	// length is unchanged: one row replaced by one row.
	return nil
}

// DeleteRange logically removes [start, end) by rewriting the chunk list
// as prefix + suffix. end may equal Len(). Zero-copy: no surviving byte is
// copied.
func (c *Column) DeleteRange(start, end int) error {
	if start < 0 || end < start || end > c.length {
		return ErrOutOfBounds
	}
	if start == end {
		return nil
	}

	startIdx, startOff := c.locate(start)
	var endIdx, endOff int
	if end == c.length {
		endIdx, endOff = len(c.chunks), 0
	} else {
		endIdx, endOff = c.locate(end)
	}

	replacement := make([]Chunk, 0, len(c.chunks))
	replacement = append(replacement, c.chunks[:startIdx]...)

	if startIdx == endIdx {
		host := c.chunks[startIdx]
		pre := host.slice(0, startOff)
		post := host.slice(endOff, host.Len())
		host.Release()
		replacement = appendNonEmpty(replacement, pre)
		replacement = appendNonEmpty(replacement, post)
	} else {
		preHost := c.chunks[startIdx]
		pre := preHost.slice(0, startOff)
		preHost.Release()
		replacement = appendNonEmpty(replacement, pre)

		for i := startIdx + 1; i < endIdx; i++ {
			c.chunks[i].Release()
		}

		if endIdx < len(c.chunks) {
			postHost := c.chunks[endIdx]
			post := postHost.slice(endOff, postHost.Len())
			postHost.Release()
			replacement = appendNonEmpty(replacement, post)
			replacement = append(replacement, c.chunks[endIdx+1:]...)
		}
	}

	c.chunks = replacement
	c.length -= (end - start)
	return nil
}

// Compact concatenates all chunks into a single array if fragmentation
// exceeds the default threshold (spec.md §4.1). It is a no-op, not an
// error, when the column is already within the threshold. Compaction never
// changes any observable row value.
func (c *Column) Compact(alloc memory.Allocator) error {
	if !c.needsCompact() {
		return nil
	}
	if len(c.chunks) <= 1 {
		return nil
	}

	arrs := make([]arrow.Array, len(c.chunks))
	for i, ch := range c.chunks {
		arrs[i] = ch.Array
	}
	merged, err := array.Concatenate(arrs, alloc)
	if err != nil {
		return fmt.Errorf("column %s: compact: %w", c.name, err)
	}

	for _, ch := range c.chunks {
		ch.Release()
	}
	c.chunks = []Chunk{{Array: merged}}
	return nil
}

func (c *Column) needsCompact() bool {
	if len(c.chunks) > CompactChunkThreshold {
		return true
	}
	for _, ch := range c.chunks {
		if ch.Len() < CompactMinChunkRows {
			return true
		}
	}
	return false
}

// At returns the value at row and whether it is non-null. The returned
// value's Go type follows the column's scalar type: bool, intNN, uintNN,
// float32/64, string, a copied []byte for Binary, arrow.Date32 for Date32,
// arrow.Timestamp for Timestamp, and decimal128.Num for Decimal.
func (c *Column) At(row int) (value any, valid bool) {
	if row < 0 || row >= c.length {
		return nil, false
	}
	idx, offset := c.locate(row)
	arr := c.chunks[idx].Array
	if arr.IsNull(offset) {
		return nil, false
	}
	return valueAt(arr, offset), true
}

func valueAt(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...)
	case *array.Date32:
		return a.Value(i)
	case *array.Timestamp:
		return a.Value(i)
	case *array.Decimal128:
		return a.Value(i)
	default:
		return nil
	}
}

func appendNonEmpty(dst []Chunk, ch Chunk) []Chunk {
	if ch.Len() == 0 {
		ch.Release()
		return dst
	}
	return append(dst, ch)
}

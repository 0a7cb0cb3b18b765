package column

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Chunk is one immutable, contiguous slice of a column's values. It wraps
// an arrow.Array produced either by decoding (Parquet import), by a host
// call, or by slicing an existing chunk's backing buffer.
//
// A Chunk's Array is retained for the lifetime of the Chunk; Release must
// be called exactly once when the chunk is no longer reachable from any
// Column (a Column does this itself as chunks are dropped by mutation).
type Chunk struct {
	Array arrow.Array
}

// Len returns the chunk's row count.
func (c Chunk) Len() int {
	if c.Array == nil {
		return 0
	}
	return c.Array.Len()
}

// Release drops this chunk's reference to its backing buffer.
func (c Chunk) Release() {
	if c.Array != nil {
		c.Array.Release()
	}
}

// slice returns a zero-copy view over c.Array[start:end), retaining the
// shared backing buffer. The caller owns the returned Chunk and must
// Release it.
func (c Chunk) slice(start, end int) Chunk {
	if start == 0 && end == c.Len() {
		c.Array.Retain()
		return Chunk{Array: c.Array}
	}
	return Chunk{Array: array.NewSlice(c.Array, int64(start), int64(end))}
}

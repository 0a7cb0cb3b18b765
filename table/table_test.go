package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowdb/arrowdb/types"
)

func i32(alloc memory.Allocator, vals ...int32) *array.Int32 {
	b := array.NewInt32Builder(alloc)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewInt32Array()
}

func str(alloc memory.Allocator, vals ...string) *array.String {
	b := array.NewStringBuilder(alloc)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewStringArray()
}

func TestAddColumnEstablishesRowCount(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tb := New("users")
	defer tb.Release()
	ids := i32(alloc, 1, 2, 3, 4)
	defer ids.Release()

	if err := tb.AddColumn(0, "id", types.Int32, false, ids); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if tb.RowCount() != 4 {
		t.Fatalf("RowCount() = %d, want 4", tb.RowCount())
	}
	if tb.State() != Consistent {
		t.Fatalf("State() = %v, want Consistent", tb.State())
	}

	names := str(alloc, "a", "b", "c")
	defer names.Release()
	if err := tb.AddColumn(1, "name", types.Utf8, false, names); err == nil {
		t.Fatal("expected RowCountMismatchError for a short column")
	} else if _, ok := err.(*RowCountMismatchError); !ok {
		t.Fatalf("got %T, want *RowCountMismatchError", err)
	}

	snap, err := tb.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Release()
}

func TestAddColumnDuplicateName(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tb := New("t")
	defer tb.Release()
	ids := i32(alloc, 1)
	defer ids.Release()
	if err := tb.AddColumn(0, "id", types.Int32, false, ids); err != nil {
		t.Fatal(err)
	}
	dup := i32(alloc, 2)
	defer dup.Release()
	if err := tb.AddColumn(1, "id", types.Int32, false, dup); err != ErrDuplicateName {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestAddColumnTypeMismatch(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tb := New("t")
	defer tb.Release()
	ids := i32(alloc, 1, 2)
	defer ids.Release()
	if err := tb.AddColumn(0, "id", types.Int64, false, ids); err == nil {
		t.Fatal("expected TypeMismatchError")
	} else if _, ok := err.(*TypeMismatchError); !ok {
		t.Fatalf("got %T, want *TypeMismatchError", err)
	}
}

func TestPendingStateAndSnapshot(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tb := New("t")
	defer tb.Release()
	ids := i32(alloc, 1, 2, 3)
	defer ids.Release()
	names := str(alloc, "a", "b", "c")
	defer names.Release()
	if err := tb.AddColumn(0, "id", types.Int32, false, ids); err != nil {
		t.Fatal(err)
	}
	if err := tb.AddColumn(1, "name", types.Utf8, false, names); err != nil {
		t.Fatal(err)
	}

	more := i32(alloc, 4)
	defer more.Release()
	if err := tb.AppendColumnData(0, more); err != nil {
		t.Fatalf("AppendColumnData: %v", err)
	}

	if tb.State() != Pending {
		t.Fatalf("State() = %v, want Pending", tb.State())
	}
	if _, err := tb.Snapshot(); err != ErrInconsistentRowCounts {
		t.Fatalf("Snapshot err = %v, want ErrInconsistentRowCounts", err)
	}

	moreNames := str(alloc, "d")
	defer moreNames.Release()
	if err := tb.AppendColumnData(1, moreNames); err != nil {
		t.Fatal(err)
	}

	if tb.State() != Consistent {
		t.Fatalf("State() = %v, want Consistent after matching append", tb.State())
	}
	snap, err := tb.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Release()
	if snap.NumRows() != 4 {
		t.Errorf("NumRows() = %d, want 4", snap.NumRows())
	}
}

func TestDeleteColumnResetsRowCountWhenEmpty(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tb := New("t")
	defer tb.Release()
	ids := i32(alloc, 1, 2)
	defer ids.Release()
	names := str(alloc, "a", "b")
	defer names.Release()
	tb.AddColumn(0, "id", types.Int32, false, ids)
	tb.AddColumn(1, "name", types.Utf8, false, names)

	if err := tb.DeleteColumn(0); err != nil {
		t.Fatal(err)
	}
	if tb.RowCount() != 2 {
		t.Fatalf("RowCount() = %d, want 2 (surviving column intact)", tb.RowCount())
	}
	if tb.State() != Consistent {
		t.Fatalf("State() = %v, want Consistent", tb.State())
	}

	if err := tb.DeleteColumn(0); err != nil {
		t.Fatal(err)
	}
	if tb.NumColumns() != 0 {
		t.Fatalf("NumColumns() = %d, want 0", tb.NumColumns())
	}
	if tb.RowCount() != 0 {
		t.Fatalf("RowCount() = %d, want 0 after last column removed", tb.RowCount())
	}
	if tb.State() != Empty {
		t.Fatalf("State() = %v, want Empty", tb.State())
	}
}

func TestInsertColumnDataThenRead(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tb := New("t")
	defer tb.Release()
	ids := i32(alloc, 1, 2, 3, 4)
	defer ids.Release()
	tb.AddColumn(0, "id", types.Int32, false, ids)

	mid := i32(alloc, 99)
	defer mid.Release()
	if err := tb.InsertColumnData(0, 2, mid); err != nil {
		t.Fatalf("InsertColumnData: %v", err)
	}

	col, _ := tb.Column(0)
	v, valid := col.At(2)
	if !valid || v.(int32) != 99 {
		t.Errorf("At(2) = %v, want 99", v)
	}
	v1, _ := col.At(1)
	if v1.(int32) != 2 {
		t.Errorf("At(1) = %v, want 2 (unchanged)", v1)
	}
	v5, _ := col.At(4)
	if v5.(int32) != 4 {
		t.Errorf("At(4) = %v, want 4 (shifted, unchanged value)", v5)
	}
}

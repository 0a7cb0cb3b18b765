package parquet

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowdb/arrowdb/table"
	"github.com/arrowdb/arrowdb/types"
)

func buildUsersTable(alloc memory.Allocator) *table.Table {
	idb := array.NewInt32Builder(alloc)
	idb.AppendValues([]int32{1, 2, 3}, nil)
	idArr := idb.NewInt32Array()
	idb.Release()
	defer idArr.Release()

	nb := array.NewStringBuilder(alloc)
	nb.AppendValues([]string{"a", "b", "c"}, []bool{true, false, true})
	nameArr := nb.NewStringArray()
	nb.Release()
	defer nameArr.Release()

	tbl := table.New("users")
	if err := tbl.AddColumn(0, "id", types.Int32, false, idArr); err != nil {
		panic(err)
	}
	if err := tbl.AddColumn(1, "name", types.Utf8, true, nameArr); err != nil {
		panic(err)
	}
	return tbl
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tbl := buildUsersTable(alloc)
	defer tbl.Release()

	data, err := WriteParquet(tbl)
	if err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("WriteParquet returned no bytes")
	}

	got, err := ReadParquet("users", data, alloc)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	defer got.Release()

	if got.RowCount() != 3 {
		t.Fatalf("RowCount() = %d, want 3", got.RowCount())
	}
	if got.NumColumns() != 2 {
		t.Fatalf("NumColumns() = %d, want 2", got.NumColumns())
	}

	idCol, err := got.Column(0)
	if err != nil {
		t.Fatal(err)
	}
	v, valid := idCol.At(0)
	if !valid || v.(int32) != 1 {
		t.Errorf("id[0] = %v, valid=%v, want 1", v, valid)
	}

	nameCol, err := got.Column(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, valid := nameCol.At(1); valid {
		t.Error("name[1] should be null after round trip")
	}
	v2, valid2 := nameCol.At(2)
	if !valid2 || v2.(string) != "c" {
		t.Errorf("name[2] = %v, valid=%v, want c", v2, valid2)
	}
}

func TestWriteParquetInconsistentRowCounts(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tbl := buildUsersTable(alloc)
	defer tbl.Release()

	extraBuilder := array.NewInt32Builder(alloc)
	extraBuilder.AppendValues([]int32{9, 9}, nil)
	extraArr := extraBuilder.NewInt32Array()
	extraBuilder.Release()
	defer extraArr.Release()

	if err := tbl.AppendColumnData(0, extraArr); err != nil {
		t.Fatal(err)
	}
	if tbl.State() != table.Pending {
		t.Fatalf("State() = %v, want Pending", tbl.State())
	}

	if _, err := WriteParquet(tbl); err != ErrInconsistentRowCounts {
		t.Fatalf("err = %v, want ErrInconsistentRowCounts", err)
	}
}

// TestWriteParquetMultiChunkTable exercises a table whose columns have each
// accumulated a second chunk (the common shape after an import followed by
// streaming appends), forcing array.NewTableReader to split the snapshot
// into more than one record. WriteParquet previously treated the first such
// record as the whole table and sliced past its bounds.
func TestWriteParquetMultiChunkTable(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tbl := buildUsersTable(alloc)
	defer tbl.Release()

	idb := array.NewInt32Builder(alloc)
	idb.AppendValues([]int32{4, 5}, nil)
	extraID := idb.NewInt32Array()
	idb.Release()
	defer extraID.Release()

	nb := array.NewStringBuilder(alloc)
	nb.AppendValues([]string{"d", "e"}, nil)
	extraName := nb.NewStringArray()
	nb.Release()
	defer extraName.Release()

	if err := tbl.AppendColumnData(0, extraID); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumnData(1, extraName); err != nil {
		t.Fatal(err)
	}
	if tbl.State() != table.Consistent {
		t.Fatalf("State() = %v, want Consistent", tbl.State())
	}

	data, err := WriteParquet(tbl)
	if err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}

	got, err := ReadParquet("users", data, alloc)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	defer got.Release()

	if got.RowCount() != 5 {
		t.Fatalf("RowCount() = %d, want 5", got.RowCount())
	}

	idCol, err := got.Column(0)
	if err != nil {
		t.Fatal(err)
	}
	v, valid := idCol.At(4)
	if !valid || v.(int32) != 5 {
		t.Errorf("id[4] = %v, valid=%v, want 5", v, valid)
	}

	nameCol, err := got.Column(1)
	if err != nil {
		t.Fatal(err)
	}
	v2, valid2 := nameCol.At(3)
	if !valid2 || v2.(string) != "d" {
		t.Errorf("name[3] = %v, valid=%v, want d", v2, valid2)
	}
}

func TestWriteParquetEmptyTable(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	idb := array.NewInt32Builder(alloc)
	idArr := idb.NewInt32Array()
	idb.Release()
	defer idArr.Release()

	tbl := table.New("empty")
	if err := tbl.AddColumn(0, "id", types.Int32, false, idArr); err != nil {
		t.Fatal(err)
	}
	defer tbl.Release()

	data, err := WriteParquet(tbl)
	if err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}

	got, err := ReadParquet("empty", data, alloc)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	defer got.Release()

	if got.RowCount() != 0 {
		t.Fatalf("RowCount() = %d, want 0", got.RowCount())
	}
}

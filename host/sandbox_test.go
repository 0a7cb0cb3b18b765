package host

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zstd"

	"github.com/arrowdb/arrowdb/parquet"
	"github.com/arrowdb/arrowdb/table"
	"github.com/arrowdb/arrowdb/types"
)

func buildParquetBytes(t *testing.T) []byte {
	t.Helper()
	alloc := memory.DefaultAllocator

	idb := array.NewInt32Builder(alloc)
	idb.AppendValues([]int32{1, 2}, nil)
	idArr := idb.NewInt32Array()
	idb.Release()
	defer idArr.Release()

	tbl := table.New("users")
	if err := tbl.AddColumn(0, "id", types.Int32, false, idArr); err != nil {
		t.Fatal(err)
	}
	defer tbl.Release()

	data, err := parquet.WriteParquet(tbl)
	if err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}
	return data
}

func TestHandleReadFileThenQuery(t *testing.T) {
	h, err := New("sandbox")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if err := h.ReadFile("users", buildParquetBytes(t)); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	tables := h.GetTables()
	if len(tables) != 1 || tables[0] != "users" {
		t.Fatalf("GetTables() = %v, want [users]", tables)
	}

	result, err := h.Query("SELECT id FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Data) != 1 {
		t.Fatalf("Data = %v, want one result set", result.Data)
	}
	if result.Pagination != nil {
		t.Error("Pagination should be nil for non-paginated Query")
	}
	rows := result.Data[0].Data
	if len(rows) != 3 {
		t.Fatalf("rows = %v, want header + 2 data rows", rows)
	}
	if rows[0][0] != "id" {
		t.Errorf("header = %v, want [id]", rows[0])
	}

	if err := h.RemoveTable("users"); err != nil {
		t.Fatalf("RemoveTable: %v", err)
	}
	if len(h.GetTables()) != 0 {
		t.Fatal("expected no tables after RemoveTable")
	}
}

func TestHandleQueryPaginated(t *testing.T) {
	h, err := New("sandbox")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if err := h.ReadFile("users", buildParquetBytes(t)); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	result, err := h.QueryPaginated("SELECT id FROM users ORDER BY id", 0, 1, true)
	if err != nil {
		t.Fatalf("QueryPaginated: %v", err)
	}
	if result.Pagination == nil {
		t.Fatal("Pagination should be set for QueryPaginated")
	}
	if result.Pagination.RowsInPage != 1 {
		t.Errorf("RowsInPage = %d, want 1", result.Pagination.RowsInPage)
	}
	if result.Pagination.TotalRows == nil || *result.Pagination.TotalRows != 2 {
		t.Errorf("TotalRows = %v, want 2", result.Pagination.TotalRows)
	}
}

func TestHandleGetSchemasIsValidZstdIPC(t *testing.T) {
	h, err := New("sandbox")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if err := h.ReadFile("users", buildParquetBytes(t)); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	compressed, err := h.GetSchemas()
	if err != nil {
		t.Fatalf("GetSchemas: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("GetSchemas returned no bytes")
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("decompressed schema payload is empty")
	}
}

func TestRemoveTableNotFound(t *testing.T) {
	h, err := New("sandbox")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if err := h.RemoveTable("missing"); err == nil {
		t.Fatal("expected error removing an unregistered table")
	}
}

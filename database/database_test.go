package database

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowdb/arrowdb/table"
	"github.com/arrowdb/arrowdb/types"
)

func newIntTable(alloc memory.Allocator, name string, vals ...int32) *table.Table {
	b := array.NewInt32Builder(alloc)
	b.AppendValues(vals, nil)
	arr := b.NewInt32Array()
	b.Release()
	defer arr.Release()

	tbl := table.New(name)
	if err := tbl.AddColumn(0, "id", types.Int32, false, arr); err != nil {
		panic(err)
	}
	return tbl
}

func TestAddTableDuplicate(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	db := New("main")
	t1 := newIntTable(alloc, "users", 1, 2)
	if err := db.AddTable(t1); err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	t2 := newIntTable(alloc, "users", 3)
	if err := db.AddTable(t2); err != ErrDuplicateTable {
		t.Fatalf("err = %v, want ErrDuplicateTable", err)
	}
	t2.Release()

	db.RemoveTable("users")
}

func TestGetAndGetMutExclusion(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	db := New("main")
	tbl := newIntTable(alloc, "users", 1, 2, 3)
	if err := db.AddTable(tbl); err != nil {
		t.Fatal(err)
	}

	ref, err := db.Get("users")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ref.Table().RowCount() != 3 {
		t.Errorf("RowCount() = %d, want 3", ref.Table().RowCount())
	}
	ref.Release()

	mut, err := db.GetMut("users")
	if err != nil {
		t.Fatalf("GetMut: %v", err)
	}
	mut.Release()

	if dirty := db.DirtyTables(); len(dirty) != 1 || dirty[0] != "users" {
		t.Fatalf("DirtyTables() = %v, want [users]", dirty)
	}
	db.ClearDirty("users")
	if dirty := db.DirtyTables(); len(dirty) != 0 {
		t.Fatalf("DirtyTables() after clear = %v, want []", dirty)
	}

	db.RemoveTable("users")
}

func TestGetNotFound(t *testing.T) {
	db := New("main")
	if _, err := db.Get("missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := db.RemoveTableStrict("missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	db.RemoveTable("missing") // idempotent, must not panic
}

func TestListTablesAndSchemas(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	db := New("main")
	a := newIntTable(alloc, "a", 1)
	b := newIntTable(alloc, "b", 2, 3)
	db.AddTable(a)
	db.AddTable(b)

	names := db.ListTables()
	if len(names) != 2 {
		t.Fatalf("ListTables() = %v, want 2 entries", names)
	}

	schemas := db.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("Schemas() = %v, want 2 entries", schemas)
	}
	for _, s := range schemas {
		if len(s.Fields) != 1 || s.Fields[0].Name != "id" {
			t.Errorf("Schemas()[%s] = %+v, want one 'id' field", s.Name, s.Fields)
		}
	}

	db.RemoveTable("a")
	db.RemoveTable("b")
}

func TestConcurrentDifferentTablesDoNotBlock(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	db := New("main")
	a := newIntTable(alloc, "a", 1)
	b := newIntTable(alloc, "b", 2)
	db.AddTable(a)
	db.AddTable(b)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ref, err := db.GetMut("a")
		if err != nil {
			t.Error(err)
			return
		}
		defer ref.Release()
	}()
	go func() {
		defer wg.Done()
		ref, err := db.GetMut("b")
		if err != nil {
			t.Error(err)
			return
		}
		defer ref.Release()
	}()
	wg.Wait()

	db.RemoveTable("a")
	db.RemoveTable("b")
}

// Package host implements ArrowDB's host bindings (spec.md §4.6): thin
// adapters over the core packages (database, query, parquet) for the two
// deployment shapes spec.md §1 names. Handle is the sandbox binding, for a
// single-threaded in-process host (the browser module); host/flightsql is
// the server binding, for a multithreaded Arrow Flight SQL host.
package host

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowdb/arrowdb/database"
	"github.com/arrowdb/arrowdb/internal/serialize"
	"github.com/arrowdb/arrowdb/parquet"
	"github.com/arrowdb/arrowdb/query"
)

// Handle is the sandbox host binding: a single named Database plus the
// Query Engine Adapter that keeps it queryable, matching spec.md §4.6's
// `new(name)`, `read_file`, `get_tables`, `get_schemas`, `remove_table`,
// `query`, `query_paginated` verbatim. It does no I/O of its own beyond
// what the core packages already do, so it is safe to call from a single
// goroutine with no preemption, the browser module's scheduling model
// (spec.md §5).
type Handle struct {
	db      *database.Database
	adapter *query.Adapter
	alloc   memory.Allocator
}

// New creates a Handle for a fresh, empty database named name.
func New(name string) (*Handle, error) {
	alloc := memory.DefaultAllocator
	db := database.New(name)
	adapter, err := query.New(db, alloc, nil)
	if err != nil {
		return nil, fmt.Errorf("host: new adapter: %w", err)
	}
	return &Handle{db: db, adapter: adapter, alloc: alloc}, nil
}

// Close releases the underlying query engine connection.
func (h *Handle) Close() error {
	return h.adapter.Close()
}

// ReadFile decodes a Parquet byte stream and registers the resulting Table
// under name (spec.md §4.6's `read_file`). Per spec.md §6, when name is
// derived from a filename it is the caller's responsibility to strip the
// `.parquet` extension before calling ReadFile; this binding takes the
// table name as given.
func (h *Handle) ReadFile(name string, data []byte) error {
	tbl, err := parquet.ReadParquet(name, data, h.alloc)
	if err != nil {
		return TranslateError(err)
	}
	if err := h.db.AddTable(tbl); err != nil {
		tbl.Release()
		return TranslateError(err)
	}
	return nil
}

// GetTables returns the names of every table currently registered.
func (h *Handle) GetTables() []string {
	return h.db.ListTables()
}

// GetSchemas returns every registered table's column schema, Arrow
// IPC-serialized and ZStandard-compressed: one record batch with columns
// (table_name, column_name, column_type, nullable), one row per column of
// every table. This mirrors the teacher's catalog-snapshot wire format
// (internal/serialize.SerializeCatalog), generalized from Flight SQL's
// catalog/schema/table hierarchy to ArrowDB's flat table namespace.
func (h *Handle) GetSchemas() ([]byte, error) {
	schemas := h.db.Schemas()

	outSchema := arrow.NewSchema([]arrow.Field{
		{Name: "table_name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "column_name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "column_type", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "nullable", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
	}, nil)

	builder := array.NewRecordBuilder(h.alloc, outSchema)
	defer builder.Release()

	tableNameBuilder := builder.Field(0).(*array.StringBuilder)
	columnNameBuilder := builder.Field(1).(*array.StringBuilder)
	columnTypeBuilder := builder.Field(2).(*array.StringBuilder)
	nullableBuilder := builder.Field(3).(*array.BooleanBuilder)

	for _, s := range schemas {
		for _, f := range s.Fields {
			tableNameBuilder.Append(s.Name)
			columnNameBuilder.Append(f.Name)
			columnTypeBuilder.Append(f.Type.String())
			nullableBuilder.Append(f.Nullable)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(outSchema), ipc.WithAllocator(h.alloc))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("host: write IPC record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("host: close IPC writer: %w", err)
	}

	compressor, err := serialize.NewCompressor()
	if err != nil {
		return nil, fmt.Errorf("host: new compressor: %w", err)
	}
	defer compressor.Close()

	return compressor.Compress(buf.Bytes())
}

// RemoveTable unregisters name, releasing its backing memory. Returns
// ErrNotFound if name was never registered (spec.md §4.6's `remove_table`
// is the strict variant; hosts that need "already gone" to be a no-op
// should call GetTables first).
func (h *Handle) RemoveTable(name string) error {
	return TranslateError(h.db.RemoveTableStrict(name))
}

// ColumnSchema describes one column of one result set, as returned inside
// QueryResult.Data (spec.md §6's `data[i].schema`).
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultSet is one rendered result table: its schema plus a string grid
// whose first row is the header (spec.md §6: "data[0].data[0] is the
// header row").
type ResultSet struct {
	Schema []ColumnSchema `json:"schema"`
	Data   [][]string     `json:"data"`
}

// QueryResult is the sandbox binding's response shape for `query` and
// `query_paginated` (spec.md §6): a list of result sets (always exactly one,
// for this engine) plus pagination metadata, present only for
// `query_paginated`.
type QueryResult struct {
	Data       []ResultSet             `json:"data"`
	Pagination *query.PaginationWindow `json:"pagination,omitempty"`
}

// Query executes sqlText against every registered table and renders the
// full result (spec.md §4.6's `query`).
func (h *Handle) Query(sqlText string) (QueryResult, error) {
	tbl, err := h.adapter.Execute(context.Background(), sqlText)
	if err != nil {
		return QueryResult{}, TranslateError(err)
	}
	defer tbl.Release()

	return QueryResult{Data: []ResultSet{renderResultSet(tbl)}}, nil
}

// QueryPaginated executes sqlText restricted to one page of results
// (spec.md §4.6's `query_paginated`).
func (h *Handle) QueryPaginated(sqlText string, page, pageSize int, includeTotal bool) (QueryResult, error) {
	tbl, win, err := h.adapter.ExecutePaginated(context.Background(), sqlText, page, pageSize, includeTotal)
	if err != nil {
		return QueryResult{}, TranslateError(err)
	}
	defer tbl.Release()

	return QueryResult{Data: []ResultSet{renderResultSet(tbl)}, Pagination: &win}, nil
}

func renderResultSet(tbl arrow.Table) ResultSet {
	schema := tbl.Schema()
	cols := make([]ColumnSchema, schema.NumFields())
	for i := range cols {
		f := schema.Field(i)
		cols[i] = ColumnSchema{Name: f.Name, Type: f.Type.String()}
	}
	return ResultSet{Schema: cols, Data: query.RenderTable(tbl)}
}

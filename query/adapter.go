// Package query implements ArrowDB's Query Engine Adapter (spec.md §4.5): it
// wraps DuckDB, accessed through database/sql and the duckdb-go/v2 driver,
// registering a database.Database's tables as queryable relations and
// executing arbitrary SQL against them.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/errgroup"

	"github.com/arrowdb/arrowdb/database"
	"github.com/arrowdb/arrowdb/table"
	"github.com/arrowdb/arrowdb/types"
)

// insertBatchRows bounds the number of rows placed in a single generated
// INSERT statement, so that registering a large table does not produce one
// unbounded SQL string.
const insertBatchRows = 1000

// Adapter wraps one DuckDB in-memory connection and keeps it in sync with
// a database.Database. The same *Adapter is shared by every caller
// (sandbox or Flight SQL) of the Database it was built for; mu serializes
// the part of refresh/execute that touches the DuckDB connection, since a
// single database/sql.DB handle for DuckDB is not safe for overlapping
// statement execution the way the registry's per-table locks are.
type Adapter struct {
	db       *sql.DB
	registry *database.Database
	alloc    memory.Allocator
	logger   *slog.Logger

	mu    sync.Mutex
	known map[string]bool // table names currently registered with DuckDB
}

// New opens an in-memory DuckDB connection and returns an Adapter bound to
// registry. alloc defaults to memory.DefaultAllocator if nil; logger
// defaults to slog.Default() if nil (spec.md's ambient-stack logging
// convention, matching the teacher's ServerConfig.Logger).
func New(registry *database.Database, alloc memory.Allocator, logger *slog.Logger) (*Adapter, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("query: open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("query: ping duckdb: %w", err)
	}

	return &Adapter{
		db:       db,
		registry: registry,
		alloc:    alloc,
		logger:   logger,
		known:    make(map[string]bool),
	}, nil
}

// Close releases the underlying DuckDB connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// PaginationWindow is the result-delivery metadata from spec.md §3:
// {page, page_size, rows_in_page, total_rows?, total_pages?, has_next,
// has_prev}. TotalRows and TotalPages are nil unless the caller asked for
// include_total.
type PaginationWindow struct {
	Page        int
	PageSize    int
	RowsInPage  int
	TotalRows   *int64
	TotalPages  *int64
	HasNext     bool
	HasPrev     bool
}

// Execute refreshes dirty tables, then plans and executes sqlText,
// returning the full result as a single-chunk arrow.Table built from the
// scanned rows.
func (a *Adapter) Execute(ctx context.Context, sqlText string) (arrow.Table, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, ErrInvalidArgument
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.refreshLocked(ctx); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, classifyDuckDBError(err)
	}
	defer rows.Close()

	return rowsToArrowTable(a.alloc, rows)
}

// ExecutePaginated runs sqlText restricted to one page of results
// (spec.md §4.5). When includeTotal is true, a secondary
// `SELECT COUNT(*) FROM (sqlText)` runs concurrently with the paginated
// query to populate TotalRows/TotalPages.
func (a *Adapter) ExecutePaginated(ctx context.Context, sqlText string, page, pageSize int, includeTotal bool) (arrow.Table, PaginationWindow, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, PaginationWindow{}, ErrInvalidArgument
	}
	if page < 0 || pageSize < 1 || pageSize > 100_000 {
		return nil, PaginationWindow{}, ErrInvalidArgument
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.refreshLocked(ctx); err != nil {
		return nil, PaginationWindow{}, err
	}

	pagedSQL := fmt.Sprintf("SELECT * FROM (%s) AS _arrowdb_page LIMIT %d OFFSET %d", sqlText, pageSize, page*pageSize)

	var tbl arrow.Table
	var total int64
	var haveTotal bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.db.QueryContext(gctx, pagedSQL)
		if err != nil {
			return classifyDuckDBError(err)
		}
		defer rows.Close()
		t, err := rowsToArrowTable(a.alloc, rows)
		if err != nil {
			return err
		}
		tbl = t
		return nil
	})
	if includeTotal {
		g.Go(func() error {
			countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _arrowdb_count", sqlText)
			if err := a.db.QueryRowContext(gctx, countSQL).Scan(&total); err != nil {
				return classifyDuckDBError(err)
			}
			haveTotal = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if tbl != nil {
			tbl.Release()
		}
		return nil, PaginationWindow{}, err
	}

	rowsInPage := int(tbl.NumRows())
	win := PaginationWindow{
		Page:       page,
		PageSize:   pageSize,
		RowsInPage: rowsInPage,
	}
	if haveTotal {
		win.TotalRows = &total
		totalPages := int64(math.Ceil(float64(total) / float64(pageSize)))
		win.TotalPages = &totalPages
		win.HasNext = int64(page+1) < totalPages
		win.HasPrev = page > 0
	} else {
		win.HasNext = rowsInPage == pageSize
		win.HasPrev = page > 0
	}

	return tbl, win, nil
}

// refreshLocked re-registers every dirty table and de-registers any table
// this Adapter previously knew about that is no longer in the registry
// (spec.md §4.5's refresh contract). Callers must hold a.mu.
func (a *Adapter) refreshLocked(ctx context.Context) error {
	dirty := a.registry.DirtyTables()

	type snapshot struct {
		name   string
		schema types.Schema
		rows   [][]any
	}
	snaps := make([]snapshot, len(dirty))

	var g errgroup.Group
	for i, name := range dirty {
		i, name := i, name
		g.Go(func() error {
			ref, err := a.registry.Get(name)
			if err != nil {
				// Removed concurrently with the refresh that would have
				// registered it: nothing to do.
				return nil
			}
			defer ref.Release()

			schema, rows, err := snapshotTableLocked(ref.Table())
			if err != nil {
				return fmt.Errorf("query: refresh %s: %w", name, err)
			}
			snaps[i] = snapshot{name: name, schema: schema, rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range snaps {
		if s.name == "" {
			continue // table vanished before its snapshot could be taken
		}
		if err := a.registerTable(ctx, s.name, s.schema, s.rows); err != nil {
			return fmt.Errorf("query: register %s: %w", s.name, err)
		}
		a.registry.ClearDirty(s.name)
		a.known[s.name] = true
	}

	current := make(map[string]bool, len(a.registry.ListTables()))
	for _, name := range a.registry.ListTables() {
		current[name] = true
	}
	for name := range a.known {
		if !current[name] {
			if _, err := a.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
				return fmt.Errorf("query: deregister %s: %w", name, err)
			}
			delete(a.known, name)
		}
	}
	return nil
}

// snapshotTableLocked reads tbl's consistent snapshot into plain Go values,
// one slice of values per row, while the caller's database.Ref read lock is
// held. Reading via Column.At keeps this allocation-free beyond the result
// slices themselves: no Arrow array is copied.
func snapshotTableLocked(tbl *table.Table) (types.Schema, [][]any, error) {
	if tbl.State() == table.Pending {
		return types.Schema{}, nil, ErrInconsistentRowCounts
	}

	n := tbl.NumColumns()
	fields := make([]types.Field, n)
	for i := 0; i < n; i++ {
		col, err := tbl.Column(i)
		if err != nil {
			return types.Schema{}, nil, err
		}
		f := types.Field{Name: col.Name(), Type: col.TypeTag(), Nullable: col.Nullable()}
		if chunks := col.Chunks(); len(chunks) > 0 {
			if af, ok := types.FieldFromArrow(arrow.Field{Name: f.Name, Type: chunks[0].Array.DataType(), Nullable: f.Nullable}); ok {
				f = af
			}
		}
		fields[i] = f
	}

	rowCount := tbl.RowCount()
	rows := make([][]any, rowCount)
	for r := 0; r < rowCount; r++ {
		row := make([]any, n)
		for i := 0; i < n; i++ {
			col, _ := tbl.Column(i)
			v, valid := col.At(r)
			if !valid {
				row[i] = nil
			} else {
				row[i] = bindValue(fields[i], v)
			}
		}
		rows[r] = row
	}
	return types.Schema{Fields: fields}, rows, nil
}

// bindValue converts a raw value returned by Column.At into the Go type
// database/sql's default parameter converter accepts, for the scalar types
// it otherwise rejects outright. Date32 and Timestamp arrive as bare
// integers (days/microseconds since the epoch); DuckDB's DATE/TIMESTAMP
// columns do not implicitly cast from an integer parameter, so both become
// time.Time, mirroring the read-side conversion in timestampToTime.
// Decimal128 arrives as a decimal128.Num struct, which the driver's
// driver.DefaultParameterConverter rejects with "unsupported type"; it is
// rendered to its decimal string instead, the same formatting renderDecimal
// uses for result display, which DuckDB casts into the target DECIMAL(p,s)
// column on INSERT.
func bindValue(f types.Field, v any) any {
	switch f.Type {
	case types.Date32:
		d, ok := v.(arrow.Date32)
		if !ok {
			return v
		}
		return time.Unix(int64(d)*secondsPerDay, 0).UTC()
	case types.Timestamp:
		ts, ok := v.(arrow.Timestamp)
		if !ok {
			return v
		}
		t := timestampToTime(int64(ts), arrow.Microsecond)
		if f.TimeZone != "" {
			if loc, err := time.LoadLocation(f.TimeZone); err == nil {
				t = t.In(loc)
			}
		}
		return t
	case types.Decimal:
		d, ok := v.(decimal128.Num)
		if !ok {
			return v
		}
		return renderDecimal(d.BigInt(), f.Scale)
	default:
		return v
	}
}

// registerTable drops and recreates name in DuckDB with schema's columns,
// then bulk-loads rows via batched parameterized INSERTs.
func (a *Adapter) registerTable(ctx context.Context, name string, schema types.Schema, rows [][]any) error {
	if _, err := a.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop: %w", err)
	}

	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = quoteIdent(f.Name) + " " + duckDBTypeOf(f)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := a.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(schema.Fields)), ",") + ")"
	for start := 0; start < len(rows); start += insertBatchRows {
		end := start + insertBatchRows
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		groups := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(schema.Fields))
		for i, row := range batch {
			groups[i] = placeholder
			args = append(args, row...)
		}
		insert := fmt.Sprintf("INSERT INTO %s VALUES %s", quoteIdent(name), strings.Join(groups, ","))
		if _, err := a.db.ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert rows [%d,%d): %w", start, end, err)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// duckDBTypeOf maps an ArrowDB scalar field to the DuckDB DDL type used
// when registering a table, mirroring ScalarType's physical layout
// one-for-one (spec.md §3's scalar type tags have a direct DuckDB
// equivalent for every tag except Decimal, which carries its own
// precision/scale).
func duckDBTypeOf(f types.Field) string {
	switch f.Type {
	case types.Boolean:
		return "BOOLEAN"
	case types.Int8:
		return "TINYINT"
	case types.Int16:
		return "SMALLINT"
	case types.Int32:
		return "INTEGER"
	case types.Int64:
		return "BIGINT"
	case types.UInt8:
		return "UTINYINT"
	case types.UInt16:
		return "USMALLINT"
	case types.UInt32:
		return "UINTEGER"
	case types.UInt64:
		return "UBIGINT"
	case types.Float32:
		return "REAL"
	case types.Float64:
		return "DOUBLE"
	case types.Utf8:
		return "VARCHAR"
	case types.Binary:
		return "BLOB"
	case types.Date32:
		return "DATE"
	case types.Timestamp:
		if f.TimeZone != "" {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case types.Decimal:
		precision, scale := f.Precision, f.Scale
		if precision == 0 {
			precision, scale = 38, 9
		}
		return fmt.Sprintf("DECIMAL(%d,%d)", precision, scale)
	default:
		return "VARCHAR"
	}
}

var decimalTypeRe = regexp.MustCompile(`^DECIMAL\((\d+),(\d+)\)$`)

// duckDBColumnToArrow maps a DuckDB result column's reported database type
// name (as returned by sql.ColumnType.DatabaseTypeName) to an arrow.Field.
// Unlike duckDBTypeOf, this also has to handle types that can appear only
// in query *results* and never in a table we registered ourselves, such as
// aggregates (COUNT returns BIGINT, AVG returns DOUBLE) and DuckDB's own
// DECIMAL widening rules.
func duckDBColumnToArrow(name, dbType string) arrow.Field {
	upper := strings.ToUpper(dbType)
	switch {
	case upper == "BOOLEAN":
		return arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Boolean, Nullable: true}
	case upper == "TINYINT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int8, Nullable: true}
	case upper == "SMALLINT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int16, Nullable: true}
	case upper == "INTEGER":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int32, Nullable: true}
	case upper == "BIGINT", upper == "HUGEINT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}
	case upper == "UTINYINT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Uint8, Nullable: true}
	case upper == "USMALLINT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Uint16, Nullable: true}
	case upper == "UINTEGER":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Uint32, Nullable: true}
	case upper == "UBIGINT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Uint64, Nullable: true}
	case upper == "REAL", upper == "FLOAT":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float32, Nullable: true}
	case upper == "DOUBLE":
		return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}
	case upper == "BLOB":
		return arrow.Field{Name: name, Type: arrow.BinaryTypes.Binary, Nullable: true}
	case upper == "DATE":
		return arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Date32, Nullable: true}
	case upper == "TIMESTAMP":
		return arrow.Field{Name: name, Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true}
	case upper == "TIMESTAMPTZ" || strings.HasSuffix(upper, "WITH TIME ZONE"):
		return arrow.Field{Name: name, Type: &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, Nullable: true}
	case decimalTypeRe.MatchString(upper):
		m := decimalTypeRe.FindStringSubmatch(upper)
		var precision, scale int32
		fmt.Sscanf(m[1], "%d", &precision)
		fmt.Sscanf(m[2], "%d", &scale)
		return arrow.Field{Name: name, Type: &arrow.Decimal128Type{Precision: precision, Scale: scale}, Nullable: true}
	default:
		return arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
}

// rowsToArrowTable drains rows into a single-chunk arrow.Table, inferring
// each column's Arrow type from DuckDB's reported column types.
func rowsToArrowTable(alloc memory.Allocator, rows *sql.Rows) (arrow.Table, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, classifyDuckDBError(err)
	}

	fields := make([]arrow.Field, len(colTypes))
	for i, ct := range colTypes {
		fields[i] = duckDBColumnToArrow(ct.Name(), ct.DatabaseTypeName())
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	dest := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classifyDuckDBError(err)
		}
		for i, f := range fields {
			appendValue(builder.Field(i), f.Type, dest[i])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDuckDBError(err)
	}

	record := builder.NewRecord()
	defer record.Release()

	return array.NewTableFromRecords(schema, []arrow.Record{record}), nil
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	default:
		return false
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		var n int64
		fmt.Sscanf(string(x), "%d", &n)
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case []byte:
		var f float64
		fmt.Sscanf(string(x), "%g", &f)
		return f
	default:
		return 0
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toBytes(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	default:
		return []byte(fmt.Sprint(x))
	}
}

func toTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	default:
		return time.Time{}
	}
}

func toDate32(v any) arrow.Date32 {
	return arrow.Date32(toTime(v).Unix() / 86400)
}

// classifyDuckDBError reports a DuckDB driver error as a SqlError (the
// query never reached execution, e.g. a syntax error or unresolved
// relation) or an ExecutionError (it reached execution and failed there).
// The duckdb-go/v2 driver surfaces both as a plain error from its C binding
// with no structured error code, so this is a best-effort classification
// based on message shape rather than a typed driver error.
func classifyDuckDBError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "parser error"),
		strings.Contains(lower, "syntax error"),
		strings.Contains(lower, "binder error"),
		strings.Contains(lower, "catalog error"):
		return &SqlError{Message: msg, Position: -1}
	default:
		return &ExecutionError{Message: msg}
	}
}

func appendValue(b array.Builder, dt arrow.DataType, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		bb.Append(toBool(v))
	case *array.Int8Builder:
		bb.Append(int8(toInt64(v)))
	case *array.Int16Builder:
		bb.Append(int16(toInt64(v)))
	case *array.Int32Builder:
		bb.Append(int32(toInt64(v)))
	case *array.Int64Builder:
		bb.Append(toInt64(v))
	case *array.Uint8Builder:
		bb.Append(uint8(toInt64(v)))
	case *array.Uint16Builder:
		bb.Append(uint16(toInt64(v)))
	case *array.Uint32Builder:
		bb.Append(uint32(toInt64(v)))
	case *array.Uint64Builder:
		bb.Append(uint64(toInt64(v)))
	case *array.Float32Builder:
		bb.Append(float32(toFloat64(v)))
	case *array.Float64Builder:
		bb.Append(toFloat64(v))
	case *array.StringBuilder:
		bb.Append(toString(v))
	case *array.BinaryBuilder:
		bb.Append(toBytes(v))
	case *array.Date32Builder:
		bb.Append(toDate32(v))
	case *array.TimestampBuilder:
		ts, _ := arrow.TimestampFromTime(toTime(v), arrow.Microsecond)
		bb.Append(ts)
	case *array.Decimal128Builder:
		dt := dt.(*arrow.Decimal128Type)
		num, err := decimal128.FromString(toString(v), dt.Precision, dt.Scale)
		if err != nil {
			bb.AppendNull()
			return
		}
		bb.Append(num)
	default:
		b.AppendNull()
	}
}

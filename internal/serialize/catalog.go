package serialize

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CatalogSchema is the Flight SQL GetTables shape ArrowDB's catalog snapshot
// uses: catalog_name, db_schema_name, table_name, table_type. ArrowDB has no
// catalog or schema concept above a single Database, so catalog_name and
// db_schema_name are always null and "main" respectively, and table_type is
// always "TABLE".
var CatalogSchema = arrow.NewSchema([]arrow.Field{
	{Name: "catalog_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "db_schema_name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "table_name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "table_type", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// SerializeCatalog encodes tableNames as an Arrow IPC stream following
// CatalogSchema.
func SerializeCatalog(tableNames []string, allocator memory.Allocator) ([]byte, error) {
	builder := array.NewRecordBuilder(allocator, CatalogSchema)
	defer builder.Release()

	catalogNameBuilder := builder.Field(0).(*array.StringBuilder)
	schemaNameBuilder := builder.Field(1).(*array.StringBuilder)
	tableNameBuilder := builder.Field(2).(*array.StringBuilder)
	tableTypeBuilder := builder.Field(3).(*array.StringBuilder)

	for _, name := range tableNames {
		catalogNameBuilder.AppendNull()
		schemaNameBuilder.Append("main")
		tableNameBuilder.Append(name)
		tableTypeBuilder.Append("TABLE")
	}

	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(CatalogSchema), ipc.WithAllocator(allocator))
	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("serialize: write catalog record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("serialize: close catalog writer: %w", err)
	}

	return buf.Bytes(), nil
}

// CompressCatalog zstd-compresses a serialized catalog payload.
func CompressCatalog(data []byte) ([]byte, error) {
	compressor, err := NewCompressor()
	if err != nil {
		return nil, err
	}
	defer compressor.Close()

	return compressor.Compress(data)
}

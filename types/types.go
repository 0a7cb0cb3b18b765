// Package types describes ArrowDB's closed scalar type enumeration and the
// table schema built from it, plus the conversions to and from the
// apache/arrow-go types the rest of the engine is built on.
package types

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// ScalarType is ArrowDB's closed enumeration of column physical layouts.
// Every column array carries exactly one ScalarType; it never changes for
// the lifetime of the column.
type ScalarType int

const (
	Boolean ScalarType = iota
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	Utf8
	Binary
	Date32
	Timestamp
	Decimal
)

// String returns a human-readable name, used in error messages and in the
// column_type field of the sandbox binding's schema listing.
func (t ScalarType) String() string {
	switch t {
	case Boolean:
		return "Boolean"
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case UInt8:
		return "UInt8"
	case UInt16:
		return "UInt16"
	case UInt32:
		return "UInt32"
	case UInt64:
		return "UInt64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Utf8:
		return "Utf8"
	case Binary:
		return "Binary"
	case Date32:
		return "Date32"
	case Timestamp:
		return "Timestamp"
	case Decimal:
		return "Decimal"
	default:
		return fmt.Sprintf("ScalarType(%d)", int(t))
	}
}

// Field describes one column's static attributes: name, scalar type,
// nullability, and (for Timestamp/Decimal) the parameters that refine the
// physical layout.
type Field struct {
	Name     string
	Type     ScalarType
	Nullable bool

	// TimeZone is used only when Type == Timestamp. Empty means naive
	// (no timezone attached).
	TimeZone string

	// Precision and Scale are used only when Type == Decimal.
	Precision int32
	Scale     int32
}

// Schema is an ordered list of Fields. Table and Column Store code build
// and consume Schema values; the query adapter and the persistence adapter
// translate them to/from *arrow.Schema.
type Schema struct {
	Fields []Field
}

// IndexOf returns the position of the named field, or -1 if absent.
func (s Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ArrowType returns the apache/arrow-go DataType that represents this
// field's scalar type, including Decimal precision/scale and Timestamp
// unit/timezone.
func (f Field) ArrowType() arrow.DataType {
	switch f.Type {
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case UInt8:
		return arrow.PrimitiveTypes.Uint8
	case UInt16:
		return arrow.PrimitiveTypes.Uint16
	case UInt32:
		return arrow.PrimitiveTypes.Uint32
	case UInt64:
		return arrow.PrimitiveTypes.Uint64
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Utf8:
		return arrow.BinaryTypes.String
	case Binary:
		return arrow.BinaryTypes.Binary
	case Date32:
		return arrow.FixedWidthTypes.Date32
	case Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: f.TimeZone}
	case Decimal:
		return &arrow.Decimal128Type{Precision: f.Precision, Scale: f.Scale}
	default:
		panic(fmt.Sprintf("types: unreachable scalar type %d", int(f.Type)))
	}
}

// ArrowField returns the apache/arrow-go Field equivalent to f.
func (f Field) ArrowField() arrow.Field {
	return arrow.Field{Name: f.Name, Type: f.ArrowType(), Nullable: f.Nullable}
}

// ArrowSchema converts a Schema to *arrow.Schema, in field order.
func (s Schema) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.ArrowField()
	}
	return arrow.NewSchema(fields, nil)
}

// ScalarTypeFromArrow maps an apache/arrow-go DataType back to a ScalarType,
// the inverse of Field.ArrowType. Returns ok=false for any arrow.DataType
// outside ArrowDB's closed enumeration (e.g. List, Struct, Map): these have
// no scalar mapping and the caller (typically the persistence adapter)
// should report UnsupportedType.
func ScalarTypeFromArrow(dt arrow.DataType) (ScalarType, bool) {
	switch t := dt.(type) {
	case *arrow.BooleanType:
		return Boolean, true
	case *arrow.Int8Type:
		return Int8, true
	case *arrow.Int16Type:
		return Int16, true
	case *arrow.Int32Type:
		return Int32, true
	case *arrow.Int64Type:
		return Int64, true
	case *arrow.Uint8Type:
		return UInt8, true
	case *arrow.Uint16Type:
		return UInt16, true
	case *arrow.Uint32Type:
		return UInt32, true
	case *arrow.Uint64Type:
		return UInt64, true
	case *arrow.Float32Type:
		return Float32, true
	case *arrow.Float64Type:
		return Float64, true
	case *arrow.StringType, *arrow.LargeStringType:
		return Utf8, true
	case *arrow.BinaryType, *arrow.LargeBinaryType, *arrow.FixedSizeBinaryType:
		return Binary, true
	case *arrow.Date32Type:
		return Date32, true
	case *arrow.TimestampType:
		_ = t
		return Timestamp, true
	case *arrow.Decimal128Type:
		return Decimal, true
	default:
		return 0, false
	}
}

// FieldFromArrow converts an apache/arrow-go Field to ArrowDB's Field,
// preserving Timestamp timezone and Decimal precision/scale. Returns
// ok=false if the arrow type has no scalar mapping.
func FieldFromArrow(af arrow.Field) (Field, bool) {
	st, ok := ScalarTypeFromArrow(af.Type)
	if !ok {
		return Field{}, false
	}
	f := Field{Name: af.Name, Type: st, Nullable: af.Nullable}
	switch t := af.Type.(type) {
	case *arrow.TimestampType:
		f.TimeZone = t.TimeZone
	case *arrow.Decimal128Type:
		f.Precision = t.Precision
		f.Scale = t.Scale
	}
	return f, true
}

// SchemaFromArrow converts an *arrow.Schema to a Schema. For the first
// field with no scalar mapping it returns ok=false and a description of
// the form "name: type", which the caller can report as
// UnsupportedType(description).
func SchemaFromArrow(as *arrow.Schema) (Schema, string, bool) {
	fields := make([]Field, as.NumFields())
	for i := 0; i < as.NumFields(); i++ {
		af := as.Field(i)
		f, ok := FieldFromArrow(af)
		if !ok {
			return Schema{}, fmt.Sprintf("%s: %s", af.Name, af.Type), false
		}
		fields[i] = f
	}
	return Schema{Fields: fields}, "", true
}

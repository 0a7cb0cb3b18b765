package types

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

func TestArrowRoundTrip(t *testing.T) {
	cases := []Field{
		{Name: "a", Type: Boolean},
		{Name: "b", Type: Int32, Nullable: true},
		{Name: "c", Type: Utf8},
		{Name: "d", Type: Binary},
		{Name: "e", Type: Date32},
		{Name: "f", Type: Timestamp, TimeZone: "UTC"},
		{Name: "g", Type: Timestamp},
		{Name: "h", Type: Decimal, Precision: 10, Scale: 2},
	}

	for _, f := range cases {
		t.Run(f.Name, func(t *testing.T) {
			af := f.ArrowField()
			got, ok := FieldFromArrow(af)
			if !ok {
				t.Fatalf("FieldFromArrow: no mapping for %v", af.Type)
			}
			if got.Type != f.Type {
				t.Errorf("type = %v, want %v", got.Type, f.Type)
			}
			if got.TimeZone != f.TimeZone {
				t.Errorf("timezone = %q, want %q", got.TimeZone, f.TimeZone)
			}
			if got.Precision != f.Precision || got.Scale != f.Scale {
				t.Errorf("precision/scale = %d/%d, want %d/%d", got.Precision, got.Scale, f.Precision, f.Scale)
			}
		})
	}
}

func TestSchemaFromArrowUnsupported(t *testing.T) {
	as := arrow.NewSchema([]arrow.Field{
		{Name: "ok", Type: arrow.PrimitiveTypes.Int64},
		{Name: "bad", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
	}, nil)

	_, desc, ok := SchemaFromArrow(as)
	if ok {
		t.Fatalf("expected unsupported type for list column")
	}
	if desc == "" {
		t.Errorf("expected non-empty description")
	}
}

func TestIndexOf(t *testing.T) {
	s := Schema{Fields: []Field{{Name: "id"}, {Name: "name"}}}
	if s.IndexOf("name") != 1 {
		t.Errorf("IndexOf(name) = %d, want 1", s.IndexOf("name"))
	}
	if s.IndexOf("missing") != -1 {
		t.Errorf("IndexOf(missing) = %d, want -1", s.IndexOf("missing"))
	}
}

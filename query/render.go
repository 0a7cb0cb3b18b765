package query

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// timestampLayout is spec.md §4.10's ISO-8601 UTC rendering format.
const timestampLayout = "2006-01-02T15:04:05.999999Z"

const secondsPerDay = 86400

// timestampToTime converts a raw Arrow timestamp value (an integer count of
// unit since the Unix epoch) into a UTC time.Time, by hand: arrow-go ties
// this conversion to the exact TimeUnit on the field's type rather than
// exposing a single unit-agnostic accessor.
func timestampToTime(v int64, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(v, 0).UTC()
	case arrow.Millisecond:
		return time.Unix(v/1e3, (v%1e3)*1e6).UTC()
	case arrow.Microsecond:
		return time.Unix(v/1e6, (v%1e6)*1e3).UTC()
	case arrow.Nanosecond:
		return time.Unix(v/1e9, v%1e9).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

// RenderTable renders tbl at the host boundary (spec.md §4.5's prose
// description, made precise by SPEC_FULL.md §4.10): a header row of field
// names followed by one row per record, values formatted per scalar type.
// Null values render as the literal "NULL".
func RenderTable(tbl arrow.Table) [][]string {
	schema := tbl.Schema()
	header := make([]string, schema.NumFields())
	for i := range header {
		header[i] = schema.Field(i).Name
	}

	rows := [][]string{header}

	tr := array.NewTableReader(tbl, tbl.NumRows())
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			row := make([]string, len(header))
			for c := 0; c < int(rec.NumCols()); c++ {
				row[c] = renderValue(rec.Column(c), r)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func renderValue(col arrow.Array, i int) string {
	if col.IsNull(i) {
		return "NULL"
	}
	switch a := col.(type) {
	case *array.Boolean:
		return fmt.Sprintf("%v", a.Value(i))
	case *array.Int8:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Int16:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Int32:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Int64:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Uint8:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Uint16:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Uint32:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Uint64:
		return fmt.Sprintf("%d", a.Value(i))
	case *array.Float32:
		return fmt.Sprintf("%v", a.Value(i))
	case *array.Float64:
		return fmt.Sprintf("%v", a.Value(i))
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return fmt.Sprintf("%x", a.Value(i))
	case *array.Date32:
		days := int64(a.Value(i))
		return time.Unix(days*secondsPerDay, 0).UTC().Format("2006-01-02")
	case *array.Timestamp:
		dt := a.DataType().(*arrow.TimestampType)
		t := timestampToTime(int64(a.Value(i)), dt.Unit)
		if dt.TimeZone != "" {
			if loc, err := time.LoadLocation(dt.TimeZone); err == nil {
				t = t.In(loc)
			}
		}
		return t.UTC().Format(timestampLayout)
	case *array.Decimal128:
		dt := a.DataType().(*arrow.Decimal128Type)
		return renderDecimal(a.Value(i).BigInt(), dt.Scale)
	default:
		return fmt.Sprintf("%v", col)
	}
}

// renderDecimal formats an arbitrary-precision decimal so that exactly
// scale digits follow the decimal point, including trailing zeros
// (spec.md §4.10).
func renderDecimal(unscaled *big.Int, scale int32) string {
	if scale <= 0 {
		return unscaled.String()
	}

	neg := unscaled.Sign() < 0
	abs := new(big.Int).Abs(unscaled)
	digits := abs.String()

	for int32(len(digits)) <= scale {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-int(scale)]
	fracPart := digits[len(digits)-int(scale):]

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(intPart)
	sb.WriteByte('.')
	sb.WriteString(fracPart)
	return sb.String()
}

// Package render turns pgx result values into transport-safe shapes.
//
// The MCP boundary serializes everything to JSON, which cannot carry NaN,
// infinities, arbitrary-precision numerics, or binary data natively. Values
// with no faithful JSON representation are rendered as strings so nothing is
// silently lost or mangled on the way out.
package render

import (
	"encoding/base64"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Rows drains rows and returns the select-list column order plus one
// string-keyed mapping per row, with every value passed through Value.
// The returned slices are never nil. Rows is closed on return.
func Rows(rows pgx.Rows) ([]string, []map[string]any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	mapped := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = Value(values[i])
		}
		mapped = append(mapped, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, mapped, nil
}

// Value converts a single pgx-returned value into a JSON-friendly one.
// Maps and slices are converted recursively, so JSONB documents and arrays
// come out clean at every depth.
func Value(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return finiteOrString(float64(val), val)
	case float64:
		return finiteOrString(val, val)
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		return numericString(val)
	case pgtype.Time:
		return timeOfDayString(val)
	case pgtype.Interval:
		return intervalString(val)
	case pgtype.Range[any]:
		return rangeString(val)
	case pgtype.Bits:
		return bitString(val)
	case pgtype.Point:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("(%g,%g)", val.P.X, val.P.Y)
	case pgtype.Line:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("{%g,%g,%g}", val.A, val.B, val.C)
	case pgtype.Lseg:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("[(%g,%g),(%g,%g)]", val.P[0].X, val.P[0].Y, val.P[1].X, val.P[1].Y)
	case pgtype.Box:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("(%g,%g),(%g,%g)", val.P[0].X, val.P[0].Y, val.P[1].X, val.P[1].Y)
	case pgtype.Path:
		if !val.Valid {
			return nil
		}
		joined := joinPoints(val.P)
		if val.Closed {
			return "(" + joined + ")"
		}
		return "[" + joined + "]"
	case pgtype.Polygon:
		if !val.Valid {
			return nil
		}
		return "(" + joinPoints(val.P) + ")"
	case pgtype.Circle:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("<(%g,%g),%g>", val.P.X, val.P.Y, val.R)
	case [16]byte:
		// uuid
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea and friends
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Value(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	default:
		return val
	}
}

// finiteOrString keeps finite floats as numbers; NaN and infinities have no
// JSON encoding and become strings.
func finiteOrString(f float64, orig any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return orig
}

// numericString renders numeric as an exact decimal string. float64 would
// round trip wrong beyond 2^53.
func numericString(val pgtype.Numeric) any {
	if !val.Valid {
		return nil
	}
	if val.NaN {
		return "NaN"
	}
	if val.InfinityModifier == pgtype.Infinity {
		return "Infinity"
	}
	if val.InfinityModifier == pgtype.NegativeInfinity {
		return "-Infinity"
	}
	b, err := val.MarshalJSON()
	if err != nil {
		return nil
	}
	return string(b)
}

// timeOfDayString renders a time-of-day as HH:MM:SS with fractional seconds
// only when present.
func timeOfDayString(val pgtype.Time) any {
	if !val.Valid {
		return nil
	}
	us := val.Microseconds
	hours := us / 3_600_000_000
	us -= hours * 3_600_000_000
	minutes := us / 60_000_000
	us -= minutes * 60_000_000
	seconds := us / 1_000_000
	us -= seconds * 1_000_000
	if us > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func intervalString(val pgtype.Interval) any {
	if !val.Valid {
		return nil
	}
	parts := []string{}
	if val.Months != 0 {
		years := val.Months / 12
		months := val.Months % 12
		if years != 0 {
			parts = append(parts, fmt.Sprintf("%d year(s)", years))
		}
		if months != 0 {
			parts = append(parts, fmt.Sprintf("%d mon(s)", months))
		}
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		dur := time.Duration(val.Microseconds) * time.Microsecond
		parts = append(parts, dur.String())
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " ")
}

// rangeString renders ranges in PostgreSQL's own notation: [ ) brackets for
// inclusive/exclusive bounds, "empty" for empty ranges.
func rangeString(val pgtype.Range[any]) any {
	if !val.Valid {
		return nil
	}
	if val.LowerType == pgtype.Empty {
		return "empty"
	}
	var sb strings.Builder
	if val.LowerType == pgtype.Inclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if val.LowerType != pgtype.Unbounded {
		sb.WriteString(fmt.Sprintf("%v", Value(val.Lower)))
	}
	sb.WriteByte(',')
	if val.UpperType != pgtype.Unbounded {
		sb.WriteString(fmt.Sprintf("%v", Value(val.Upper)))
	}
	if val.UpperType == pgtype.Inclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

func bitString(val pgtype.Bits) any {
	if !val.Valid {
		return nil
	}
	out := make([]byte, val.Len)
	for i := int32(0); i < val.Len; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		if val.Bytes[byteIdx]&(1<<uint(bitIdx)) != 0 {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}

func joinPoints(points []pgtype.Vec2) string {
	rendered := make([]string, len(points))
	for i, p := range points {
		rendered[i] = fmt.Sprintf("(%g,%g)", p.X, p.Y)
	}
	return strings.Join(rendered, ",")
}

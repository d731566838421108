package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05.999999999"
)

// Value is an immutable typed datum. A Value whose data is nil is a NULL
// that still carries the type tag of the slot it came from.
type Value struct {
	typ  ColumnType
	data any
}

// Row is a fixed-length ordered sequence of values, one per column.
type Row []Value

// Clone returns a copy of the row that shares no backing array.
func (row Row) Clone() Row {
	if row == nil {
		return nil
	}
	clone := make(Row, len(row))
	copy(clone, row)
	return clone
}

func Null(t ColumnType) Value {
	return Value{typ: t}
}

func NewInteger(i int32) Value {
	return Value{typ: IntegerType, data: i}
}

func NewBigInt(i int64) Value {
	return Value{typ: BigIntType, data: i}
}

func NewDecimal(d decimal.Decimal) Value {
	return Value{typ: DecimalType, data: d}
}

func NewDouble(f float64) Value {
	return Value{typ: DoubleType, data: f}
}

func NewString(t ColumnType, s string) Value {
	if !t.IsString() {
		t = VarCharType
	}
	return Value{typ: t, data: s}
}

func NewVarChar(s string) Value {
	return Value{typ: VarCharType, data: s}
}

func NewDate(t time.Time) Value {
	y, m, d := t.Date()
	return Value{typ: DateType, data: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func NewTime(t time.Time) Value {
	return Value{typ: TimeType, data: time.Date(1970, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

func NewTimestamp(t time.Time) Value {
	return Value{typ: TimestampType, data: t.UTC()}
}

func NewBinary(t ColumnType, b []byte) Value {
	if !t.IsBinary() {
		t = VarBinaryType
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return Value{typ: t, data: clone}
}

func NewBoolean(b bool) Value {
	return Value{typ: BooleanType, data: b}
}

// NewObject stores an opaque serialized blob. The engine never looks inside.
func NewObject(b []byte) Value {
	return NewBinary(ObjectType, b)
}

func (v Value) Type() ColumnType {
	return v.typ
}

func (v Value) IsNull() bool {
	return v.data == nil
}

// Native returns the Go value for the datum, or nil for NULL.
func (v Value) Native() any {
	return v.data
}

func (v Value) Int64() int64 {
	switch d := v.data.(type) {
	case int32:
		return int64(d)
	case int64:
		return d
	case float64:
		return int64(d)
	case decimal.Decimal:
		return d.IntPart()
	case bool:
		if d {
			return 1
		}
	}
	return 0
}

func (v Value) Float64() float64 {
	switch d := v.data.(type) {
	case int32:
		return float64(d)
	case int64:
		return float64(d)
	case float64:
		return d
	case decimal.Decimal:
		return d.InexactFloat64()
	}
	return 0
}

func (v Value) Decimal() decimal.Decimal {
	switch d := v.data.(type) {
	case int32:
		return decimal.NewFromInt32(d)
	case int64:
		return decimal.NewFromInt(d)
	case float64:
		return decimal.NewFromFloat(d)
	case decimal.Decimal:
		return d
	}
	return decimal.Zero
}

func (v Value) Str() string {
	if s, ok := v.data.(string); ok {
		return s
	}
	return v.String()
}

func (v Value) Time() time.Time {
	if t, ok := v.data.(time.Time); ok {
		return t
	}
	return time.Time{}
}

func (v Value) Bytes() []byte {
	if b, ok := v.data.([]byte); ok {
		return b
	}
	return nil
}

func (v Value) Bool() bool {
	switch d := v.data.(type) {
	case bool:
		return d
	case int32, int64, float64:
		return v.Float64() != 0
	}
	return false
}

// String renders the value the way result sets display it; NULL renders
// as "NULL".
func (v Value) String() string {
	switch d := v.data.(type) {
	case nil:
		return "NULL"
	case int32:
		return strconv.FormatInt(int64(d), 10)
	case int64:
		return strconv.FormatInt(d, 10)
	case float64:
		return strconv.FormatFloat(d, 'g', -1, 64)
	case decimal.Decimal:
		return d.String()
	case string:
		return d
	case time.Time:
		switch v.typ {
		case DateType:
			return d.Format(DateLayout)
		case TimeType:
			return d.Format(TimeLayout)
		default:
			return d.Format(TimestampLayout)
		}
	case []byte:
		return strings.ToUpper(hex.EncodeToString(d))
	case bool:
		if d {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// AppendKey appends a canonical encoding of the value used for hashing and
// grouping. Values that compare equal within one type produce equal bytes.
func (v Value) AppendKey(buf []byte) []byte {
	if v.IsNull() {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	switch d := v.data.(type) {
	case int32:
		buf = strconv.AppendInt(buf, int64(d), 10)
	case int64:
		buf = strconv.AppendInt(buf, d, 10)
	case decimal.Decimal:
		if d.IsInteger() {
			buf = strconv.AppendInt(buf, d.IntPart(), 10)
		} else {
			buf = append(buf, d.String()...)
		}
	case string:
		if v.typ == VarCharIgnoreCaseType {
			d = strings.ToUpper(d)
		}
		buf = append(buf, d...)
	default:
		buf = append(buf, v.String()...)
	}
	return append(buf, 0xff)
}

// Key is a tuple of values used as an index key.
type Key []Value

// CompareKeys orders keys column by column with NULL sorting first.
func CompareKeys(a, b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		c, err := CompareNullable(a[i], b[i])
		if err != nil {
			c = strings.Compare(a[i].String(), b[i].String())
		}
		if c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// HasNull reports whether any component of the key is NULL.
func (k Key) HasNull() bool {
	for _, v := range k {
		if v.IsNull() {
			return true
		}
	}
	return false
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

package core

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var temporalLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

func mismatch(v Value, target ColumnType) *Error {
	return NewConstraintError(CodeTypeMismatch, "cannot convert %s '%s' to %s", v.typ, v.String(), target)
}

// Convert coerces v to the target type. NULL converts to a NULL of the
// target type; impossible conversions are ConstraintErrors.
func Convert(v Value, target ColumnType) (Value, error) {
	if v.IsNull() {
		return Null(target), nil
	}
	if v.typ == target {
		return v, nil
	}

	switch target {
	case IntegerType:
		i, err := toInt64(v, target)
		if err != nil {
			return Value{}, err
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return Value{}, NewConstraintError(CodeNumericOverflow, "value %d out of range for INTEGER", i)
		}
		return NewInteger(int32(i)), nil

	case BigIntType:
		i, err := toInt64(v, target)
		if err != nil {
			return Value{}, err
		}
		return NewBigInt(i), nil

	case DecimalType:
		switch {
		case v.typ.IsNumeric():
			return NewDecimal(v.Decimal()), nil
		case v.typ.IsString():
			d, err := decimal.NewFromString(strings.TrimSpace(v.Str()))
			if err != nil {
				return Value{}, mismatch(v, target)
			}
			return NewDecimal(d), nil
		case v.typ == BooleanType:
			if v.Bool() {
				return NewDecimal(decimal.NewFromInt(1)), nil
			}
			return NewDecimal(decimal.Zero), nil
		}

	case DoubleType:
		switch {
		case v.typ.IsNumeric():
			return NewDouble(v.Float64()), nil
		case v.typ.IsString():
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
			if err != nil {
				return Value{}, mismatch(v, target)
			}
			return NewDouble(f), nil
		case v.typ == BooleanType:
			if v.Bool() {
				return NewDouble(1), nil
			}
			return NewDouble(0), nil
		}

	case CharType, VarCharType, VarCharIgnoreCaseType:
		if v.typ == ObjectType {
			break
		}
		return NewString(target, v.String()), nil

	case DateType, TimeType, TimestampType:
		var t time.Time
		switch {
		case v.typ.IsTemporal():
			t = v.Time()
		case v.typ.IsString():
			parsed, err := ParseTemporal(target, v.Str())
			if err != nil {
				return Value{}, mismatch(v, target)
			}
			t = parsed
		default:
			return Value{}, mismatch(v, target)
		}
		switch target {
		case DateType:
			return NewDate(t), nil
		case TimeType:
			return NewTime(t), nil
		default:
			return NewTimestamp(t), nil
		}

	case BinaryType, VarBinaryType:
		switch {
		case v.typ.IsBinary():
			return NewBinary(target, v.Bytes()), nil
		case v.typ.IsString():
			b, err := hex.DecodeString(strings.TrimSpace(v.Str()))
			if err != nil {
				return Value{}, mismatch(v, target)
			}
			return NewBinary(target, b), nil
		}

	case ObjectType:
		if v.typ.IsBinary() {
			return NewObject(v.Bytes()), nil
		}

	case BooleanType:
		switch {
		case v.typ.IsNumeric():
			return NewBoolean(v.Float64() != 0), nil
		case v.typ.IsString():
			switch strings.ToUpper(strings.TrimSpace(v.Str())) {
			case "TRUE", "1", "T", "Y", "YES":
				return NewBoolean(true), nil
			case "FALSE", "0", "F", "N", "NO":
				return NewBoolean(false), nil
			}
		}
	}

	return Value{}, mismatch(v, target)
}

func toInt64(v Value, target ColumnType) (int64, error) {
	switch {
	case v.typ == IntegerType || v.typ == BigIntType:
		return v.Int64(), nil
	case v.typ == DecimalType:
		d := v.Decimal()
		if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
			return 0, NewConstraintError(CodeNumericOverflow, "value %s out of range for %s", d, target)
		}
		return d.IntPart(), nil
	case v.typ == DoubleType:
		f := v.Float64()
		if math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, NewConstraintError(CodeNumericOverflow, "value %v out of range for %s", f, target)
		}
		return int64(f), nil
	case v.typ.IsString():
		s := strings.TrimSpace(v.Str())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, mismatch(v, target)
		}
		return d.IntPart(), nil
	case v.typ == BooleanType:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, mismatch(v, target)
}

// ParseTemporal parses date, time and timestamp literals.
func ParseTemporal(target ColumnType, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if target == TimeType {
		if t, err := time.Parse(TimeLayout, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse("15:04", s); err == nil {
			return t, nil
		}
	}
	var lastErr error
	for _, layout := range temporalLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Compare orders two non-NULL values after promoting them to a common type.
func Compare(a, b Value) (int, error) {
	common := Promote(a.typ, b.typ)
	ca, err := Convert(a, common)
	if err != nil {
		return 0, err
	}
	cb, err := Convert(b, common)
	if err != nil {
		return 0, err
	}

	switch common {
	case IntegerType, BigIntType:
		x, y := ca.Int64(), cb.Int64()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case DecimalType:
		return ca.Decimal().Cmp(cb.Decimal()), nil
	case DoubleType:
		x, y := ca.Float64(), cb.Float64()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case VarCharIgnoreCaseType:
		return strings.Compare(strings.ToUpper(ca.Str()), strings.ToUpper(cb.Str())), nil
	case CharType, VarCharType:
		return strings.Compare(ca.Str(), cb.Str()), nil
	case DateType, TimeType, TimestampType:
		return ca.Time().Compare(cb.Time()), nil
	case BinaryType, VarBinaryType, ObjectType:
		return bytes.Compare(ca.Bytes(), cb.Bytes()), nil
	case BooleanType:
		x, y := ca.Bool(), cb.Bool()
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	}
	return 0, mismatch(a, b.typ)
}

// CompareNullable is Compare with NULL ordered before every other value.
func CompareNullable(a, b Value) (int, error) {
	switch {
	case a.IsNull() && b.IsNull():
		return 0, nil
	case a.IsNull():
		return -1, nil
	case b.IsNull():
		return 1, nil
	}
	return Compare(a, b)
}

package core

import (
	"math"

	"github.com/shopspring/decimal"
)

type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	default:
		return "%"
	}
}

// DivisionScale is the number of fractional digits kept when dividing
// decimals that do not divide exactly.
const DivisionScale = 16

// Arithmetic applies op to a and b after numeric promotion. Any NULL
// operand yields a NULL of the promoted type.
func Arithmetic(op ArithOp, a, b Value) (Value, error) {
	common := Promote(a.typ, b.typ)
	if common.IsString() {
		// '1' + 2 style arithmetic on text falls back to DECIMAL
		common = DecimalType
	}
	if !common.IsNumeric() {
		return Value{}, NewConstraintError(CodeTypeMismatch, "operator %s not defined for %s and %s", op, a.typ, b.typ)
	}
	if a.IsNull() || b.IsNull() {
		return Null(common), nil
	}
	ca, err := Convert(a, common)
	if err != nil {
		return Value{}, err
	}
	cb, err := Convert(b, common)
	if err != nil {
		return Value{}, err
	}

	switch common {
	case IntegerType, BigIntType:
		x, y := ca.Int64(), cb.Int64()
		var r int64
		switch op {
		case OpAdd:
			r = x + y
			if (r > x) != (y > 0) {
				return Value{}, overflow(common)
			}
		case OpSubtract:
			r = x - y
			if (r < x) != (y > 0) {
				return Value{}, overflow(common)
			}
		case OpMultiply:
			if x != 0 && y != 0 {
				r = x * y
				if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
					return Value{}, overflow(common)
				}
			}
		case OpDivide:
			if y == 0 {
				return Value{}, divisionByZero()
			}
			r = x / y
		case OpModulo:
			if y == 0 {
				return Value{}, divisionByZero()
			}
			r = x % y
		}
		if common == IntegerType {
			if r < math.MinInt32 || r > math.MaxInt32 {
				// INTEGER results widen instead of wrapping
				return NewBigInt(r), nil
			}
			return NewInteger(int32(r)), nil
		}
		return NewBigInt(r), nil

	case DecimalType:
		x, y := ca.Decimal(), cb.Decimal()
		switch op {
		case OpAdd:
			return NewDecimal(x.Add(y)), nil
		case OpSubtract:
			return NewDecimal(x.Sub(y)), nil
		case OpMultiply:
			return NewDecimal(x.Mul(y)), nil
		case OpDivide:
			if y.IsZero() {
				return Value{}, divisionByZero()
			}
			q := x.DivRound(y, DivisionScale)
			return NewDecimal(trimDecimal(q)), nil
		default:
			if y.IsZero() {
				return Value{}, divisionByZero()
			}
			return NewDecimal(x.Mod(y)), nil
		}

	default:
		x, y := ca.Float64(), cb.Float64()
		switch op {
		case OpAdd:
			return NewDouble(x + y), nil
		case OpSubtract:
			return NewDouble(x - y), nil
		case OpMultiply:
			return NewDouble(x * y), nil
		case OpDivide:
			if y == 0 {
				return Value{}, divisionByZero()
			}
			return NewDouble(x / y), nil
		default:
			if y == 0 {
				return Value{}, divisionByZero()
			}
			return NewDouble(math.Mod(x, y)), nil
		}
	}
}

// Negate flips the sign of a numeric value.
func Negate(v Value) (Value, error) {
	if !v.typ.IsNumeric() && v.typ != NullType {
		return Value{}, NewConstraintError(CodeTypeMismatch, "unary minus not defined for %s", v.typ)
	}
	if v.IsNull() {
		return v, nil
	}
	switch v.typ {
	case IntegerType:
		return Arithmetic(OpSubtract, NewInteger(0), v)
	case BigIntType:
		return Arithmetic(OpSubtract, NewBigInt(0), v)
	case DecimalType:
		return NewDecimal(v.Decimal().Neg()), nil
	default:
		return NewDouble(-v.Float64()), nil
	}
}

// Concat implements the || operator; NULL operands yield NULL.
func Concat(a, b Value) Value {
	t := VarCharType
	if a.typ == VarCharIgnoreCaseType || b.typ == VarCharIgnoreCaseType {
		t = VarCharIgnoreCaseType
	}
	if a.IsNull() || b.IsNull() {
		return Null(t)
	}
	return NewString(t, a.String()+b.String())
}

func trimDecimal(d decimal.Decimal) decimal.Decimal {
	// DivRound pads to the full scale; drop trailing zeros again
	s := d.String()
	trimmed, err := decimal.NewFromString(s)
	if err != nil {
		return d
	}
	return trimmed
}

func overflow(t ColumnType) *Error {
	return NewConstraintError(CodeNumericOverflow, "numeric overflow in %s arithmetic", t)
}

func divisionByZero() *Error {
	return NewConstraintError(CodeDivisionByZero, "division by zero")
}

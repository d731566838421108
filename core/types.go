package core

import "strings"

type ColumnType int

const (
	NullType ColumnType = iota
	IntegerType
	BigIntType
	DecimalType
	DoubleType
	CharType
	VarCharType
	VarCharIgnoreCaseType
	DateType
	TimeType
	TimestampType
	BinaryType
	VarBinaryType
	BooleanType
	ObjectType
)

var typeNames = map[ColumnType]string{
	NullType:              "NULL",
	IntegerType:           "INTEGER",
	BigIntType:            "BIGINT",
	DecimalType:           "DECIMAL",
	DoubleType:            "DOUBLE",
	CharType:              "CHAR",
	VarCharType:           "VARCHAR",
	VarCharIgnoreCaseType: "VARCHAR_IGNORECASE",
	DateType:              "DATE",
	TimeType:              "TIME",
	TimestampType:         "TIMESTAMP",
	BinaryType:            "BINARY",
	VarBinaryType:         "VARBINARY",
	BooleanType:           "BOOLEAN",
	ObjectType:            "OBJECT",
}

func (t ColumnType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// NativeName is the Go type a value of this column type is handed out as.
func (t ColumnType) NativeName() string {
	switch t {
	case IntegerType:
		return "int32"
	case BigIntType:
		return "int64"
	case DecimalType:
		return "decimal.Decimal"
	case DoubleType:
		return "float64"
	case CharType, VarCharType, VarCharIgnoreCaseType:
		return "string"
	case DateType, TimeType, TimestampType:
		return "time.Time"
	case BinaryType, VarBinaryType, ObjectType:
		return "[]byte"
	case BooleanType:
		return "bool"
	default:
		return "nil"
	}
}

func (t ColumnType) IsNumeric() bool {
	return t == IntegerType || t == BigIntType || t == DecimalType || t == DoubleType
}

func (t ColumnType) IsString() bool {
	return t == CharType || t == VarCharType || t == VarCharIgnoreCaseType
}

func (t ColumnType) IsTemporal() bool {
	return t == DateType || t == TimeType || t == TimestampType
}

func (t ColumnType) IsBinary() bool {
	return t == BinaryType || t == VarBinaryType || t == ObjectType
}

// ParseColumnType maps a SQL type name to its tag.
func ParseColumnType(name string) (ColumnType, bool) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER", "SMALLINT", "TINYINT":
		return IntegerType, true
	case "BIGINT":
		return BigIntType, true
	case "DECIMAL", "NUMERIC", "DEC":
		return DecimalType, true
	case "DOUBLE", "FLOAT", "REAL":
		return DoubleType, true
	case "CHAR", "CHARACTER":
		return CharType, true
	case "VARCHAR", "LONGVARCHAR", "TEXT", "STRING":
		return VarCharType, true
	case "VARCHAR_IGNORECASE":
		return VarCharIgnoreCaseType, true
	case "DATE":
		return DateType, true
	case "TIME":
		return TimeType, true
	case "TIMESTAMP", "DATETIME":
		return TimestampType, true
	case "BINARY":
		return BinaryType, true
	case "VARBINARY", "LONGVARBINARY":
		return VarBinaryType, true
	case "BIT", "BOOL", "BOOLEAN":
		return BooleanType, true
	case "OBJECT", "OTHER":
		return ObjectType, true
	default:
		return NullType, false
	}
}

// numericRank orders the numeric types for promotion.
func numericRank(t ColumnType) int {
	switch t {
	case IntegerType:
		return 1
	case BigIntType:
		return 2
	case DecimalType:
		return 3
	case DoubleType:
		return 4
	default:
		return 0
	}
}

// Promote returns the type mixed operands of a and b are widened to.
// INTEGER -> BIGINT -> DECIMAL -> DOUBLE for numbers; a NULL operand
// takes the other side's type.
func Promote(a, b ColumnType) ColumnType {
	if a == NullType {
		return b
	}
	if b == NullType || a == b {
		return a
	}
	if a.IsNumeric() && b.IsNumeric() {
		if numericRank(a) >= numericRank(b) {
			return a
		}
		return b
	}
	if a.IsString() && b.IsString() {
		if a == VarCharIgnoreCaseType || b == VarCharIgnoreCaseType {
			return VarCharIgnoreCaseType
		}
		return VarCharType
	}
	if a.IsTemporal() && b.IsTemporal() {
		return TimestampType
	}
	if a.IsBinary() && b.IsBinary() {
		return VarBinaryType
	}
	if a.IsNumeric() && b.IsString() {
		return a
	}
	if b.IsNumeric() && a.IsString() {
		return b
	}
	if a.IsString() {
		return b
	}
	return a
}

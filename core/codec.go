package core

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EncodeRow serializes a row for the backing store. Integers and booleans
// are JSON scalars, binary values are base64 and everything else is the
// value's canonical text.
func EncodeRow(row Row) ([]byte, error) {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = encodeValue(v)
	}
	return json.Marshal(cells)
}

func encodeValue(v Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.typ {
	case IntegerType, BigIntType:
		return v.Int64()
	case BooleanType:
		return v.Bool()
	case BinaryType, VarBinaryType, ObjectType:
		return v.Bytes()
	default:
		return v.String()
	}
}

// DecodeRow is the inverse of EncodeRow for a table with the given column types.
func DecodeRow(data []byte, types []ColumnType) (Row, error) {
	var cells []json.RawMessage
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	if len(cells) != len(types) {
		return nil, fmt.Errorf("failed to decode row: got %d values for %d columns", len(cells), len(types))
	}
	row := make(Row, len(cells))
	for i, cell := range cells {
		v, err := decodeValue(cell, types[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode column %d: %w", i, err)
		}
		row[i] = v
	}
	return row, nil
}

func decodeValue(raw json.RawMessage, t ColumnType) (Value, error) {
	if string(raw) == "null" {
		return Null(t), nil
	}
	switch t {
	case IntegerType:
		var i int32
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, err
		}
		return NewInteger(i), nil
	case BigIntType:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, err
		}
		return NewBigInt(i), nil
	case BooleanType:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return NewBoolean(b), nil
	case BinaryType, VarBinaryType, ObjectType:
		var b []byte
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return NewBinary(t, b), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Value{}, err
	}
	if t.IsString() {
		return NewString(t, s), nil
	}
	return Convert(NewVarChar(s), t)
}

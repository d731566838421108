package db

import (
	"strings"
	"time"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/sql"
	"github.com/shopspring/decimal"
)

type Direction int

const (
	Input Direction = iota
	Output
	InputOutput
	ReturnValue
)

// Parameter is a value passed into or out of Execute. Names starting with
// @ bind channel variables, names starting with : (or bare names) match
// :name markers, and unnamed parameters fill ? markers in order.
type Parameter struct {
	Name      string
	Value     core.Value
	Direction Direction
}

// NewParameter builds an input parameter from a Go value.
func NewParameter(name string, value any) (*Parameter, error) {
	v, err := ValueOf(value)
	if err != nil {
		return nil, err
	}
	return &Parameter{Name: name, Value: v}, nil
}

// ValueOf converts a Go value to the matching SQL value.
func ValueOf(value any) (core.Value, error) {
	switch v := value.(type) {
	case nil:
		return core.Null(core.NullType), nil
	case core.Value:
		return v, nil
	case int:
		if int64(int32(v)) == int64(v) {
			return core.NewInteger(int32(v)), nil
		}
		return core.NewBigInt(int64(v)), nil
	case int32:
		return core.NewInteger(v), nil
	case int64:
		return core.NewBigInt(v), nil
	case float32:
		return core.NewDouble(float64(v)), nil
	case float64:
		return core.NewDouble(v), nil
	case decimal.Decimal:
		return core.NewDecimal(v), nil
	case string:
		return core.NewVarChar(v), nil
	case bool:
		return core.NewBoolean(v), nil
	case time.Time:
		return core.NewTimestamp(v), nil
	case []byte:
		return core.NewBinary(core.VarBinaryType, v), nil
	}
	return core.Value{}, core.NewConstraintError(core.CodeTypeMismatch, "unsupported parameter type %T", value)
}

func (p *Parameter) isVariable() bool {
	return strings.HasPrefix(p.Name, "@")
}

func (p *Parameter) variableName() string {
	return normalizeName(strings.TrimPrefix(p.Name, "@"))
}

func (p *Parameter) reads() bool {
	return p.Direction == Input || p.Direction == InputOutput
}

func (p *Parameter) writes() bool {
	return p.Direction == Output || p.Direction == InputOutput
}

// normalizeName folds a caller-supplied name the way the lexer folds
// unquoted identifiers.
func normalizeName(name string) string {
	return strings.ToUpper(name)
}

// paramSet holds the values ? and :name markers resolve to.
type paramSet struct {
	positional []core.Value
	named      map[string]core.Value
}

func (p *paramSet) lookup(ref sql.ParamRef) (core.Value, error) {
	if ref.Name != "" {
		if v, ok := p.named[normalizeName(ref.Name)]; ok {
			return v, nil
		}
		return core.Value{}, core.NewBindingError(core.CodeParameterNotFound, "no value for parameter :%s", ref.Name)
	}
	if ref.Index < 0 || ref.Index >= len(p.positional) {
		return core.Value{}, core.NewBindingError(core.CodeParameterNotFound, "no value for parameter %d", ref.Index+1)
	}
	return p.positional[ref.Index], nil
}

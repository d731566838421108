package sql

import (
	"strconv"
	"strings"

	"github.com/nickyhof/EmbedDB/core"
)

// Expr is a node of a parsed expression tree. String renders the node back
// as SQL that parses to an equal tree.
type Expr interface {
	exprNode()
	String() string
}

type Literal struct {
	Value core.Value
}

type ColumnRef struct {
	Table  string // empty when unqualified
	Column string
}

type VariableRef struct {
	Name string
}

// ParamRef is a ? marker (Name empty, Index is its zero-based ordinal in
// the batch) or a :name marker.
type ParamRef struct {
	Index int
	Name  string
}

type UnaryOp int

const (
	NegateOp UnaryOp = iota
	NotOp
)

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

type BinaryOp int

const (
	AddOp BinaryOp = iota
	SubtractOp
	MultiplyOp
	DivideOp
	ModuloOp
	ConcatenateOp
	EqualOp
	NotEqualOp
	LessOp
	LessOrEqualOp
	GreaterOp
	GreaterOrEqualOp
	AndOp
	OrOp
)

var binaryOpText = map[BinaryOp]string{
	AddOp:            "+",
	SubtractOp:       "-",
	MultiplyOp:       "*",
	DivideOp:         "/",
	ModuloOp:         "%",
	ConcatenateOp:    "||",
	EqualOp:          "=",
	NotEqualOp:       "<>",
	LessOp:           "<",
	LessOrEqualOp:    "<=",
	GreaterOp:        ">",
	GreaterOrEqualOp: ">=",
	AndOp:            "AND",
	OrOp:             "OR",
}

func (op BinaryOp) String() string {
	return binaryOpText[op]
}

// IsComparison reports whether op is one of = <> < <= > >=.
func (op BinaryOp) IsComparison() bool {
	return op >= EqualOp && op <= GreaterOrEqualOp
}

type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type IsNullExpr struct {
	Operand Expr
	Not     bool
}

type LikeExpr struct {
	Operand Expr
	Pattern Expr
	Escape  Expr
	Not     bool
}

type InExpr struct {
	Operand Expr
	List    []Expr
	Not     bool
}

type BetweenExpr struct {
	Operand Expr
	Low     Expr
	High    Expr
	Not     bool
}

type TypeSpec struct {
	Type  core.ColumnType
	Size  int
	Scale int
}

func (spec TypeSpec) String() string {
	switch {
	case spec.Size > 0 && spec.Scale > 0:
		return spec.Type.String() + "(" + strconv.Itoa(spec.Size) + "," + strconv.Itoa(spec.Scale) + ")"
	case spec.Size > 0:
		return spec.Type.String() + "(" + strconv.Itoa(spec.Size) + ")"
	}
	return spec.Type.String()
}

type CastExpr struct {
	Operand Expr
	Target  TypeSpec
}

// FuncCall is a call by name. Star is COUNT(*); Distinct is AGG(DISTINCT x).
type FuncCall struct {
	Name     string
	Args     []Expr
	Star     bool
	Distinct bool
}

func (Literal) exprNode()     {}
func (ColumnRef) exprNode()   {}
func (VariableRef) exprNode() {}
func (ParamRef) exprNode()    {}
func (UnaryExpr) exprNode()   {}
func (BinaryExpr) exprNode()  {}
func (IsNullExpr) exprNode()  {}
func (LikeExpr) exprNode()    {}
func (InExpr) exprNode()      {}
func (BetweenExpr) exprNode() {}
func (CastExpr) exprNode()    {}
func (FuncCall) exprNode()    {}

func (e Literal) String() string {
	v := e.Value
	if v.IsNull() {
		return "NULL"
	}
	switch t := v.Type(); {
	case t.IsString():
		return quoteString(v.Str())
	case t == core.DateType:
		return "DATE " + quoteString(v.String())
	case t == core.TimeType:
		return "TIME " + quoteString(v.String())
	case t == core.TimestampType:
		return "TIMESTAMP " + quoteString(v.String())
	case t.IsBinary():
		return "X'" + v.String() + "'"
	case t == core.DoubleType:
		s := v.String()
		if !strings.ContainsAny(s, "eE") {
			s += "E0"
		}
		return s
	case t == core.DecimalType:
		s := v.String()
		if !strings.Contains(s, ".") {
			return "CAST(" + s + " AS DECIMAL)"
		}
		return s
	}
	return v.String()
}

func (e ColumnRef) String() string {
	if e.Table != "" {
		return QuoteIdentifier(e.Table) + "." + QuoteIdentifier(e.Column)
	}
	return QuoteIdentifier(e.Column)
}

func (e VariableRef) String() string {
	return "@" + e.Name
}

func (e ParamRef) String() string {
	if e.Name != "" {
		return ":" + e.Name
	}
	return "?"
}

func (e UnaryExpr) String() string {
	if e.Op == NotOp {
		return "(NOT " + e.Operand.String() + ")"
	}
	return "(-" + e.Operand.String() + ")"
}

func (e BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

func (e IsNullExpr) String() string {
	if e.Not {
		return "(" + e.Operand.String() + " IS NOT NULL)"
	}
	return "(" + e.Operand.String() + " IS NULL)"
}

func (e LikeExpr) String() string {
	s := "(" + e.Operand.String()
	if e.Not {
		s += " NOT"
	}
	s += " LIKE " + e.Pattern.String()
	if e.Escape != nil {
		s += " ESCAPE " + e.Escape.String()
	}
	return s + ")"
}

func (e InExpr) String() string {
	s := "(" + e.Operand.String()
	if e.Not {
		s += " NOT"
	}
	return s + " IN (" + joinExprs(e.List) + "))"
}

func (e BetweenExpr) String() string {
	s := "(" + e.Operand.String()
	if e.Not {
		s += " NOT"
	}
	return s + " BETWEEN " + e.Low.String() + " AND " + e.High.String() + ")"
}

func (e CastExpr) String() string {
	return "CAST(" + e.Operand.String() + " AS " + e.Target.String() + ")"
}

func (e FuncCall) String() string {
	switch {
	case e.Star:
		return e.Name + "(*)"
	case e.Distinct:
		return e.Name + "(DISTINCT " + joinExprs(e.Args) + ")"
	}
	return e.Name + "(" + joinExprs(e.Args) + ")"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdentifier renders a normalized identifier so that it lexes back to
// the same name.
func QuoteIdentifier(name string) string {
	if name != "" && name == toUpper(name) && isPlainWord(name) {
		if _, reserved := keywords[name]; !reserved {
			return name
		}
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainWord(s string) bool {
	if !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isAlphaNumeric(s[i]) {
			return false
		}
	}
	return true
}

// Walk calls fn for e and every sub-expression, depth first. Returning
// false from fn skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case UnaryExpr:
		Walk(n.Operand, fn)
	case BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case IsNullExpr:
		Walk(n.Operand, fn)
	case LikeExpr:
		Walk(n.Operand, fn)
		Walk(n.Pattern, fn)
		Walk(n.Escape, fn)
	case InExpr:
		Walk(n.Operand, fn)
		for _, item := range n.List {
			Walk(item, fn)
		}
	case BetweenExpr:
		Walk(n.Operand, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)
	case CastExpr:
		Walk(n.Operand, fn)
	case FuncCall:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	}
}

package db

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/sql"
)

// evalContext is the per-statement state expressions read: the session
// and the statement's fixed clock.
type evalContext struct {
	ch  *Channel
	now time.Time
}

// expression is a bound expression. Column references are resolved to
// ordinals of the row passed to eval.
type expression interface {
	eval(ctx *evalContext, row core.Row) (core.Value, error)
	Type() core.ColumnType
}

var (
	boolTrue    = core.NewBoolean(true)
	boolFalse   = core.NewBoolean(false)
	boolUnknown = core.Null(core.BooleanType)
)

// truth reports whether v selects a row. NULL (UNKNOWN) does not.
func truth(v core.Value) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	if v.Type() == core.BooleanType {
		return v.Bool(), nil
	}
	b, err := core.Convert(v, core.BooleanType)
	if err != nil {
		return false, err
	}
	return b.Bool(), nil
}

func matches(ctx *evalContext, e expression, row core.Row) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := e.eval(ctx, row)
	if err != nil {
		return false, err
	}
	return truth(v)
}

type constant struct {
	value core.Value
}

func (e *constant) eval(*evalContext, core.Row) (core.Value, error) { return e.value, nil }
func (e *constant) Type() core.ColumnType                           { return e.value.Type() }

type columnValue struct {
	ordinal int
	typ     core.ColumnType
}

func (e *columnValue) eval(_ *evalContext, row core.Row) (core.Value, error) {
	return row[e.ordinal], nil
}

func (e *columnValue) Type() core.ColumnType { return e.typ }

// variableValue reads the variable when evaluated, so a SET earlier in the
// same batch is visible.
type variableValue struct {
	name string
	typ  core.ColumnType
}

func (e *variableValue) eval(ctx *evalContext, _ core.Row) (core.Value, error) {
	v, ok := ctx.ch.variables[e.name]
	if !ok {
		return core.Value{}, core.NewBindingError(core.CodeVariableNotFound, "variable @%s is not declared", e.name)
	}
	return v.value, nil
}

func (e *variableValue) Type() core.ColumnType { return e.typ }

type negateExpr struct {
	operand expression
}

func (e *negateExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return core.Negate(v)
}

func (e *negateExpr) Type() core.ColumnType { return e.operand.Type() }

type notExpr struct {
	operand expression
}

func (e *notExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return not3(v)
}

func (e *notExpr) Type() core.ColumnType { return core.BooleanType }

func not3(v core.Value) (core.Value, error) {
	if v.IsNull() {
		return boolUnknown, nil
	}
	b, err := truth(v)
	if err != nil {
		return core.Value{}, err
	}
	return core.NewBoolean(!b), nil
}

type arithmeticExpr struct {
	op          core.ArithOp
	left, right expression
	typ         core.ColumnType
}

func (e *arithmeticExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	l, err := e.left.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	r, err := e.right.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return core.Arithmetic(e.op, l, r)
}

func (e *arithmeticExpr) Type() core.ColumnType { return e.typ }

type concatExpr struct {
	left, right expression
}

func (e *concatExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	l, err := e.left.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	r, err := e.right.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return core.Concat(l, r), nil
}

func (e *concatExpr) Type() core.ColumnType { return core.VarCharType }

type comparisonExpr struct {
	op          sql.BinaryOp
	left, right expression
}

func (e *comparisonExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	l, err := e.left.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	r, err := e.right.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return compare3(e.op, l, r)
}

func (e *comparisonExpr) Type() core.ColumnType { return core.BooleanType }

// compare3 applies a comparison operator with SQL NULL semantics: any
// NULL operand makes the outcome UNKNOWN.
func compare3(op sql.BinaryOp, l, r core.Value) (core.Value, error) {
	if l.IsNull() || r.IsNull() {
		return boolUnknown, nil
	}
	c, err := core.Compare(l, r)
	if err != nil {
		return core.Value{}, err
	}
	var result bool
	switch op {
	case sql.EqualOp:
		result = c == 0
	case sql.NotEqualOp:
		result = c != 0
	case sql.LessOp:
		result = c < 0
	case sql.LessOrEqualOp:
		result = c <= 0
	case sql.GreaterOp:
		result = c > 0
	case sql.GreaterOrEqualOp:
		result = c >= 0
	}
	return core.NewBoolean(result), nil
}

type logicalExpr struct {
	and         bool
	left, right expression
}

func (e *logicalExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	l, err := e.left.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	if !l.IsNull() {
		b, err := truth(l)
		if err != nil {
			return core.Value{}, err
		}
		if b != e.and {
			// FALSE AND x, TRUE OR x
			return core.NewBoolean(b), nil
		}
	}
	r, err := e.right.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	if e.and {
		return and3(l, r)
	}
	return or3(l, r)
}

func (e *logicalExpr) Type() core.ColumnType { return core.BooleanType }

func and3(l, r core.Value) (core.Value, error) {
	for _, v := range []core.Value{l, r} {
		if v.IsNull() {
			continue
		}
		b, err := truth(v)
		if err != nil {
			return core.Value{}, err
		}
		if !b {
			return boolFalse, nil
		}
	}
	if l.IsNull() || r.IsNull() {
		return boolUnknown, nil
	}
	return boolTrue, nil
}

func or3(l, r core.Value) (core.Value, error) {
	for _, v := range []core.Value{l, r} {
		if v.IsNull() {
			continue
		}
		b, err := truth(v)
		if err != nil {
			return core.Value{}, err
		}
		if b {
			return boolTrue, nil
		}
	}
	if l.IsNull() || r.IsNull() {
		return boolUnknown, nil
	}
	return boolFalse, nil
}

type isNullExpr struct {
	operand expression
	not     bool
}

func (e *isNullExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return core.NewBoolean(v.IsNull() != e.not), nil
}

func (e *isNullExpr) Type() core.ColumnType { return core.BooleanType }

type likeExpr struct {
	operand, pattern, escape expression
	not                      bool
}

func (e *likeExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	p, err := e.pattern.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	if v.IsNull() || p.IsNull() {
		return boolUnknown, nil
	}

	var escape rune
	if e.escape != nil {
		ev, err := e.escape.eval(ctx, row)
		if err != nil {
			return core.Value{}, err
		}
		if ev.IsNull() {
			return boolUnknown, nil
		}
		s := ev.Str()
		if utf8.RuneCountInString(s) != 1 {
			return core.Value{}, core.NewConstraintError(core.CodeInvalidArgument, "LIKE escape must be a single character, got '%s'", s)
		}
		escape, _ = utf8.DecodeRuneInString(s)
	}

	tokens, err := compileLike(p.Str(), escape)
	if err != nil {
		return core.Value{}, err
	}
	ignoreCase := v.Type() == core.VarCharIgnoreCaseType || p.Type() == core.VarCharIgnoreCaseType
	matched := matchLike([]rune(v.Str()), tokens, ignoreCase)
	return core.NewBoolean(matched != e.not), nil
}

func (e *likeExpr) Type() core.ColumnType { return core.BooleanType }

type likeToken struct {
	kind byte // '%', '_' or 'c' for a literal character
	r    rune
}

func compileLike(pattern string, escape rune) ([]likeToken, error) {
	runes := []rune(pattern)
	tokens := make([]likeToken, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escape != 0 && r == escape:
			if i+1 >= len(runes) {
				return nil, core.NewConstraintError(core.CodeInvalidArgument, "LIKE pattern '%s' ends with the escape character", pattern)
			}
			i++
			tokens = append(tokens, likeToken{kind: 'c', r: runes[i]})
		case r == '%':
			tokens = append(tokens, likeToken{kind: '%'})
		case r == '_':
			tokens = append(tokens, likeToken{kind: '_'})
		default:
			tokens = append(tokens, likeToken{kind: 'c', r: r})
		}
	}
	return tokens, nil
}

// matchLike is wildcard matching with backtracking to the last %.
func matchLike(s []rune, tokens []likeToken, ignoreCase bool) bool {
	si, ti := 0, 0
	starToken, starRune := -1, 0
	for si < len(s) {
		if ti < len(tokens) {
			token := tokens[ti]
			switch {
			case token.kind == '%':
				starToken, starRune = ti, si
				ti++
				continue
			case token.kind == '_' || sameRune(token.r, s[si], ignoreCase):
				si++
				ti++
				continue
			}
		}
		if starToken < 0 {
			return false
		}
		starRune++
		si = starRune
		ti = starToken + 1
	}
	for ti < len(tokens) && tokens[ti].kind == '%' {
		ti++
	}
	return ti == len(tokens)
}

func sameRune(a, b rune, ignoreCase bool) bool {
	if a == b {
		return true
	}
	return ignoreCase && unicode.ToUpper(a) == unicode.ToUpper(b)
}

type inExpr struct {
	operand expression
	list    []expression
	not     bool
}

func (e *inExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	if v.IsNull() {
		return boolUnknown, nil
	}
	sawNull := false
	for _, item := range e.list {
		iv, err := item.eval(ctx, row)
		if err != nil {
			return core.Value{}, err
		}
		if iv.IsNull() {
			sawNull = true
			continue
		}
		c, err := core.Compare(v, iv)
		if err != nil {
			return core.Value{}, err
		}
		if c == 0 {
			return core.NewBoolean(!e.not), nil
		}
	}
	if sawNull {
		return boolUnknown, nil
	}
	return core.NewBoolean(e.not), nil
}

func (e *inExpr) Type() core.ColumnType { return core.BooleanType }

type betweenExpr struct {
	operand, low, high expression
	not                bool
}

func (e *betweenExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	low, err := e.low.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	high, err := e.high.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	ge, err := compare3(sql.GreaterOrEqualOp, v, low)
	if err != nil {
		return core.Value{}, err
	}
	le, err := compare3(sql.LessOrEqualOp, v, high)
	if err != nil {
		return core.Value{}, err
	}
	result, err := and3(ge, le)
	if err != nil || !e.not {
		return result, err
	}
	return not3(result)
}

func (e *betweenExpr) Type() core.ColumnType { return core.BooleanType }

type castExpr struct {
	operand expression
	target  sql.TypeSpec
}

func (e *castExpr) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	v, err := e.operand.eval(ctx, row)
	if err != nil {
		return core.Value{}, err
	}
	return castValue(v, e.target)
}

func (e *castExpr) Type() core.ColumnType { return e.target.Type }

// castValue converts v to spec, truncating strings to the declared length
// and rounding decimals to the declared scale.
func castValue(v core.Value, spec sql.TypeSpec) (core.Value, error) {
	out, err := core.Convert(v, spec.Type)
	if err != nil || out.IsNull() {
		return out, err
	}
	switch {
	case spec.Type.IsString() && spec.Size > 0:
		s := out.Str()
		if utf8.RuneCountInString(s) > spec.Size {
			out = core.NewString(spec.Type, string([]rune(s)[:spec.Size]))
		}
	case spec.Type == core.DecimalType && spec.Scale > 0:
		out = core.NewDecimal(out.Decimal().Round(int32(spec.Scale)))
	}
	return out, nil
}

type builtinCall struct {
	fn   *builtin
	args []expression
	typ  core.ColumnType
}

func (e *builtinCall) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	args, err := evalAll(ctx, e.args, row)
	if err != nil {
		return core.Value{}, err
	}
	if e.fn.strict {
		for _, arg := range args {
			if arg.IsNull() {
				return core.Null(e.typ), nil
			}
		}
	}
	v, err := e.fn.call(ctx, args)
	if err != nil {
		return core.Value{}, err
	}
	if v.IsNull() {
		return core.Null(e.typ), nil
	}
	return v, nil
}

func (e *builtinCall) Type() core.ColumnType { return e.typ }

type aliasCall struct {
	binding *AliasBinding
	fn      *ExternalFunction
	args    []expression
}

func (e *aliasCall) eval(ctx *evalContext, row core.Row) (core.Value, error) {
	args, err := evalAll(ctx, e.args, row)
	if err != nil {
		return core.Value{}, err
	}
	return e.binding.invoke(e.fn, args)
}

func (e *aliasCall) Type() core.ColumnType { return e.fn.Returns }

func evalAll(ctx *evalContext, exprs []expression, row core.Row) ([]core.Value, error) {
	values := make([]core.Value, len(exprs))
	for i, e := range exprs {
		v, err := e.eval(ctx, row)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// isConstant reports whether e references no column, so its value does not
// depend on the row.
func isConstant(e sql.Expr) bool {
	fixed := true
	sql.Walk(e, func(node sql.Expr) bool {
		switch n := node.(type) {
		case sql.ColumnRef:
			fixed = false
		case sql.FuncCall:
			if _, ok := aggregateKinds[strings.ToUpper(n.Name)]; ok {
				fixed = false
			}
		}
		return fixed
	})
	return fixed
}

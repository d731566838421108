package db

import (
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/sql"
)

// scopeColumn is one column visible to a statement. source is the name
// the column can be qualified with: the FROM alias, or the table name.
type scopeColumn struct {
	source string
	table  string
	name   string
	typ    core.ColumnType
}

// scope lists the columns of a statement's sources in row order; the
// ordinal of a column in the scope is its position in the joined row.
type scope struct {
	columns []scopeColumn
}

func (s *scope) add(table *op.Table, alias string) {
	source := alias
	if source == "" {
		source = table.Name()
	}
	for _, column := range table.Def.Columns {
		s.columns = append(s.columns, scopeColumn{
			source: source,
			table:  table.Name(),
			name:   column.Name,
			typ:    column.Type,
		})
	}
}

func tableScope(table *op.Table) *scope {
	s := &scope{}
	s.add(table, "")
	return s
}

// prefix returns the scope of the first n columns.
func (s *scope) prefix(n int) *scope {
	return &scope{columns: s.columns[:n:n]}
}

func (s *scope) hasSource(name string) bool {
	for _, c := range s.columns {
		if c.source == name || c.table == name {
			return true
		}
	}
	return false
}

// resolve finds the ordinal of ref. found is false when no column matches;
// a reference matching more than one column is ambiguous.
func (s *scope) resolve(ref sql.ColumnRef) (ordinal int, found bool, err error) {
	if s == nil {
		return -1, false, nil
	}
	ordinal = -1
	for i, c := range s.columns {
		if c.name != ref.Column {
			continue
		}
		if ref.Table != "" && ref.Table != c.source && ref.Table != c.table {
			continue
		}
		if ordinal >= 0 {
			return -1, false, core.NewBindingError(core.CodeAmbiguousColumn, "column reference %s is ambiguous", ref)
		}
		ordinal = i
	}
	return ordinal, ordinal >= 0, nil
}

// binder turns parsed expressions into evaluable ones for one scope.
type binder struct {
	ch     *Channel
	scope  *scope
	params *paramSet
	group  *grouping
}

// grouping is the state of a grouped query. Expressions bound while it is
// set evaluate against group rows: the GROUP BY key values followed by the
// aggregate results.
type grouping struct {
	source     *binder
	keyTypes   []core.ColumnType
	keyText    map[string]int
	keyColumn  map[int]int
	aggregates []*aggregateSpec
}

func (b *binder) withScope(s *scope) *binder {
	return &binder{ch: b.ch, scope: s, params: b.params}
}

// newGrouping binds the GROUP BY keys and returns a binder for the
// expressions evaluated per group.
func (b *binder) newGrouping(keys []sql.Expr) (*binder, []expression, error) {
	g := &grouping{
		source:    b,
		keyText:   make(map[string]int),
		keyColumn: make(map[int]int),
	}
	bound := make([]expression, len(keys))
	for i, key := range keys {
		e, err := b.bind(key)
		if err != nil {
			return nil, nil, err
		}
		bound[i] = e
		g.keyTypes = append(g.keyTypes, e.Type())
		if ref, ok := key.(sql.ColumnRef); ok {
			if ordinal, found, _ := b.scope.resolve(ref); found {
				g.keyColumn[ordinal] = i
			}
		}
		g.keyText[key.String()] = i
	}
	return &binder{ch: b.ch, scope: b.scope, params: b.params, group: g}, bound, nil
}

func (b *binder) bindAll(exprs []sql.Expr) ([]expression, error) {
	bound := make([]expression, len(exprs))
	for i, e := range exprs {
		var err error
		if bound[i], err = b.bind(e); err != nil {
			return nil, err
		}
	}
	return bound, nil
}

func (b *binder) bindOptional(e sql.Expr) (expression, error) {
	if e == nil {
		return nil, nil
	}
	return b.bind(e)
}

func (b *binder) bind(e sql.Expr) (expression, error) {
	if g := b.group; g != nil {
		if i, ok := g.keyText[e.String()]; ok {
			return &columnValue{ordinal: i, typ: g.keyTypes[i]}, nil
		}
	}

	switch n := e.(type) {
	case sql.Literal:
		return &constant{value: n.Value}, nil

	case sql.ColumnRef:
		return b.bindColumn(n)

	case sql.VariableRef:
		v, ok := b.ch.variables[n.Name]
		if !ok {
			return nil, core.NewBindingError(core.CodeVariableNotFound, "variable @%s is not declared", n.Name)
		}
		return &variableValue{name: n.Name, typ: v.spec.Type}, nil

	case sql.ParamRef:
		v, err := b.params.lookup(n)
		if err != nil {
			return nil, err
		}
		return &constant{value: v}, nil

	case sql.UnaryExpr:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		if n.Op == sql.NotOp {
			return &notExpr{operand: operand}, nil
		}
		return &negateExpr{operand: operand}, nil

	case sql.BinaryExpr:
		return b.bindBinary(n)

	case sql.IsNullExpr:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		return &isNullExpr{operand: operand, not: n.Not}, nil

	case sql.LikeExpr:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		pattern, err := b.bind(n.Pattern)
		if err != nil {
			return nil, err
		}
		escape, err := b.bindOptional(n.Escape)
		if err != nil {
			return nil, err
		}
		return &likeExpr{operand: operand, pattern: pattern, escape: escape, not: n.Not}, nil

	case sql.InExpr:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		list, err := b.bindAll(n.List)
		if err != nil {
			return nil, err
		}
		return &inExpr{operand: operand, list: list, not: n.Not}, nil

	case sql.BetweenExpr:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		low, err := b.bind(n.Low)
		if err != nil {
			return nil, err
		}
		high, err := b.bind(n.High)
		if err != nil {
			return nil, err
		}
		return &betweenExpr{operand: operand, low: low, high: high, not: n.Not}, nil

	case sql.CastExpr:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		return &castExpr{operand: operand, target: n.Target}, nil

	case sql.FuncCall:
		return b.bindCall(n)
	}
	return nil, core.NewSyntaxError(core.CodeUnexpectedToken, "unsupported expression %s", e)
}

func (b *binder) bindColumn(ref sql.ColumnRef) (expression, error) {
	ordinal, found, err := b.scope.resolve(ref)
	if err != nil {
		return nil, err
	}
	if !found {
		if ref.Table == "" {
			if fn, ok := builtins[ref.Column]; ok && fn.niladic {
				return b.bindBuiltin(fn, sql.FuncCall{Name: ref.Column})
			}
		} else if b.scope == nil || !b.scope.hasSource(ref.Table) {
			return nil, core.NewBindingError(core.CodeTableNotFound, "table %s not found in FROM clause", ref.Table)
		}
		return nil, core.NewBindingError(core.CodeColumnNotFound, "column %s not found", ref)
	}
	return b.columnAt(ordinal)
}

// columnAt binds the scope column at ordinal. In a grouped query the column
// must be a GROUP BY key.
func (b *binder) columnAt(ordinal int) (expression, error) {
	if g := b.group; g != nil {
		i, ok := g.keyColumn[ordinal]
		if !ok {
			c := b.scope.columns[ordinal]
			return nil, core.NewBindingError(core.CodeInvalidGrouping, "column %s.%s must appear in GROUP BY or be used in an aggregate", c.source, c.name)
		}
		return &columnValue{ordinal: i, typ: g.keyTypes[i]}, nil
	}
	return &columnValue{ordinal: ordinal, typ: b.scope.columns[ordinal].typ}, nil
}

func (b *binder) bindBinary(n sql.BinaryExpr) (expression, error) {
	left, err := b.bind(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.bind(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case sql.AndOp, sql.OrOp:
		return &logicalExpr{and: n.Op == sql.AndOp, left: left, right: right}, nil
	case sql.ConcatenateOp:
		return &concatExpr{left: left, right: right}, nil
	}
	if n.Op.IsComparison() {
		return &comparisonExpr{op: n.Op, left: left, right: right}, nil
	}

	var arith core.ArithOp
	switch n.Op {
	case sql.AddOp:
		arith = core.OpAdd
	case sql.SubtractOp:
		arith = core.OpSubtract
	case sql.MultiplyOp:
		arith = core.OpMultiply
	case sql.DivideOp:
		arith = core.OpDivide
	default:
		arith = core.OpModulo
	}
	typ := core.Promote(left.Type(), right.Type())
	if typ.IsString() {
		typ = core.DecimalType
	}
	return &arithmeticExpr{op: arith, left: left, right: right, typ: typ}, nil
}

func (b *binder) bindCall(n sql.FuncCall) (expression, error) {
	if kind, ok := aggregateKinds[n.Name]; ok {
		return b.bindAggregate(kind, n)
	}
	if n.Star || n.Distinct {
		return nil, core.NewSyntaxError(core.CodeUnexpectedToken, "%s is not an aggregate function", n.Name)
	}
	if fn, ok := builtins[n.Name]; ok {
		return b.bindBuiltin(fn, n)
	}
	if binding := b.ch.db.binding(n.Name); binding != nil {
		return b.bindAlias(binding, n)
	}
	return nil, core.NewFunctionError(core.CodeFunctionNotFound, "function %s not found", n.Name)
}

func (b *binder) bindBuiltin(fn *builtin, n sql.FuncCall) (expression, error) {
	if len(n.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(n.Args) > fn.maxArgs) {
		return nil, core.NewFunctionError(core.CodeWrongArity, "wrong number of arguments for %s: %d", fn.name, len(n.Args))
	}
	args, err := b.bindAll(n.Args)
	if err != nil {
		return nil, err
	}
	types := make([]core.ColumnType, len(args))
	for i, arg := range args {
		types[i] = arg.Type()
	}
	return &builtinCall{fn: fn, args: args, typ: fn.returns(types)}, nil
}

func (b *binder) bindAlias(binding *AliasBinding, n sql.FuncCall) (expression, error) {
	fn, err := binding.resolve(b.ch.db.functions)
	if err != nil {
		return nil, err
	}
	b.ch.db.logger.Debug("alias resolved", "alias", binding.Name, "target", binding.Target)
	if len(n.Args) != len(fn.Params) {
		return nil, core.NewFunctionError(core.CodeWrongArity, "alias %s expects %d arguments, got %d", binding.Name, len(fn.Params), len(n.Args))
	}
	args, err := b.bindAll(n.Args)
	if err != nil {
		return nil, err
	}
	return &aliasCall{binding: binding, fn: fn, args: args}, nil
}

func (b *binder) bindAggregate(kind aggregateKind, n sql.FuncCall) (expression, error) {
	g := b.group
	if g == nil {
		return nil, core.NewBindingError(core.CodeInvalidGrouping, "aggregate %s is not allowed here", n.Name)
	}

	spec := &aggregateSpec{kind: kind, distinct: n.Distinct}
	switch {
	case n.Star:
		if kind != aggCount {
			return nil, core.NewSyntaxError(core.CodeUnexpectedToken, "%s(*) is not allowed", n.Name)
		}
	case len(n.Args) != 1:
		return nil, core.NewFunctionError(core.CodeWrongArity, "%s takes exactly one argument", n.Name)
	default:
		arg, err := g.source.bind(n.Args[0])
		if err != nil {
			return nil, err
		}
		spec.arg = arg
	}

	argType := core.NullType
	if spec.arg != nil {
		argType = spec.arg.Type()
	}
	typ, err := aggregateType(kind, argType)
	if err != nil {
		return nil, err
	}
	spec.typ = typ

	g.aggregates = append(g.aggregates, spec)
	return &columnValue{ordinal: len(g.keyTypes) + len(g.aggregates) - 1, typ: typ}, nil
}

// hasAggregate reports whether e calls an aggregate function.
func hasAggregate(e sql.Expr) bool {
	found := false
	sql.Walk(e, func(node sql.Expr) bool {
		if call, ok := node.(sql.FuncCall); ok {
			if _, isAggregate := aggregateKinds[call.Name]; isAggregate {
				found = true
			}
		}
		return !found
	})
	return found
}

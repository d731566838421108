package db

import (
	"iter"
	"slices"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/sql"
)

// columnBounds collects the constant restrictions a WHERE clause places on
// one column.
type columnBounds struct {
	eq       expression
	low      expression
	lowIncl  bool
	high     expression
	highIncl bool
}

// indexAccess reads a table through one index instead of a full scan. The
// rows it yields are a superset of the matching rows; the WHERE predicate
// is still applied to each of them.
type indexAccess struct {
	index    *op.Index
	types    []core.ColumnType
	eq       []expression
	low      expression
	lowIncl  bool
	high     expression
	highIncl bool
}

// conjuncts splits e at its top-level ANDs.
func conjuncts(e sql.Expr) []sql.Expr {
	if n, ok := e.(sql.BinaryExpr); ok && n.Op == sql.AndOp {
		return append(conjuncts(n.Left), conjuncts(n.Right)...)
	}
	if e == nil {
		return nil
	}
	return []sql.Expr{e}
}

// flipComparison mirrors op for a comparison written constant-first.
func flipComparison(op sql.BinaryOp) sql.BinaryOp {
	switch op {
	case sql.LessOp:
		return sql.GreaterOp
	case sql.LessOrEqualOp:
		return sql.GreaterOrEqualOp
	case sql.GreaterOp:
		return sql.LessOp
	case sql.GreaterOrEqualOp:
		return sql.LessOrEqualOp
	}
	return op
}

// planAccess chooses an index of table for where. Only the first width
// ordinals of b's scope belong to table. It returns nil when no index
// applies: an equality on every column of an index is preferred, primary
// key first, then a range on a single-column index.
func planAccess(b *binder, table *op.Table, width int, where sql.Expr) (*indexAccess, error) {
	if where == nil || len(table.Indexes()) == 0 {
		return nil, nil
	}

	bounds := make(map[int]*columnBounds)
	boundsOf := func(ordinal int) *columnBounds {
		cb, ok := bounds[ordinal]
		if !ok {
			cb = &columnBounds{}
			bounds[ordinal] = cb
		}
		return cb
	}
	columnOf := func(e sql.Expr) (int, bool) {
		ref, ok := e.(sql.ColumnRef)
		if !ok {
			return -1, false
		}
		ordinal, found, err := b.scope.resolve(ref)
		if err != nil || !found || ordinal >= width {
			return -1, false
		}
		return ordinal, true
	}

	for _, c := range conjuncts(where) {
		switch n := c.(type) {
		case sql.BinaryExpr:
			if !n.Op.IsComparison() || n.Op == sql.NotEqualOp {
				continue
			}
			cmp := n.Op
			ordinal, ok := columnOf(n.Left)
			value := n.Right
			if !ok {
				if ordinal, ok = columnOf(n.Right); !ok {
					continue
				}
				value = n.Left
				cmp = flipComparison(cmp)
			}
			if !isConstant(value) {
				continue
			}
			bound, err := b.bind(value)
			if err != nil {
				return nil, err
			}
			cb := boundsOf(ordinal)
			switch cmp {
			case sql.EqualOp:
				if cb.eq == nil {
					cb.eq = bound
				}
			case sql.GreaterOp, sql.GreaterOrEqualOp:
				if cb.low == nil {
					cb.low, cb.lowIncl = bound, cmp == sql.GreaterOrEqualOp
				}
			case sql.LessOp, sql.LessOrEqualOp:
				if cb.high == nil {
					cb.high, cb.highIncl = bound, cmp == sql.LessOrEqualOp
				}
			}

		case sql.BetweenExpr:
			if n.Not || !isConstant(n.Low) || !isConstant(n.High) {
				continue
			}
			ordinal, ok := columnOf(n.Operand)
			if !ok {
				continue
			}
			low, err := b.bind(n.Low)
			if err != nil {
				return nil, err
			}
			high, err := b.bind(n.High)
			if err != nil {
				return nil, err
			}
			cb := boundsOf(ordinal)
			if cb.low == nil && cb.high == nil {
				cb.low, cb.lowIncl = low, true
				cb.high, cb.highIncl = high, true
			}
		}
	}
	if len(bounds) == 0 {
		return nil, nil
	}

	indexes := slices.Clone(table.Indexes())
	slices.SortStableFunc(indexes, func(x, y *op.Index) int {
		return indexRank(x) - indexRank(y)
	})

	for _, index := range indexes {
		eq := make([]expression, 0, len(index.Columns()))
		for _, column := range index.Columns() {
			cb, ok := bounds[column]
			if !ok || cb.eq == nil {
				break
			}
			eq = append(eq, cb.eq)
		}
		if len(eq) == len(index.Columns()) {
			return &indexAccess{index: index, types: indexTypes(table, index), eq: eq}, nil
		}
	}
	for _, index := range indexes {
		if len(index.Columns()) != 1 {
			continue
		}
		cb, ok := bounds[index.Columns()[0]]
		if !ok || (cb.low == nil && cb.high == nil) {
			continue
		}
		return &indexAccess{
			index:    index,
			types:    indexTypes(table, index),
			low:      cb.low,
			lowIncl:  cb.lowIncl,
			high:     cb.high,
			highIncl: cb.highIncl,
		}, nil
	}
	return nil, nil
}

func indexRank(index *op.Index) int {
	switch {
	case index.Def.Primary:
		return 0
	case index.Def.Unique:
		return 1
	}
	return 2
}

func indexTypes(table *op.Table, index *op.Index) []core.ColumnType {
	types := make([]core.ColumnType, len(index.Columns()))
	for i, column := range index.Columns() {
		types[i] = table.Def.Columns[column].Type
	}
	return types
}

// keyValue evaluates a bound constant and converts it to the index column
// type. usable is false when the conversion would change the value; null
// is true when the value is NULL and so matches nothing.
func keyValue(ctx *evalContext, e expression, t core.ColumnType) (v core.Value, usable, null bool, err error) {
	raw, err := e.eval(ctx, nil)
	if err != nil {
		return core.Value{}, false, false, err
	}
	if raw.IsNull() {
		return raw, true, true, nil
	}
	v, convErr := core.Convert(raw, t)
	if convErr != nil {
		return core.Value{}, false, false, nil
	}
	if c, cmpErr := core.Compare(v, raw); cmpErr != nil || c != 0 {
		return core.Value{}, false, false, nil
	}
	return v, true, false, nil
}

// rowIDs returns the candidate row ids in row id order. ok is false when
// the bound values cannot be used as keys and the table must be scanned.
func (a *indexAccess) rowIDs(ctx *evalContext) (ids []int64, ok bool, err error) {
	if a.eq != nil {
		key := make(core.Key, len(a.eq))
		for i, e := range a.eq {
			v, usable, null, err := keyValue(ctx, e, a.types[i])
			if err != nil || !usable {
				return nil, false, err
			}
			if null {
				return nil, true, nil
			}
			key[i] = v
		}
		ids = a.index.Lookup(key)
	} else {
		var low, high core.Key
		if a.low != nil {
			v, usable, null, err := keyValue(ctx, a.low, a.types[0])
			if err != nil || !usable {
				return nil, false, err
			}
			if null {
				return nil, true, nil
			}
			low = core.Key{v}
		}
		if a.high != nil {
			v, usable, null, err := keyValue(ctx, a.high, a.types[0])
			if err != nil || !usable {
				return nil, false, err
			}
			if null {
				return nil, true, nil
			}
			high = core.Key{v}
		}
		ids = a.index.Range(low, a.lowIncl, high, a.highIncl)
	}
	slices.Sort(ids)
	return ids, true, nil
}

// tableReader yields the rows of one table that may satisfy a predicate.
type tableReader struct {
	table  *op.Table
	access *indexAccess
}

func (r tableReader) rows(ctx *evalContext) iter.Seq2[op.Entry, error] {
	if r.access == nil {
		return r.table.Scan()
	}
	ids, ok, err := r.access.rowIDs(ctx)
	if err != nil {
		return func(yield func(op.Entry, error) bool) {
			yield(op.Entry{}, err)
		}
	}
	if !ok {
		return r.table.Scan()
	}
	return r.table.Fetch(ids)
}

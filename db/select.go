package db

import (
	"slices"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/sql"
)

// joinSource is one FROM entry. on is bound against the columns of this
// source and every source before it.
type joinSource struct {
	table *op.Table
	width int
	on    expression
}

// orderKey sorts by a select item when item >= 0, otherwise by expr.
type orderKey struct {
	item       int
	expr       expression
	descending bool
}

// selectPlan is a bound SELECT ready to run any number of times.
type selectPlan struct {
	sources []joinSource
	reader  tableReader
	where   expression

	grouped    bool
	groupKeys  []expression
	aggregates []*aggregateSpec
	having     expression

	items    []expression
	columns  []ColumnInfo
	order    []orderKey
	distinct bool
	limit    int
	offset   int
}

// compileSelect binds statement against the catalog.
func (ch *Channel) compileSelect(statement *sql.SelectStatement, params *paramSet) (*selectPlan, error) {
	plan := &selectPlan{
		distinct: statement.Distinct,
		limit:    statement.Limit,
		offset:   statement.Offset,
	}

	s := &scope{}
	b := &binder{ch: ch, scope: s, params: params}
	for _, ref := range statement.From {
		table, ok := ch.db.catalog.Table(ref.Name)
		if !ok {
			return nil, core.NewBindingError(core.CodeTableNotFound, "table %s not found", ref.Name)
		}
		source := ref.Alias
		if source == "" {
			source = table.Name()
		}
		for _, other := range s.columns {
			if other.source == source {
				return nil, core.NewBindingError(core.CodeAmbiguousColumn, "table %s appears twice in FROM without an alias", source)
			}
		}
		s.add(table, ref.Alias)

		joined := joinSource{table: table, width: len(table.Def.Columns)}
		if ref.On != nil {
			on, err := b.withScope(s.prefix(len(s.columns))).bind(ref.On)
			if err != nil {
				return nil, err
			}
			joined.on = on
		}
		plan.sources = append(plan.sources, joined)
	}

	if statement.Where != nil {
		if hasAggregate(statement.Where) {
			return nil, core.NewBindingError(core.CodeInvalidGrouping, "aggregates are not allowed in WHERE")
		}
		where, err := b.bind(statement.Where)
		if err != nil {
			return nil, err
		}
		plan.where = where
	}
	if len(plan.sources) > 0 {
		access, err := planAccess(b, plan.sources[0].table, plan.sources[0].width, statement.Where)
		if err != nil {
			return nil, err
		}
		plan.reader = tableReader{table: plan.sources[0].table, access: access}
	}

	plan.grouped = len(statement.GroupBy) > 0 || statement.Having != nil
	for _, item := range statement.Items {
		if !item.Star && hasAggregate(item.Expr) {
			plan.grouped = true
		}
	}
	for _, clause := range statement.OrderBy {
		if hasAggregate(clause.Expr) {
			plan.grouped = true
		}
	}

	itemBinder := b
	if plan.grouped {
		gb, keys, err := b.newGrouping(statement.GroupBy)
		if err != nil {
			return nil, err
		}
		itemBinder = gb
		plan.groupKeys = keys
	}

	labels := make(map[string]int)
	for _, item := range statement.Items {
		if item.Star {
			if err := plan.expandStar(itemBinder, s, item.StarTable); err != nil {
				return nil, err
			}
			continue
		}
		e, err := itemBinder.bind(item.Expr)
		if err != nil {
			return nil, err
		}
		if item.Alias != "" {
			labels[item.Alias] = len(plan.items)
		}
		plan.items = append(plan.items, e)
		plan.columns = append(plan.columns, ColumnInfo{Label: itemLabel(item), Type: e.Type()})
	}

	if statement.Having != nil {
		having, err := itemBinder.bind(statement.Having)
		if err != nil {
			return nil, err
		}
		plan.having = having
	}

	for _, clause := range statement.OrderBy {
		key := orderKey{item: -1, descending: clause.Descending}
		switch n := clause.Expr.(type) {
		case sql.Literal:
			if n.Value.Type() == core.IntegerType || n.Value.Type() == core.BigIntType {
				position := int(n.Value.Int64())
				if position < 1 || position > len(plan.items) {
					return nil, core.NewBindingError(core.CodeColumnNotFound, "ORDER BY position %d is not in the select list", position)
				}
				key.item = position - 1
			}
		case sql.ColumnRef:
			if i, ok := labels[n.Column]; ok && n.Table == "" {
				key.item = i
			}
		}
		if key.item < 0 {
			e, err := itemBinder.bind(clause.Expr)
			if err != nil {
				return nil, err
			}
			key.expr = e
		}
		plan.order = append(plan.order, key)
	}

	if itemBinder.group != nil {
		plan.aggregates = itemBinder.group.aggregates
	}
	return plan, nil
}

func (plan *selectPlan) expandStar(b *binder, s *scope, qualifier string) error {
	matched := false
	for ordinal, c := range s.columns {
		if qualifier != "" && qualifier != c.source && qualifier != c.table {
			continue
		}
		matched = true
		e, err := b.columnAt(ordinal)
		if err != nil {
			return err
		}
		plan.items = append(plan.items, e)
		plan.columns = append(plan.columns, ColumnInfo{Label: c.name, Type: c.typ})
	}
	if qualifier != "" && !matched {
		return core.NewBindingError(core.CodeTableNotFound, "table %s not found in FROM clause", qualifier)
	}
	return nil
}

// itemLabel names a result column: the alias, the bare column name, or the
// expression text.
func itemLabel(item sql.SelectItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	if ref, ok := item.Expr.(sql.ColumnRef); ok {
		return ref.Column
	}
	return item.Expr.String()
}

// tables returns the tables the plan reads.
func (plan *selectPlan) tables() []*op.Table {
	tables := make([]*op.Table, len(plan.sources))
	for i, source := range plan.sources {
		tables[i] = source.table
	}
	return tables
}

// join calls emit for every combined row of the sources that passes the
// ON conditions and the WHERE predicate.
func (plan *selectPlan) join(ctx *evalContext, emit func(core.Row) error) error {
	if len(plan.sources) == 0 {
		ok, err := matches(ctx, plan.where, core.Row{})
		if err != nil || !ok {
			return err
		}
		return emit(core.Row{})
	}

	// inner sources are read once and joined from memory
	inner := make([][]core.Row, len(plan.sources))
	for i := 1; i < len(plan.sources); i++ {
		for entry, err := range plan.sources[i].table.Scan() {
			if err != nil {
				return err
			}
			inner[i] = append(inner[i], entry.Row)
		}
	}

	var descend func(level int, row core.Row) error
	descend = func(level int, row core.Row) error {
		if level == len(plan.sources) {
			ok, err := matches(ctx, plan.where, row)
			if err != nil || !ok {
				return err
			}
			return emit(row)
		}
		for _, right := range inner[level] {
			combined := make(core.Row, 0, len(row)+len(right))
			combined = append(append(combined, row...), right...)
			ok, err := matches(ctx, plan.sources[level].on, combined)
			if err != nil {
				return err
			}
			if ok {
				if err := descend(level+1, combined); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for entry, err := range plan.reader.rows(ctx) {
		if err != nil {
			return err
		}
		ok, err := matches(ctx, plan.sources[0].on, entry.Row)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := descend(1, entry.Row); err != nil {
			return err
		}
	}
	return nil
}

// outputRow is a projected row and the values it sorts by.
type outputRow struct {
	values core.Row
	sort   core.Row
}

// execute runs the plan and returns the result rows in output order.
func (plan *selectPlan) execute(ctx *evalContext) ([]core.Row, error) {
	var out []outputRow
	var seen *seenRows
	if plan.distinct {
		seen = newSeenRows()
	}
	project := func(row core.Row) error {
		values, err := evalAll(ctx, plan.items, row)
		if err != nil {
			return err
		}
		if seen != nil && !seen.add(values) {
			return nil
		}
		var sortValues core.Row
		if len(plan.order) > 0 {
			sortValues = make(core.Row, len(plan.order))
			for i, key := range plan.order {
				if key.item >= 0 {
					sortValues[i] = values[key.item]
					continue
				}
				if sortValues[i], err = key.expr.eval(ctx, row); err != nil {
					return err
				}
			}
		}
		out = append(out, outputRow{values: values, sort: sortValues})
		return nil
	}

	if plan.grouped {
		groups := newGroupTable(plan.aggregates)
		err := plan.join(ctx, func(row core.Row) error {
			key, err := evalAll(ctx, plan.groupKeys, row)
			if err != nil {
				return err
			}
			g := groups.find(key)
			for _, acc := range g.accumulators {
				if err := acc.add(ctx, row); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		// an ungrouped aggregate over no rows still yields one row
		if len(groups.order) == 0 && len(plan.groupKeys) == 0 {
			groups.find(core.Row{})
		}

		for _, g := range groups.order {
			row := make(core.Row, 0, len(g.key)+len(g.accumulators))
			row = append(row, g.key...)
			for _, acc := range g.accumulators {
				v, err := acc.result()
				if err != nil {
					return nil, err
				}
				row = append(row, v)
			}
			ok, err := matches(ctx, plan.having, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if err := project(row); err != nil {
				return nil, err
			}
		}
	} else if err := plan.join(ctx, project); err != nil {
		return nil, err
	}

	if len(plan.order) > 0 {
		var sortErr error
		slices.SortStableFunc(out, func(a, b outputRow) int {
			for i, key := range plan.order {
				c, err := core.CompareNullable(a.sort[i], b.sort[i])
				if err != nil && sortErr == nil {
					sortErr = err
				}
				if c != 0 {
					if key.descending {
						return -c
					}
					return c
				}
			}
			return 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	if plan.offset > 0 {
		if plan.offset >= len(out) {
			out = nil
		} else {
			out = out[plan.offset:]
		}
	}
	if plan.limit >= 0 && plan.limit < len(out) {
		out = out[:plan.limit]
	}

	rows := make([]core.Row, len(out))
	for i, o := range out {
		rows[i] = o.values
	}
	return rows, nil
}

func (ch *Channel) executeSelectStatement(ctx *evalContext, statement *sql.SelectStatement, params *paramSet) (*Result, error) {
	plan, err := ch.compileSelect(statement, params)
	if err != nil {
		return nil, err
	}
	rows, err := plan.execute(ctx)
	if err != nil {
		return nil, err
	}
	return newQueryResult(plan.columns, rows, plan.tables()), nil
}

// scalarQuery runs statement and returns the first column of its first
// row, or a typed NULL when it yields no rows.
func (ch *Channel) scalarQuery(ctx *evalContext, statement *sql.SelectStatement, params *paramSet) (core.Value, error) {
	plan, err := ch.compileSelect(statement, params)
	if err != nil {
		return core.Value{}, err
	}
	if len(plan.columns) != 1 {
		return core.Value{}, core.NewConstraintError(core.CodeCardinality, "subquery must return one column, got %d", len(plan.columns))
	}
	rows, err := plan.execute(ctx)
	if err != nil {
		return core.Value{}, err
	}
	if len(rows) == 0 {
		return core.Null(plan.columns[0].Type), nil
	}
	return rows[0][0], nil
}

package db

import (
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/sql"
)

func (ch *Channel) table(name string) (*op.Table, error) {
	table, ok := ch.db.catalog.Table(name)
	if !ok {
		return nil, core.NewBindingError(core.CodeTableNotFound, "table %s not found", name)
	}
	return table, nil
}

// insertTargets maps the INSERT column list to ordinals. An empty list
// means every column in table order.
func insertTargets(table *op.Table, columns []string) ([]int, error) {
	if len(columns) == 0 {
		targets := make([]int, len(table.Def.Columns))
		for i := range targets {
			targets[i] = i
		}
		return targets, nil
	}
	targets := make([]int, len(columns))
	seen := make(map[int]bool, len(columns))
	for i, name := range columns {
		ordinal := table.Def.ColumnIndex(name)
		if ordinal < 0 {
			return nil, core.NewBindingError(core.CodeColumnNotFound, "column %s not found in table %s", name, table.Name())
		}
		if seen[ordinal] {
			return nil, core.NewBindingError(core.CodeDuplicateColumn, "column %s listed twice", name)
		}
		seen[ordinal] = true
		targets[i] = ordinal
	}
	return targets, nil
}

func (ch *Channel) executeInsertStatement(ctx *evalContext, statement sql.InsertStatement, params *paramSet) (int64, error) {
	table, err := ch.table(statement.Table)
	if err != nil {
		return 0, err
	}
	targets, err := insertTargets(table, statement.Columns)
	if err != nil {
		return 0, err
	}

	// source rows are materialized first so INSERT ... SELECT never reads
	// its own inserts
	var sourceRows []core.Row
	if statement.Query != nil {
		plan, err := ch.compileSelect(statement.Query, params)
		if err != nil {
			return 0, err
		}
		if len(plan.columns) != len(targets) {
			return 0, core.NewBindingError(core.CodeColumnCount, "INSERT expects %d columns, query returns %d", len(targets), len(plan.columns))
		}
		if sourceRows, err = plan.execute(ctx); err != nil {
			return 0, err
		}
	} else {
		b := &binder{ch: ch, params: params}
		for _, exprs := range statement.Rows {
			if len(exprs) != len(targets) {
				return 0, core.NewBindingError(core.CodeColumnCount, "INSERT expects %d values, got %d", len(targets), len(exprs))
			}
			bound, err := b.bindAll(exprs)
			if err != nil {
				return 0, err
			}
			values, err := evalAll(ctx, bound, nil)
			if err != nil {
				return 0, err
			}
			sourceRows = append(sourceRows, values)
		}
	}

	defaults, err := ch.bindDefaults(table, targets)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, values := range sourceRows {
		row := make(core.Row, len(table.Def.Columns))
		for i, column := range table.Def.Columns {
			row[i] = core.Null(column.Type)
			if e := defaults[i]; e != nil {
				if row[i], err = e.eval(ctx, nil); err != nil {
					return count, err
				}
			}
		}
		for i, ordinal := range targets {
			row[ordinal] = values[i]
		}
		if err := ch.insertRow(table, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// bindDefaults binds the default expression of every column not in
// targets. Columns without a default stay nil and are filled with NULL.
func (ch *Channel) bindDefaults(table *op.Table, targets []int) ([]expression, error) {
	defaults := make([]expression, len(table.Def.Columns))
	targeted := make(map[int]bool, len(targets))
	for _, ordinal := range targets {
		targeted[ordinal] = true
	}
	for i, column := range table.Def.Columns {
		if targeted[i] || column.Default == "" {
			continue
		}
		e, err := ch.bindDefault(column)
		if err != nil {
			return nil, err
		}
		defaults[i] = e
	}
	return defaults, nil
}

func (ch *Channel) bindDefault(column core.Column) (expression, error) {
	parsed, err := sql.ParseExpression(column.Default)
	if err != nil {
		return nil, err
	}
	b := &binder{ch: ch, params: &paramSet{}}
	return b.bind(parsed)
}

// insertRow assigns the identity, validates and stores one row, and logs
// its undo entry.
func (ch *Channel) insertRow(table *op.Table, row core.Row) error {
	row, identity, _, err := table.AssignIdentity(row)
	if err != nil {
		return err
	}
	row, err = table.ValidateRow(row)
	if err != nil {
		return err
	}
	rowID, err := table.Insert(row)
	if err != nil {
		return err
	}
	ch.undo.recordInsert(table, rowID)
	if table.Def.IdentityColumn() >= 0 {
		ch.lastIdentity = identity
	}
	return nil
}

// matchingRows collects the rows of table that satisfy where, using an
// index when one applies.
func (ch *Channel) matchingRows(ctx *evalContext, b *binder, table *op.Table, where sql.Expr) ([]op.Entry, error) {
	predicate, err := b.bindOptional(where)
	if err != nil {
		return nil, err
	}
	access, err := planAccess(b, table, len(table.Def.Columns), where)
	if err != nil {
		return nil, err
	}

	var entries []op.Entry
	for entry, err := range (tableReader{table: table, access: access}).rows(ctx) {
		if err != nil {
			return nil, err
		}
		ok, err := matches(ctx, predicate, entry.Row)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (ch *Channel) executeUpdateStatement(ctx *evalContext, statement sql.UpdateStatement, params *paramSet) (int64, error) {
	table, err := ch.table(statement.Table)
	if err != nil {
		return 0, err
	}
	b := &binder{ch: ch, scope: tableScope(table), params: params}

	ordinals := make([]int, len(statement.Updates))
	values := make([]expression, len(statement.Updates))
	seen := make(map[int]bool, len(statement.Updates))
	for i, set := range statement.Updates {
		ordinal := table.Def.ColumnIndex(set.Column)
		if ordinal < 0 {
			return 0, core.NewBindingError(core.CodeColumnNotFound, "column %s not found in table %s", set.Column, table.Name())
		}
		if seen[ordinal] {
			return 0, core.NewBindingError(core.CodeDuplicateColumn, "column %s assigned twice", set.Column)
		}
		seen[ordinal] = true
		if hasAggregate(set.Value) {
			return 0, core.NewBindingError(core.CodeInvalidGrouping, "aggregates are not allowed in SET")
		}
		if values[i], err = b.bind(set.Value); err != nil {
			return 0, err
		}
		ordinals[i] = ordinal
	}

	entries, err := ch.matchingRows(ctx, b, table, statement.Where)
	if err != nil {
		return 0, err
	}

	// every new image is computed from the old rows before any row changes
	updated := make([]core.Row, len(entries))
	for i, entry := range entries {
		row := entry.Row.Clone()
		for j, e := range values {
			v, err := e.eval(ctx, entry.Row)
			if err != nil {
				return 0, err
			}
			row[ordinals[j]] = v
		}
		updated[i] = row
	}

	var count int64
	for i, entry := range entries {
		row, _, _, err := table.AssignIdentity(updated[i])
		if err != nil {
			return count, err
		}
		if row, err = table.ValidateRow(row); err != nil {
			return count, err
		}
		previous, err := table.Update(entry.ID, row)
		if err != nil {
			return count, err
		}
		ch.undo.recordUpdate(table, entry.ID, previous)
		count++
	}
	return count, nil
}

func (ch *Channel) executeDeleteStatement(ctx *evalContext, statement sql.DeleteStatement, params *paramSet) (int64, error) {
	table, err := ch.table(statement.Table)
	if err != nil {
		return 0, err
	}
	b := &binder{ch: ch, scope: tableScope(table), params: params}
	entries, err := ch.matchingRows(ctx, b, table, statement.Where)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, entry := range entries {
		row, err := table.Delete(entry.ID)
		if err != nil {
			return count, err
		}
		if row == nil {
			continue
		}
		ch.undo.recordDelete(table, entry.ID, row)
		count++
	}
	return count, nil
}

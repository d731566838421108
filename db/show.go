package db

import (
	"fmt"
	"slices"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/sql"
)

func textColumns(labels ...string) []ColumnInfo {
	columns := make([]ColumnInfo, len(labels))
	for i, label := range labels {
		columns[i] = ColumnInfo{Label: label, Type: core.VarCharType}
	}
	return columns
}

func (ch *Channel) executeShowDatabasesStatement() *Result {
	names := DatabaseNames()
	if !slices.Contains(names, ch.db.name) {
		names = append(names, ch.db.name)
		slices.Sort(names)
	}
	rows := make([]core.Row, 0, len(names))
	for _, name := range names {
		rows = append(rows, core.Row{core.NewVarChar(name)})
	}
	return newQueryResult(textColumns("DATABASE_NAME"), rows, nil)
}

func (ch *Channel) executeShowTablesStatement() *Result {
	var rows []core.Row
	for _, table := range ch.db.catalog.Tables() {
		rows = append(rows, core.Row{
			core.NewVarChar(table.Name()),
			core.NewVarChar(table.Def.Mode.String()),
		})
	}
	return newQueryResult(textColumns("TABLE_NAME", "TABLE_TYPE"), rows, nil)
}

func (ch *Channel) executeShowAliasStatement() *Result {
	var rows []core.Row
	for _, alias := range ch.db.catalog.Aliases() {
		rows = append(rows, core.Row{core.NewVarChar(alias.Name), core.NewVarChar(alias.Target)})
	}
	return newQueryResult(textColumns("ALIAS_NAME", "TARGET"), rows, nil)
}

// executeShowParametersStatement lists the signature of an alias target:
// the return value at ordinal 0, then one row per argument.
func (ch *Channel) executeShowParametersStatement(statement sql.ShowParametersStatement) (*Result, error) {
	binding := ch.db.binding(statement.Alias)
	if binding == nil {
		return nil, core.NewBindingError(core.CodeAliasNotFound, "alias %s not found", statement.Alias)
	}
	fn, err := binding.resolve(ch.db.functions)
	if err != nil {
		return nil, err
	}

	columns := []ColumnInfo{
		{Label: "PARAMETER_NAME", Type: core.VarCharType},
		{Label: "ORDINAL_POSITION", Type: core.IntegerType},
		{Label: "TYPE_NAME", Type: core.VarCharType},
		{Label: "DATA_TYPE", Type: core.VarCharType},
	}
	parameter := func(name string, ordinal int, t core.ColumnType) core.Row {
		return core.Row{
			core.NewVarChar(name),
			core.NewInteger(int32(ordinal)),
			core.NewVarChar(t.NativeName()),
			core.NewVarChar(t.String()),
		}
	}

	rows := []core.Row{parameter("RETURN_VALUE", 0, fn.Returns)}
	for i, t := range fn.Params {
		name := fmt.Sprintf("P%d", i+1)
		if i < len(fn.ParamNames) && fn.ParamNames[i] != "" {
			name = fn.ParamNames[i]
		}
		rows = append(rows, parameter(name, i+1, t))
	}
	return newQueryResult(columns, rows, nil), nil
}

func (ch *Channel) executeShowColumnsStatement(statement sql.ShowColumnsStatement) (*Result, error) {
	table, err := ch.table(statement.Table)
	if err != nil {
		return nil, err
	}
	columns := []ColumnInfo{
		{Label: "COLUMN_NAME", Type: core.VarCharType},
		{Label: "TYPE_NAME", Type: core.VarCharType},
		{Label: "DATA_TYPE", Type: core.VarCharType},
		{Label: "ORDINAL_POSITION", Type: core.IntegerType},
		{Label: "IS_NULLABLE", Type: core.BooleanType},
		{Label: "IS_IDENTITY", Type: core.BooleanType},
		{Label: "IS_PRIMARY_KEY", Type: core.BooleanType},
	}
	var rows []core.Row
	for i, column := range table.Def.Columns {
		rows = append(rows, core.Row{
			core.NewVarChar(column.Name),
			core.NewVarChar(column.Type.NativeName()),
			core.NewVarChar(columnTypeText(column)),
			core.NewInteger(int32(i + 1)),
			core.NewBoolean(column.Nullable),
			core.NewBoolean(column.Identity),
			core.NewBoolean(column.PrimaryKey),
		})
	}
	return newQueryResult(columns, rows, []*op.Table{table}), nil
}

// columnTypeText renders a declared column type with its length and scale.
func columnTypeText(column core.Column) string {
	return sql.TypeSpec{Type: column.Type, Size: column.Size, Scale: column.Scale}.String()
}

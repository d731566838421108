package db

import (
	"slices"
	"strings"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/sql"
)

func primaryIndexName(table string) string {
	return "SYS_PK_" + table
}

func uniqueIndexName(table string, columns []string) string {
	return "SYS_UQ_" + table + "_" + strings.Join(columns, "_")
}

func (ch *Channel) executeCreateTableStatement(ctx *evalContext, statement sql.CreateTableStatement) error {
	if _, exists := ch.db.catalog.Table(statement.Table); exists {
		if statement.IfNotExists {
			return nil
		}
		return core.NewBindingError(core.CodeTableExists, "table %s already exists", statement.Table)
	}

	def := core.Table{
		Name:         statement.Table,
		Columns:      slices.Clone(statement.Columns),
		Mode:         statement.Mode,
		IdentityNext: 1,
	}
	if !statement.ModeSet {
		def.Mode = ch.db.defaultMode
	}

	seen := make(map[string]bool, len(def.Columns))
	var primaryKey []string
	identity := -1
	for i, column := range def.Columns {
		if seen[column.Name] {
			return core.NewBindingError(core.CodeDuplicateColumn, "column %s defined twice in %s", column.Name, def.Name)
		}
		seen[column.Name] = true

		if column.Identity {
			if identity >= 0 {
				return core.NewConstraintError(core.CodeInvalidIdentity, "table %s has more than one IDENTITY column", def.Name)
			}
			if column.Type != core.IntegerType && column.Type != core.BigIntType {
				return core.NewConstraintError(core.CodeInvalidIdentity, "IDENTITY column %s must be INTEGER or BIGINT", column.Name)
			}
			identity = i
			def.Columns[i].Nullable = false
		}
		if column.PrimaryKey {
			if primaryKey != nil {
				return core.NewConstraintError(core.CodeBadPrimaryKey, "table %s has more than one PRIMARY KEY", def.Name)
			}
			primaryKey = []string{column.Name}
		}
	}

	if len(statement.PrimaryKey) > 0 {
		if primaryKey != nil {
			return core.NewConstraintError(core.CodeBadPrimaryKey, "table %s has more than one PRIMARY KEY", def.Name)
		}
		primaryKey = statement.PrimaryKey
	}
	if primaryKey == nil && identity >= 0 {
		primaryKey = []string{def.Columns[identity].Name}
	}

	if primaryKey != nil {
		for _, name := range primaryKey {
			ordinal := def.ColumnIndex(name)
			if ordinal < 0 {
				return core.NewBindingError(core.CodeColumnNotFound, "primary key column %s not found in %s", name, def.Name)
			}
			def.Columns[ordinal].PrimaryKey = true
			def.Columns[ordinal].Nullable = false
		}
		def.Indexes = append(def.Indexes, core.IndexDef{
			Name:    primaryIndexName(def.Name),
			Columns: slices.Clone(primaryKey),
			Unique:  true,
			Primary: true,
		})
	}

	uniques := slices.Clone(statement.Uniques)
	for _, column := range def.Columns {
		if column.Unique {
			uniques = append(uniques, []string{column.Name})
		}
	}
	for _, columns := range uniques {
		for _, name := range columns {
			if def.ColumnIndex(name) < 0 {
				return core.NewBindingError(core.CodeColumnNotFound, "unique column %s not found in %s", name, def.Name)
			}
		}
		if slices.Equal(columns, primaryKey) {
			continue
		}
		name := uniqueIndexName(def.Name, columns)
		if slices.ContainsFunc(def.Indexes, func(index core.IndexDef) bool { return index.Name == name }) {
			continue
		}
		def.Indexes = append(def.Indexes, core.IndexDef{Name: name, Columns: slices.Clone(columns), Unique: true})
	}

	for _, column := range def.Columns {
		if column.Default == "" {
			continue
		}
		e, err := ch.bindDefault(column)
		if err != nil {
			return err
		}
		v, err := e.eval(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := core.Convert(v, column.Type); err != nil {
			return err
		}
	}

	if _, err := ch.db.catalog.CreateTable(def); err != nil {
		return err
	}
	ch.db.logger.Debug("table created", "table", def.Name, "mode", def.Mode)
	return nil
}

func (ch *Channel) executeDropTableStatement(statement sql.DropTableStatement) error {
	if _, exists := ch.db.catalog.Table(statement.Table); !exists && statement.IfExists {
		return nil
	}
	if err := ch.db.catalog.DropTable(statement.Table); err != nil {
		return err
	}
	ch.db.logger.Debug("table dropped", "table", statement.Table)
	return nil
}

func (ch *Channel) executeCreateIndexStatement(statement sql.CreateIndexStatement) error {
	table, err := ch.table(statement.Table)
	if err != nil {
		return err
	}
	if _, _, exists := ch.db.catalog.FindIndex(statement.Name); exists {
		return core.NewBindingError(core.CodeIndexExists, "index %s already exists", statement.Name)
	}
	_, err = table.CreateIndex(core.IndexDef{
		Name:    statement.Name,
		Columns: statement.Columns,
		Unique:  statement.Unique,
	})
	return err
}

func (ch *Channel) executeDropIndexStatement(statement sql.DropIndexStatement) error {
	table, _, exists := ch.db.catalog.FindIndex(statement.Name)
	if !exists {
		if statement.IfExists {
			return nil
		}
		return core.NewBindingError(core.CodeIndexNotFound, "index %s not found", statement.Name)
	}
	return table.DropIndex(statement.Name)
}

func (ch *Channel) executeCreateAliasStatement(statement sql.CreateAliasStatement) error {
	alias := core.Alias{Name: statement.Name, Target: statement.Target}
	if err := ch.db.catalog.CreateAlias(alias); err != nil {
		return err
	}
	ch.db.bindings[alias.Name] = &AliasBinding{Alias: alias}
	return nil
}

func (ch *Channel) executeDropAliasStatement(statement sql.DropAliasStatement) error {
	if err := ch.db.catalog.DropAlias(statement.Name); err != nil {
		return err
	}
	delete(ch.db.bindings, statement.Name)
	return nil
}

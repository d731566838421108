package op

import (
	"slices"
	"strings"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/ps"
)

// Catalog owns every table and alias of one database and writes them to
// persistence at checkpoints.
type Catalog struct {
	Persistence *ps.Persistence
	CacheSize   int

	tables  map[string]*Table
	aliases map[string]core.Alias
	// dropped holds tables dropped since the last checkpoint whose stored
	// rows still have to be removed.
	dropped map[string]struct{}
}

func NewCatalog(persistence *ps.Persistence, cacheSize int) *Catalog {
	return &Catalog{
		Persistence: persistence,
		CacheSize:   cacheSize,
		tables:      make(map[string]*Table),
		aliases:     make(map[string]core.Alias),
		dropped:     make(map[string]struct{}),
	}
}

// Load reads the catalog of the last checkpoint and rebuilds every index.
func (c *Catalog) Load() error {
	defs, err := c.Persistence.ListTables()
	if err != nil {
		return core.WrapStorage(err, "failed to read catalog")
	}
	for _, def := range defs {
		store, err := c.openStore(def)
		if err != nil {
			return err
		}
		table, err := NewTable(def, store)
		if err != nil {
			return core.WrapStorage(err, "invalid definition of table %s", def.Name)
		}
		if err := table.rebuildIndexes(); err != nil {
			return err
		}
		c.tables[def.Name] = table
	}

	aliases, err := c.Persistence.ListAliases()
	if err != nil {
		return core.WrapStorage(err, "failed to read aliases")
	}
	for _, alias := range aliases {
		c.aliases[alias.Name] = alias
	}
	return nil
}

func (c *Catalog) openStore(def core.Table) (RowStore, error) {
	if def.Mode == core.CachedMode {
		store := NewCachedStore(def.Name, def.ColumnTypes(), c.Persistence, c.CacheSize)
		if err := store.Load(); err != nil {
			return nil, err
		}
		return store, nil
	}

	store := NewMemoryStore()
	types := def.ColumnTypes()
	for record, err := range c.Persistence.Scan(def.Name) {
		if err != nil {
			return nil, core.WrapStorage(err, "failed to read rows of %s", def.Name)
		}
		row, err := core.DecodeRow(record.Data, types)
		if err != nil {
			return nil, core.WrapStorage(err, "failed to decode row %d of %s", record.ID, def.Name)
		}
		store.load(record.ID, row)
	}
	return store, nil
}

func (c *Catalog) Table(name string) (*Table, bool) {
	table, ok := c.tables[name]
	return table, ok
}

// Tables returns every table ordered by name.
func (c *Catalog) Tables() []*Table {
	tables := make([]*Table, 0, len(c.tables))
	for _, table := range c.tables {
		tables = append(tables, table)
	}
	slices.SortFunc(tables, func(a, b *Table) int {
		return strings.Compare(a.Def.Name, b.Def.Name)
	})
	return tables
}

// CreateTable registers a new empty table.
func (c *Catalog) CreateTable(def core.Table) (*Table, error) {
	if _, exists := c.tables[def.Name]; exists {
		return nil, core.NewBindingError(core.CodeTableExists, "table %s already exists", def.Name)
	}

	var store RowStore
	if def.Mode == core.CachedMode {
		store = NewCachedStore(def.Name, def.ColumnTypes(), c.Persistence, c.CacheSize)
	} else {
		store = NewMemoryStore()
	}

	table, err := NewTable(def, store)
	if err != nil {
		return nil, err
	}
	c.tables[def.Name] = table
	return table, nil
}

// DropTable removes a table. Its stored rows are deleted at the next
// checkpoint.
func (c *Catalog) DropTable(name string) error {
	table, ok := c.tables[name]
	if !ok {
		return core.NewBindingError(core.CodeTableNotFound, "table %s not found", name)
	}
	delete(c.tables, name)
	c.dropped[name] = struct{}{}
	table.markDropped()
	return nil
}

// FindIndex locates a named index in any table.
func (c *Catalog) FindIndex(name string) (*Table, *Index, bool) {
	for _, table := range c.Tables() {
		if index := table.Index(name); index != nil {
			return table, index, true
		}
	}
	return nil, nil, false
}

func (c *Catalog) Alias(name string) (core.Alias, bool) {
	alias, ok := c.aliases[name]
	return alias, ok
}

// Aliases returns every alias ordered by name.
func (c *Catalog) Aliases() []core.Alias {
	aliases := make([]core.Alias, 0, len(c.aliases))
	for _, alias := range c.aliases {
		aliases = append(aliases, alias)
	}
	slices.SortFunc(aliases, func(a, b core.Alias) int {
		return strings.Compare(a.Name, b.Name)
	})
	return aliases
}

func (c *Catalog) CreateAlias(alias core.Alias) error {
	if _, exists := c.aliases[alias.Name]; exists {
		return core.NewBindingError(core.CodeAliasExists, "alias %s already exists", alias.Name)
	}
	c.aliases[alias.Name] = alias
	return nil
}

func (c *Catalog) DropAlias(name string) error {
	if _, exists := c.aliases[name]; !exists {
		return core.NewBindingError(core.CodeAliasNotFound, "alias %s not found", name)
	}
	delete(c.aliases, name)
	return nil
}

// Checkpoint writes the whole catalog and every changed row in one commit.
func (c *Catalog) Checkpoint(identity core.Identity, message string) (ps.Transaction, error) {
	return c.CheckpointCommitted(identity, message, nil)
}

// CheckpointCommitted is Checkpoint for a catalog with open transactions:
// rows in held are written with their committed image and stay dirty
// until a later checkpoint.
func (c *Catalog) CheckpointCommitted(identity core.Identity, message string, held map[*Table]Images) (ps.Transaction, error) {
	txn, err := c.Persistence.BeginTransaction()
	if err != nil {
		return ps.Transaction{}, core.WrapStorage(err, "failed to begin checkpoint")
	}

	// definitions are rewritten from scratch so renamed or dropped entries
	// disappear
	for _, path := range ps.CatalogPaths() {
		txn.AddDelete(path)
	}
	for name := range c.dropped {
		txn.DeleteTable(name)
	}

	tables := c.Tables()
	for _, table := range tables {
		if err := txn.PutTable(table.Def); err != nil {
			txn.Rollback()
			return ps.Transaction{}, core.WrapStorage(err, "failed to write table %s", table.Def.Name)
		}
		if _, err := table.store.Flush(table.Def.Name, txn, held[table]); err != nil {
			txn.Rollback()
			return ps.Transaction{}, core.WrapStorage(err, "failed to flush table %s", table.Def.Name)
		}
	}
	for _, alias := range c.Aliases() {
		if err := txn.PutAlias(alias); err != nil {
			txn.Rollback()
			return ps.Transaction{}, core.WrapStorage(err, "failed to write alias %s", alias.Name)
		}
	}

	result, err := txn.Commit(identity, message)
	if err != nil {
		return ps.Transaction{}, core.WrapStorage(err, "checkpoint failed")
	}

	for _, table := range tables {
		table.store.Clean(held[table])
	}
	clear(c.dropped)
	return result, nil
}

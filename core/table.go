package core

import "strings"

// Identity identifies the author of checkpoint commits.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type StorageMode int

const (
	MemoryMode StorageMode = iota
	CachedMode
)

func (m StorageMode) String() string {
	if m == CachedMode {
		return "CACHED"
	}
	return "MEMORY"
}

// ParseStorageMode accepts MEMORY or CACHED in any case.
func ParseStorageMode(s string) (StorageMode, bool) {
	switch strings.ToUpper(s) {
	case "", "MEMORY":
		return MemoryMode, true
	case "CACHED":
		return CachedMode, true
	}
	return MemoryMode, false
}

type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Size       int        `json:"size,omitempty"`
	Scale      int        `json:"scale,omitempty"`
	Nullable   bool       `json:"nullable"`
	Identity   bool       `json:"identity,omitempty"`
	PrimaryKey bool       `json:"primaryKey,omitempty"`
	Unique     bool       `json:"unique,omitempty"`
	Default    string     `json:"default,omitempty"` // SQL text of the default expression
}

// IndexDef describes one ordered index over a table's columns.
type IndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Primary bool     `json:"primary,omitempty"`
}

type Table struct {
	Name         string      `json:"name"`
	Columns      []Column    `json:"columns"`
	Mode         StorageMode `json:"mode"`
	Indexes      []IndexDef  `json:"indexes,omitempty"`
	IdentityNext int64       `json:"identityNext"`
	NextRowID    int64       `json:"nextRowId"`
}

// ColumnIndex returns the ordinal of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IdentityColumn returns the ordinal of the IDENTITY column, or -1.
func (t *Table) IdentityColumn() int {
	for i, c := range t.Columns {
		if c.Identity {
			return i
		}
	}
	return -1
}

func (t *Table) PrimaryIndex() *IndexDef {
	for i := range t.Indexes {
		if t.Indexes[i].Primary {
			return &t.Indexes[i]
		}
	}
	return nil
}

func (t *Table) ColumnTypes() []ColumnType {
	types := make([]ColumnType, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = c.Type
	}
	return types
}

// Alias binds a SQL-visible function name to a registered external target.
type Alias struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

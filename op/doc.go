// Package op implements the storage engine of EmbedDB: tables, their row
// stores and ordered indexes, and the catalog that checkpoints them.
//
// # Tables
//
// A Table pairs a core.Table definition with a RowStore and its indexes.
// Every row gets a row id that never changes; indexes map key tuples to
// row ids.
//
//	table, _ := catalog.CreateTable(def)
//	row, _ = table.ValidateRow(row)
//	rowID, err := table.Insert(row) // ConstraintError on a unique violation
//
// # Row Stores
//
//   - MemoryStore keeps all rows in memory.
//   - CachedStore keeps only row ids in memory and pages rows in from the
//     last checkpoint through an LRU.
//
// # Checkpoints
//
// Catalog.Checkpoint rewrites every table definition and alias and flushes
// changed rows into a single persistence commit:
//
//	SQL Parser (sql/)
//	     ↓
//	SQL Engine (db/)
//	     ↓
//	Storage Engine (op/)     ← This package
//	     ↓
//	Persistence (ps/)
//	     ↓
//	Git Storage (go-git)
package op

// Package ps provides the persistence layer for EmbedDB.
//
// Each database is backed by one Git repository, using go-git for storage.
// A checkpoint is a single commit that rewrites the catalog and flushes
// every changed row.
//
// # Layout
//
//	catalog/<table>.table   table definition (JSON)
//	aliases/<alias>.alias   function alias (JSON)
//	data/<table>/<rowid>    one encoded row
//
// Names are path-escaped so quoted identifiers are safe as path segments.
//
// # Memory Persistence
//
//	persistence, err := ps.NewMemoryPersistence()
//
// # File Persistence
//
//	persistence, err := ps.NewFilePersistence("/path/to/data", nil)
//
// # Transaction Batching
//
// All writes go through a TransactionBuilder and land in one commit:
//
//	txn, _ := persistence.BeginTransaction()
//	txn.PutTable(table)
//	txn.PutRecord("BOOKS", 1, data)
//	result, _ := txn.Commit(identity, "CHECKPOINT")
package ps

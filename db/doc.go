// Package db executes SQL against an embedded database.
//
// A Database owns the catalog of tables and aliases and the channels
// connected to it. A Channel is one session: it runs batches of
// statements, keeps the undo log of its open transaction and holds its
// @variables and its open cursor.
//
// # Usage
//
//	database, err := db.OpenDatabase(db.ConfigForName("mem:books"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ch, err := database.Connect(db.DefaultUser, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := ch.Execute(ctx, "SELECT * FROM books WHERE author = ?", param)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display(os.Stdout)
//
// # Results
//
// Queries return a Result with Columns and a forward-only cursor over the
// records. The cursor closes when the channel executes its next statement
// and is invalidated when a table it read from is dropped. Row-changing
// statements return UpdateCount; CHECKPOINT returns the Transaction that
// was committed to storage.
//
// # Storage
//
// Tables live in memory while the database is open. CHECKPOINT and Close
// write every table to a git repository (see package ps); CACHED tables are
// read back from it on demand instead of being held in memory completely.
package db

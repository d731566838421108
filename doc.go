// Package EmbedDB provides an embeddable relational database engine.
//
// Tables are held in memory and checkpointed to a git repository, so every
// checkpoint is a commit that can be pushed to a remote. CACHED tables are
// read back from the repository on demand.
//
// # Quick Start
//
// Open an in-memory database and run a batch:
//
//	ch, _ := EmbedDB.Open("mem:books", db.DefaultUser, "")
//	defer ch.Close()
//
//	ctx := context.Background()
//	ch.Execute(ctx, "CREATE TABLE books (id INT IDENTITY, title VARCHAR(40) NOT NULL, price DECIMAL(10,2))")
//	ch.Execute(ctx, "INSERT INTO books (title, price) VALUES ('Go', 39.90)")
//
//	result, _ := ch.Execute(ctx, "SELECT * FROM books")
//	result.Display(os.Stdout)
//
// # Supported SQL
//
//   - CREATE [MEMORY|CACHED] TABLE, DROP TABLE
//   - CREATE [UNIQUE] INDEX, DROP INDEX
//   - CREATE ALIAS ... FOR "target", DROP ALIAS, CALL
//   - INSERT (VALUES or SELECT), UPDATE, DELETE
//   - SELECT with inner joins, WHERE, GROUP BY, HAVING, DISTINCT,
//     ORDER BY, LIMIT and OFFSET
//   - Aggregates: COUNT, SUM, AVG, MIN, MAX
//   - DECLARE and SET of @variables, ? and :name parameters
//   - BEGIN, COMMIT, ROLLBACK, SET AUTOCOMMIT
//   - CHECKPOINT, BACKUP DATABASE TO, RESTORE DATABASE FROM
//   - SHOW DATABASES, TABLES, ALIAS, PARAMETERS and COLUMNS
package EmbedDB

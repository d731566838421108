// Package sql provides SQL lexing and parsing for EmbedDB.
//
// The package includes a lexer that tokenizes SQL text and a parser that
// produces statement and expression trees. Unquoted identifiers are
// normalized to upper case; "quoted" identifiers keep their exact case.
//
// # Lexer Usage
//
//	lexer := sql.NewLexer("SELECT * FROM books")
//	for {
//	    token := lexer.NextToken()
//	    if token.Type == sql.EOF {
//	        break
//	    }
//	    fmt.Printf("%s at %d\n", token, token.Pos)
//	}
//
// # Parser Usage
//
//	statements, err := sql.ParseAll("DECLARE @a CHAR; SET @a = 'Andy'; SELECT * FROM books WHERE author = @a")
//	if err != nil {
//	    log.Fatal(err) // a *core.Error of kind SyntaxError
//	}
//
// # Supported Statements
//
//   - SelectStatement (WHERE, GROUP BY, HAVING, ORDER BY, LIMIT, joins)
//   - InsertStatement, UpdateStatement, DeleteStatement
//   - CreateTableStatement, DropTableStatement
//   - CreateIndexStatement, DropIndexStatement
//   - CreateAliasStatement, DropAliasStatement
//   - DeclareStatement, SetVariableStatement, SetAutoCommitStatement
//   - CallStatement
//   - BeginStatement, CommitStatement, RollbackStatement, CheckpointStatement
//   - BackupStatement, RestoreStatement
//   - ShowDatabasesStatement, ShowTablesStatement, ShowAliasStatement,
//     ShowParametersStatement, ShowColumnsStatement
package sql

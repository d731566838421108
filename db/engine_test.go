package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/ps"
)

func setupTestDatabase(t *testing.T, cfg Config) *Database {
	t.Helper()
	if cfg.Name == "" && cfg.Path == "" {
		cfg.Name = "mem:" + t.Name()
	}
	database, err := NewDatabase(cfg)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func connect(t *testing.T, database *Database) *Channel {
	t.Helper()
	ch, err := database.Connect(DefaultUser, "")
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	return ch
}

func setupTestChannel(t *testing.T) *Channel {
	t.Helper()
	return connect(t, setupTestDatabase(t, Config{}))
}

func execute(t *testing.T, ch *Channel, text string, params ...*Parameter) *Result {
	t.Helper()
	result, err := ch.Execute(context.Background(), text, params...)
	if err != nil {
		t.Fatalf("Failed to execute %q: %v", text, err)
	}
	return result
}

// query runs text and renders every value of every row.
func query(t *testing.T, ch *Channel, text string, params ...*Parameter) [][]string {
	t.Helper()
	rows, err := execute(t, ch, text, params...).Rows()
	if err != nil {
		t.Fatalf("Failed to read rows of %q: %v", text, err)
	}
	out := [][]string{}
	for _, row := range rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = v.String()
		}
		out = append(out, values)
	}
	return out
}

func errorCode(err error) int {
	var engineErr *core.Error
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return 0
}

func expectCode(t *testing.T, ch *Channel, text string, code int) {
	t.Helper()
	_, err := ch.Execute(context.Background(), text)
	if errorCode(err) != code {
		t.Errorf("Test Failed: %q: expected error %d, got %v", text, code, err)
	}
}

func createBooks(t *testing.T, ch *Channel) {
	t.Helper()
	execute(t, ch, `CREATE TABLE books (id INT PRIMARY KEY, name CHAR, author CHAR, qty INT, value NUMERIC);
		INSERT INTO books VALUES (1, 'Book000', 'Any', 1, 23.5);
		INSERT INTO books VALUES (2, 'Book001', 'Andy', 2, 43.9)`)
}

func TestGroupBySum(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)

	got := query(t, ch, "SELECT name, author, SUM(value) FROM books WHERE author = 'Andy' GROUP BY name, author")
	expected := [][]string{{"Book001", "Andy", "43.9"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}
}

func TestVariableInWhere(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)

	got := query(t, ch, `DECLARE @MyVar CHAR;
		SET @MyVar = 'Andy';
		SELECT name, author FROM books WHERE author = @MyVar`)
	literal := query(t, ch, "SELECT name, author FROM books WHERE author = 'Andy'")
	if !reflect.DeepEqual(got, literal) || len(got) != 1 {
		t.Errorf("Test Failed: expected %v, got %v", literal, got)
	}

	v, ok := ch.Variable("@myvar")
	if !ok || v.String() != "Andy" {
		t.Errorf("Test Failed: expected variable Andy, got %v (%v)", v, ok)
	}
}

func TestUndeclaredVariable(t *testing.T) {
	ch := setupTestChannel(t)
	expectCode(t, ch, "SELECT @NOPE", core.CodeVariableNotFound)
}

func TestIdentityColumn(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE clients (id INT IDENTITY, name VARCHAR(20) NOT NULL)")
	execute(t, ch, "INSERT INTO clients (name) VALUES ('a')")
	execute(t, ch, "INSERT INTO clients (id, name) VALUES (10, 'b')")
	execute(t, ch, "INSERT INTO clients (name) VALUES ('c')")

	got := query(t, ch, "SELECT id, name FROM clients ORDER BY id")
	expected := [][]string{{"1", "a"}, {"10", "b"}, {"11", "c"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}

	if got := query(t, ch, "CALL IDENTITY()"); !reflect.DeepEqual(got, [][]string{{"11"}}) {
		t.Errorf("Test Failed: expected IDENTITY() 11, got %v", got)
	}

	// identity values are never handed out twice, even after a delete
	execute(t, ch, "DELETE FROM clients WHERE id = 11")
	execute(t, ch, "INSERT INTO clients (name) VALUES ('d')")
	if got := query(t, ch, "SELECT id FROM clients WHERE name = 'd'"); !reflect.DeepEqual(got, [][]string{{"12"}}) {
		t.Errorf("Test Failed: expected id 12, got %v", got)
	}

	expectCode(t, ch, "INSERT INTO clients (name) VALUES (NULL)", core.CodeNotNull)
	expectCode(t, ch, "INSERT INTO clients (name) VALUES ('this name is far too long')", core.CodeValueTooLong)
	expectCode(t, ch, "CREATE TABLE twice (a INT IDENTITY, b INT IDENTITY)", core.CodeInvalidIdentity)
}

func TestNullComparison(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, `CREATE TABLE t (id INT PRIMARY KEY, note VARCHAR(10));
		INSERT INTO t VALUES (1, NULL);
		INSERT INTO t VALUES (2, 'x')`)

	tests := []struct {
		query    string
		expected [][]string
	}{
		{"SELECT id FROM t WHERE note = NULL", [][]string{}},
		{"SELECT id FROM t WHERE note <> NULL", [][]string{}},
		{"SELECT id FROM t WHERE note IS NULL", [][]string{{"1"}}},
		{"SELECT id FROM t WHERE note IS NOT NULL", [][]string{{"2"}}},
		{"SELECT id FROM t WHERE NOT (note = 'x')", [][]string{}},
		{"SELECT id FROM t ORDER BY note", [][]string{{"1"}, {"2"}}},
		{"SELECT COALESCE(note, '-') FROM t ORDER BY id", [][]string{{"-"}, {"x"}}},
	}

	for _, test := range tests {
		got := query(t, ch, test.query)
		if !reflect.DeepEqual(got, test.expected) {
			t.Errorf("Test Failed: %s: expected %v, got %v", test.query, test.expected, got)
		}
	}
}

func TestTypedRoundTrip(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, `CREATE TABLE typed (
		i INT PRIMARY KEY, b BIGINT, d DECIMAL(10,2), f DOUBLE, c CHAR(3), v VARCHAR(10),
		vi VARCHAR_IGNORECASE(10), dt DATE, ok BOOLEAN, bin VARBINARY(4))`)
	execute(t, ch, `INSERT INTO typed VALUES
		(1, 9000000000, 12.50, 1.5, 'abc', 'text', 'MiXeD', DATE '2024-01-31', TRUE, X'CAFE')`)

	got := query(t, ch, "SELECT i, b, d, f, c, v, vi, dt, ok, bin FROM typed")
	expected := [][]string{{"1", "9000000000", "12.5", "1.5", "abc", "text", "MiXeD", "2024-01-31", "TRUE", "CAFE"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}

	if got := query(t, ch, "SELECT i FROM typed WHERE vi = 'mixed'"); !reflect.DeepEqual(got, [][]string{{"1"}}) {
		t.Errorf("Test Failed: expected case-insensitive match, got %v", got)
	}

	result := execute(t, ch, "SELECT b, dt FROM typed")
	if result.Columns[0].Type != core.BigIntType || result.Columns[1].Type != core.DateType {
		t.Errorf("Test Failed: unexpected column types %v", result.Columns)
	}
}

func TestAggregatesOverEmptyTable(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE empty (n INT)")

	got := query(t, ch, "SELECT COUNT(*), COUNT(n), SUM(n), MIN(n), MAX(n), AVG(n) FROM empty")
	expected := [][]string{{"0", "0", "NULL", "NULL", "NULL", "NULL"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}

	if got := query(t, ch, "SELECT n, COUNT(*) FROM empty GROUP BY n"); len(got) != 0 {
		t.Errorf("Test Failed: expected no groups, got %v", got)
	}
}

func TestAggregates(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, `CREATE TABLE scores (player VARCHAR(10), points DECIMAL(10,2));
		INSERT INTO scores VALUES ('a', 2), ('a', 4), ('b', 5), ('b', NULL)`)

	tests := []struct {
		query    string
		expected [][]string
	}{
		{"SELECT player, AVG(points) FROM scores GROUP BY player ORDER BY player", [][]string{{"a", "3"}, {"b", "5"}}},
		{"SELECT player, COUNT(points), COUNT(*) FROM scores GROUP BY player ORDER BY 1", [][]string{{"a", "2", "2"}, {"b", "1", "2"}}},
		{"SELECT player FROM scores GROUP BY player HAVING SUM(points) > 5", [][]string{{"a"}}},
		{"SELECT COUNT(DISTINCT player) FROM scores", [][]string{{"2"}}},
		{"SELECT DISTINCT player FROM scores ORDER BY player DESC", [][]string{{"b"}, {"a"}}},
		{"SELECT SUM(points) AS total FROM scores", [][]string{{"11"}}},
	}

	for _, test := range tests {
		got := query(t, ch, test.query)
		if !reflect.DeepEqual(got, test.expected) {
			t.Errorf("Test Failed: %s: expected %v, got %v", test.query, test.expected, got)
		}
	}

	expectCode(t, ch, "SELECT player, SUM(points) FROM scores", core.CodeInvalidGrouping)
	expectCode(t, ch, "SELECT player FROM scores WHERE SUM(points) > 1", core.CodeInvalidGrouping)
}

func TestOrderLimitOffset(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE n (v INT PRIMARY KEY)")
	for i := 1; i <= 10; i++ {
		execute(t, ch, fmt.Sprintf("INSERT INTO n VALUES (%d)", i))
	}

	got := query(t, ch, "SELECT v FROM n ORDER BY v DESC LIMIT 3 OFFSET 2")
	expected := [][]string{{"8"}, {"7"}, {"6"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}
}

func TestRollbackRestoresState(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)
	before := query(t, ch, "SELECT * FROM books ORDER BY id")

	execute(t, ch, `BEGIN;
		INSERT INTO books VALUES (3, 'Book002', 'Bob', 5, 10);
		UPDATE books SET qty = qty + 10 WHERE id = 1;
		DELETE FROM books WHERE id = 2`)
	if !ch.InTransaction() {
		t.Fatal("Test Failed: expected an open transaction")
	}
	execute(t, ch, "ROLLBACK")

	after := query(t, ch, "SELECT * FROM books ORDER BY id")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Test Failed: expected %v after rollback, got %v", before, after)
	}

	// the primary key released by the rollback can be used again
	execute(t, ch, "INSERT INTO books VALUES (3, 'Book002', 'Bob', 5, 10)")
	if got := query(t, ch, "SELECT COUNT(*) FROM books"); !reflect.DeepEqual(got, [][]string{{"3"}}) {
		t.Errorf("Test Failed: expected 3 books, got %v", got)
	}
}

func TestCommitWithoutTransaction(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "COMMIT")
	execute(t, ch, "ROLLBACK")
	expectCode(t, ch, "BEGIN; BEGIN", core.CodeTransactionActive)
}

func TestStatementAtomicity(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE t (id INT PRIMARY KEY, name VARCHAR(10) UNIQUE)")
	execute(t, ch, "INSERT INTO t VALUES (5, 'x')")

	expectCode(t, ch, "INSERT INTO t VALUES (1, 'a'), (2, 'b'), (5, 'c')", core.CodeDuplicateKey)
	expectCode(t, ch, "INSERT INTO t VALUES (3, 'x')", core.CodeUniqueViolation)
	if got := query(t, ch, "SELECT id FROM t"); !reflect.DeepEqual(got, [][]string{{"5"}}) {
		t.Errorf("Test Failed: expected only row 5, got %v", got)
	}

	// NULL keys never conflict
	execute(t, ch, "INSERT INTO t VALUES (6, NULL), (7, NULL)")
	if got := query(t, ch, "SELECT COUNT(*) FROM t WHERE name IS NULL"); !reflect.DeepEqual(got, [][]string{{"2"}}) {
		t.Errorf("Test Failed: expected 2 NULL names, got %v", got)
	}
}

func TestAutoCommitOff(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE t (id INT PRIMARY KEY)")

	if err := ch.SetAutoCommit(false); err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	execute(t, ch, "INSERT INTO t VALUES (1)")
	if !ch.InTransaction() {
		t.Error("Test Failed: expected the insert to open a transaction")
	}
	if err := ch.Rollback(); err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	if got := query(t, ch, "SELECT COUNT(*) FROM t"); !reflect.DeepEqual(got, [][]string{{"0"}}) {
		t.Errorf("Test Failed: expected rollback, got %v", got)
	}

	execute(t, ch, "INSERT INTO t VALUES (2); SET AUTOCOMMIT TRUE")
	if ch.InTransaction() || !ch.AutoCommit() {
		t.Error("Test Failed: expected SET AUTOCOMMIT TRUE to commit")
	}
	if got := query(t, ch, "SELECT id FROM t"); !reflect.DeepEqual(got, [][]string{{"2"}}) {
		t.Errorf("Test Failed: expected committed row, got %v", got)
	}
}

func TestCloseRollsBack(t *testing.T) {
	database := setupTestDatabase(t, Config{})
	ch1 := connect(t, database)
	ch2 := connect(t, database)
	execute(t, ch1, "CREATE TABLE t (id INT PRIMARY KEY)")

	execute(t, ch2, "BEGIN; INSERT INTO t VALUES (1)")
	if err := ch2.Close(); err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	if got := query(t, ch1, "SELECT COUNT(*) FROM t"); !reflect.DeepEqual(got, [][]string{{"0"}}) {
		t.Errorf("Test Failed: expected close to roll back, got %v", got)
	}

	_, err := ch2.Execute(context.Background(), "SELECT 1")
	if errorCode(err) != core.CodeChannelClosed {
		t.Errorf("Test Failed: expected channel closed, got %v", err)
	}
}

func TestAliasDispatch(t *testing.T) {
	calls := 0
	functions := NewFunctionRegistry()
	functions.Register(ExternalFunction{
		Target:  "test.Twice",
		Params:  []core.ColumnType{core.IntegerType},
		Returns: core.IntegerType,
		Call: func(args []core.Value) (core.Value, error) {
			calls++
			return core.NewInteger(int32(args[0].Int64() * 2)), nil
		},
	})
	ch := connect(t, setupTestDatabase(t, Config{Functions: functions}))

	execute(t, ch, `CREATE ALIAS TWICE FOR "test.Twice"`)
	if got := query(t, ch, "CALL TWICE(21)"); !reflect.DeepEqual(got, [][]string{{"42"}}) {
		t.Errorf("Test Failed: expected 42, got %v", got)
	}
	if calls != 1 {
		t.Errorf("Test Failed: expected 1 call, got %d", calls)
	}

	expectCode(t, ch, "CALL TWICE(1, 2)", core.CodeWrongArity)
	expectCode(t, ch, `CREATE ALIAS TWICE FOR "test.Twice"`, core.CodeAliasExists)
	expectCode(t, ch, "CALL NOWHERE(1)", core.CodeFunctionNotFound)

	execute(t, ch, `CREATE ALIAS MISSING FOR "test.Missing"`)
	expectCode(t, ch, "CALL MISSING(1)", core.CodeTargetNotFound)

	got := query(t, ch, "SHOW PARAMETERS TWICE")
	expected := [][]string{{"RETURN_VALUE", "0", "int32", "INTEGER"}, {"P1", "1", "int32", "INTEGER"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}

	execute(t, ch, "DROP ALIAS TWICE")
	expectCode(t, ch, "CALL TWICE(1)", core.CodeFunctionNotFound)
}

func TestStandardAliases(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, `CREATE ALIAS POW FOR "math.Pow"`)
	if got := query(t, ch, "CALL POW(2, 10)"); !reflect.DeepEqual(got, [][]string{{"1024"}}) {
		t.Errorf("Test Failed: expected 1024, got %v", got)
	}
	if got := query(t, ch, "SHOW ALIAS"); !reflect.DeepEqual(got, [][]string{{"POW", "math.Pow"}}) {
		t.Errorf("Test Failed: unexpected aliases %v", got)
	}
}

func TestCursorClosedByNextStatement(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)

	first := execute(t, ch, "SELECT id FROM books")
	execute(t, ch, "SELECT id FROM books")
	if first.Next() {
		t.Fatal("Test Failed: expected the first cursor to be closed")
	}
	if errorCode(first.Err()) != core.CodeCursorClosed {
		t.Errorf("Test Failed: expected cursor closed, got %v", first.Err())
	}
}

func TestCursorInvalidatedByDrop(t *testing.T) {
	database := setupTestDatabase(t, Config{})
	reader := connect(t, database)
	writer := connect(t, database)
	createBooks(t, reader)

	result := execute(t, reader, "SELECT id FROM books")
	if !result.Next() {
		t.Fatal("Test Failed: expected a first row")
	}
	execute(t, writer, "DROP TABLE books")
	if result.Next() {
		t.Fatal("Test Failed: expected the cursor to stop after DROP")
	}
	if errorCode(result.Err()) != core.CodeCursorInvalidated {
		t.Errorf("Test Failed: expected cursor invalidated, got %v", result.Err())
	}
}

func TestShowColumns(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE clients (id INT IDENTITY, name VARCHAR(20) NOT NULL, balance DECIMAL(10,2) DEFAULT 0)")

	result := execute(t, ch, `SHOW COLUMNS clients`)
	labels := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		labels[i] = c.Label
	}
	expectedLabels := []string{"COLUMN_NAME", "TYPE_NAME", "DATA_TYPE", "ORDINAL_POSITION", "IS_NULLABLE", "IS_IDENTITY", "IS_PRIMARY_KEY"}
	if !reflect.DeepEqual(labels, expectedLabels) {
		t.Errorf("Test Failed: expected labels %v, got %v", expectedLabels, labels)
	}

	got := query(t, ch, "SHOW COLUMNS clients")
	expected := [][]string{
		{"ID", "int32", "INTEGER", "1", "FALSE", "TRUE", "TRUE"},
		{"NAME", "string", "VARCHAR(20)", "2", "FALSE", "FALSE", "FALSE"},
		{"BALANCE", "decimal.Decimal", "DECIMAL(10,2)", "3", "TRUE", "FALSE", "FALSE"},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}

	if got := query(t, ch, "SHOW TABLES"); !reflect.DeepEqual(got, [][]string{{"CLIENTS", "MEMORY"}}) {
		t.Errorf("Test Failed: unexpected tables %v", got)
	}

	execute(t, ch, "INSERT INTO clients (name) VALUES ('x')")
	if got := query(t, ch, "SELECT balance FROM clients"); !reflect.DeepEqual(got, [][]string{{"0"}}) {
		t.Errorf("Test Failed: expected default 0, got %v", got)
	}
}

func TestErrorCodes(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, `CREATE TABLE a (id INT PRIMARY KEY, x INT);
		CREATE TABLE b (id INT PRIMARY KEY, y INT)`)

	tests := []struct {
		query string
		code  int
	}{
		{"SELECT * FROM missing", core.CodeTableNotFound},
		{"SELECT nope FROM a", core.CodeColumnNotFound},
		{"SELECT id FROM a JOIN b ON a.id = b.id", core.CodeAmbiguousColumn},
		{"SELECT * FROM a JOIN a ON a.id = a.id", core.CodeAmbiguousColumn},
		{"CREATE TABLE a (id INT)", core.CodeTableExists},
		{"CREATE TABLE c (id INT, id INT)", core.CodeDuplicateColumn},
		{"INSERT INTO a VALUES (1)", core.CodeColumnCount},
		{"INSERT INTO a (id, nope) VALUES (1, 2)", core.CodeColumnNotFound},
		{"SELECT 1 / 0", core.CodeDivisionByZero},
		{"DROP TABLE missing", core.CodeTableNotFound},
		{"DROP INDEX missing", core.CodeIndexNotFound},
		{"SHOW PARAMETERS missing", core.CodeAliasNotFound},
		{"SELECT ? + 1", core.CodeParameterNotFound},
	}

	for _, test := range tests {
		_, err := ch.Execute(context.Background(), test.query)
		if errorCode(err) != test.code {
			t.Errorf("Test Failed: %s: expected error %d, got %v", test.query, test.code, err)
		}
	}

	for _, text := range []string{"SELEC 1", "SELECT FROM", "SELECT 'open", "INSERT INTO a VALUES (1,"} {
		_, err := ch.Execute(context.Background(), text)
		if !errors.Is(err, core.ErrSyntax) {
			t.Errorf("Test Failed: %s: expected a syntax error, got %v", text, err)
		}
		if code := errorCode(err); code < 1000 || code >= 2000 {
			t.Errorf("Test Failed: %s: expected a 1xxx code, got %d", text, code)
		}
	}

	execute(t, ch, "DROP TABLE IF EXISTS missing")
	execute(t, ch, "CREATE TABLE IF NOT EXISTS a (id INT)")
}

func TestParameters(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)

	author, _ := NewParameter("", "Andy")
	if got := query(t, ch, "SELECT id FROM books WHERE author = ?", author); !reflect.DeepEqual(got, [][]string{{"2"}}) {
		t.Errorf("Test Failed: expected book 2, got %v", got)
	}

	minQty, _ := NewParameter(":minQty", 1)
	if got := query(t, ch, "SELECT id FROM books WHERE qty > :minQty", minQty); !reflect.DeepEqual(got, [][]string{{"2"}}) {
		t.Errorf("Test Failed: expected book 2, got %v", got)
	}

	input, _ := NewParameter("@who", "Any")
	output := &Parameter{Name: "@total", Direction: Output}
	ret := &Parameter{Direction: ReturnValue}
	result := execute(t, ch, "SET @total = (SELECT SUM(qty) FROM books WHERE author = @who); CALL @total * 10", input, output, ret)

	if output.Value.String() != "1" {
		t.Errorf("Test Failed: expected output 1, got %v", output.Value)
	}
	if ret.Value.String() != "10" {
		t.Errorf("Test Failed: expected return value 10, got %v", ret.Value)
	}
	if len(result.Parameters) != 2 {
		t.Errorf("Test Failed: expected 2 returned parameters, got %d", len(result.Parameters))
	}
}

func TestIndexAccess(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE nums (n INT PRIMARY KEY, label VARCHAR(10), bucket INT)")
	for i := 1; i <= 20; i++ {
		execute(t, ch, fmt.Sprintf("INSERT INTO nums VALUES (%d, 'x%02d', %d)", i, i, i%3))
	}
	execute(t, ch, "CREATE INDEX ix_bucket ON nums (bucket)")

	tests := []struct {
		query    string
		expected [][]string
	}{
		{"SELECT n FROM nums WHERE n = 7", [][]string{{"7"}}},
		{"SELECT n FROM nums WHERE 7 = n", [][]string{{"7"}}},
		{"SELECT n FROM nums WHERE n BETWEEN 5 AND 8", [][]string{{"5"}, {"6"}, {"7"}, {"8"}}},
		{"SELECT n FROM nums WHERE n > 17", [][]string{{"18"}, {"19"}, {"20"}}},
		{"SELECT n FROM nums WHERE n >= 18 AND n < 20", [][]string{{"18"}, {"19"}}},
		{"SELECT n FROM nums WHERE n < 3 AND label = 'x02'", [][]string{{"2"}}},
		{"SELECT n FROM nums WHERE bucket = 0 AND n < 10", [][]string{{"3"}, {"6"}, {"9"}}},
		{"SELECT n FROM nums WHERE n = NULL", [][]string{}},
		{"SELECT n FROM nums WHERE n > 5 AND n < 3", [][]string{}},
	}

	for _, test := range tests {
		got := query(t, ch, test.query)
		if !reflect.DeepEqual(got, test.expected) {
			t.Errorf("Test Failed: %s: expected %v, got %v", test.query, test.expected, got)
		}
	}

	expectCode(t, ch, "CREATE INDEX ix_bucket ON nums (label)", core.CodeIndexExists)
	execute(t, ch, "DROP INDEX ix_bucket")
	if got := query(t, ch, "SELECT COUNT(*) FROM nums WHERE bucket = 1"); !reflect.DeepEqual(got, [][]string{{"7"}}) {
		t.Errorf("Test Failed: expected 7 rows after dropping the index, got %v", got)
	}
}

func TestJoin(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, `CREATE TABLE authors (id INT PRIMARY KEY, name VARCHAR(20));
		CREATE TABLE titles (id INT PRIMARY KEY, title VARCHAR(20), author_id INT);
		INSERT INTO authors VALUES (1, 'Ann'), (2, 'Ben');
		INSERT INTO titles VALUES (1, 'Go', 1), (2, 'SQL', 2), (3, 'Git', 1), (4, 'Orphan', 9)`)

	got := query(t, ch, `SELECT t.title, a.name FROM titles t JOIN authors a ON t.author_id = a.id
		WHERE a.name <> 'Ben' ORDER BY t.title`)
	expected := [][]string{{"Git", "Ann"}, {"Go", "Ann"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}

	got = query(t, ch, `SELECT a.name, COUNT(*) FROM authors a JOIN titles t ON t.author_id = a.id
		GROUP BY a.name ORDER BY a.name`)
	expected = [][]string{{"Ann", "2"}, {"Ben", "1"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}
}

func TestInsertSelectAndUpdate(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)
	execute(t, ch, "CREATE TABLE archive (id INT PRIMARY KEY, name CHAR)")

	if r := execute(t, ch, "INSERT INTO archive SELECT id, name FROM books"); r.UpdateCount != 2 {
		t.Errorf("Test Failed: expected 2 inserted rows, got %d", r.UpdateCount)
	}
	if r := execute(t, ch, "UPDATE books SET qty = qty * 2, author = UPPER(author) WHERE id = 2"); r.UpdateCount != 1 {
		t.Errorf("Test Failed: expected 1 updated row, got %d", r.UpdateCount)
	}
	if got := query(t, ch, "SELECT author, qty FROM books WHERE id = 2"); !reflect.DeepEqual(got, [][]string{{"ANDY", "4"}}) {
		t.Errorf("Test Failed: unexpected update result %v", got)
	}
	if r := execute(t, ch, "DELETE FROM archive"); r.UpdateCount != 2 {
		t.Errorf("Test Failed: expected 2 deleted rows, got %d", r.UpdateCount)
	}
	expectCode(t, ch, "UPDATE books SET nope = 1", core.CodeColumnNotFound)
}

func TestBackupRestore(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)
	execute(t, ch, `CREATE ALIAS POW FOR "math.Pow"`)
	path := filepath.Join(t.TempDir(), "books.bak")

	execute(t, ch, fmt.Sprintf("BACKUP DATABASE TO '%s'", path))
	execute(t, ch, "DELETE FROM books WHERE id = 1; DROP ALIAS POW; CREATE TABLE extra (id INT)")

	execute(t, ch, fmt.Sprintf("RESTORE DATABASE FROM 'file://%s'", path))
	got := query(t, ch, "SELECT id, name, value FROM books ORDER BY id")
	expected := [][]string{{"1", "Book000", "23.5"}, {"2", "Book001", "43.9"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Test Failed: expected %v, got %v", expected, got)
	}
	if got := query(t, ch, "SHOW TABLES"); !reflect.DeepEqual(got, [][]string{{"BOOKS", "MEMORY"}}) {
		t.Errorf("Test Failed: expected only BOOKS after restore, got %v", got)
	}
	if got := query(t, ch, "CALL POW(3, 2)"); !reflect.DeepEqual(got, [][]string{{"9"}}) {
		t.Errorf("Test Failed: expected restored alias, got %v", got)
	}

	_, err := ch.Execute(context.Background(), "RESTORE DATABASE FROM 'http://localhost:1/nothing'")
	if !errors.Is(err, core.ErrStorage) {
		t.Errorf("Test Failed: expected a storage error, got %v", err)
	}
}

func TestFileDatabaseReopen(t *testing.T) {
	dir := t.TempDir()

	database, err := NewDatabase(Config{Path: dir, CacheSize: 2})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	ch := connect(t, database)
	execute(t, ch, `CREATE CACHED TABLE events (id INT IDENTITY, kind VARCHAR(10));
		CREATE TABLE tags (name VARCHAR(10) PRIMARY KEY)`)
	for i := 0; i < 5; i++ {
		execute(t, ch, fmt.Sprintf("INSERT INTO events (kind) VALUES ('k%d')", i))
	}
	execute(t, ch, "INSERT INTO tags VALUES ('red')")
	result := execute(t, ch, "CHECKPOINT")
	if result.Transaction.Id == "" {
		t.Error("Test Failed: expected a checkpoint transaction")
	}
	execute(t, ch, "INSERT INTO tags VALUES ('blue')")
	if err := database.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	reopened := setupTestDatabase(t, Config{Path: dir})
	ch = connect(t, reopened)

	if got := query(t, ch, "SELECT COUNT(*), MAX(id) FROM events"); !reflect.DeepEqual(got, [][]string{{"5", "5"}}) {
		t.Errorf("Test Failed: expected 5 events, got %v", got)
	}
	if got := query(t, ch, "SELECT name FROM tags ORDER BY name"); !reflect.DeepEqual(got, [][]string{{"blue"}, {"red"}}) {
		t.Errorf("Test Failed: expected both tags, got %v", got)
	}
	if got := query(t, ch, "SHOW TABLES"); !reflect.DeepEqual(got, [][]string{{"EVENTS", "CACHED"}, {"TAGS", "MEMORY"}}) {
		t.Errorf("Test Failed: unexpected tables %v", got)
	}

	execute(t, ch, "INSERT INTO events (kind) VALUES ('next')")
	if got := query(t, ch, "SELECT id FROM events WHERE kind = 'next'"); !reflect.DeepEqual(got, [][]string{{"6"}}) {
		t.Errorf("Test Failed: expected identity to continue at 6, got %v", got)
	}
}

func TestAuthentication(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	database := setupTestDatabase(t, Config{Users: map[string]string{"admin": hash}})

	if _, err := database.Connect("admin", "wrong"); errorCode(err) != core.CodeAccessDenied {
		t.Errorf("Test Failed: expected access denied, got %v", err)
	}
	ch, err := database.Connect("admin", "secret")
	if err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	if ch.User() != "ADMIN" {
		t.Errorf("Test Failed: expected user ADMIN, got %s", ch.User())
	}
}

func TestRegistry(t *testing.T) {
	name := "mem:" + t.Name()
	first, err := OpenDatabase(Config{Name: name})
	if err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	second, err := OpenDatabase(Config{Name: name})
	if err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	if first != second {
		t.Error("Test Failed: expected the same database for the same name")
	}

	ch := connect(t, first)
	found := false
	for _, row := range query(t, ch, "SHOW DATABASES") {
		found = found || row[0] == name
	}
	if !found {
		t.Errorf("Test Failed: expected %s in SHOW DATABASES", name)
	}

	first.Close()
	if _, err := ch.Execute(context.Background(), "SELECT 1"); err == nil {
		t.Error("Test Failed: expected an error after close")
	}
	for _, n := range DatabaseNames() {
		if n == name {
			t.Errorf("Test Failed: expected %s to be unregistered", name)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	ch := setupTestChannel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Execute(ctx, "SELECT 1")
	if errorCode(err) != core.CodeCancelled || !errors.Is(err, context.Canceled) {
		t.Errorf("Test Failed: expected cancellation, got %v", err)
	}
}

func TestDisplay(t *testing.T) {
	ch := setupTestChannel(t)
	createBooks(t, ch)

	var out strings.Builder
	if err := execute(t, ch, "SELECT id, name FROM books ORDER BY id").Display(&out); err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	for _, want := range []string{"ID", "NAME", "Book000", "Book001"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Test Failed: expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties(map[string]any{
		"name":               "mem:props",
		"cache_size":         "64",
		"auto_checkpoint":    "true",
		"default_table_type": "CACHED",
	})
	if err != nil {
		t.Fatalf("Test Failed: %v", err)
	}
	expected := Config{Name: "mem:props", CacheSize: 64, AutoCheckpoint: true, DefaultTableType: "CACHED"}
	if !reflect.DeepEqual(cfg, expected) {
		t.Errorf("Test Failed: expected %+v, got %+v", expected, cfg)
	}

	tests := []struct {
		name     string
		expected Config
	}{
		{".", Config{Name: MemoryName}},
		{"mem:test", Config{Name: "mem:test"}},
		{"/var/db/books/", Config{Name: "/var/db/books", Path: "/var/db/books"}},
	}
	for _, test := range tests {
		if got := ConfigForName(test.name); !reflect.DeepEqual(got, test.expected) {
			t.Errorf("Test Failed: %s: expected %+v, got %+v", test.name, test.expected, got)
		}
	}

	if _, err := NewDatabase(Config{Name: "mem:bad", DefaultTableType: "DISK"}); errorCode(err) != core.CodeInvalidProperties {
		t.Errorf("Test Failed: expected invalid properties, got %v", err)
	}
}

// storedRows reads a table the way the last checkpoint in dir left it.
func storedRows(t *testing.T, dir, name string) [][]string {
	t.Helper()
	persistence, err := ps.NewFilePersistence(dir, nil)
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	catalog := op.NewCatalog(persistence, 0)
	if err := catalog.Load(); err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	table, ok := catalog.Table(name)
	if !ok {
		t.Fatalf("Table %s not stored", name)
	}
	out := [][]string{}
	for entry, err := range table.Scan() {
		if err != nil {
			t.Fatalf("Failed to scan %s: %v", name, err)
		}
		values := make([]string, len(entry.Row))
		for i, v := range entry.Row {
			values[i] = v.String()
		}
		out = append(out, values)
	}
	return out
}

func TestCheckpointSkipsOpenTransactions(t *testing.T) {
	dir := t.TempDir()
	database := setupTestDatabase(t, Config{Path: dir})
	writer := connect(t, database)
	other := connect(t, database)

	execute(t, writer, `CREATE TABLE notes (id INT PRIMARY KEY, body VARCHAR(10));
		CREATE CACHED TABLE logs (id INT PRIMARY KEY, body VARCHAR(10));
		INSERT INTO notes VALUES (1, 'one'), (2, 'two');
		INSERT INTO logs VALUES (1, 'one'), (2, 'two');
		CHECKPOINT`)

	execute(t, writer, `BEGIN;
		INSERT INTO notes VALUES (3, 'three');
		UPDATE notes SET body = 'uno' WHERE id = 1;
		DELETE FROM notes WHERE id = 2;
		INSERT INTO logs VALUES (3, 'three');
		UPDATE logs SET body = 'uno' WHERE id = 1;
		DELETE FROM logs WHERE id = 2`)
	execute(t, other, "CHECKPOINT")

	committed := [][]string{{"1", "one"}, {"2", "two"}}
	for _, table := range []string{"NOTES", "LOGS"} {
		if got := storedRows(t, dir, table); !reflect.DeepEqual(got, committed) {
			t.Errorf("Test Failed: %s: expected only committed rows on disk %v, got %v", table, committed, got)
		}
	}
	if got := query(t, writer, "SELECT id, body FROM logs ORDER BY id"); !reflect.DeepEqual(got, [][]string{{"1", "uno"}, {"3", "three"}}) {
		t.Errorf("Test Failed: expected the open transaction to still see its rows, got %v", got)
	}

	execute(t, writer, "COMMIT")
	execute(t, other, "CHECKPOINT")

	expected := [][]string{{"1", "uno"}, {"3", "three"}}
	for _, table := range []string{"NOTES", "LOGS"} {
		if got := storedRows(t, dir, table); !reflect.DeepEqual(got, expected) {
			t.Errorf("Test Failed: %s: expected %v after commit, got %v", table, expected, got)
		}
	}
}

func TestAutoCheckpointSkipsOpenTransactions(t *testing.T) {
	dir := t.TempDir()
	database := setupTestDatabase(t, Config{Path: dir, AutoCheckpoint: true})
	writer := connect(t, database)
	other := connect(t, database)

	execute(t, writer, "CREATE TABLE t (id INT PRIMARY KEY)")
	execute(t, writer, "BEGIN; INSERT INTO t VALUES (1)")
	execute(t, other, "INSERT INTO t VALUES (2)")

	if got := storedRows(t, dir, "T"); !reflect.DeepEqual(got, [][]string{{"2"}}) {
		t.Errorf("Test Failed: expected only the committed row, got %v", got)
	}

	execute(t, writer, "ROLLBACK")
	execute(t, other, "CHECKPOINT")
	if got := storedRows(t, dir, "T"); !reflect.DeepEqual(got, [][]string{{"2"}}) {
		t.Errorf("Test Failed: expected the rolled back row to stay off disk, got %v", got)
	}
}

func TestCachedScanStorageError(t *testing.T) {
	database := setupTestDatabase(t, Config{CacheSize: 1})
	ch := connect(t, database)
	execute(t, ch, `CREATE CACHED TABLE logs (id INT PRIMARY KEY, body VARCHAR(10));
		INSERT INTO logs VALUES (1, 'one'), (2, 'two'), (3, 'three');
		CHECKPOINT`)

	// remove the stored rows behind the table
	txn, err := database.persistence.BeginTransaction()
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		txn.DeleteRecord("LOGS", id)
	}
	if _, err := txn.Commit(database.config.Identity, "remove rows"); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	result, err := ch.Execute(context.Background(), "SELECT id, body FROM logs")
	if err == nil {
		_, err = result.Rows()
	}
	if !errors.Is(err, core.ErrStorage) {
		t.Errorf("Test Failed: expected a storage error, got %v", err)
	}
}

func TestIdentityExhausted(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE t (id INT IDENTITY, name VARCHAR(10))")
	execute(t, ch, "INSERT INTO t (id, name) VALUES (2147483647, 'max')")

	expectCode(t, ch, "INSERT INTO t (name) VALUES ('next')", core.CodeNumericOverflow)
	if got := query(t, ch, "SELECT id, name FROM t"); !reflect.DeepEqual(got, [][]string{{"2147483647", "max"}}) {
		t.Errorf("Test Failed: expected only the first row, got %v", got)
	}

	execute(t, ch, "CREATE TABLE big (id BIGINT IDENTITY, name VARCHAR(10))")
	execute(t, ch, "INSERT INTO big (id, name) VALUES (2147483647, 'max'); INSERT INTO big (name) VALUES ('next')")
	if got := query(t, ch, "SELECT id FROM big WHERE name = 'next'"); !reflect.DeepEqual(got, [][]string{{"2147483648"}}) {
		t.Errorf("Test Failed: expected BIGINT identity to continue, got %v", got)
	}
}

func TestDecimalPrecision(t *testing.T) {
	ch := setupTestChannel(t)
	execute(t, ch, "CREATE TABLE d (x DECIMAL(10,2))")
	execute(t, ch, "INSERT INTO d VALUES (1.239)")

	if got := query(t, ch, "SELECT x FROM d"); !reflect.DeepEqual(got, [][]string{{"1.24"}}) {
		t.Errorf("Test Failed: expected 1.24, got %v", got)
	}
	expectCode(t, ch, "INSERT INTO d VALUES (123456789)", core.CodeNumericOverflow)
	expectCode(t, ch, "UPDATE d SET x = x * 100000000", core.CodeNumericOverflow)
	if got := query(t, ch, "SELECT x FROM d"); !reflect.DeepEqual(got, [][]string{{"1.24"}}) {
		t.Errorf("Test Failed: expected the row unchanged, got %v", got)
	}
}

func TestShowDatabasesListsOwnDatabase(t *testing.T) {
	ch := setupTestChannel(t)

	names := []string{}
	for _, row := range query(t, ch, "SHOW DATABASES") {
		names = append(names, row[0])
	}
	if !slices.Contains(names, "mem:"+t.Name()) {
		t.Errorf("Test Failed: expected %s in %v", "mem:"+t.Name(), names)
	}
}

func TestCountOverflow(t *testing.T) {
	a := newAccumulator(&aggregateSpec{kind: aggCount, typ: core.IntegerType})
	a.count = math.MaxInt32

	v, err := a.result()
	if err != nil || v.String() != "2147483647" {
		t.Errorf("Test Failed: expected 2147483647, got %v %v", v, err)
	}

	a.count++
	if _, err := a.result(); errorCode(err) != core.CodeNumericOverflow {
		t.Errorf("Test Failed: expected numeric overflow, got %v", err)
	}
}

func initBareRepository(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	storer := filesystem.NewStorage(osfs.New(dir), cache.NewObjectLRUDefault())
	if _, err := git.Init(storer); err != nil {
		t.Fatalf("Failed to init bare repository: %v", err)
	}
	return dir
}

func TestCheckpointPushesToRemote(t *testing.T) {
	bare := initBareRepository(t)
	dir := t.TempDir()

	// a remote only clones into an empty directory, so create the
	// repository first
	seed, err := NewDatabase(Config{Path: dir})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	execute(t, connect(t, seed), "CREATE TABLE notes (id INT PRIMARY KEY, body VARCHAR(10))")
	if err := seed.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	database := setupTestDatabase(t, Config{Path: dir, Remote: bare})
	ch := connect(t, database)
	execute(t, ch, "INSERT INTO notes VALUES (1, 'pushed')")
	pushed := execute(t, ch, "CHECKPOINT").Transaction

	clone := setupTestDatabase(t, Config{Path: filepath.Join(t.TempDir(), "clone"), Remote: bare})
	if got := clone.persistence.LatestTransaction().Id; got != pushed.Id {
		t.Errorf("Test Failed: expected the clone at %s, got %s", pushed.Id, got)
	}
	if got := query(t, connect(t, clone), "SELECT id, body FROM notes"); !reflect.DeepEqual(got, [][]string{{"1", "pushed"}}) {
		t.Errorf("Test Failed: expected the pushed row in the clone, got %v", got)
	}
}

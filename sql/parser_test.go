package sql

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nickyhof/EmbedDB/core"
)

func parse(text string) (Statement, error) {
	return NewParser(text).Parse()
}

func col(name string) ColumnRef {
	return ColumnRef{Column: name}
}

func intLit(i int32) Literal {
	return Literal{Value: core.NewInteger(i)}
}

func strLit(s string) Literal {
	return Literal{Value: core.NewVarChar(s)}
}

func TestParser(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected Statement
	}{
		{
			"select wildcard",
			"SELECT * FROM test",
			&SelectStatement{
				Items: []SelectItem{{Star: true}},
				From:  []TableRef{{Name: "TEST"}},
				Limit: -1,
			},
		},
		{
			"select columns are upper-cased",
			"select col_1, col_2 from test",
			&SelectStatement{
				Items: []SelectItem{{Expr: col("COL_1")}, {Expr: col("COL_2")}},
				From:  []TableRef{{Name: "TEST"}},
				Limit: -1,
			},
		},
		{
			"quoted identifiers keep case",
			`SELECT "Name" FROM "Books"`,
			&SelectStatement{
				Items: []SelectItem{{Expr: col("Name")}},
				From:  []TableRef{{Name: "Books"}},
				Limit: -1,
			},
		},
		{
			"select with where and",
			"SELECT name FROM books WHERE author = 'Andy' AND qty > 1",
			&SelectStatement{
				Items: []SelectItem{{Expr: col("NAME")}},
				From:  []TableRef{{Name: "BOOKS"}},
				Where: BinaryExpr{
					Op:    AndOp,
					Left:  BinaryExpr{Op: EqualOp, Left: col("AUTHOR"), Right: strLit("Andy")},
					Right: BinaryExpr{Op: GreaterOp, Left: col("QTY"), Right: intLit(1)},
				},
				Limit: -1,
			},
		},
		{
			"select group by with aggregate and alias",
			"SELECT name, SUM(value) AS total FROM books GROUP BY name ORDER BY total DESC LIMIT 5 OFFSET 2",
			&SelectStatement{
				Items: []SelectItem{
					{Expr: col("NAME")},
					{Expr: FuncCall{Name: "SUM", Args: []Expr{col("VALUE")}}, Alias: "TOTAL"},
				},
				From:    []TableRef{{Name: "BOOKS"}},
				GroupBy: []Expr{col("NAME")},
				OrderBy: []OrderByClause{{Expr: col("TOTAL"), Descending: true}},
				Limit:   5,
				Offset:  2,
			},
		},
		{
			"count star and distinct",
			"SELECT DISTINCT COUNT(*), COUNT(DISTINCT author) FROM books",
			&SelectStatement{
				Distinct: true,
				Items: []SelectItem{
					{Expr: FuncCall{Name: "COUNT", Star: true}},
					{Expr: FuncCall{Name: "COUNT", Args: []Expr{col("AUTHOR")}, Distinct: true}},
				},
				From:  []TableRef{{Name: "BOOKS"}},
				Limit: -1,
			},
		},
		{
			"join with qualified star",
			"SELECT b.*, a.name FROM books b INNER JOIN authors a ON b.author = a.name",
			&SelectStatement{
				Items: []SelectItem{
					{Star: true, StarTable: "B"},
					{Expr: ColumnRef{Table: "A", Column: "NAME"}},
				},
				From: []TableRef{
					{Name: "BOOKS", Alias: "B"},
					{Name: "AUTHORS", Alias: "A", On: BinaryExpr{
						Op:    EqualOp,
						Left:  ColumnRef{Table: "B", Column: "AUTHOR"},
						Right: ColumnRef{Table: "A", Column: "NAME"},
					}},
				},
				Limit: -1,
			},
		},
		{
			"select without from",
			"SELECT 1 + 2 * 3",
			&SelectStatement{
				Items: []SelectItem{{Expr: BinaryExpr{
					Op:    AddOp,
					Left:  intLit(1),
					Right: BinaryExpr{Op: MultiplyOp, Left: intLit(2), Right: intLit(3)},
				}}},
				Limit: -1,
			},
		},
		{
			"predicates",
			"SELECT * FROM t WHERE a IS NOT NULL AND b NOT LIKE 'x%' AND c IN (1, 2) AND d BETWEEN 1 AND 3",
			&SelectStatement{
				Items: []SelectItem{{Star: true}},
				From:  []TableRef{{Name: "T"}},
				Where: BinaryExpr{
					Op: AndOp,
					Left: BinaryExpr{
						Op: AndOp,
						Left: BinaryExpr{
							Op:    AndOp,
							Left:  IsNullExpr{Operand: col("A"), Not: true},
							Right: LikeExpr{Operand: col("B"), Pattern: strLit("x%"), Not: true},
						},
						Right: InExpr{Operand: col("C"), List: []Expr{intLit(1), intLit(2)}},
					},
					Right: BetweenExpr{Operand: col("D"), Low: intLit(1), High: intLit(3)},
				},
				Limit: -1,
			},
		},
		{
			"insert with columns",
			"INSERT INTO books (id, name) VALUES (1, 'it''s')",
			InsertStatement{
				Table:   "BOOKS",
				Columns: []string{"ID", "NAME"},
				Rows:    [][]Expr{{intLit(1), strLit("it's")}},
			},
		},
		{
			"insert multiple rows",
			"INSERT INTO t VALUES (1), (-2)",
			InsertStatement{
				Table: "T",
				Rows:  [][]Expr{{intLit(1)}, {intLit(-2)}},
			},
		},
		{
			"insert select",
			"INSERT INTO t SELECT id FROM s",
			InsertStatement{
				Table: "T",
				Query: &SelectStatement{
					Items: []SelectItem{{Expr: col("ID")}},
					From:  []TableRef{{Name: "S"}},
					Limit: -1,
				},
			},
		},
		{
			"update",
			"UPDATE books SET qty = qty + 1 WHERE id = @id",
			UpdateStatement{
				Table: "BOOKS",
				Updates: []SetClause{
					{Column: "QTY", Value: BinaryExpr{Op: AddOp, Left: col("QTY"), Right: intLit(1)}},
				},
				Where: BinaryExpr{Op: EqualOp, Left: col("ID"), Right: VariableRef{Name: "ID"}},
			},
		},
		{
			"delete",
			"DELETE FROM books WHERE name = ?",
			DeleteStatement{
				Table: "BOOKS",
				Where: BinaryExpr{Op: EqualOp, Left: col("NAME"), Right: ParamRef{Index: 0}},
			},
		},
		{
			"create cached table",
			"CREATE CACHED TABLE clients (id INT IDENTITY, name VARCHAR(20) NOT NULL, code CHAR UNIQUE, score DECIMAL(10,2) DEFAULT 0)",
			CreateTableStatement{
				Table:   "CLIENTS",
				Mode:    core.CachedMode,
				ModeSet: true,
				Columns: []core.Column{
					{Name: "ID", Type: core.IntegerType, Identity: true},
					{Name: "NAME", Type: core.VarCharType, Size: 20},
					{Name: "CODE", Type: core.CharType, Nullable: true, Unique: true},
					{Name: "SCORE", Type: core.DecimalType, Size: 10, Scale: 2, Nullable: true, Default: "0"},
				},
			},
		},
		{
			"create table with table constraints",
			"CREATE TABLE t (a INT, b INT, PRIMARY KEY (a, b), UNIQUE (b))",
			CreateTableStatement{
				Table: "T",
				Columns: []core.Column{
					{Name: "A", Type: core.IntegerType, Nullable: true},
					{Name: "B", Type: core.IntegerType, Nullable: true},
				},
				PrimaryKey: []string{"A", "B"},
				Uniques:    [][]string{{"B"}},
			},
		},
		{
			"drop table if exist",
			"DROP TABLE IF EXIST books",
			DropTableStatement{Table: "BOOKS", IfExists: true},
		},
		{
			"drop table trailing if exists",
			"DROP TABLE books IF EXISTS",
			DropTableStatement{Table: "BOOKS", IfExists: true},
		},
		{
			"create index",
			"CREATE UNIQUE INDEX idx_name ON books (name)",
			CreateIndexStatement{Name: "IDX_NAME", Table: "BOOKS", Columns: []string{"NAME"}, Unique: true},
		},
		{
			"create alias",
			`CREATE ALIAS POW FOR "math.Pow"`,
			CreateAliasStatement{Name: "POW", Target: "math.Pow"},
		},
		{
			"declare",
			"DECLARE @MyVar CHAR",
			DeclareStatement{Name: "MYVAR", Spec: TypeSpec{Type: core.CharType}},
		},
		{
			"set expression",
			"SET @MyVar = 'Andy'",
			SetVariableStatement{Name: "MYVAR", Value: strLit("Andy")},
		},
		{
			"set bare subquery",
			"SET @MyId = SELECT MAX(id) + 1 FROM clients",
			SetVariableStatement{Name: "MYID", Query: &SelectStatement{
				Items: []SelectItem{{Expr: BinaryExpr{
					Op:    AddOp,
					Left:  FuncCall{Name: "MAX", Args: []Expr{col("ID")}},
					Right: intLit(1),
				}}},
				From:  []TableRef{{Name: "CLIENTS"}},
				Limit: -1,
			}},
		},
		{
			"set parenthesised subquery",
			"SET @n = (SELECT COUNT(*) FROM t)",
			SetVariableStatement{Name: "N", Query: &SelectStatement{
				Items: []SelectItem{{Expr: FuncCall{Name: "COUNT", Star: true}}},
				From:  []TableRef{{Name: "T"}},
				Limit: -1,
			}},
		},
		{
			"set parenthesised expression",
			"SET @n = (1 + 2)",
			SetVariableStatement{Name: "N", Value: BinaryExpr{Op: AddOp, Left: intLit(1), Right: intLit(2)}},
		},
		{
			"set autocommit",
			"SET AUTOCOMMIT FALSE",
			SetAutoCommitStatement{Enabled: false},
		},
		{
			"call",
			"CALL ABS(-5)",
			CallStatement{Expr: FuncCall{Name: "ABS", Args: []Expr{intLit(-5)}}},
		},
		{"begin", "BEGIN TRANSACTION", BeginStatement{}},
		{"commit", "COMMIT WORK", CommitStatement{}},
		{"rollback", "ROLLBACK", RollbackStatement{}},
		{"checkpoint", "CHECKPOINT", CheckpointStatement{}},
		{"show databases", "SHOW DATABASES", ShowDatabasesStatement{}},
		{"show tables", "SHOW TABLES", ShowTablesStatement{}},
		{"show alias", "SHOW ALIAS", ShowAliasStatement{}},
		{"show parameters", "SHOW PARAMETERS pow", ShowParametersStatement{Alias: "POW"}},
		{"show columns", `SHOW COLUMNS "books"`, ShowColumnsStatement{Table: "books"}},
		{"backup", "BACKUP DATABASE TO 's3://bucket/db.zst'", BackupStatement{URL: "s3://bucket/db.zst"}},
		{"restore", "RESTORE DATABASE FROM '/tmp/db.zst'", RestoreStatement{URL: "/tmp/db.zst"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := parse(test.sql)

			if err != nil {
				t.Errorf("Test Failed: Unexpected error: %v", err)
				return
			}

			if !reflect.DeepEqual(actual, test.expected) {
				t.Errorf("Test Failed: Expected %+v, got %+v", test.expected, actual)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	statements, err := ParseAll("DECLARE @v INT; SET @v = 1;; SELECT @v;")
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(statements))
	}
	if statements[2].Type() != SelectStatementType {
		t.Errorf("expected SELECT last, got %v", statements[2].Type())
	}
}

func TestParseAllNumbersParameters(t *testing.T) {
	statements, err := ParseAll("INSERT INTO t VALUES (?, ?); DELETE FROM t WHERE a = ?")
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	del := statements[1].(DeleteStatement)
	ref := del.Where.(BinaryExpr).Right.(ParamRef)
	if ref.Index != 2 {
		t.Errorf("expected third marker to have index 2, got %d", ref.Index)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		code int
	}{
		{"unknown statement", "FROBNICATE t", core.CodeUnknownStatement},
		{"unterminated string", "SELECT 'abc", core.CodeUnterminatedString},
		{"unexpected token", "SELECT * FROM WHERE", core.CodeUnexpectedToken},
		{"unexpected end", "INSERT INTO t VALUES (1,", core.CodeUnexpectedEnd},
		{"unknown type", "CREATE TABLE t (a FANCY)", core.CodeUnknownType},
		{"bad identity type", "CREATE TABLE t (a VARCHAR IDENTITY)", core.CodeInvalidLiteral},
		{"garbage after statement", "SELECT 1 2 3", core.CodeUnexpectedToken},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseAll(test.sql)
			if err == nil {
				t.Fatalf("expected error for %q", test.sql)
			}
			if !errors.Is(err, core.ErrSyntax) {
				t.Errorf("expected a syntax error, got %v", err)
			}
			var engineErr *core.Error
			if !errors.As(err, &engineErr) || engineErr.Code != test.code {
				t.Errorf("expected code %d, got %v", test.code, err)
			}
		})
	}
}

func TestParseExpressionRoundTrip(t *testing.T) {
	inputs := []string{
		"(A + 1)",
		"'it''s'",
		"DATE '2024-02-29'",
		"X'0AFF'",
		"(\"mixed Case\" || 'x')",
		"COALESCE(@V, NULL, 1.5)",
		"CAST(A AS VARCHAR(10))",
		"(B NOT BETWEEN 1 AND 2)",
	}
	for _, input := range inputs {
		first, err := ParseExpression(input)
		if err != nil {
			t.Fatalf("ParseExpression(%q) error = %v", input, err)
		}
		second, err := ParseExpression(first.String())
		if err != nil {
			t.Fatalf("ParseExpression(%q) error = %v", first.String(), err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("round trip of %q changed the tree: %+v != %+v", input, first, second)
		}
	}
}

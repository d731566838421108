package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/EmbedDB"
	"github.com/nickyhof/EmbedDB/db"
)

const shopSQL = `-- Shop example
CREATE TABLE products (id INT PRIMARY KEY, name VARCHAR(40) NOT NULL, price DECIMAL(10,2));
CREATE TABLE customers (id INT IDENTITY, name VARCHAR(40), city VARCHAR(40));

INSERT INTO products VALUES (1, 'Laptop', 999.99), (2, 'Mouse', 19.99), (3, 'Keyboard', 49.99);
INSERT INTO products VALUES (4, 'Monitor', 249.50);
INSERT INTO products VALUES (5, 'Cable; USB-C', 9.99);

INSERT INTO customers (name, city) VALUES ('Alice', 'Oslo'), ('Bob', 'Bergen'), ('Carol', 'Oslo');

SELECT name FROM products WHERE price > 100;
`

func setupTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	ch, err := EmbedDB.Open("mem:"+t.Name(), db.DefaultUser, "")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { ch.Database().Close() })

	out := &bytes.Buffer{}
	return &CLI{
		ch:      ch,
		out:     out,
		history: make([]string, 0),
	}, out
}

func scalar(t *testing.T, cli *CLI, query string) string {
	t.Helper()
	result, err := cli.ch.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("%s failed: %v", query, err)
	}
	value, err := result.Scalar()
	if err != nil {
		t.Fatalf("%s failed: %v", query, err)
	}
	return value.String()
}

func TestCLIShowTablesEmpty(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.handleCommand(".tables")
	if strings.Contains(out.String(), "Error") {
		t.Errorf("Expected .tables to succeed, got %q", out.String())
	}
}

func TestCLICreateTableAndInsert(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.execute("CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20))")
	cli.execute("INSERT INTO users (id, name) VALUES (1, 'Alice')")
	if !strings.Contains(out.String(), "1 row(s) affected") {
		t.Errorf("Expected an update count, got %q", out.String())
	}

	out.Reset()
	cli.execute("SELECT * FROM users")
	if !strings.Contains(out.String(), "Alice") {
		t.Errorf("Expected the row to be displayed, got %q", out.String())
	}

	out.Reset()
	cli.handleCommand(".columns users")
	if !strings.Contains(out.String(), "NAME") {
		t.Errorf("Expected the NAME column, got %q", out.String())
	}
}

func TestCLIExecuteError(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.execute("SELECT * FROM nowhere")
	if !strings.Contains(out.String(), "Error: 2001") {
		t.Errorf("Expected a table-not-found error, got %q", out.String())
	}
}

func TestCLIAddToHistory(t *testing.T) {
	cli, _ := setupTestCLI(t)

	cli.addToHistory("SELECT * FROM test")
	cli.addToHistory("INSERT INTO test VALUES (1)")

	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(cli.history))
	}

	// Adding duplicate of last command should not increase count
	cli.addToHistory("INSERT INTO test VALUES (1)")
	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries after duplicate, got %d", len(cli.history))
	}
}

func TestCLIHistoryLimit(t *testing.T) {
	cli, _ := setupTestCLI(t)

	for i := 0; i < 1100; i++ {
		cli.addToHistory("SELECT " + string(rune(i)))
	}

	if len(cli.history) > 1000 {
		t.Errorf("Expected history to be limited to 1000, got %d", len(cli.history))
	}
}

func TestCLIHistoryFile(t *testing.T) {
	cli, _ := setupTestCLI(t)
	cli.historyFile = filepath.Join(t.TempDir(), "history")

	cli.addToHistory("SELECT 1")
	cli.addToHistory("SELECT\n2")
	cli.saveHistory()

	reloaded, _ := setupTestCLI(t)
	reloaded.historyFile = cli.historyFile
	reloaded.loadHistory()

	if len(reloaded.history) != 2 || reloaded.history[1] != "SELECT 2" {
		t.Errorf("Expected 2 reloaded entries, got %q", reloaded.history)
	}
}

func TestCLIGetPrompt(t *testing.T) {
	cli, _ := setupTestCLI(t)

	prompt := cli.getPrompt(false)
	if !strings.Contains(prompt, "embeddb>") {
		t.Error("Expected prompt to contain 'embeddb>'")
	}

	prompt = cli.getPrompt(true)
	if !strings.Contains(prompt, "...>") {
		t.Error("Expected multi-line prompt to contain '...>'")
	}

	// Open transaction
	cli.execute("BEGIN")
	prompt = cli.getPrompt(false)
	if !strings.Contains(prompt, "embeddb*>") {
		t.Error("Expected prompt to mark the open transaction")
	}
	cli.execute("ROLLBACK")
}

func TestCLIHandleCommand(t *testing.T) {
	cli, _ := setupTestCLI(t)

	tests := []struct {
		command  string
		expected bool // should return true (command handled)
	}{
		{".help", true},
		{".version", true},
		{".history", true},
		{".databases", true},
		{".tables", true},
		{".aliases", true},
		{".checkpoint", true},
		{".columns", true},
		{".unknown", true}, // Unknown commands are still handled (with error message)
	}

	for _, test := range tests {
		result := cli.handleCommand(test.command)
		if result != test.expected {
			t.Errorf("handleCommand(%s) = %v, expected %v", test.command, result, test.expected)
		}
	}
}

func TestCLIUnknownCommand(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.handleCommand(".use testdb")
	if !strings.Contains(out.String(), "Unknown command: .use") {
		t.Errorf("Expected an unknown command message, got %q", out.String())
	}
}

func TestVersionVariable(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"single statement", "SELECT * FROM test", 1},
		{"two statements", "SELECT * FROM a; SELECT * FROM b", 2},
		{"with semicolons", "INSERT INTO t VALUES (1); INSERT INTO t VALUES (2);", 2},
		{"with comments", "-- comment\nSELECT * FROM test", 1},
		{"comment with semicolon", "-- a; b\nSELECT 1", 1},
		{"multiline", "CREATE TABLE t (\n  id INT,\n  name VARCHAR(10)\n);", 1},
		{"empty", "", 0},
		{"only semicolons", ";;;", 0},
		{"string with semicolon", "INSERT INTO t (s) VALUES ('a;b')", 1},
		{"escaped quote", "INSERT INTO t (s) VALUES ('it''s; fine'); SELECT 1", 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := splitStatements(test.input)
			if len(result) != test.expected {
				t.Errorf("splitStatements(%q) = %d statements, expected %d", test.input, len(result), test.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"exact", 5, "exact"},
		{"ab", 10, "ab"},
		{"a\nb", 10, "a b"},
	}

	for _, test := range tests {
		result := truncate(test.input, test.max)
		if result != test.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q", test.input, test.max, result, test.expected)
		}
	}
}

func TestImportFile(t *testing.T) {
	cli, out := setupTestCLI(t)

	path := filepath.Join(t.TempDir(), "shop.sql")
	if err := os.WriteFile(path, []byte(shopSQL), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := cli.importFile(path); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}
	if !strings.Contains(out.String(), "7 succeeded, 0 failed") {
		t.Errorf("Expected all statements to succeed, got %q", out.String())
	}
	if !strings.Contains(out.String(), "(3 affected)") || !strings.Contains(out.String(), "(2 rows)") {
		t.Errorf("Expected update counts and row counts, got %q", out.String())
	}

	if got := scalar(t, cli, "SELECT COUNT(*) FROM products"); got != "5" {
		t.Errorf("Expected 5 products, got %s", got)
	}
	if got := scalar(t, cli, "SELECT COUNT(*) FROM customers"); got != "3" {
		t.Errorf("Expected 3 customers, got %s", got)
	}
	if got := scalar(t, cli, "SELECT name FROM products WHERE id = 5"); got != "Cable; USB-C" {
		t.Errorf("Expected the quoted semicolon to survive, got %s", got)
	}
}

func TestImportFileWithErrors(t *testing.T) {
	cli, out := setupTestCLI(t)

	path := filepath.Join(t.TempDir(), "broken.sql")
	if err := os.WriteFile(path, []byte("CREATE TABLE t (id INT); INSERT INTO nowhere VALUES (1); INSERT INTO t VALUES (1)"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := cli.importFile(path); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}
	if !strings.Contains(out.String(), "2 succeeded, 1 failed") {
		t.Errorf("Expected one failure, got %q", out.String())
	}
}

func TestImportFileNotFound(t *testing.T) {
	cli, _ := setupTestCLI(t)

	err := cli.importFile("nonexistent.sql")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestImportCommand(t *testing.T) {
	cli, out := setupTestCLI(t)

	result := cli.handleCommand(".import")
	if !result {
		t.Error("Expected .import to be handled")
	}
	if !strings.Contains(out.String(), "Usage: .import") {
		t.Errorf("Expected usage, got %q", out.String())
	}
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickyhof/EmbedDB"
	"github.com/nickyhof/EmbedDB/db"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	ch          *db.Channel
	out         io.Writer
	history     []string
	historyFile string
}

func main() {
	database := flag.String("db", db.MemoryName, "Database name: \".\" or mem:<name> for memory, otherwise a directory")
	user := flag.String("user", db.DefaultUser, "User name")
	password := flag.String("password", "", "Password or signed token")
	remote := flag.String("remote", "", "Git URL to push checkpoints to")
	tableType := flag.String("tableType", "", "Default table type: MEMORY or CACHED")
	sqlFile := flag.String("sqlFile", "", "SQL file to execute (non-interactive)")
	verbose := flag.Bool("verbose", false, "Log engine activity to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	printBanner()

	cfg := db.ConfigForName(*database)
	cfg.Remote = *remote
	cfg.DefaultTableType = *tableType
	cfg.Logger = logger
	if cfg.Path == "" {
		fmt.Printf("%sUsing memory database %s%s\n", SuccessColor, cfg.Name, ResetColor)
	} else {
		fmt.Printf("%sUsing file database: %s%s\n", SuccessColor, cfg.Path, ResetColor)
	}

	ch, err := EmbedDB.OpenWithConfig(cfg, *user, *password)
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}

	cli := &CLI{
		ch:          ch,
		out:         os.Stdout,
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}
	cli.loadHistory()

	// Execute SQL file if provided
	if *sqlFile != "" {
		err := cli.importFile(*sqlFile)
		cli.close()
		if err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func printBanner() {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("EmbedDB v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║   Embedded SQL Database Engine        ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	var multiLineBuffer strings.Builder

	for {
		prompt := cli.getPrompt(multiLineBuffer.Len() > 0)
		fmt.Print(prompt)

		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			cli.close()
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// Special commands only outside a multi-line statement
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// Multi-line support: accumulate until we see a semicolon
		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString("\n")
			continue
		}

		sql := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(sql) == "" {
			continue
		}

		cli.addToHistory(sql + ";")
		cli.execute(sql)
	}
}

// execute runs one batch and displays its result.
func (cli *CLI) execute(sql string) {
	result, err := cli.ch.Execute(context.Background(), sql)
	if err != nil {
		fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	if err := result.Display(cli.out); err != nil {
		fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
	}
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	txPart := ""
	if cli.ch.InTransaction() {
		txPart = "*"
	}

	return fmt.Sprintf("%sembeddb%s>%s ", PromptColor, txPart, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))

	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		cli.close()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		cli.execute("SHOW TABLES")

	case ".databases", ".dbs":
		cli.execute("SHOW DATABASES")

	case ".columns":
		if len(parts) > 1 {
			cli.execute("SHOW COLUMNS " + parts[1])
		} else {
			fmt.Fprintf(cli.out, "%s✗ Usage: .columns <table>%s\n", ErrorColor, ResetColor)
		}

	case ".aliases":
		cli.execute("SHOW ALIAS")

	case ".checkpoint":
		cli.execute("CHECKPOINT")

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Fprintf(cli.out, "EmbedDB version %s\n", Version)

	case ".import":
		if len(parts) > 1 {
			err := cli.importFile(parts[1])
			if err != nil {
				fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			}
		} else {
			fmt.Fprintf(cli.out, "%s✗ Usage: .import <file.sql>%s\n", ErrorColor, ResetColor)
		}

	default:
		fmt.Fprintf(cli.out, "%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) printHelp() {
	w := cli.out
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w, "  .help, .h          Show this help message")
	fmt.Fprintln(w, "  .quit, .exit       Exit the CLI")
	fmt.Fprintln(w, "  .databases         List open databases")
	fmt.Fprintln(w, "  .tables            List tables")
	fmt.Fprintln(w, "  .columns <table>   List the columns of a table")
	fmt.Fprintln(w, "  .aliases           List function aliases")
	fmt.Fprintln(w, "  .checkpoint        Write all tables to storage")
	fmt.Fprintln(w, "  .import <file>     Execute SQL statements from a file")
	fmt.Fprintln(w, "  .history           Show command history")
	fmt.Fprintln(w, "  .clear             Clear the screen")
	fmt.Fprintln(w, "  .version           Show version info")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sSQL Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w, "  CREATE [MEMORY|CACHED] TABLE <table> (<column> <type> [constraints], ...);")
	fmt.Fprintln(w, "  DROP TABLE [IF EXISTS] <table>;")
	fmt.Fprintln(w, "  CREATE [UNIQUE] INDEX <name> ON <table> (<cols>);")
	fmt.Fprintln(w, "  INSERT INTO <table> [(<cols>)] VALUES (<vals>) | SELECT ...;")
	fmt.Fprintln(w, "  SELECT <cols> FROM <table> [JOIN ...] [WHERE ...] [GROUP BY ...] [ORDER BY ...] [LIMIT n];")
	fmt.Fprintln(w, "  UPDATE <table> SET <col>=<expr> [WHERE ...];")
	fmt.Fprintln(w, "  DELETE FROM <table> [WHERE ...];")
	fmt.Fprintln(w, "  CREATE ALIAS <name> FOR \"<target>\"; CALL <expr>;")
	fmt.Fprintln(w, "  DECLARE @var <type>; SET @var = <expr>;")
	fmt.Fprintln(w, "  BEGIN; COMMIT; ROLLBACK; SET AUTOCOMMIT TRUE|FALSE;")
	fmt.Fprintln(w, "  CHECKPOINT; BACKUP DATABASE TO '<url>'; RESTORE DATABASE FROM '<url>';")
	fmt.Fprintln(w, "  SHOW DATABASES|TABLES|ALIAS|COLUMNS <table>|PARAMETERS <alias>;")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sAggregates:%s SUM, AVG, MIN, MAX, COUNT, GROUP BY, HAVING\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w)
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, strings.ReplaceAll(cli.history[i], "\n", " "))
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".embeddb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}

	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(strings.ReplaceAll(cli.history[i], "\n", " ") + "\n")
	}
}

// close releases the channel and checkpoints a file database.
func (cli *CLI) close() {
	if err := cli.ch.Database().Close(); err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
	}
}

// importFile reads and executes SQL statements from a file
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	statements := splitStatements(string(data))

	successCount := 0
	errorCount := 0

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}

		result, err := cli.ch.Execute(context.Background(), stmt)
		if err != nil {
			fmt.Fprintf(cli.out, "%s[%d] ✗ %s%s\n", ErrorColor, i+1, truncate(stmt, 50), ResetColor)
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			errorCount++
			continue
		}
		successCount++

		switch {
		case result.IsQuery():
			fmt.Fprintf(cli.out, "%s[%d] ✓ %s (%d rows)%s\n", SuccessColor, i+1, truncate(stmt, 50), result.RowCount(), ResetColor)
		case result.UpdateCount > 0:
			fmt.Fprintf(cli.out, "%s[%d] ✓ %s (%d affected)%s\n", SuccessColor, i+1, truncate(stmt, 50), result.UpdateCount, ResetColor)
		default:
			fmt.Fprintf(cli.out, "%s[%d] ✓ %s%s\n", SuccessColor, i+1, truncate(stmt, 50), ResetColor)
		}
	}

	fmt.Fprintf(cli.out, "\n%s✓ Import complete: %d succeeded, %d failed%s\n",
		SuccessColor, successCount, errorCount, ResetColor)

	return nil
}

// splitStatements splits SQL content into individual statements
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		// Quotes are escaped by doubling, which toggles the state twice
		if ch == '\'' || ch == '"' {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		if !inString && ch == ';' {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

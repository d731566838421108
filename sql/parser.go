package sql

import (
	"strconv"

	"github.com/nickyhof/EmbedDB/core"
)

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
	DropTableStatementType
	CreateIndexStatementType
	DropIndexStatementType
	CreateAliasStatementType
	DropAliasStatementType
	DeclareStatementType
	SetVariableStatementType
	SetAutoCommitStatementType
	CallStatementType
	BeginStatementType
	CommitStatementType
	RollbackStatementType
	CheckpointStatementType
	BackupStatementType
	RestoreStatementType
	ShowDatabasesStatementType
	ShowTablesStatementType
	ShowAliasStatementType
	ShowParametersStatementType
	ShowColumnsStatementType
)

type Statement interface {
	Type() StatementType
}

type SelectStatement struct {
	Distinct bool
	Items    []SelectItem
	From     []TableRef
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByClause
	Limit    int // -1 when absent
	Offset   int
}

// SelectItem is one entry of the select list. Star items expand to every
// column of StarTable, or of all sources when StarTable is empty.
type SelectItem struct {
	Expr      Expr
	Alias     string
	Star      bool
	StarTable string
}

// TableRef is one FROM source. On holds the join condition for sources
// introduced with JOIN ... ON; comma-joined sources have none.
type TableRef struct {
	Name  string
	Alias string
	On    Expr
}

type OrderByClause struct {
	Expr       Expr
	Descending bool
}

type InsertStatement struct {
	Table   string
	Columns []string
	Rows    [][]Expr
	Query   *SelectStatement
}

type UpdateStatement struct {
	Table   string
	Updates []SetClause
	Where   Expr
}

type SetClause struct {
	Column string
	Value  Expr
}

type DeleteStatement struct {
	Table string
	Where Expr
}

type CreateTableStatement struct {
	Table       string
	Mode        core.StorageMode
	ModeSet     bool // CACHED or MEMORY was written explicitly
	IfNotExists bool
	Columns     []core.Column
	PrimaryKey  []string
	Uniques     [][]string
}

type DropTableStatement struct {
	Table    string
	IfExists bool
}

type CreateIndexStatement struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

type DropIndexStatement struct {
	Name     string
	IfExists bool
}

type CreateAliasStatement struct {
	Name   string
	Target string
}

type DropAliasStatement struct {
	Name string
}

type DeclareStatement struct {
	Name string
	Spec TypeSpec
}

// SetVariableStatement assigns Value, or the first column of the first
// row of Query when the right-hand side is a subquery.
type SetVariableStatement struct {
	Name  string
	Value Expr
	Query *SelectStatement
}

type SetAutoCommitStatement struct {
	Enabled bool
}

type CallStatement struct {
	Expr Expr
}

type BeginStatement struct{}
type CommitStatement struct{}
type RollbackStatement struct{}
type CheckpointStatement struct{}

type BackupStatement struct {
	URL string
}

type RestoreStatement struct {
	URL string
}

type ShowDatabasesStatement struct{}
type ShowTablesStatement struct{}
type ShowAliasStatement struct{}

type ShowParametersStatement struct {
	Alias string
}

type ShowColumnsStatement struct {
	Table string
}

func (s SelectStatement) Type() StatementType         { return SelectStatementType }
func (s InsertStatement) Type() StatementType         { return InsertStatementType }
func (s UpdateStatement) Type() StatementType         { return UpdateStatementType }
func (s DeleteStatement) Type() StatementType         { return DeleteStatementType }
func (s CreateTableStatement) Type() StatementType    { return CreateTableStatementType }
func (s DropTableStatement) Type() StatementType      { return DropTableStatementType }
func (s CreateIndexStatement) Type() StatementType    { return CreateIndexStatementType }
func (s DropIndexStatement) Type() StatementType      { return DropIndexStatementType }
func (s CreateAliasStatement) Type() StatementType    { return CreateAliasStatementType }
func (s DropAliasStatement) Type() StatementType      { return DropAliasStatementType }
func (s DeclareStatement) Type() StatementType        { return DeclareStatementType }
func (s SetVariableStatement) Type() StatementType    { return SetVariableStatementType }
func (s SetAutoCommitStatement) Type() StatementType  { return SetAutoCommitStatementType }
func (s CallStatement) Type() StatementType           { return CallStatementType }
func (s BeginStatement) Type() StatementType          { return BeginStatementType }
func (s CommitStatement) Type() StatementType         { return CommitStatementType }
func (s RollbackStatement) Type() StatementType       { return RollbackStatementType }
func (s CheckpointStatement) Type() StatementType     { return CheckpointStatementType }
func (s BackupStatement) Type() StatementType         { return BackupStatementType }
func (s RestoreStatement) Type() StatementType        { return RestoreStatementType }
func (s ShowDatabasesStatement) Type() StatementType  { return ShowDatabasesStatementType }
func (s ShowTablesStatement) Type() StatementType     { return ShowTablesStatementType }
func (s ShowAliasStatement) Type() StatementType      { return ShowAliasStatementType }
func (s ShowParametersStatement) Type() StatementType { return ShowParametersStatementType }
func (s ShowColumnsStatement) Type() StatementType    { return ShowColumnsStatementType }

// IsMutating reports whether executing s changes table rows.
func IsMutating(s Statement) bool {
	switch s.Type() {
	case InsertStatementType, UpdateStatementType, DeleteStatementType:
		return true
	}
	return false
}

type Parser struct {
	lexer  *Lexer
	params int // ? markers numbered so far
}

func NewParser(sql string) *Parser {
	lexer := NewLexer(sql)
	return &Parser{lexer: lexer}
}

// ParseAll parses a batch of ;-separated statements. Empty statements are
// skipped. Nothing is returned unless the whole batch parses.
func ParseAll(text string) ([]Statement, error) {
	parser := NewParser(text)
	var statements []Statement
	for {
		token := parser.lexer.PeekToken()
		switch token.Type {
		case EOF:
			return statements, nil
		case Semicolon:
			parser.lexer.NextToken()
			continue
		}
		statement, err := parser.Parse()
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)

		token = parser.lexer.NextToken()
		if token.Type != Semicolon && token.Type != EOF {
			return nil, parser.unexpected(token, "';' or end of statement")
		}
		if token.Type == EOF {
			return statements, nil
		}
	}
}

// ParseExpression parses a standalone expression such as a stored column
// default.
func ParseExpression(text string) (Expr, error) {
	parser := NewParser(text)
	expr, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}
	if token := parser.lexer.NextToken(); token.Type != EOF {
		return nil, parser.unexpected(token, "end of expression")
	}
	return expr, nil
}

// Parse reads a single statement and leaves the lexer on its terminator.
func (parser *Parser) Parse() (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Select:
		return ParseSelect(parser)
	case Insert:
		return ParseInsert(parser)
	case Update:
		return ParseUpdate(parser)
	case Delete:
		return ParseDelete(parser)
	case Create:
		return ParseCreate(parser)
	case Drop:
		return ParseDrop(parser)
	case Declare:
		return ParseDeclare(parser)
	case Set:
		return ParseSet(parser)
	case Call:
		expr, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		return CallStatement{Expr: expr}, nil
	case Begin:
		parser.skipWord("TRANSACTION", "WORK")
		return BeginStatement{}, nil
	case Commit:
		parser.skipWord("WORK", "TRANSACTION")
		return CommitStatement{}, nil
	case Rollback:
		parser.skipWord("WORK", "TRANSACTION")
		return RollbackStatement{}, nil
	case Show:
		return ParseShow(parser)
	case Identifier:
		if !token.Quoted {
			switch token.Value {
			case "CHECKPOINT":
				return CheckpointStatement{}, nil
			case "BACKUP":
				return ParseBackup(parser)
			case "RESTORE":
				return ParseRestore(parser)
			}
		}
	case Unterminated, EOF:
		return nil, parser.unexpected(token, "a statement")
	}
	return nil, core.NewSyntaxError(core.CodeUnknownStatement, "unknown statement %s at position %d", token, token.Pos)
}

func ParseSelect(parser *Parser) (*SelectStatement, error) {
	statement := &SelectStatement{Limit: -1}

	switch parser.lexer.PeekToken().Type {
	case Distinct:
		parser.lexer.NextToken()
		statement.Distinct = true
	case Identifier:
		if parser.peekWord("ALL") {
			parser.lexer.NextToken()
		}
	}

	for {
		item, err := parseSelectItem(parser)
		if err != nil {
			return nil, err
		}
		statement.Items = append(statement.Items, item)
		if !parser.accept(Comma) {
			break
		}
	}

	if parser.accept(From) {
		from, err := parseFrom(parser)
		if err != nil {
			return nil, err
		}
		statement.From = from
	}

	if parser.accept(Where) {
		where, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		statement.Where = where
	}

	if parser.accept(Group) {
		if _, err := parser.expect(By, "BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			statement.GroupBy = append(statement.GroupBy, expr)
			if !parser.accept(Comma) {
				break
			}
		}
	}

	if parser.accept(Having) {
		having, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		statement.Having = having
	}

	if parser.accept(Order) {
		if _, err := parser.expect(By, "BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			clause := OrderByClause{Expr: expr}
			if parser.accept(Desc) {
				clause.Descending = true
			} else {
				parser.accept(Asc)
			}
			statement.OrderBy = append(statement.OrderBy, clause)
			if !parser.accept(Comma) {
				break
			}
		}
	}

	if parser.accept(Limit) {
		limit, err := parser.parseCount()
		if err != nil {
			return nil, err
		}
		statement.Limit = limit
		if parser.accept(Offset) {
			offset, err := parser.parseCount()
			if err != nil {
				return nil, err
			}
			statement.Offset = offset
		}
	}

	return statement, nil
}

func parseSelectItem(parser *Parser) (SelectItem, error) {
	if parser.accept(Wildcard) {
		return SelectItem{Star: true}, nil
	}

	// name.* needs two tokens of lookahead
	if parser.lexer.PeekToken().Type == Identifier {
		saved := parser.lexer.save()
		name := parser.lexer.NextToken()
		if parser.accept(Dot) && parser.accept(Wildcard) {
			return SelectItem{Star: true, StarTable: name.Value}, nil
		}
		parser.lexer.restore(saved)
	}

	expr, err := parser.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}
	alias, err := parser.parseOptionalAlias()
	if err != nil {
		return SelectItem{}, err
	}
	item.Alias = alias
	return item, nil
}

func (parser *Parser) parseOptionalAlias() (string, error) {
	if parser.accept(As) {
		token := parser.lexer.NextToken()
		if token.Type != Identifier && token.Type != String {
			return "", parser.unexpected(token, "an alias")
		}
		return token.Value, nil
	}
	if parser.lexer.PeekToken().Type == Identifier {
		return parser.lexer.NextToken().Value, nil
	}
	return "", nil
}

func parseFrom(parser *Parser) ([]TableRef, error) {
	var refs []TableRef
	ref, err := parseTableRef(parser)
	if err != nil {
		return nil, err
	}
	refs = append(refs, ref)

	for {
		switch {
		case parser.accept(Comma):
			ref, err := parseTableRef(parser)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		case parser.peekType(Inner) || parser.peekType(Join):
			if parser.accept(Inner) {
				if _, err := parser.expect(Join, "JOIN"); err != nil {
					return nil, err
				}
			} else {
				parser.lexer.NextToken()
			}
			ref, err := parseTableRef(parser)
			if err != nil {
				return nil, err
			}
			if _, err := parser.expect(On, "ON"); err != nil {
				return nil, err
			}
			on, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			ref.On = on
			refs = append(refs, ref)
		default:
			return refs, nil
		}
	}
}

func parseTableRef(parser *Parser) (TableRef, error) {
	name, err := parser.parseName("a table name")
	if err != nil {
		return TableRef{}, err
	}
	alias, err := parser.parseOptionalAlias()
	if err != nil {
		return TableRef{}, err
	}
	return TableRef{Name: name, Alias: alias}, nil
}

func ParseInsert(parser *Parser) (Statement, error) {
	var statement InsertStatement

	if _, err := parser.expect(Into, "INTO"); err != nil {
		return nil, err
	}
	table, err := parser.parseName("a table name")
	if err != nil {
		return nil, err
	}
	statement.Table = table

	if parser.peekType(ParenOpen) {
		// a parenthesised SELECT is the source, not a column list
		saved := parser.lexer.save()
		parser.lexer.NextToken()
		if parser.peekType(Select) {
			parser.lexer.restore(saved)
		} else {
			parser.lexer.restore(saved)
			columns, err := parser.parseNameList()
			if err != nil {
				return nil, err
			}
			statement.Columns = columns
		}
	}

	switch token := parser.lexer.NextToken(); token.Type {
	case Values:
		for {
			if _, err := parser.expect(ParenOpen, "'('"); err != nil {
				return nil, err
			}
			row, err := parser.parseExprList()
			if err != nil {
				return nil, err
			}
			if _, err := parser.expect(ParenClose, "')'"); err != nil {
				return nil, err
			}
			statement.Rows = append(statement.Rows, row)
			if !parser.accept(Comma) {
				break
			}
		}
	case Select:
		query, err := ParseSelect(parser)
		if err != nil {
			return nil, err
		}
		statement.Query = query
	case ParenOpen:
		if _, err := parser.expect(Select, "SELECT"); err != nil {
			return nil, err
		}
		query, err := ParseSelect(parser)
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(ParenClose, "')'"); err != nil {
			return nil, err
		}
		statement.Query = query
	default:
		return nil, parser.unexpected(token, "VALUES or SELECT")
	}

	return statement, nil
}

func ParseUpdate(parser *Parser) (Statement, error) {
	var statement UpdateStatement

	table, err := parser.parseName("a table name")
	if err != nil {
		return nil, err
	}
	statement.Table = table

	if _, err := parser.expect(Set, "SET"); err != nil {
		return nil, err
	}
	for {
		column, err := parser.parseName("a column name")
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(Equals, "'='"); err != nil {
			return nil, err
		}
		value, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		statement.Updates = append(statement.Updates, SetClause{Column: column, Value: value})
		if !parser.accept(Comma) {
			break
		}
	}

	if parser.accept(Where) {
		where, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		statement.Where = where
	}
	return statement, nil
}

func ParseDelete(parser *Parser) (Statement, error) {
	var statement DeleteStatement

	if _, err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}
	table, err := parser.parseName("a table name")
	if err != nil {
		return nil, err
	}
	statement.Table = table

	if parser.accept(Where) {
		where, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		statement.Where = where
	}
	return statement, nil
}

func ParseCreate(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch {
	case token.Type == Table:
		return parseCreateTable(parser, core.MemoryMode, false)
	case token.Type == Unique:
		if _, err := parser.expect(Index, "INDEX"); err != nil {
			return nil, err
		}
		return parseCreateIndex(parser, true)
	case token.Type == Index:
		return parseCreateIndex(parser, false)
	case isWord(token, "CACHED"), isWord(token, "MEMORY"):
		mode, _ := core.ParseStorageMode(token.Value)
		if _, err := parser.expect(Table, "TABLE"); err != nil {
			return nil, err
		}
		return parseCreateTable(parser, mode, true)
	case isWord(token, "ALIAS"):
		return parseCreateAlias(parser)
	}
	return nil, parser.unexpected(token, "TABLE, INDEX or ALIAS")
}

func parseCreateTable(parser *Parser, mode core.StorageMode, modeSet bool) (Statement, error) {
	statement := CreateTableStatement{Mode: mode, ModeSet: modeSet}

	if parser.accept(If) {
		if _, err := parser.expect(Not, "NOT"); err != nil {
			return nil, err
		}
		if err := parser.expectExists(); err != nil {
			return nil, err
		}
		statement.IfNotExists = true
	}

	table, err := parser.parseName("a table name")
	if err != nil {
		return nil, err
	}
	statement.Table = table

	if _, err := parser.expect(ParenOpen, "'('"); err != nil {
		return nil, err
	}

	for {
		switch {
		case parser.accept(Primary):
			if err := parser.expectWord("KEY"); err != nil {
				return nil, err
			}
			columns, err := parser.parseNameList()
			if err != nil {
				return nil, err
			}
			statement.PrimaryKey = columns
		case parser.accept(Unique):
			columns, err := parser.parseNameList()
			if err != nil {
				return nil, err
			}
			statement.Uniques = append(statement.Uniques, columns)
		default:
			column, err := parseColumnDefinition(parser)
			if err != nil {
				return nil, err
			}
			statement.Columns = append(statement.Columns, column)
		}

		token := parser.lexer.NextToken()
		if token.Type == ParenClose {
			break
		}
		if token.Type != Comma {
			return nil, parser.unexpected(token, "',' or ')'")
		}
	}

	return statement, nil
}

func parseColumnDefinition(parser *Parser) (core.Column, error) {
	name, err := parser.parseName("a column name")
	if err != nil {
		return core.Column{}, err
	}
	spec, err := parser.parseTypeSpec()
	if err != nil {
		return core.Column{}, err
	}
	column := core.Column{Name: name, Type: spec.Type, Size: spec.Size, Scale: spec.Scale, Nullable: true}

	for {
		token := parser.lexer.PeekToken()
		switch {
		case token.Type == Not:
			parser.lexer.NextToken()
			if _, err := parser.expect(Null, "NULL"); err != nil {
				return core.Column{}, err
			}
			column.Nullable = false
		case token.Type == Null:
			parser.lexer.NextToken()
		case token.Type == Primary:
			parser.lexer.NextToken()
			if err := parser.expectWord("KEY"); err != nil {
				return core.Column{}, err
			}
			column.PrimaryKey = true
			column.Nullable = false
		case token.Type == Unique:
			parser.lexer.NextToken()
			column.Unique = true
		case token.Type == Default:
			parser.lexer.NextToken()
			expr, err := parser.parseUnary()
			if err != nil {
				return core.Column{}, err
			}
			column.Default = expr.String()
		case isWord(token, "IDENTITY"):
			parser.lexer.NextToken()
			if column.Type != core.IntegerType && column.Type != core.BigIntType {
				return core.Column{}, core.NewSyntaxError(core.CodeInvalidLiteral,
					"IDENTITY column %s must be INTEGER or BIGINT at position %d", name, token.Pos)
			}
			column.Identity = true
			column.Nullable = false
		default:
			return column, nil
		}
	}
}

// parseTypeSpec reads a type name with an optional (size[,scale]).
func (parser *Parser) parseTypeSpec() (TypeSpec, error) {
	token := parser.lexer.NextToken()
	if token.Type != Identifier || token.Quoted {
		return TypeSpec{}, parser.unexpected(token, "a type name")
	}
	columnType, ok := core.ParseColumnType(token.Value)
	if !ok {
		return TypeSpec{}, core.NewSyntaxError(core.CodeUnknownType, "unknown type %s at position %d", token.Value, token.Pos)
	}
	spec := TypeSpec{Type: columnType}

	// CHARACTER VARYING, DOUBLE PRECISION
	if columnType == core.CharType && parser.peekWord("VARYING") {
		parser.lexer.NextToken()
		spec.Type = core.VarCharType
	}
	if columnType == core.DoubleType && parser.peekWord("PRECISION") {
		parser.lexer.NextToken()
	}

	if parser.accept(ParenOpen) {
		size, err := parser.parseCount()
		if err != nil {
			return TypeSpec{}, err
		}
		spec.Size = size
		if parser.accept(Comma) {
			scale, err := parser.parseCount()
			if err != nil {
				return TypeSpec{}, err
			}
			spec.Scale = scale
		}
		if _, err := parser.expect(ParenClose, "')'"); err != nil {
			return TypeSpec{}, err
		}
	}
	return spec, nil
}

func parseCreateIndex(parser *Parser, unique bool) (Statement, error) {
	name, err := parser.parseName("an index name")
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(On, "ON"); err != nil {
		return nil, err
	}
	table, err := parser.parseName("a table name")
	if err != nil {
		return nil, err
	}
	columns, err := parser.parseNameList()
	if err != nil {
		return nil, err
	}
	return CreateIndexStatement{Name: name, Table: table, Columns: columns, Unique: unique}, nil
}

func parseCreateAlias(parser *Parser) (Statement, error) {
	name, err := parser.parseName("an alias name")
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(For, "FOR"); err != nil {
		return nil, err
	}
	token := parser.lexer.NextToken()
	if !(token.Type == Identifier && token.Quoted) && token.Type != String {
		return nil, parser.unexpected(token, "a quoted target")
	}
	return CreateAliasStatement{Name: name, Target: token.Value}, nil
}

func ParseDrop(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch {
	case token.Type == Table:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		name, err := parser.parseName("a table name")
		if err != nil {
			return nil, err
		}
		// DROP TABLE t IF EXISTS is accepted as well
		trailing, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		return DropTableStatement{Table: name, IfExists: ifExists || trailing}, nil
	case token.Type == Index:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		name, err := parser.parseName("an index name")
		if err != nil {
			return nil, err
		}
		return DropIndexStatement{Name: name, IfExists: ifExists}, nil
	case isWord(token, "ALIAS"):
		name, err := parser.parseName("an alias name")
		if err != nil {
			return nil, err
		}
		return DropAliasStatement{Name: name}, nil
	}
	return nil, parser.unexpected(token, "TABLE, INDEX or ALIAS")
}

// parseIfExists consumes IF EXIST or IF EXISTS when present.
func (parser *Parser) parseIfExists() (bool, error) {
	if !parser.accept(If) {
		return false, nil
	}
	if err := parser.expectExists(); err != nil {
		return false, err
	}
	return true, nil
}

func (parser *Parser) expectExists() error {
	token := parser.lexer.NextToken()
	if isWord(token, "EXIST") || isWord(token, "EXISTS") {
		return nil
	}
	return parser.unexpected(token, "EXISTS")
}

func ParseDeclare(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	if token.Type != Variable {
		return nil, parser.unexpected(token, "a @variable")
	}
	spec, err := parser.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	return DeclareStatement{Name: token.Value, Spec: spec}, nil
}

func ParseSet(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	if isWord(token, "AUTOCOMMIT") {
		value := parser.lexer.NextToken()
		switch {
		case value.Type == True || isWord(value, "ON"):
			return SetAutoCommitStatement{Enabled: true}, nil
		case value.Type == False || isWord(value, "OFF"):
			return SetAutoCommitStatement{Enabled: false}, nil
		}
		return nil, parser.unexpected(value, "TRUE or FALSE")
	}
	if token.Type != Variable {
		return nil, parser.unexpected(token, "a @variable or AUTOCOMMIT")
	}
	statement := SetVariableStatement{Name: token.Value}

	if _, err := parser.expect(Equals, "'='"); err != nil {
		return nil, err
	}

	if parser.accept(Select) {
		query, err := ParseSelect(parser)
		if err != nil {
			return nil, err
		}
		statement.Query = query
		return statement, nil
	}

	if parser.peekType(ParenOpen) {
		saved := parser.lexer.save()
		parser.lexer.NextToken()
		if parser.accept(Select) {
			query, err := ParseSelect(parser)
			if err != nil {
				return nil, err
			}
			if _, err := parser.expect(ParenClose, "')'"); err != nil {
				return nil, err
			}
			statement.Query = query
			return statement, nil
		}
		parser.lexer.restore(saved)
	}

	value, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}
	statement.Value = value
	return statement, nil
}

func ParseShow(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	if token.Type == Identifier && !token.Quoted {
		switch token.Value {
		case "DATABASES":
			return ShowDatabasesStatement{}, nil
		case "TABLES":
			return ShowTablesStatement{}, nil
		case "ALIAS", "ALIASES":
			return ShowAliasStatement{}, nil
		case "PARAMETERS":
			name, err := parser.parseName("an alias name")
			if err != nil {
				return nil, err
			}
			return ShowParametersStatement{Alias: name}, nil
		case "COLUMNS":
			parser.accept(From)
			name, err := parser.parseName("a table name")
			if err != nil {
				return nil, err
			}
			return ShowColumnsStatement{Table: name}, nil
		}
	}
	return nil, parser.unexpected(token, "DATABASES, TABLES, ALIAS, PARAMETERS or COLUMNS")
}

func ParseBackup(parser *Parser) (Statement, error) {
	if err := parser.expectWord("DATABASE"); err != nil {
		return nil, err
	}
	if err := parser.expectWord("TO"); err != nil {
		return nil, err
	}
	url, err := parser.expect(String, "a quoted URL")
	if err != nil {
		return nil, err
	}
	return BackupStatement{URL: url.Value}, nil
}

func ParseRestore(parser *Parser) (Statement, error) {
	if err := parser.expectWord("DATABASE"); err != nil {
		return nil, err
	}
	if _, err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}
	url, err := parser.expect(String, "a quoted URL")
	if err != nil {
		return nil, err
	}
	return RestoreStatement{URL: url.Value}, nil
}

func (parser *Parser) parseName(what string) (string, error) {
	token := parser.lexer.NextToken()
	if token.Type != Identifier {
		return "", parser.unexpected(token, what)
	}
	return token.Value, nil
}

// parseNameList reads "(a, b, ...)".
func (parser *Parser) parseNameList() ([]string, error) {
	if _, err := parser.expect(ParenOpen, "'('"); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := parser.parseName("a column name")
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !parser.accept(Comma) {
			break
		}
	}
	if _, err := parser.expect(ParenClose, "')'"); err != nil {
		return nil, err
	}
	return names, nil
}

func (parser *Parser) parseCount() (int, error) {
	token := parser.lexer.NextToken()
	if token.Type != Int {
		return 0, parser.unexpected(token, "an integer")
	}
	n, err := strconv.Atoi(token.Value)
	if err != nil {
		return 0, core.NewSyntaxError(core.CodeInvalidLiteral, "invalid integer %s at position %d", token.Value, token.Pos)
	}
	return n, nil
}

func (parser *Parser) accept(tokenType TokenType) bool {
	if parser.lexer.PeekToken().Type == tokenType {
		parser.lexer.NextToken()
		return true
	}
	return false
}

func (parser *Parser) peekType(tokenType TokenType) bool {
	return parser.lexer.PeekToken().Type == tokenType
}

func (parser *Parser) peekWord(word string) bool {
	return isWord(parser.lexer.PeekToken(), word)
}

func (parser *Parser) skipWord(words ...string) {
	token := parser.lexer.PeekToken()
	for _, word := range words {
		if isWord(token, word) {
			parser.lexer.NextToken()
			return
		}
	}
}

func (parser *Parser) expect(tokenType TokenType, what string) (Token, error) {
	token := parser.lexer.NextToken()
	if token.Type != tokenType {
		return token, parser.unexpected(token, what)
	}
	return token, nil
}

func (parser *Parser) expectWord(word string) error {
	token := parser.lexer.NextToken()
	if !isWord(token, word) {
		return parser.unexpected(token, word)
	}
	return nil
}

func (parser *Parser) unexpected(token Token, expected string) error {
	switch token.Type {
	case EOF:
		return core.NewSyntaxError(core.CodeUnexpectedEnd, "unexpected end of input at position %d, expected %s", token.Pos, expected)
	case Unterminated:
		return core.NewSyntaxError(core.CodeUnterminatedString, "unterminated %s at position %d", token.Value, token.Pos)
	}
	return core.NewSyntaxError(core.CodeUnexpectedToken, "unexpected %s at position %d, expected %s", token, token.Pos, expected)
}

// isWord matches an unquoted identifier used as a contextual keyword.
func isWord(token Token, word string) bool {
	return token.Type == Identifier && !token.Quoted && token.Value == word
}

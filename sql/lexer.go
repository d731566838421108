package sql

import "strings"

type Token struct {
	Type   TokenType
	Value  string
	Pos    int
	Quoted bool // identifier written in double quotes; keeps exact case
}

type TokenType int

const (
	Identifier TokenType = iota
	String
	Int
	Float
	Binary
	Variable
	Parameter
	NamedParameter
	Wildcard
	Comma
	Dot
	Semicolon
	ParenOpen
	ParenClose
	Plus
	Minus
	Slash
	Percent
	ConcatOp
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	And
	Or
	Not
	Is
	Null
	Like
	Escape
	In
	Between
	True
	False
	Select
	From
	Where
	Group
	By
	Having
	Order
	Asc
	Desc
	Limit
	Offset
	Distinct
	As
	On
	Join
	Inner
	Insert
	Into
	Values
	Update
	Set
	Delete
	Create
	Drop
	Table
	Index
	Unique
	Primary
	If
	For
	Declare
	Call
	Begin
	Commit
	Rollback
	Show
	Default
	Cast
	Unterminated
	EOF
	Unknown
)

var tokenNames = map[TokenType]string{
	Identifier:         "Identifier",
	String:             "String",
	Int:                "Int",
	Float:              "Float",
	Binary:             "Binary",
	Variable:           "Variable",
	Parameter:          "Parameter",
	NamedParameter:     "NamedParameter",
	Wildcard:           "Wildcard",
	Comma:              "Comma",
	Dot:                "Dot",
	Semicolon:          "Semicolon",
	ParenOpen:          "ParenOpen",
	ParenClose:         "ParenClose",
	Plus:               "Plus",
	Minus:              "Minus",
	Slash:              "Slash",
	Percent:            "Percent",
	ConcatOp:           "Concat",
	Equals:             "Equals",
	NotEquals:          "NotEquals",
	LessThan:           "LessThan",
	GreaterThan:        "GreaterThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	Unterminated:       "Unterminated",
	EOF:                "EOF",
	Unknown:            "Unknown",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for word, keyword := range keywords {
		if keyword == t {
			return word
		}
	}
	return "Unknown"
}

func (token Token) String() string {
	switch token.Type {
	case Identifier, String, Int, Float, Binary, Variable, NamedParameter, Unknown:
		return token.Type.String() + "(" + token.Value + ")"
	case EOF:
		return "end of input"
	default:
		return token.Type.String()
	}
}

// keywords are reserved. Every other word, including function names and
// words that only matter in one statement (TABLES, CACHED, KEY...), lexes
// as an Identifier so it stays usable as a column or table name.
var keywords = map[string]TokenType{
	"AND":      And,
	"OR":       Or,
	"NOT":      Not,
	"IS":       Is,
	"NULL":     Null,
	"LIKE":     Like,
	"ESCAPE":   Escape,
	"IN":       In,
	"BETWEEN":  Between,
	"TRUE":     True,
	"FALSE":    False,
	"SELECT":   Select,
	"FROM":     From,
	"WHERE":    Where,
	"GROUP":    Group,
	"BY":       By,
	"HAVING":   Having,
	"ORDER":    Order,
	"ASC":      Asc,
	"DESC":     Desc,
	"LIMIT":    Limit,
	"OFFSET":   Offset,
	"DISTINCT": Distinct,
	"AS":       As,
	"ON":       On,
	"JOIN":     Join,
	"INNER":    Inner,
	"INSERT":   Insert,
	"INTO":     Into,
	"VALUES":   Values,
	"UPDATE":   Update,
	"SET":      Set,
	"DELETE":   Delete,
	"CREATE":   Create,
	"DROP":     Drop,
	"TABLE":    Table,
	"INDEX":    Index,
	"UNIQUE":   Unique,
	"PRIMARY":  Primary,
	"IF":       If,
	"FOR":      For,
	"DECLARE":  Declare,
	"CALL":     Call,
	"BEGIN":    Begin,
	"COMMIT":   Commit,
	"ROLLBACK": Rollback,
	"SHOW":     Show,
	"DEFAULT":  Default,
	"CAST":     Cast,
}

type Lexer struct {
	sql          string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{sql: sql}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

func (lexer *Lexer) NextToken() Token {
	lexer.skipWhitespaceAndComments()

	start := lexer.position
	single := func(tokenType TokenType) Token {
		token := Token{Type: tokenType, Value: string(lexer.ch), Pos: start}
		lexer.readChar()
		return token
	}

	switch lexer.ch {
	case 0:
		return Token{Type: EOF, Pos: start}
	case ',':
		return single(Comma)
	case '.':
		if isDigit(lexer.peekChar()) {
			return lexer.readNumber()
		}
		return single(Dot)
	case ';':
		return single(Semicolon)
	case '(':
		return single(ParenOpen)
	case ')':
		return single(ParenClose)
	case '*':
		return single(Wildcard)
	case '+':
		return single(Plus)
	case '-':
		return single(Minus)
	case '/':
		return single(Slash)
	case '%':
		return single(Percent)
	case '?':
		return single(Parameter)
	case '|':
		if lexer.peekChar() == '|' {
			lexer.readChar()
			lexer.readChar()
			return Token{Type: ConcatOp, Value: "||", Pos: start}
		}
		return single(Unknown)
	case '\'':
		value, ok := lexer.readQuoted('\'')
		if !ok {
			return Token{Type: Unterminated, Value: "string literal", Pos: start}
		}
		return Token{Type: String, Value: value, Pos: start}
	case '"':
		value, ok := lexer.readQuoted('"')
		if !ok {
			return Token{Type: Unterminated, Value: "quoted identifier", Pos: start}
		}
		return Token{Type: Identifier, Value: value, Pos: start, Quoted: true}
	case '@':
		lexer.readChar()
		name := lexer.readIdentifier()
		if name == "" {
			return Token{Type: Unknown, Value: "@", Pos: start}
		}
		return Token{Type: Variable, Value: toUpper(name), Pos: start}
	case ':':
		lexer.readChar()
		name := lexer.readIdentifier()
		if name == "" {
			return Token{Type: Unknown, Value: ":", Pos: start}
		}
		return Token{Type: NamedParameter, Value: toUpper(name), Pos: start}
	}

	if isOperator(lexer.ch) {
		operator := lexer.readOperator()
		token := Token{Value: operator, Pos: start}
		switch operator {
		case "=", "==":
			token.Type = Equals
		case "!=", "<>":
			token.Type = NotEquals
		case "<":
			token.Type = LessThan
		case ">":
			token.Type = GreaterThan
		case "<=":
			token.Type = LessThanOrEqual
		case ">=":
			token.Type = GreaterThanOrEqual
		default:
			token.Type = Unknown
		}
		return token
	}

	if isDigit(lexer.ch) {
		return lexer.readNumber()
	}

	if (lexer.ch == 'X' || lexer.ch == 'x') && lexer.peekChar() == '\'' {
		lexer.readChar()
		value, ok := lexer.readQuoted('\'')
		if !ok {
			return Token{Type: Unterminated, Value: "binary literal", Pos: start}
		}
		return Token{Type: Binary, Value: value, Pos: start}
	}

	if isLetter(lexer.ch) {
		literal := toUpper(lexer.readIdentifier())
		if tokenType, ok := keywords[literal]; ok {
			return Token{Type: tokenType, Value: literal, Pos: start}
		}
		return Token{Type: Identifier, Value: literal, Pos: start}
	}

	return single(Unknown)
}

func (lexer *Lexer) PeekToken() Token {
	saved := lexer.save()
	token := lexer.NextToken()
	lexer.restore(saved)
	return token
}

type lexerState struct {
	position     int
	readPosition int
	ch           byte
}

func (lexer *Lexer) save() lexerState {
	return lexerState{lexer.position, lexer.readPosition, lexer.ch}
}

func (lexer *Lexer) restore(state lexerState) {
	lexer.position = state.position
	lexer.readPosition = state.readPosition
	lexer.ch = state.ch
}

func (lexer *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r':
			lexer.readChar()
		case lexer.ch == '-' && lexer.peekChar() == '-':
			for lexer.ch != '\n' && lexer.ch != 0 {
				lexer.readChar()
			}
		case lexer.ch == '/' && lexer.peekChar() == '*':
			lexer.readChar()
			lexer.readChar()
			for lexer.ch != 0 && !(lexer.ch == '*' && lexer.peekChar() == '/') {
				lexer.readChar()
			}
			if lexer.ch != 0 {
				lexer.readChar()
				lexer.readChar()
			}
		default:
			return
		}
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isAlphaNumeric(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readQuoted reads a literal delimited by quote, where a doubled quote
// stands for one quote character.
func (lexer *Lexer) readQuoted(quote byte) (string, bool) {
	var sb strings.Builder
	lexer.readChar() // opening quote
	for {
		switch lexer.ch {
		case 0:
			return sb.String(), false
		case quote:
			if lexer.peekChar() == quote {
				sb.WriteByte(quote)
				lexer.readChar()
				lexer.readChar()
				continue
			}
			lexer.readChar()
			return sb.String(), true
		default:
			sb.WriteByte(lexer.ch)
			lexer.readChar()
		}
	}
}

func (lexer *Lexer) readNumber() Token {
	start := lexer.position
	tokenType := Int
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	if lexer.ch == '.' && isDigit(lexer.peekChar()) || lexer.ch == '.' && start == lexer.position {
		tokenType = Float
		lexer.readChar()
		for isDigit(lexer.ch) {
			lexer.readChar()
		}
	}
	if lexer.ch == 'e' || lexer.ch == 'E' {
		next := lexer.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			tokenType = Float
			lexer.readChar()
			if lexer.ch == '+' || lexer.ch == '-' {
				lexer.readChar()
			}
			for isDigit(lexer.ch) {
				lexer.readChar()
			}
		}
	}
	return Token{Type: tokenType, Value: lexer.sql[start:lexer.position], Pos: start}
}

func (lexer *Lexer) readOperator() string {
	position := lexer.position
	for isOperator(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isAlphaNumeric(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(sql string) []Token {
	lexer := NewLexer(sql)

	var tokens []Token

	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			return append(tokens, token)
		}
		tokens = append(tokens, token)
	}
}

package sql

import (
	"reflect"
	"testing"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []Token
	}{
		{
			"keywords and identifiers",
			"select Name from books",
			[]Token{
				{Type: Select, Value: "SELECT", Pos: 0},
				{Type: Identifier, Value: "NAME", Pos: 7},
				{Type: From, Value: "FROM", Pos: 12},
				{Type: Identifier, Value: "BOOKS", Pos: 17},
				{Type: EOF, Pos: 22},
			},
		},
		{
			"quoted identifier and doubled quotes",
			`"My ""Col""" = 'a''b'`,
			[]Token{
				{Type: Identifier, Value: `My "Col"`, Pos: 0, Quoted: true},
				{Type: Equals, Value: "=", Pos: 13},
				{Type: String, Value: "a'b", Pos: 15},
				{Type: EOF, Pos: 21},
			},
		},
		{
			"markers",
			"@v ? :p",
			[]Token{
				{Type: Variable, Value: "V", Pos: 0},
				{Type: Parameter, Value: "?", Pos: 3},
				{Type: NamedParameter, Value: "P", Pos: 5},
				{Type: EOF, Pos: 7},
			},
		},
		{
			"numbers",
			"12 1.5 .5 1e3",
			[]Token{
				{Type: Int, Value: "12", Pos: 0},
				{Type: Float, Value: "1.5", Pos: 3},
				{Type: Float, Value: ".5", Pos: 7},
				{Type: Float, Value: "1e3", Pos: 10},
				{Type: EOF, Pos: 13},
			},
		},
		{
			"operators and comments",
			"a <> b -- trailing\n|| c /* block */ <= d",
			[]Token{
				{Type: Identifier, Value: "A", Pos: 0},
				{Type: NotEquals, Value: "<>", Pos: 2},
				{Type: Identifier, Value: "B", Pos: 5},
				{Type: ConcatOp, Value: "||", Pos: 19},
				{Type: Identifier, Value: "C", Pos: 22},
				{Type: LessThanOrEqual, Value: "<=", Pos: 36},
				{Type: Identifier, Value: "D", Pos: 39},
				{Type: EOF, Pos: 40},
			},
		},
		{
			"binary literal",
			"X'0aff'",
			[]Token{
				{Type: Binary, Value: "0aff", Pos: 0},
				{Type: EOF, Pos: 7},
			},
		},
		{
			"unterminated string",
			"'abc",
			[]Token{
				{Type: Unterminated, Value: "string literal", Pos: 0},
				{Type: EOF, Pos: 4},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual := tokenize(test.sql)
			if !reflect.DeepEqual(actual, test.expected) {
				t.Errorf("Test Failed: Expected %v, got %v", test.expected, actual)
			}
		})
	}
}

func TestPeekTokenDoesNotAdvance(t *testing.T) {
	lexer := NewLexer("SELECT 1")
	if peeked := lexer.PeekToken(); peeked.Type != Select {
		t.Fatalf("expected SELECT, got %v", peeked)
	}
	if next := lexer.NextToken(); next.Type != Select {
		t.Fatalf("expected SELECT after peek, got %v", next)
	}
}

package sql

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/shopspring/decimal"
)

// Precedence, loosest first: OR, AND, NOT, predicates (comparison, IS,
// LIKE, IN, BETWEEN), + - ||, * / %, unary minus.

func (parser *Parser) parseExpr() (Expr, error) {
	return parser.parseOr()
}

func (parser *Parser) parseOr() (Expr, error) {
	left, err := parser.parseAnd()
	if err != nil {
		return nil, err
	}
	for parser.accept(Or) {
		right, err := parser.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OrOp, Left: left, Right: right}
	}
	return left, nil
}

func (parser *Parser) parseAnd() (Expr, error) {
	left, err := parser.parseNot()
	if err != nil {
		return nil, err
	}
	for parser.accept(And) {
		right, err := parser.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: AndOp, Left: left, Right: right}
	}
	return left, nil
}

func (parser *Parser) parseNot() (Expr, error) {
	if parser.accept(Not) {
		operand, err := parser.parseNot()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: NotOp, Operand: operand}, nil
	}
	return parser.parsePredicate()
}

var comparisonOps = map[TokenType]BinaryOp{
	Equals:             EqualOp,
	NotEquals:          NotEqualOp,
	LessThan:           LessOp,
	LessThanOrEqual:    LessOrEqualOp,
	GreaterThan:        GreaterOp,
	GreaterThanOrEqual: GreaterOrEqualOp,
}

func (parser *Parser) parsePredicate() (Expr, error) {
	left, err := parser.parseAdditive()
	if err != nil {
		return nil, err
	}

	token := parser.lexer.PeekToken()
	if op, ok := comparisonOps[token.Type]; ok {
		parser.lexer.NextToken()
		right, err := parser.parseAdditive()
		if err != nil {
			return nil, err
		}
		return BinaryExpr{Op: op, Left: left, Right: right}, nil
	}

	if token.Type == Is {
		parser.lexer.NextToken()
		negated := parser.accept(Not)
		if _, err := parser.expect(Null, "NULL"); err != nil {
			return nil, err
		}
		return IsNullExpr{Operand: left, Not: negated}, nil
	}

	negated := false
	if token.Type == Not {
		saved := parser.lexer.save()
		parser.lexer.NextToken()
		next := parser.lexer.PeekToken().Type
		if next != Like && next != In && next != Between {
			parser.lexer.restore(saved)
			return left, nil
		}
		negated = true
		token = parser.lexer.PeekToken()
	}

	switch token.Type {
	case Like:
		parser.lexer.NextToken()
		pattern, err := parser.parseAdditive()
		if err != nil {
			return nil, err
		}
		like := LikeExpr{Operand: left, Pattern: pattern, Not: negated}
		if parser.accept(Escape) {
			escape, err := parser.parseAdditive()
			if err != nil {
				return nil, err
			}
			like.Escape = escape
		}
		return like, nil

	case In:
		parser.lexer.NextToken()
		if _, err := parser.expect(ParenOpen, "'('"); err != nil {
			return nil, err
		}
		list, err := parser.parseExprList()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(ParenClose, "')'"); err != nil {
			return nil, err
		}
		return InExpr{Operand: left, List: list, Not: negated}, nil

	case Between:
		parser.lexer.NextToken()
		low, err := parser.parseAdditive()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(And, "AND"); err != nil {
			return nil, err
		}
		high, err := parser.parseAdditive()
		if err != nil {
			return nil, err
		}
		return BetweenExpr{Operand: left, Low: low, High: high, Not: negated}, nil
	}

	return left, nil
}

func (parser *Parser) parseAdditive() (Expr, error) {
	left, err := parser.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch parser.lexer.PeekToken().Type {
		case Plus:
			op = AddOp
		case Minus:
			op = SubtractOp
		case ConcatOp:
			op = ConcatenateOp
		default:
			return left, nil
		}
		parser.lexer.NextToken()
		right, err := parser.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (parser *Parser) parseMultiplicative() (Expr, error) {
	left, err := parser.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch parser.lexer.PeekToken().Type {
		case Wildcard:
			op = MultiplyOp
		case Slash:
			op = DivideOp
		case Percent:
			op = ModuloOp
		default:
			return left, nil
		}
		parser.lexer.NextToken()
		right, err := parser.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (parser *Parser) parseUnary() (Expr, error) {
	switch parser.lexer.PeekToken().Type {
	case Minus:
		parser.lexer.NextToken()
		operand, err := parser.parseUnary()
		if err != nil {
			return nil, err
		}
		// fold negative numeric literals so defaults and keys stay literal
		if literal, ok := operand.(Literal); ok && literal.Value.Type().IsNumeric() {
			negated, err := core.Negate(literal.Value)
			if err == nil {
				return Literal{Value: negated}, nil
			}
		}
		return UnaryExpr{Op: NegateOp, Operand: operand}, nil
	case Plus:
		parser.lexer.NextToken()
		return parser.parseUnary()
	}
	return parser.parsePrimary()
}

func (parser *Parser) parsePrimary() (Expr, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Int:
		return integerLiteral(token)
	case Float:
		return floatLiteral(token)
	case String:
		return Literal{Value: core.NewVarChar(token.Value)}, nil
	case Binary:
		b, err := hex.DecodeString(token.Value)
		if err != nil {
			return nil, core.NewSyntaxError(core.CodeInvalidLiteral, "invalid binary literal X'%s' at position %d", token.Value, token.Pos)
		}
		return Literal{Value: core.NewBinary(core.VarBinaryType, b)}, nil
	case True:
		return Literal{Value: core.NewBoolean(true)}, nil
	case False:
		return Literal{Value: core.NewBoolean(false)}, nil
	case Null:
		return Literal{Value: core.Null(core.NullType)}, nil
	case Variable:
		return VariableRef{Name: token.Value}, nil
	case Parameter:
		ref := ParamRef{Index: parser.params}
		parser.params++
		return ref, nil
	case NamedParameter:
		return ParamRef{Index: -1, Name: token.Value}, nil
	case ParenOpen:
		expr, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(ParenClose, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	case Cast:
		return parser.parseCast()
	case Identifier:
		return parser.parseIdentifierExpr(token)
	}
	return nil, parser.unexpected(token, "an expression")
}

func (parser *Parser) parseCast() (Expr, error) {
	if _, err := parser.expect(ParenOpen, "'('"); err != nil {
		return nil, err
	}
	operand, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(As, "AS"); err != nil {
		return nil, err
	}
	spec, err := parser.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(ParenClose, "')'"); err != nil {
		return nil, err
	}
	return CastExpr{Operand: operand, Target: spec}, nil
}

func (parser *Parser) parseIdentifierExpr(token Token) (Expr, error) {
	next := parser.lexer.PeekToken()

	// DATE '2024-01-31', TIME '10:00:00', TIMESTAMP '...'
	if next.Type == String && !token.Quoted {
		var target core.ColumnType
		switch token.Value {
		case "DATE":
			target = core.DateType
		case "TIME":
			target = core.TimeType
		case "TIMESTAMP":
			target = core.TimestampType
		}
		if target != core.NullType {
			parser.lexer.NextToken()
			v, err := core.Convert(core.NewVarChar(next.Value), target)
			if err != nil {
				return nil, core.NewSyntaxError(core.CodeInvalidLiteral, "invalid %s literal '%s' at position %d", target, next.Value, next.Pos)
			}
			return Literal{Value: v}, nil
		}
	}

	switch next.Type {
	case ParenOpen:
		parser.lexer.NextToken()
		return parser.parseCall(token.Value)
	case Dot:
		parser.lexer.NextToken()
		column, err := parser.parseName("a column name")
		if err != nil {
			return nil, err
		}
		return ColumnRef{Table: token.Value, Column: column}, nil
	}
	return ColumnRef{Column: token.Value}, nil
}

func (parser *Parser) parseCall(name string) (Expr, error) {
	call := FuncCall{Name: name}
	if parser.accept(ParenClose) {
		return call, nil
	}
	if parser.accept(Wildcard) {
		call.Star = true
		if _, err := parser.expect(ParenClose, "')'"); err != nil {
			return nil, err
		}
		return call, nil
	}
	if parser.accept(Distinct) {
		call.Distinct = true
	}
	args, err := parser.parseExprList()
	if err != nil {
		return nil, err
	}
	call.Args = args
	if _, err := parser.expect(ParenClose, "')'"); err != nil {
		return nil, err
	}
	return call, nil
}

func (parser *Parser) parseExprList() ([]Expr, error) {
	var list []Expr
	for {
		expr, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
		if !parser.accept(Comma) {
			return list, nil
		}
	}
}

func integerLiteral(token Token) (Expr, error) {
	i, err := strconv.ParseInt(token.Value, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(token.Value)
		if derr != nil {
			return nil, core.NewSyntaxError(core.CodeInvalidLiteral, "invalid number %s at position %d", token.Value, token.Pos)
		}
		return Literal{Value: core.NewDecimal(d)}, nil
	}
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return Literal{Value: core.NewInteger(int32(i))}, nil
	}
	return Literal{Value: core.NewBigInt(i)}, nil
}

func floatLiteral(token Token) (Expr, error) {
	if strings.ContainsAny(token.Value, "eE") {
		f, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return nil, core.NewSyntaxError(core.CodeInvalidLiteral, "invalid number %s at position %d", token.Value, token.Pos)
		}
		return Literal{Value: core.NewDouble(f)}, nil
	}
	d, err := decimal.NewFromString(token.Value)
	if err != nil {
		return nil, core.NewSyntaxError(core.CodeInvalidLiteral, "invalid number %s at position %d", token.Value, token.Pos)
	}
	return Literal{Value: core.NewDecimal(d)}, nil
}

package frontend

import (
	"fmt"
	"strconv"

	"github.com/roach88/relinq/internal/expr"
)

// Node is a node of the untyped syntax tree.
type Node interface {
	Pos() expr.Pos
}

type (
	// Ident is a bare name.
	Ident struct {
		Name string
		At   expr.Pos
	}

	// Literal is a number, string or boolean literal.
	Literal struct {
		Value any
		At    expr.Pos
	}

	// MemberAccess is target.Name.
	MemberAccess struct {
		Target Node
		Name   string
		At     expr.Pos
	}

	// CallExpr is target.Name<TypeArgs>(Args), or Name(Args) when Target is
	// nil.
	CallExpr struct {
		Target   Node
		Name     string
		TypeArgs []string
		Args     []Node
		At       expr.Pos
	}

	// LambdaExpr is (params) => body.
	LambdaExpr struct {
		Params []string
		Body   Node
		At     expr.Pos
	}

	BinaryExpr struct {
		Op    expr.BinaryOp
		Left  Node
		Right Node
		At    expr.Pos
	}

	// UnaryExpr is !x or -x.
	UnaryExpr struct {
		Op      TokenType
		Operand Node
		At      expr.Pos
	}

	CondExpr struct {
		Test Node
		Then Node
		Else Node
		At   expr.Pos
	}

	// RecordExpr is new { Name = value, ... }. A member given without a
	// name takes the name of the identifier or member it reads.
	RecordExpr struct {
		Fields []RecordField
		At     expr.Pos
	}

	RecordField struct {
		Name  string
		Value Node
	}

	// ArrayExpr is [a, b, ...].
	ArrayExpr struct {
		Elems []Node
		At    expr.Pos
	}
)

func (n *Ident) Pos() expr.Pos        { return n.At }
func (n *Literal) Pos() expr.Pos      { return n.At }
func (n *MemberAccess) Pos() expr.Pos { return n.At }
func (n *CallExpr) Pos() expr.Pos     { return n.At }
func (n *LambdaExpr) Pos() expr.Pos   { return n.At }
func (n *BinaryExpr) Pos() expr.Pos   { return n.At }
func (n *UnaryExpr) Pos() expr.Pos    { return n.At }
func (n *CondExpr) Pos() expr.Pos     { return n.At }
func (n *RecordExpr) Pos() expr.Pos   { return n.At }
func (n *ArrayExpr) Pos() expr.Pos    { return n.At }

// Operator precedence, lowest first.
const (
	_ int = iota
	LOWEST
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	EQUALS      // == !=
	COMPARE     // < > <= >=
	SUM         // + -
	PRODUCT     // * / %
)

var precedences = map[TokenType]int{
	OR:      LOGICAL_OR,
	AND:     LOGICAL_AND,
	EQ:      EQUALS,
	NE:      EQUALS,
	LT:      COMPARE,
	LE:      COMPARE,
	GT:      COMPARE,
	GE:      COMPARE,
	PLUS:    SUM,
	MINUS:   SUM,
	STAR:    PRODUCT,
	SLASH:   PRODUCT,
	PERCENT: PRODUCT,
}

// Parser is a recursive-descent parser over a fully lexed token slice.
// Lookahead is unbounded so lambdas and generic calls can be told apart
// from parenthesized expressions and comparisons.
type Parser struct {
	tokens []Token
	pos    int
	errors []*SyntaxError
}

// NewParser creates a parser over input.
func NewParser(input string) *Parser {
	return &Parser{tokens: NewLexer(input).Tokens()}
}

// ParseSyntax parses input as a single expression.
func ParseSyntax(input string) (Node, error) {
	p := NewParser(input)
	n := p.ParseExpression()
	if len(p.errors) == 0 && p.cur().Type != EOF {
		p.addError(p.cur().Pos, "unexpected %s after expression", describeToken(p.cur()))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return n, nil
}

// Errors returns the syntax errors met so far.
func (p *Parser) Errors() []*SyntaxError { return p.errors }

func (p *Parser) cur() Token { return p.peek(0) }

func (p *Parser) peek(n int) Token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) next() Token {
	tok := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) addError(at expr.Pos, format string, args ...any) {
	p.errors = append(p.errors, &SyntaxError{Pos: at, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(t TokenType) (Token, bool) {
	tok := p.cur()
	if tok.Type != t {
		p.addError(tok.Pos, "expected %s, got %s", t, describeToken(tok))
		return tok, false
	}
	p.next()
	return tok, true
}

func describeToken(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of input"
	case ILLEGAL:
		return fmt.Sprintf("illegal token %q", tok.Literal)
	case IDENT, INT, FLOAT:
		return fmt.Sprintf("%s %s", tok.Type, tok.Literal)
	case STRING:
		return fmt.Sprintf("string %q", tok.Literal)
	}
	return fmt.Sprintf("%q", tok.Type.String())
}

// ParseExpression parses a conditional expression.
func (p *Parser) ParseExpression() Node {
	test := p.parseBinary(LOWEST)
	if test == nil || p.cur().Type != QUESTION {
		return test
	}
	at := p.next().Pos
	then := p.ParseExpression()
	if _, ok := p.expect(COLON); !ok {
		return nil
	}
	els := p.ParseExpression()
	if then == nil || els == nil {
		return nil
	}
	return &CondExpr{Test: test, Then: then, Else: els, At: at}
}

func (p *Parser) parseBinary(min int) Node {
	left := p.parseUnary()
	for left != nil {
		tok := p.cur()
		prec, ok := precedences[tok.Type]
		if !ok || prec <= min {
			return left
		}
		p.next()
		right := p.parseBinary(prec)
		if right == nil {
			return nil
		}
		op, _ := expr.BinaryOpFromSymbol(tok.Type.String())
		left = &BinaryExpr{Op: op, Left: left, Right: right, At: tok.Pos}
	}
	return left
}

func (p *Parser) parseUnary() Node {
	switch tok := p.cur(); tok.Type {
	case BANG, MINUS:
		p.next()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{Op: tok.Type, Operand: operand, At: tok.Pos}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(n Node) Node {
	for n != nil && p.cur().Type == DOT {
		p.next()
		name, ok := p.expect(IDENT)
		if !ok {
			return nil
		}
		typeArgs, isGeneric := p.parseTypeArgs()
		if !isGeneric && p.cur().Type != LPAREN {
			n = &MemberAccess{Target: n, Name: name.Literal, At: name.Pos}
			continue
		}
		args, ok := p.parseArgs()
		if !ok {
			return nil
		}
		n = &CallExpr{Target: n, Name: name.Literal, TypeArgs: typeArgs, Args: args, At: name.Pos}
	}
	return n
}

// parseTypeArgs consumes <T1, T2> when it is directly followed by an
// argument list, and otherwise leaves the tokens for the comparison
// operators.
func (p *Parser) parseTypeArgs() ([]string, bool) {
	if p.cur().Type != LT {
		return nil, false
	}
	var names []string
	i := 1
	for {
		if p.peek(i).Type != IDENT {
			return nil, false
		}
		names = append(names, p.peek(i).Literal)
		switch p.peek(i + 1).Type {
		case COMMA:
			i += 2
			continue
		case GT:
			if p.peek(i+2).Type != LPAREN {
				return nil, false
			}
			p.pos += i + 2
			return names, true
		}
		return nil, false
	}
}

func (p *Parser) parseArgs() ([]Node, bool) {
	if _, ok := p.expect(LPAREN); !ok {
		return nil, false
	}
	var args []Node
	if p.cur().Type == RPAREN {
		p.next()
		return args, true
	}
	for {
		arg := p.ParseExpression()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
		if p.cur().Type != COMMA {
			break
		}
		p.next()
	}
	if _, ok := p.expect(RPAREN); !ok {
		return nil, false
	}
	return args, true
}

func (p *Parser) parsePrimary() Node {
	tok := p.cur()
	switch tok.Type {
	case INT:
		p.next()
		v, err := strconv.Atoi(tok.Literal)
		if err != nil {
			p.addError(tok.Pos, "invalid integer %s", tok.Literal)
			return nil
		}
		return &Literal{Value: v, At: tok.Pos}
	case FLOAT:
		p.next()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(tok.Pos, "invalid number %s", tok.Literal)
			return nil
		}
		return &Literal{Value: v, At: tok.Pos}
	case STRING:
		p.next()
		return &Literal{Value: tok.Literal, At: tok.Pos}
	case IDENT:
		return p.parseIdent()
	case LPAREN:
		if params, ok := p.lambdaParams(); ok {
			return p.parseLambda(params, tok.Pos)
		}
		p.next()
		inner := p.ParseExpression()
		if _, ok := p.expect(RPAREN); !ok {
			return nil
		}
		return inner
	case LBRACKET:
		return p.parseArray()
	}
	p.addError(tok.Pos, "unexpected %s", describeToken(tok))
	return nil
}

func (p *Parser) parseIdent() Node {
	tok := p.cur()
	switch {
	case p.peek(1).Type == ARROW:
		p.next()
		return p.parseLambda([]string{tok.Literal}, tok.Pos)
	case tok.Literal == "true" || tok.Literal == "false":
		p.next()
		return &Literal{Value: tok.Literal == "true", At: tok.Pos}
	case tok.Literal == "new" && p.peek(1).Type == LBRACE:
		return p.parseRecord()
	}
	p.next()
	if p.cur().Type == LPAREN {
		args, ok := p.parseArgs()
		if !ok {
			return nil
		}
		return &CallExpr{Name: tok.Literal, Args: args, At: tok.Pos}
	}
	return &Ident{Name: tok.Literal, At: tok.Pos}
}

// lambdaParams reports whether the tokens at the cursor open a
// parenthesized lambda, and returns its parameter names.
func (p *Parser) lambdaParams() ([]string, bool) {
	var names []string
	i := 1
	if p.peek(i).Type == RPAREN {
		if p.peek(i+1).Type != ARROW {
			return nil, false
		}
		p.pos += i + 1
		return names, true
	}
	for {
		if p.peek(i).Type != IDENT {
			return nil, false
		}
		names = append(names, p.peek(i).Literal)
		switch p.peek(i + 1).Type {
		case COMMA:
			i += 2
		case RPAREN:
			if p.peek(i+2).Type != ARROW {
				return nil, false
			}
			p.pos += i + 2
			return names, true
		default:
			return nil, false
		}
	}
}

// parseLambda parses the body after the parameter list; the cursor is on
// the arrow.
func (p *Parser) parseLambda(params []string, at expr.Pos) Node {
	if _, ok := p.expect(ARROW); !ok {
		return nil
	}
	seen := make(map[string]bool, len(params))
	for _, name := range params {
		if seen[name] {
			p.addError(at, "duplicate lambda parameter %q", name)
			return nil
		}
		seen[name] = true
	}
	body := p.ParseExpression()
	if body == nil {
		return nil
	}
	return &LambdaExpr{Params: params, Body: body, At: at}
}

func (p *Parser) parseRecord() Node {
	at := p.next().Pos // new
	p.next()           // {
	rec := &RecordExpr{At: at}
	seen := make(map[string]bool)
	for p.cur().Type != RBRACE {
		var f RecordField
		if p.cur().Type == IDENT && p.peek(1).Type == ASSIGN {
			f.Name = p.next().Literal
			p.next()
		}
		start := p.cur().Pos
		f.Value = p.ParseExpression()
		if f.Value == nil {
			return nil
		}
		if f.Name == "" {
			switch v := f.Value.(type) {
			case *Ident:
				f.Name = v.Name
			case *MemberAccess:
				f.Name = v.Name
			default:
				p.addError(start, "record member needs a name")
				return nil
			}
		}
		if seen[f.Name] {
			p.addError(start, "duplicate record member %q", f.Name)
			return nil
		}
		seen[f.Name] = true
		rec.Fields = append(rec.Fields, f)
		if p.cur().Type != COMMA {
			break
		}
		p.next()
	}
	if _, ok := p.expect(RBRACE); !ok {
		return nil
	}
	return rec
}

func (p *Parser) parseArray() Node {
	at := p.next().Pos
	arr := &ArrayExpr{At: at}
	for p.cur().Type != RBRACKET {
		el := p.ParseExpression()
		if el == nil {
			return nil
		}
		arr.Elems = append(arr.Elems, el)
		if p.cur().Type != COMMA {
			break
		}
		p.next()
	}
	if _, ok := p.expect(RBRACKET); !ok {
		return nil
	}
	return arr
}

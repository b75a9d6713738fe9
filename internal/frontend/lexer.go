package frontend

import (
	"fmt"
	"strings"

	"github.com/roach88/relinq/internal/expr"
)

// TokenType identifies a lexical token.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	IDENT  // people, Where
	INT    // 42
	FLOAT  // 3.5
	STRING // "abc"

	DOT      // .
	COMMA    // ,
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	QUESTION // ?
	COLON    // :
	ASSIGN   // =
	ARROW    // =>

	BANG // !
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	EQ  // ==
	NE  // !=
	LT  // <
	LE  // <=
	GT  // >
	GE  // >=
	AND // &&
	OR  // ||
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", IDENT: "IDENT", INT: "INT", FLOAT: "FLOAT", STRING: "STRING",
	DOT: ".", COMMA: ",", LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}",
	LBRACKET: "[", RBRACKET: "]", QUESTION: "?", COLON: ":", ASSIGN: "=", ARROW: "=>",
	BANG: "!", PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	EQ: "==", NE: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=", AND: "&&", OR: "||",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is one lexical token with its starting position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     expr.Pos
}

// Lexer tokenizes query text.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token. After the end of input it keeps
// returning EOF.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Pos: expr.Pos{Line: l.line, Column: l.column}}
	two := func(t TokenType) Token {
		tok.Type = t
		tok.Literal = l.input[l.position : l.position+2]
		l.readChar()
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		tok.Type = EOF
		return tok
	case '"':
		s, err := l.readString()
		if err != nil {
			tok.Type = ILLEGAL
			tok.Literal = err.Error()
			return tok
		}
		tok.Type = STRING
		tok.Literal = s
		return tok
	case '=':
		switch l.peekChar() {
		case '>':
			return two(ARROW)
		case '=':
			return two(EQ)
		}
		tok.Type = ASSIGN
	case '!':
		if l.peekChar() == '=' {
			return two(NE)
		}
		tok.Type = BANG
	case '<':
		if l.peekChar() == '=' {
			return two(LE)
		}
		tok.Type = LT
	case '>':
		if l.peekChar() == '=' {
			return two(GE)
		}
		tok.Type = GT
	case '&':
		if l.peekChar() == '&' {
			return two(AND)
		}
		tok.Type = ILLEGAL
	case '|':
		if l.peekChar() == '|' {
			return two(OR)
		}
		tok.Type = ILLEGAL
	case '.':
		tok.Type = DOT
	case ',':
		tok.Type = COMMA
	case '(':
		tok.Type = LPAREN
	case ')':
		tok.Type = RPAREN
	case '{':
		tok.Type = LBRACE
	case '}':
		tok.Type = RBRACE
	case '[':
		tok.Type = LBRACKET
	case ']':
		tok.Type = RBRACKET
	case '?':
		tok.Type = QUESTION
	case ':':
		tok.Type = COLON
	case '+':
		tok.Type = PLUS
	case '-':
		tok.Type = MINUS
	case '*':
		tok.Type = STAR
	case '/':
		tok.Type = SLASH
	case '%':
		tok.Type = PERCENT
	default:
		if isDigit(l.ch) {
			return l.readNumber(tok)
		}
		if isLetter(l.ch) {
			tok.Type = IDENT
			tok.Literal = l.readIdentifier()
			return tok
		}
		tok.Type = ILLEGAL
	}

	tok.Literal = string(l.ch)
	l.readChar()
	return tok
}

// Tokens lexes the whole input, ending with EOF.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == EOF {
			return out
		}
	}
}

// skipWhitespaceAndComments skips whitespace and // comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber(tok Token) Token {
	start := l.position
	tok.Type = INT
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		tok.Type = FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	tok.Literal = l.input[start:l.position]
	return tok
}

// readString reads a double-quoted string with escape sequences.
func (l *Lexer) readString() (string, error) {
	var sb strings.Builder
	l.readChar() // skip opening "

	for l.ch != '"' {
		switch l.ch {
		case 0, '\n':
			return "", fmt.Errorf("unterminated string")
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"':
				sb.WriteByte(l.ch)
			default:
				return "", fmt.Errorf("unknown escape \\%c", l.ch)
			}
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
	l.readChar() // skip closing "
	return sb.String(), nil
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

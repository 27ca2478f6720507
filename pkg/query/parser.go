// ABOUTME: Lexer and recursive-descent parser for the attribute query language
// ABOUTME: Left-associative, equal-precedence boolean operators

package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonnycoombes/tarantula/pkg/node"
)

// ParseError reports malformed query text. No partial AST accompanies
// it.
type ParseError struct {
	Pos int    // Byte offset of the offending token
	Msg string // Human-readable description
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("query: parse error at offset %d: %s", e.Pos, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokDot
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokComparator
)

type token struct {
	kind tokenKind
	text string
	pos  int
	comp Comparator
	n    int64
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) errf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t' || l.input[l.pos] == '\n' || l.input[l.pos] == '\r') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokDot, pos: start}, nil
	case c == '&':
		if l.pos+1 >= len(l.input) || l.input[l.pos+1] != '&' {
			return token{}, l.errf(start, "expected '&&'")
		}
		l.pos += 2
		return token{kind: tokAnd, pos: start}, nil
	case c == '|':
		if l.pos+1 >= len(l.input) || l.input[l.pos+1] != '|' {
			return token{}, l.errf(start, "expected '||'")
		}
		l.pos += 2
		return token{kind: tokOr, pos: start}, nil
	case c == '=':
		if l.pos+1 >= len(l.input) || l.input[l.pos+1] != '=' {
			return token{}, l.errf(start, "expected '=='")
		}
		l.pos += 2
		return token{kind: tokComparator, comp: CompEq, pos: start}, nil
	case c == '!':
		if l.pos+1 >= len(l.input) || l.input[l.pos+1] != '=' {
			return token{}, l.errf(start, "expected '!='")
		}
		l.pos += 2
		return token{kind: tokComparator, comp: CompNe, pos: start}, nil
	case c == '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokComparator, comp: CompLe, pos: start}, nil
		}
		l.pos++
		return token{kind: tokComparator, comp: CompLt, pos: start}, nil
	case c == '>':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokComparator, comp: CompGe, pos: start}, nil
		}
		l.pos++
		return token{kind: tokComparator, comp: CompGt, pos: start}, nil
	case c == '\'':
		l.pos++
		for l.pos < len(l.input) && l.input[l.pos] != '\'' {
			l.pos++
		}
		if l.pos >= len(l.input) {
			return token{}, l.errf(start, "unterminated string literal")
		}
		text := l.input[start+1 : l.pos]
		l.pos++
		return token{kind: tokString, text: text, pos: start}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		l.pos++
		for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
			l.pos++
		}
		text := l.input[start:l.pos]
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return token{}, l.errf(start, "invalid integer %q", text)
		}
		return token{kind: tokInt, text: text, n: n, pos: start}, nil
	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil
	default:
		return token{}, l.errf(start, "unexpected character %q", string(c))
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// Parse turns query text into a clause tree. The boolean operators
// share one precedence level and associate strictly left to right:
// "A || B && C" parses as "(A || B) && C". Parenthesize to override.
func Parse(input string) (Clause, error) {
	p := &parser{lex: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	clause, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{Pos: p.tok.pos, Msg: "unexpected trailing input"}
	}
	return clause, nil
}

// parseQuery := clause ( ("&&" | "||") clause )*
func (p *parser) parseQuery() (Clause, error) {
	left, err := p.parseClause()
	if err != nil {
		return nil, err
	}

	for p.tok.kind == tokAnd || p.tok.kind == tokOr {
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		if op == tokAnd {
			left = &AndClause{Left: left, Right: right}
		} else {
			left = &OrClause{Left: left, Right: right}
		}
	}
	return left, nil
}

// parseClause := predicate | "(" query ")"
func (p *parser) parseClause() (Clause, error) {
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, &ParseError{Pos: p.tok.pos, Msg: "expected ')'"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parsePredicate()
}

// parsePredicate := ident "." ident comparator value
func (p *parser) parsePredicate() (Clause, error) {
	if p.tok.kind != tokIdent {
		return nil, &ParseError{Pos: p.tok.pos, Msg: "expected attribute path"}
	}
	first := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokDot {
		return nil, &ParseError{Pos: p.tok.pos, Msg: "expected '.' in attribute path"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokIdent {
		return nil, &ParseError{Pos: p.tok.pos, Msg: "expected attribute name"}
	}
	second := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokComparator {
		return nil, &ParseError{Pos: p.tok.pos, Msg: "expected comparator"}
	}
	comp := p.tok.comp
	if err := p.advance(); err != nil {
		return nil, err
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	return &Predicate{
		Path:       AttributePath{Components: []string{first, second}},
		Comparator: comp,
		Value:      value,
	}, nil
}

// parseValue := integer | "true" | "false" | quoted-string
func (p *parser) parseValue() (Value, error) {
	switch p.tok.kind {
	case tokInt:
		v := IntegerValue(p.tok.n)
		return v, p.advance()
	case tokIdent:
		switch p.tok.text {
		case "true":
			return BooleanValue(true), p.advance()
		case "false":
			return BooleanValue(false), p.advance()
		}
		return Value{}, &ParseError{Pos: p.tok.pos, Msg: fmt.Sprintf("expected value, got %q", p.tok.text)}
	case tokString:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		// A quoted string in the fixed date format is a date literal
		if t, err := time.Parse(node.DateFormat, text); err == nil {
			return DateValue(t), nil
		}
		return StringValue(text), nil
	default:
		return Value{}, &ParseError{Pos: p.tok.pos, Msg: "expected value"}
	}
}

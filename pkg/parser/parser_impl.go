package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// Parser implements a recursive descent parser for search expressions.
type Parser struct {
	lexer *Lexer
	opts  CompileOptions
}

// NewParser creates a new parser for the given input string.
func NewParser(input string, opts ...CompileOption) *Parser {
	options := CompileOptions{
		MaxDepth: 100,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Parser{
		lexer: NewLexer(input),
		opts:  options,
	}
}

// Parse parses the entire input and returns the root node.
func (p *Parser) Parse() (*types.Node, error) {
	p.lexer.skipWhitespace()
	if err := p.lexer.Error(); err != nil {
		return nil, err
	}
	if p.lexer.Peek() == eof {
		return nil, p.error(types.ErrEmptyExpression, "Empty expression", 0)
	}

	node, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	mark := p.lexer.Mark()
	if tok := p.lexer.Next(); tok.Type != TokenEOF {
		return nil, p.error(types.ErrUnexpectedToken, fmt.Sprintf("Unexpected token: %s", tok.Value), mark)
	}
	return node, nil
}

// parseExpression parses a primary followed by an optional alias.
func (p *Parser) parseExpression(depth int) (*types.Node, error) {
	if depth > p.opts.MaxDepth {
		return nil, p.error(types.ErrMaxDepthExceeded, "Expression nested too deeply", p.lexer.Mark())
	}

	node, err := p.parsePrimary(depth)
	if err != nil {
		return nil, err
	}

	if node.Types.Has(types.QueryString) && !node.Types.Has(types.Keyword) {
		// Free text swallowed any trailing "as name"; split it back out.
		return splitQueryAlias(node), nil
	}

	if alias, ok := p.parseAlias(); ok {
		node = node.WithAlias(alias)
	}
	return node, nil
}

// parsePrimary parses a single term. Anything that is not a well formed
// literal, selector, call or group is read back as a query string.
func (p *Parser) parsePrimary(depth int) (*types.Node, error) {
	l := p.lexer
	l.skipWhitespace()
	if err := l.Error(); err != nil {
		return nil, err
	}

	start := l.Mark()
	tok := l.Next()

	switch tok.Type {
	case TokenEOF:
		return nil, p.error(types.ErrUnexpectedEnd, "Unexpected end of expression", start)

	case TokenComma, TokenBraceClose:
		return nil, p.error(types.ErrUnexpectedToken, fmt.Sprintf("Unexpected token: %s", tok.Value), start)

	case TokenBraceOpen:
		args, inner, err := p.parseArgs(depth, start)
		if err != nil {
			return nil, err
		}
		outer := l.input[start:l.Mark()]
		return types.NewNode(types.Group|types.Iterable, "set", outer, inner, start, args...), nil

	case TokenString:
		if p.atTermEnd() {
			outer := l.input[start:l.Mark()]
			return types.NewLiteral(types.Text, unquote(tok.Value), outer, start), nil
		}

	case TokenNumber:
		if p.atTermEnd() {
			v, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				return nil, p.error(types.ErrInvalidNumber, "Invalid number: "+tok.Value, start)
			}
			return types.NewLiteral(types.Number, v, tok.Value, start), nil
		}

	case TokenSelector:
		if p.atTermEnd() {
			return types.NewNode(types.Selector, "selector", "@"+tok.Value, tok.Value, start), nil
		}

	case TokenName:
		if l.Peek() == '{' {
			l.Next()
			args, inner, err := p.parseArgs(depth, start)
			if err != nil {
				return nil, err
			}
			outer := l.input[start:l.Mark()]
			return types.NewNode(types.Function|types.Iterable, strings.ToLower(tok.Value), outer, inner, start, args...), nil
		}
		if p.atTermEnd() {
			switch tok.Value {
			case "true", "false":
				return types.NewLiteral(types.Boolean, tok.Value == "true", tok.Value, start), nil
			}
			return types.NewNode(types.Keyword|types.QueryString|types.Iterable, "query", tok.Value, tok.Value, start), nil
		}
	}

	l.Reset(start)
	return p.parseQueryText(depth, start)
}

// parseArgs parses a comma separated argument list; the opening brace has
// been consumed. It returns the arguments and the trimmed inner text.
func (p *Parser) parseArgs(depth, start int) ([]*types.Node, string, error) {
	l := p.lexer
	open := l.Mark()

	l.skipWhitespace()
	if l.Peek() == '}' {
		l.Next()
		return nil, "", nil
	}

	var args []*types.Node
	for {
		arg, err := p.parseExpression(depth + 1)
		if err != nil {
			return nil, "", err
		}
		args = append(args, arg)

		mark := l.Mark()
		tok := l.Next()
		switch tok.Type {
		case TokenComma:
			continue
		case TokenBraceClose:
			inner := strings.TrimSpace(l.input[open:mark])
			return args, inner, nil
		case TokenEOF:
			return nil, "", p.error(types.ErrUnexpectedEnd, "Expected } to close argument list", start)
		default:
			return nil, "", p.error(types.ErrUnexpectedToken, fmt.Sprintf("Expected , or } but got %s", tok.Value), mark)
		}
	}
}

// parseQueryText reads free query text up to the next top-level ',' or '}'.
// Braced segments inside it are parsed as spread sub-expressions.
func (p *Parser) parseQueryText(depth, start int) (*types.Node, error) {
	l := p.lexer
	var args []*types.Node

Loop:
	for {
		mark := l.Mark()
		r := l.nextRune()
		switch r {
		case eof, ',', '}':
			l.Reset(mark)
			break Loop
		case '{':
			l.Reset(mark)
			arg, err := p.parsePrimary(depth + 1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		case '"', '\'':
			l.ignore()
			if tok := l.scanString(r); tok.Type == TokenError {
				return nil, l.Error()
			}
		}
	}

	text := strings.TrimSpace(l.input[start:l.Mark()])
	if text == "" {
		return nil, p.error(types.ErrUnexpectedToken, "Expected expression", start)
	}
	return types.NewNode(types.QueryString|types.Iterable, "query", text, text, start, args...), nil
}

// atTermEnd reports whether the current position ends a term: end of input,
// ',' or '}', or an alias clause, possibly after whitespace.
func (p *Parser) atTermEnd() bool {
	l := p.lexer
	r := l.Peek()
	if r != eof && r != ',' && r != '}' && !isWhitespace(r) {
		return false
	}
	switch l.PeekAfterSpace() {
	case eof, ',', '}':
		return true
	}
	mark := l.Mark()
	_, ok := p.parseAlias()
	l.Reset(mark)
	return ok
}

// parseAlias consumes "as <name>" when present.
func (p *Parser) parseAlias() (string, bool) {
	l := p.lexer
	mark := l.Mark()
	if !isWhitespace(l.Peek()) {
		return "", false
	}
	if tok := l.Next(); tok.Type != TokenName || tok.Value != "as" || !isWhitespace(l.Peek()) {
		l.Reset(mark)
		return "", false
	}
	tok := l.Next()
	switch tok.Type {
	case TokenName:
		if p.atAliasEnd() {
			return tok.Value, true
		}
	case TokenString:
		if p.atAliasEnd() {
			return unquote(tok.Value), true
		}
	}
	l.Reset(mark)
	return "", false
}

func (p *Parser) atAliasEnd() bool {
	switch p.lexer.PeekAfterSpace() {
	case eof, ',', '}':
		return true
	}
	return false
}

var queryAliasRe = regexp.MustCompile(`^(.*\S)\s+as\s+([A-Za-z_][A-Za-z0-9_]*)$`)

func splitQueryAlias(n *types.Node) *types.Node {
	m := queryAliasRe.FindStringSubmatch(n.Outer)
	if m == nil {
		return n
	}
	c := *n
	c.Outer, c.Inner, c.Alias = m[1], m[1], m[2]
	return &c
}

// unquote resolves backslash escapes of a string literal body.
func unquote(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// error creates a parser error at position pos.
func (p *Parser) error(code types.ErrorCode, message string, pos int) error {
	return &types.Error{
		Code:     code,
		Message:  message,
		Position: pos,
	}
}

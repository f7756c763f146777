package parser

import (
	"unicode/utf8"

	"github.com/sandrolain/searchexpr/pkg/types"
)

const eof = -1

// Lexer converts a search expression into tokens.
// The implementation is based on Rob Pike's "Lexical Scanning in Go" technique.
//
// Query strings are free text and cannot be tokenized without knowing the
// parser state, so the parser may rewind the lexer with Mark/Reset and read
// raw runes through the same helpers.
type Lexer struct {
	input   string // Input string being scanned
	length  int    // Length of input string
	start   int    // Start position of current token
	current int    // Current position in input
	width   int    // Width of last rune read
	err     error  // First error encountered
}

// NewLexer creates a new lexer from the provided input string.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		length: len(input),
	}
}

// Next returns the next token from the input.
// When the end of the input is reached, Next returns TokenEOF for all subsequent calls.
func (l *Lexer) Next() Token {
	l.skipWhitespace()
	if l.err != nil {
		return l.error(types.ErrUnexpectedEnd, l.err.Error())
	}

	ch := l.nextRune()
	switch {
	case ch == eof:
		return l.eof()
	case ch == '{':
		return l.newToken(TokenBraceOpen)
	case ch == '}':
		return l.newToken(TokenBraceClose)
	case ch == ',':
		return l.newToken(TokenComma)
	case ch == '"' || ch == '\'':
		l.ignore()
		return l.scanString(ch)
	case ch == '@':
		l.ignore()
		return l.scanSelector()
	case isDigit(ch) || ch == '-':
		l.backup()
		return l.scanNumber()
	case isNameStart(ch):
		l.backup()
		return l.scanName()
	}
	return l.error(types.ErrUnexpectedToken, "Unexpected character")
}

// Error returns the first error encountered during lexing, if any.
func (l *Lexer) Error() error {
	return l.err
}

// Mark returns the current position so that it can be restored by Reset.
func (l *Lexer) Mark() int {
	return l.current
}

// Reset rewinds the lexer to a position obtained from Mark.
func (l *Lexer) Reset(pos int) {
	l.current = pos
	l.start = pos
	l.width = 0
	l.err = nil
}

// Peek returns the next rune without consuming it.
func (l *Lexer) Peek() rune {
	r := l.nextRune()
	l.backup()
	return r
}

// PeekAfterSpace returns the first non-whitespace rune without consuming input.
func (l *Lexer) PeekAfterSpace() rune {
	mark := l.current
	l.acceptAll(isWhitespace)
	r := l.Peek()
	l.current = mark
	l.width = 0
	return r
}

// scanString reads a string literal from the current position.
// The opening quote has already been consumed.
func (l *Lexer) scanString(quote rune) Token {
Loop:
	for {
		switch l.nextRune() {
		case quote:
			break Loop
		case '\\':
			// Consume escaped character
			if r := l.nextRune(); r != eof {
				break
			}
			fallthrough
		case eof:
			return l.error(types.ErrStringNotClosed, "Unterminated string literal")
		}
	}

	l.backup()
	t := l.newToken(TokenString)
	l.acceptRune(quote)
	l.ignore()
	return t
}

// scanNumber reads a number literal from the current position.
// Format: -?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?
func (l *Lexer) scanNumber() Token {
	l.acceptRune('-')
	if !l.acceptAll(isDigit) {
		return l.error(types.ErrInvalidNumber, "Invalid number")
	}
	if l.acceptRune('.') {
		if !l.acceptAll(isDigit) {
			return l.error(types.ErrInvalidNumber, "Invalid number")
		}
	}
	if l.acceptRunes2('e', 'E') {
		l.acceptRunes2('+', '-')
		if !l.acceptAll(isDigit) {
			return l.error(types.ErrInvalidNumber, "Invalid number")
		}
	}
	return l.newToken(TokenNumber)
}

// scanName reads an evaluator or keyword name.
func (l *Lexer) scanName() Token {
	l.acceptAll(isNameChar)
	return l.newToken(TokenName)
}

// scanSelector reads a selector path after '@'.
func (l *Lexer) scanSelector() Token {
	if !l.acceptAll(isSelectorChar) {
		return l.error(types.ErrUnexpectedToken, "Empty selector")
	}
	return l.newToken(TokenSelector)
}

// Helper methods

func (l *Lexer) eof() Token {
	return Token{
		Type:     TokenEOF,
		Position: l.current,
	}
}

func (l *Lexer) error(code types.ErrorCode, message string) Token {
	t := l.newToken(TokenError)
	l.err = &types.Error{
		Code:     code,
		Message:  message,
		Position: t.Position,
		Token:    t.Value,
	}
	return t
}

func (l *Lexer) newToken(tt TokenType) Token {
	t := Token{
		Type:     tt,
		Value:    l.input[l.start:l.current],
		Position: l.start,
	}
	l.width = 0
	l.start = l.current
	return t
}

func (l *Lexer) nextRune() rune {
	if l.err != nil || l.current >= l.length {
		l.width = 0
		return eof
	}

	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	return r
}

func (l *Lexer) backup() {
	l.current -= l.width
	l.width = 0
}

func (l *Lexer) ignore() {
	l.start = l.current
}

func (l *Lexer) acceptRune(r rune) bool {
	return l.accept(func(c rune) bool {
		return c == r
	})
}

func (l *Lexer) acceptRunes2(r1, r2 rune) bool {
	return l.accept(func(c rune) bool {
		return c == r1 || c == r2
	})
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

func (l *Lexer) skipWhitespace() {
	for {
		if l.err != nil {
			return
		}

		l.acceptAll(isWhitespace)
		l.ignore()

		// Comments: /* ... */
		if !l.acceptRune('/') {
			return
		}
		if !l.acceptRune('*') {
			l.backup()
			return
		}
		for {
			ch := l.nextRune()
			if ch == eof {
				l.err = &types.Error{
					Code:     types.ErrUnexpectedEnd,
					Message:  "Unclosed comment",
					Position: l.current,
				}
				return
			}
			if ch == '*' && l.acceptRune('/') {
				break
			}
		}
		l.ignore()
	}
}

// Character classification functions

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

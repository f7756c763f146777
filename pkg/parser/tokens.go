package parser

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenString   // "hello" or 'hello'
	TokenNumber   // 123, -3.14, 1e-10
	TokenName     // evaluator or keyword name
	TokenSelector // @label, @fields.size

	// Grouping symbols
	TokenBraceOpen  // {
	TokenBraceClose // }

	// Basic symbols
	TokenComma // ,
)

// String returns a string representation of the token type.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "(eof)"
	case TokenError:
		return "(error)"
	case TokenString:
		return "(string)"
	case TokenNumber:
		return "(number)"
	case TokenName:
		return "(name)"
	case TokenSelector:
		return "(selector)"
	case TokenBraceOpen:
		return "{"
	case TokenBraceClose:
		return "}"
	case TokenComma:
		return ","
	default:
		return "(unknown)"
	}
}

// Token represents a lexical token.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// isDelimiter reports whether r ends a literal, name or selector.
func isDelimiter(r rune) bool {
	return r == eof || r == ',' || r == '}' || r == '{' || isWhitespace(r)
}

func isNameStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isNameChar(r rune) bool {
	return isNameStart(r) || isDigit(r)
}

func isSelectorChar(r rune) bool {
	return isNameChar(r) || r == '.' || r == '#'
}

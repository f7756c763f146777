package types

import "fmt"

// ErrorCode identifies the kind of an expression error.
type ErrorCode string

// Error codes.
const (
	// P01xx: Parser errors
	ErrStringNotClosed  ErrorCode = "P0101"
	ErrUnexpectedEnd    ErrorCode = "P0102"
	ErrUnexpectedToken  ErrorCode = "P0103"
	ErrEmptyExpression  ErrorCode = "P0104"
	ErrInvalidNumber    ErrorCode = "P0105"
	ErrMaxDepthExceeded ErrorCode = "P0106"
	ErrInvalidSignature ErrorCode = "P0107"

	// B02xx: Bind-time errors
	ErrUnknownEvaluator    ErrorCode = "B0201"
	ErrNoMatchingSignature ErrorCode = "B0202"
	ErrAmbiguousSignature  ErrorCode = "B0203"
	ErrAmbiguousSelector   ErrorCode = "B0204"

	// E03xx: Evaluation-time errors
	ErrArgumentCount      ErrorCode = "E0301"
	ErrUnresolvedVariable ErrorCode = "E0302"
	ErrInvalidArgument    ErrorCode = "E0303"
	ErrEmptyOperand       ErrorCode = "E0304"
	ErrNoCurrentItem      ErrorCode = "E0305"
	ErrInvalidRange       ErrorCode = "E0306"
	ErrInvalidComparer    ErrorCode = "E0307"
)

// Error is a structured expression error carrying the source span of the
// offending node.
type Error struct {
	Code     ErrorCode
	Message  string
	Position int
	Length   int
	Token    string
	Err      error
}

// NewError creates a new expression error.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// NodeError creates an error spanning node n.
func NodeError(n *Node, code ErrorCode, format string, args ...interface{}) *Error {
	e := NewError(code, fmt.Sprintf(format, args...), -1)
	if n != nil {
		e.Position = n.Position
		e.Length = len(n.Outer)
		e.Token = n.Outer
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Code, e.Position, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// IsBindError reports whether the code belongs to the bind-time class.
func (c ErrorCode) IsBindError() bool {
	return len(c) > 0 && c[0] == 'B'
}

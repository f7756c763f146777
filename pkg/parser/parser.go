// Package parser implements the reference parser for search expressions.
//
// The parser uses a hand-written recursive descent approach and turns raw
// query text into immutable expression nodes carrying type flags and source
// spans. It does not bind evaluators; see package evaluator for that.
//
// # Syntax
//
//	union{set{1,2,3}, set{2,3,4}}       evaluator call
//	{a, b, c}                           group (implicit set)
//	"text" 'text' 42 -1.5 true false    literals
//	@label @fields.size                 selectors
//	t:mesh size>10                      query string (delegated to providers)
//	t:mesh ref={set{a,b}}               query string with spread sub-expressions
//	count{t:mesh} as meshes             alias
//	/* comment */
//
// # Example
//
//	node, err := parser.Parse(`sort{t:mesh, @label, desc}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
package parser

import (
	"github.com/sandrolain/searchexpr/pkg/types"
)

// Parse parses a search expression and returns the root node.
//
// If parsing fails, it returns a *types.Error with position information.
func Parse(query string) (*types.Node, error) {
	p := NewParser(query)
	return p.Parse()
}

// Compile is an alias for Parse that accepts options.
func Compile(query string, opts ...CompileOption) (*types.Node, error) {
	p := NewParser(query, opts...)
	return p.Parse()
}

// MustParse is like Parse but panics on error. Useful for tests and static
// expressions.
func MustParse(query string) *types.Node {
	n, err := Parse(query)
	if err != nil {
		panic("parser: Parse(" + query + "): " + err.Error())
	}
	return n
}

// CompileOption configures compilation behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth limits nesting depth to prevent stack overflow.
	MaxDepth int
}

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

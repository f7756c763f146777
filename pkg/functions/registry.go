// Package functions provides the types used to author and register custom
// evaluators.
//
// Users can define their own evaluators and register them via
// [evaluator.WithEvaluators], making them callable inside expressions as
// name{arg, ...}. Names are case-insensitive.
//
// # Example
//
//	inc := functions.EvaluatorDef{
//	    Name:       "inc",
//	    Signatures: []string{"<s>"},
//	    Category:   "Math",
//	    Fn: func(ctx context.Context, c functions.Context) types.Sequence {
//	        cur := c.Current()
//	        v, _ := cur.Select("value")
//	        return types.Single(types.NewRecord(cur.ID+"+1", v.(float64)+1))
//	    },
//	}
//	ev := evaluator.New(evaluator.WithEvaluators(inc))
package functions

import (
	"context"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// Hints alter how the registry binds and runs an evaluator.
type Hints uint32

const (
	// SupportsExpand marks evaluators that can return deferred
	// sub-expressions when called with the Expand flag.
	SupportsExpand Hints = 1 << iota
	// NoSignatureValidation disables signature checking at bind time; the
	// evaluator interprets its arguments itself.
	NoSignatureValidation
	// ImplicitLiterals makes bare keywords evaluate as text literals instead
	// of query strings.
	ImplicitLiterals
	// Materializes marks evaluators that drain an operand completely before
	// emitting anything.
	Materializes
)

// Has reports whether all bits of h2 are set.
func (h Hints) Has(h2 Hints) bool {
	return h&h2 == h2
}

// Context is the view of an evaluation call available to custom evaluators.
type Context interface {
	// Node returns the node being evaluated.
	Node() *types.Node
	// Args returns the bound argument nodes.
	Args() []*types.Node
	// Flags returns the execution flags of the call.
	Flags() types.ExecFlags
	// Current returns the top of the current-item stack, or nil.
	Current() *types.Record
	// Eval evaluates a node in the current scope.
	Eval(ctx context.Context, n *types.Node) types.Sequence
	// EvalWith evaluates a node with item pushed as current item.
	EvalWith(ctx context.Context, n *types.Node, item *types.Record) types.Sequence
	// Error builds an evaluation error spanning n.
	Error(n *types.Node, code types.ErrorCode, format string, args ...interface{}) error
}

// EvaluatorFunc is the signature of custom evaluators. It must not do any
// work before the returned sequence is ranged.
type EvaluatorFunc func(ctx context.Context, c Context) types.Sequence

// EvaluatorDef describes a custom evaluator.
type EvaluatorDef struct {
	// Name as it appears in expressions.
	Name string
	// Signatures in registration order, e.g. "<i-s?>". An empty list
	// accepts no arguments unless NoSignatureValidation is set.
	Signatures []string
	Hints      Hints
	// Category and Description are used for documentation only.
	Category    string
	Description string
	Fn          EvaluatorFunc
}

// Info describes a registered evaluator for tooling.
type Info struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Signatures  []string `json:"signatures"`
	Expands     bool     `json:"expands"`
	Materializes bool    `json:"materializes"`
}

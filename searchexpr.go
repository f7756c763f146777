// Package searchexpr evaluates search expressions: nested evaluator calls
// such as union{t:mesh, t:prefab} or count{sort{*, @size, desc}} whose
// leaves are query strings answered by record providers.
//
// Evaluation is lazy. Compiling binds every call to an evaluator and
// signature up front, and no provider is queried before the first record is
// pulled.
//
// # Quick Start
//
//	src := provider.NewSet([]provider.Provider{provider.NewMemory("assets", records...)})
//
//	// Evaluate once
//	records, err := searchexpr.Eval(`first{3, sort{t:mesh, @label}}`, evaluator.WithSource(src))
//
//	// Compile once, execute many times
//	node, err := searchexpr.Compile(`count{t:mesh}`)
//	ev := evaluator.New(evaluator.WithSource(src))
//	seq, _ := ev.Execute(ctx, node)
//	for r, err := range seq.Records() {
//	    ...
//	}
//
// # More Information
//
//   - Parser: github.com/sandrolain/searchexpr/pkg/parser
//   - Evaluator: github.com/sandrolain/searchexpr/pkg/evaluator
//   - Providers: github.com/sandrolain/searchexpr/pkg/provider
//   - Types: github.com/sandrolain/searchexpr/pkg/types
package searchexpr

import (
	"context"
	"fmt"
	"time"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// Version returns the current version of searchexpr.
func Version() string {
	return "v0.1.0-dev"
}

// Compile parses and binds an expression. The returned node is immutable
// and safe for concurrent execution.
func Compile(query string, opts ...evaluator.EvalOption) (*types.Node, error) {
	return evaluator.New(opts...).Compile(query)
}

// MustCompile is like Compile but panics if the expression cannot be
// compiled. It simplifies safe initialization of global variables.
func MustCompile(query string, opts ...evaluator.EvalOption) *types.Node {
	node, err := Compile(query, opts...)
	if err != nil {
		panic(fmt.Sprintf("searchexpr: Compile(%q): %v", query, err))
	}
	return node
}

// Eval compiles and runs query, collecting every record. It gives up after
// 30 seconds.
func Eval(query string, opts ...evaluator.EvalOption) ([]*types.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return EvalWithContext(ctx, query, opts...)
}

// EvalWithContext is Eval with a caller supplied context.
func EvalWithContext(ctx context.Context, query string, opts ...evaluator.EvalOption) ([]*types.Record, error) {
	ev := evaluator.New(opts...)
	node, err := ev.Compile(query)
	if err != nil {
		return nil, err
	}
	return ev.Collect(ctx, node)
}

// Stream compiles query and sends its records on a channel as they are
// produced. See evaluator.Evaluator.Stream.
func Stream(ctx context.Context, query string, opts ...evaluator.EvalOption) (<-chan evaluator.StreamResult, error) {
	ev := evaluator.New(opts...)
	node, err := ev.Compile(query)
	if err != nil {
		return nil, err
	}
	return ev.Stream(ctx, node)
}

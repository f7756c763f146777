package types

import "strings"

// Binding is the evaluator resolved for a node at bind time.
type Binding interface {
	EvaluatorName() string
}

// Node is an immutable description of one syntactic unit of an expression.
// Every With* method returns a modified copy.
type Node struct {
	Types TypeFlags
	// Name is the evaluator name for function nodes and the implicit
	// evaluator for everything else.
	Name string
	// Outer is the full source span, Inner the content without delimiters.
	Outer    string
	Inner    string
	Position int
	Alias    string
	// Value holds the literal payload (float64, string, bool) or, for
	// Bound leaves, the pre-computed Sequence or record slice.
	Value     interface{}
	Evaluator Binding
	Args      []*Node
}

// NewNode creates a node of the given kind.
func NewNode(flags TypeFlags, name, outer, inner string, position int, args ...*Node) *Node {
	return &Node{
		Types:    flags,
		Name:     name,
		Outer:    outer,
		Inner:    inner,
		Position: position,
		Args:     args,
	}
}

// NewLiteral creates a literal leaf carrying value.
func NewLiteral(flags TypeFlags, value interface{}, outer string, position int) *Node {
	return &Node{
		Types:    flags,
		Name:     "constant",
		Outer:    outer,
		Inner:    outer,
		Position: position,
		Value:    value,
	}
}

// NewBoundNode creates a synthetic leaf holding an already computed
// sub-result. value must be a Sequence or a []*Record.
func NewBoundNode(name string, value interface{}) *Node {
	return &Node{
		Types:    Bound | Iterable,
		Name:     "bound",
		Outer:    name,
		Inner:    name,
		Position: -1,
		Value:    value,
	}
}

// NewCall synthesizes a function call node without source text; its text is
// rebuilt from the name and the arguments.
func NewCall(name string, args ...*Node) *Node {
	n := &Node{
		Types:    Function | Iterable,
		Name:     strings.ToLower(name),
		Position: -1,
		Args:     args,
	}
	n.Inner = joinArgs(args)
	n.Outer = name + "{" + n.Inner + "}"
	return n
}

func joinArgs(args []*Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// WithAlias returns a copy of n renamed to alias.
func (n *Node) WithAlias(alias string) *Node {
	c := *n
	c.Alias = alias
	return &c
}

// WithArgs returns a copy of n with new arguments and regenerated text.
func (n *Node) WithArgs(args ...*Node) *Node {
	c := *n
	c.Args = args
	c.Inner = joinArgs(args)
	c.Outer = c.Name + "{" + c.Inner + "}"
	c.Evaluator = nil
	return &c
}

// WithBinding returns a copy of n bound to b with the given (bound) arguments.
func (n *Node) WithBinding(b Binding, args []*Node) *Node {
	c := *n
	c.Evaluator = b
	c.Args = args
	return &c
}

// IsBound reports whether the node has a resolved evaluator.
func (n *Node) IsBound() bool {
	return n.Evaluator != nil
}

// Text returns the node's textual payload: the literal string for text
// literals, the inner text otherwise.
func (n *Node) Text() string {
	if s, ok := n.Value.(string); ok {
		return s
	}
	return n.Inner
}

// String returns the node source text, with its alias when set.
func (n *Node) String() string {
	if n.Alias != "" && !strings.HasSuffix(n.Outer, " as "+n.Alias) {
		return n.Outer + " as " + n.Alias
	}
	return n.Outer
}

// Walk visits n and all its descendants depth first. Returning false from fn
// skips the children of the current node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, a := range n.Args {
		a.Walk(fn)
	}
}

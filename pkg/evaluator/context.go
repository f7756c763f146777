package evaluator

import (
	"context"
	"fmt"

	"github.com/sandrolain/searchexpr/pkg/functions"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// scope is one entry of the current-item stack. Scopes form an immutable
// list; pushing allocates a new head and popping is dropping the reference.
type scope struct {
	item   *types.Record
	extra  []interface{}
	parent *scope
	depth  int
}

// EvalContext is the per-call view of an evaluation: the node being run, its
// bound arguments, the execution flags and the current-item stack.
type EvalContext struct {
	evaluator *Evaluator
	node      *types.Node
	args      []*types.Node
	params    []types.TypeFlags
	flags     types.ExecFlags
	scope     *scope
	bindings  map[string]interface{}
	depth     int
}

var _ functions.Context = (*EvalContext)(nil)

// Evaluator returns the evaluator running this context.
func (c *EvalContext) Evaluator() *Evaluator {
	return c.evaluator
}

// Node returns the node being evaluated.
func (c *EvalContext) Node() *types.Node {
	return c.node
}

// Args returns the bound argument nodes.
func (c *EvalContext) Args() []*types.Node {
	return c.args
}

// Arg returns argument i, or nil when absent.
func (c *EvalContext) Arg(i int) *types.Node {
	if i < 0 || i >= len(c.args) {
		return nil
	}
	return c.args[i]
}

// Param returns the signature parameter argument i was matched to.
func (c *EvalContext) Param(i int) types.TypeFlags {
	if i < 0 || i >= len(c.params) {
		return types.None
	}
	return c.params[i]
}

// Flags returns the execution flags of the call.
func (c *EvalContext) Flags() types.ExecFlags {
	return c.flags
}

// Expanding reports whether the call must yield deferred sub-expressions.
func (c *EvalContext) Expanding() bool {
	return c.flags.Has(types.Expand)
}

// Push returns a child context with item on top of the current-item stack.
func (c *EvalContext) Push(item *types.Record, extra ...interface{}) *EvalContext {
	child := *c
	depth := 1
	if c.scope != nil {
		depth = c.scope.depth + 1
	}
	child.scope = &scope{item: item, extra: extra, parent: c.scope, depth: depth}
	return &child
}

// Current returns the top of the current-item stack, or nil.
func (c *EvalContext) Current() *types.Record {
	if c.scope == nil {
		return nil
	}
	return c.scope.item
}

// Extra returns the extra values pushed with the current item.
func (c *EvalContext) Extra() []interface{} {
	if c.scope == nil {
		return nil
	}
	return c.scope.extra
}

// Depth returns the current-item stack depth.
func (c *EvalContext) Depth() int {
	if c.scope == nil {
		return 0
	}
	return c.scope.depth
}

// Binding returns the value of a $name variable.
func (c *EvalContext) Binding(name string) (interface{}, bool) {
	v, ok := c.bindings[name]
	return v, ok
}

// Eval evaluates n in the current scope.
func (c *EvalContext) Eval(ctx context.Context, n *types.Node) types.Sequence {
	return c.evaluator.evalNode(ctx, c, n, types.ExecNone)
}

// EvalExpanded evaluates n asking for deferred sub-expressions.
func (c *EvalContext) EvalExpanded(ctx context.Context, n *types.Node) types.Sequence {
	return c.evaluator.evalNode(ctx, c, n, types.Expand)
}

// EvalWith evaluates n with item pushed as current item.
func (c *EvalContext) EvalWith(ctx context.Context, n *types.Node, item *types.Record) types.Sequence {
	return c.Push(item).Eval(ctx, n)
}

// EvalArg evaluates argument i.
func (c *EvalContext) EvalArg(ctx context.Context, i int) types.Sequence {
	a := c.Arg(i)
	if a == nil {
		return types.Fail(c.Error(c.node, types.ErrArgumentCount, "%s expects at least %d arguments", c.node.Name, i+1))
	}
	return c.Eval(ctx, a)
}

// Operands returns the operand nodes of argument i. When the argument's
// parameter is AlwaysExpand and its evaluator supports expansion, the
// argument is evaluated in expand mode and every deferred sub-expression
// becomes its own operand.
func (c *EvalContext) Operands(ctx context.Context, i int) ([]*types.Node, error) {
	a := c.Arg(i)
	if a == nil {
		return nil, nil
	}
	if !c.Param(i).Has(types.AlwaysExpand) || !supportsExpand(a) {
		return []*types.Node{a}, nil
	}

	var out []*types.Node
	var concrete []*types.Record
	for el, err := range c.EvalExpanded(ctx, a) {
		if err != nil {
			return nil, err
		}
		if el.IsPending() {
			continue
		}
		if n, ok := ExpandedNode(el.Record()); ok {
			out = append(out, n)
			continue
		}
		concrete = append(concrete, el.Record())
	}
	if len(concrete) > 0 {
		out = append(out, types.NewBoundNode(a.String(), concrete).WithBinding(&binding{reg: boundLeaf}, nil))
	}
	return out, nil
}

// OperandsFrom returns the operands of arguments i and following.
func (c *EvalContext) OperandsFrom(ctx context.Context, i int) ([]*types.Node, error) {
	var out []*types.Node
	for ; i < len(c.args); i++ {
		ops, err := c.Operands(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, ops...)
	}
	return out, nil
}

// Error builds an evaluation error spanning n.
func (c *EvalContext) Error(n *types.Node, code types.ErrorCode, format string, args ...interface{}) error {
	if n == nil {
		n = c.node
	}
	return types.NodeError(n, code, format, args...)
}

// String returns a short description of the context for debugging.
func (c *EvalContext) String() string {
	if c.node == nil {
		return fmt.Sprintf("EvalContext{root, depth: %d}", c.Depth())
	}
	return fmt.Sprintf("EvalContext{%s, depth: %d}", c.node.String(), c.Depth())
}

func supportsExpand(n *types.Node) bool {
	b, ok := n.Evaluator.(*binding)
	return ok && b.reg.Hints.Has(functions.SupportsExpand)
}

// expandedRecord wraps a deferred sub-expression into a record.
func expandedRecord(n *types.Node) *types.Record {
	r := types.NewRecord(n.String(), n)
	r.Label = n.Alias
	return r
}

// ExpandedNode returns the deferred sub-expression carried by r, if any.
func ExpandedNode(r *types.Record) (*types.Node, bool) {
	if r == nil {
		return nil, false
	}
	n, ok := r.Value.(*types.Node)
	return n, ok
}

// bindNode binds a node synthesized during evaluation.
func (c *EvalContext) bindNode(n *types.Node) (*types.Node, error) {
	return c.evaluator.Bind(n)
}

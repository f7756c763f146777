package evaluator

import (
	"fmt"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/functions"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// binding is the resolved evaluator of a node together with the parameter
// each argument was matched to.
type binding struct {
	reg    *Registration
	sig    *Signature
	params []types.TypeFlags
}

// EvaluatorName implements types.Binding.
func (b *binding) EvaluatorName() string {
	return b.reg.Name
}

// Leaf evaluators are bound by node kind and never looked up by name.
var (
	literalLeaf  = &Registration{Name: "literal", Fn: evalLiteral}
	selectorLeaf = &Registration{Name: "selector", Fn: evalSelectorLeaf}
	boundLeaf    = &Registration{Name: "bound", Fn: evalBoundLeaf}
)

// Bind resolves the evaluator of n and of all its descendants and returns
// the bound copy. n itself is not modified.
func (e *Evaluator) Bind(n *types.Node) (*types.Node, error) {
	if n == nil {
		return nil, types.NewError(types.ErrEmptyExpression, "invalid expression", -1)
	}

	reg, err := e.resolve(n)
	if err != nil {
		return nil, err
	}
	if reg.err != nil {
		return nil, types.NodeError(n, types.ErrAmbiguousSignature, "%s", messageOf(reg.err))
	}

	args, err := e.bindArgs(reg, n)
	if err != nil {
		return nil, err
	}

	b := &binding{reg: reg}
	if reg != literalLeaf && reg != selectorLeaf && reg != boundLeaf && !reg.Hints.Has(functions.NoSignatureValidation) {
		if err := matchSignature(n, reg, args, b); err != nil {
			return nil, err
		}
	}

	bound := n.WithBinding(b, args)
	if reg.check != nil {
		if err := reg.check(bound); err != nil {
			return nil, err
		}
	}

	if e.opts.Debug {
		e.logger.Debug("bound expression", "expression", n.String(), "evaluator", reg.Name)
	}
	return bound, nil
}

// bindArgs binds the arguments of n for reg.
func (e *Evaluator) bindArgs(reg *Registration, n *types.Node) ([]*types.Node, error) {
	args := make([]*types.Node, len(n.Args))
	for i, a := range n.Args {
		if reg.Hints.Has(functions.ImplicitLiterals) && isBareKeyword(a) {
			lit := types.NewLiteral(types.Text, a.Inner, a.Outer, a.Position)
			lit.Alias = a.Alias
			a = lit
		}
		var bound *types.Node
		var err error
		if reg.stagesFrom > 0 && i >= reg.stagesFrom && a.Types.Has(types.Function) {
			bound, err = e.bindStage(a)
		} else {
			bound, err = e.Bind(a)
		}
		if err != nil {
			return nil, err
		}
		args[i] = bound
	}
	return args, nil
}

// bindStage binds a call that receives its input at evaluation time. Its
// name and arguments are resolved now, its signature once the input is in.
func (e *Evaluator) bindStage(n *types.Node) (*types.Node, error) {
	reg, err := e.resolve(n)
	if err != nil {
		return nil, err
	}
	args, err := e.bindArgs(reg, n)
	if err != nil {
		return nil, err
	}
	return n.WithBinding(&binding{reg: reg}, args), nil
}

// resolve finds the registration for n by kind or by name.
func (e *Evaluator) resolve(n *types.Node) (*Registration, error) {
	switch {
	case n.Types.Has(types.Bound):
		return boundLeaf, nil
	case !n.Types.Any(types.Function | types.Group | types.QueryString):
		if n.Types.Has(types.Selector) {
			return selectorLeaf, nil
		}
		return literalLeaf, nil
	}

	if r, ok := e.lookup(n.Name); ok {
		return r, nil
	}
	name := displayName(n)
	return nil, types.NodeError(n, types.ErrUnknownEvaluator, "Unknown evaluator %s in %s", name, n.Outer).WithToken(name)
}

// matchSignature picks the first signature matching args and stores it in b.
func matchSignature(n *types.Node, reg *Registration, args []*types.Node, b *binding) error {
	if len(reg.Signatures) == 0 {
		if len(args) == 0 {
			return nil
		}
		return types.NodeError(n, types.ErrNoMatchingSignature,
			"%s takes no arguments, got %d in %s", reg.Name, len(args), n.Outer)
	}
	for i, s := range reg.Signatures {
		params, ok := s.Match(args)
		if !ok {
			continue
		}
		for _, other := range reg.Signatures[i+1:] {
			if _, ok := other.Match(args); ok && sameShape(s, other) {
				return types.NodeError(n, types.ErrAmbiguousSignature,
					"%s matches both %s and %s of %s", n.Outer, s.Text, other.Text, reg.Name)
			}
		}
		b.sig = s
		b.params = params
		return nil
	}

	sigs := make([]string, len(reg.Signatures))
	for i, s := range reg.Signatures {
		sigs[i] = s.Text
	}
	return types.NodeError(n, types.ErrNoMatchingSignature,
		"No signature of %s matches %s (expected %s)", reg.Name, n.Outer, strings.Join(sigs, " or "))
}

// displayName returns the evaluator name as written in the source.
func displayName(n *types.Node) string {
	if i := strings.IndexByte(n.Outer, '{'); i > 0 {
		if name := strings.TrimSpace(n.Outer[:i]); strings.EqualFold(name, n.Name) {
			return name
		}
	}
	return n.Name
}

func isBareKeyword(n *types.Node) bool {
	return n.Types.Has(types.Keyword) && len(n.Args) == 0
}

// checkSelectors rejects projections whose arguments produce the same
// output field twice.
func checkSelectors(n *types.Node) error {
	seen := make(map[string]bool, len(n.Args))
	for _, a := range n.Args[1:] {
		name := fieldName(a)
		if seen[name] {
			return types.NodeError(a, types.ErrAmbiguousSelector,
				"Field %s is selected more than once in %s", name, n.Outer)
		}
		seen[name] = true
	}
	return nil
}

func messageOf(err error) string {
	if xe, ok := err.(*types.Error); ok {
		return xe.Message
	}
	return fmt.Sprint(err)
}

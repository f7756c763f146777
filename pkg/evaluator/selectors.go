package evaluator

import (
	"context"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// SelectValue resolves a selector path such as "label" or "fields.size.x"
// against r. Registered selectors take precedence over record properties.
func (e *Evaluator) SelectValue(r *types.Record, path string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	if fn, ok := e.selectors[path]; ok {
		return fn(r)
	}

	head, rest, _ := strings.Cut(path, ".")
	var v interface{}
	var ok bool
	if fn, found := e.selectors[head]; found {
		v, ok = fn(r)
	} else if head == "fields" && rest != "" {
		head, rest, _ = strings.Cut(rest, ".")
		v, ok = r.Field(head)
	} else {
		v, ok = r.Select(head)
	}
	if !ok {
		return nil, false
	}

	for rest != "" {
		head, rest, _ = strings.Cut(rest, ".")
		switch m := v.(type) {
		case map[string]interface{}:
			v, ok = m[head]
		case *types.Fields:
			v, ok = m.Get(head)
		case *types.Record:
			v, ok = m.Select(head)
		default:
			return nil, false
		}
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// evalSelectorLeaf yields the selected value of the current item.
func evalSelectorLeaf(_ context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		cur := c.Current()
		if cur == nil {
			yield(types.Pending, c.Error(c.node, types.ErrNoCurrentItem, "Selector %s needs a current item", c.node.Outer))
			return
		}
		v, ok := c.evaluator.SelectValue(cur, c.node.Inner)
		if !ok {
			return
		}
		rec := types.NewRecord(cur.ID, v)
		rec.Label = fieldName(c.node)
		rec.Ref = cur
		yield(types.Value(rec), nil)
	}
}

// valueOf evaluates n against item and returns the first value it yields.
// Plain selectors are resolved directly.
func (c *EvalContext) valueOf(ctx context.Context, n *types.Node, item *types.Record) (interface{}, bool, error) {
	if n.Types == types.Selector {
		v, ok := c.evaluator.SelectValue(item, n.Inner)
		return v, ok, nil
	}
	for el, err := range c.EvalWith(ctx, n, item) {
		if err != nil {
			return nil, false, err
		}
		if !el.IsPending() {
			return el.Record().Value, true, nil
		}
	}
	return nil, false, nil
}

// fieldName is the output name of a projection argument: its alias, the
// selector path, the literal text, or the source text.
func fieldName(n *types.Node) string {
	switch {
	case n.Alias != "":
		return n.Alias
	case n.Types.Has(types.Selector):
		return n.Inner
	case n.Types.Has(types.Text):
		return n.Text()
	case n.Types.Has(types.Keyword):
		return n.Inner
	}
	return n.Outer
}

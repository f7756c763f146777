package evaluator

import (
	"context"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/types"
)

var variableRe = mustCompileRegex(`(^|[^\w$@])([$@])([A-Za-z_][\w.]*)`)

// queryParts extracts the query text and the spread arguments of a query
// node, either a bare query string or an explicit query{...} call.
func queryParts(c *EvalContext) (string, []*types.Node, error) {
	n := c.node
	if !n.Types.Has(types.Function) {
		return n.Inner, n.Args, nil
	}
	first := c.Arg(0)
	switch {
	case first == nil:
		return "", nil, c.Error(n, types.ErrArgumentCount, "query expects query text")
	case first.Types.Has(types.Text):
		return first.Text(), n.Args[1:], nil
	case first.Types.Has(types.QueryString):
		spread := append(append([]*types.Node{}, first.Args...), n.Args[1:]...)
		return first.Inner, spread, nil
	}
	return "", nil, c.Error(first, types.ErrInvalidArgument, "query expects query text, got %s", first.Outer)
}

// substitute resolves $name tokens against the bindings and @name tokens
// against the current item, leaving the spans of spread arguments intact.
func (c *EvalContext) substitute(text string, spread []*types.Node) (string, error) {
	var b strings.Builder
	cursor := 0
	for _, a := range spread {
		i := strings.Index(text[cursor:], a.Outer)
		if i < 0 {
			continue
		}
		seg, err := c.substituteSegment(text[cursor : cursor+i])
		if err != nil {
			return "", err
		}
		b.WriteString(seg)
		b.WriteString(a.Outer)
		cursor += i + len(a.Outer)
	}
	seg, err := c.substituteSegment(text[cursor:])
	if err != nil {
		return "", err
	}
	b.WriteString(seg)
	return b.String(), nil
}

func (c *EvalContext) substituteSegment(seg string) (string, error) {
	var firstErr error
	out := variableRe.ReplaceAllStringFunc(seg, func(m string) string {
		sub := variableRe.FindStringSubmatch(m)
		prefix, sigil, name := sub[1], sub[2], sub[3]
		var v interface{}
		var ok bool
		if sigil == "$" {
			v, ok = c.Binding(name)
		} else if cur := c.Current(); cur != nil {
			v, ok = c.evaluator.SelectValue(cur, name)
		}
		if !ok {
			if firstErr == nil {
				firstErr = types.NodeError(c.node, types.ErrUnresolvedVariable,
					"Unresolved variable %s%s in %s", sigil, name, c.node.Outer).WithToken(sigil + name)
			}
			return m
		}
		return prefix + quoteValue(toString(v))
	})
	return out, firstErr
}

// quoteValue quotes values containing whitespace.
func quoteValue(s string) string {
	if strings.ContainsAny(s, " \t\r\n") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// spreadValues collects the distinct values yielded by a spread argument.
func (c *EvalContext) spreadValues(ctx context.Context, a *types.Node) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for r, err := range c.Eval(ctx, a).Records() {
		if err != nil {
			return nil, err
		}
		v := quoteValue(toString(r.Value))
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// variants expands the text once per value of every spread argument,
// producing their cross product.
func (c *EvalContext) variants(ctx context.Context, text string, spread []*types.Node) ([]string, error) {
	out := []string{text}
	for _, a := range spread {
		values, err := c.spreadValues(ctx, a)
		if err != nil {
			return nil, err
		}
		next := make([]string, 0, len(out)*len(values))
		for _, q := range out {
			for _, v := range values {
				if strings.Contains(q, a.Outer) {
					next = append(next, strings.Replace(q, a.Outer, v, 1))
				} else {
					next = append(next, strings.TrimSpace(q+" "+v))
				}
			}
		}
		out = next
	}
	return out, nil
}

// evalQuery runs query text through the record source. Spread arguments
// multiply the text into variants; in expand mode each variant is yielded as
// a deferred query node instead of being run.
func evalQuery(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		text, spread, err := queryParts(c)
		if err != nil {
			yield(types.Pending, err)
			return
		}
		if text, err = c.substitute(text, spread); err != nil {
			yield(types.Pending, err)
			return
		}
		queries, err := c.variants(ctx, text, spread)
		if err != nil {
			yield(types.Pending, err)
			return
		}

		if c.Expanding() {
			for _, q := range queries {
				n := types.NewNode(types.QueryString|types.Iterable, "query", q, q, c.node.Position)
				n.Alias = c.node.Alias
				bound, err := c.bindNode(n)
				if err != nil {
					yield(types.Pending, err)
					return
				}
				if !yield(types.Value(expandedRecord(bound)), nil) {
					return
				}
			}
			return
		}

		src := c.evaluator.source
		if src == nil {
			yield(types.Pending, c.Error(c.node, types.ErrInvalidArgument, "No record source to run %s", c.node.Outer))
			return
		}
		for _, q := range queries {
			if c.evaluator.opts.Debug {
				c.evaluator.logger.Debug("provider query", "query", q)
			}
			if !forward(src.Query(ctx, nil, q, c.flags), yield) {
				return
			}
		}
	}
}

package evaluator

import (
	"context"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// projectValue computes the value of one projection argument for r.
// Selectors, field names and keywords are resolved on r; expressions are
// evaluated with r as current item and their first record wins.
func (c *EvalContext) projectValue(ctx context.Context, a *types.Node, r *types.Record) (interface{}, bool, error) {
	switch {
	case a.Types.Has(types.Selector):
		v, ok := c.evaluator.SelectValue(r, a.Inner)
		return v, ok, nil
	case a.Types.Has(types.Text):
		v, ok := c.evaluator.SelectValue(r, a.Text())
		return v, ok, nil
	case a.Types.Has(types.Keyword) && len(a.Args) == 0:
		v, ok := c.evaluator.SelectValue(r, a.Inner)
		return v, ok, nil
	}
	return c.valueOf(ctx, a, r)
}

// assign stores a projected value on out. Well-known names map onto record
// properties; other values become fields and fill the label, then the
// description, when those are still empty.
func assign(out *types.Record, name string, v interface{}) {
	switch name {
	case "id":
		return
	case "value":
		out.Value = v
		return
	case "label":
		out.Label = toString(v)
		return
	case "description", "desc":
		out.Description = toString(v)
		return
	}
	out.SetField(name, v)
	switch {
	case out.Label == "":
		out.Label = toString(v)
	case out.Description == "":
		out.Description = toString(v)
	}
}

// projection returns an evaluator applying the selector arguments to each
// record of the first operand. With replace, each record is rebuilt with
// only the selected fields and a back-reference to the original.
func projection(replace bool) EvaluatorFunc {
	return func(ctx context.Context, c *EvalContext) types.Sequence {
		return func(yield func(types.Element, error) bool) {
			for el, err := range c.EvalArg(ctx, 0) {
				if err != nil {
					yield(types.Pending, err)
					return
				}
				if el.IsPending() {
					if !yield(el, nil) {
						return
					}
					continue
				}

				r := el.Record()
				var out *types.Record
				if replace {
					out = &types.Record{ID: r.ID, Score: r.Score, Provider: r.Provider, Ref: r}
				} else {
					out = r.Clone()
				}

				valueSet := false
				for _, a := range c.args[1:] {
					v, found, err := c.projectValue(ctx, a, r)
					if err != nil {
						yield(types.Pending, err)
						return
					}
					if !found {
						continue
					}
					name := fieldName(a)
					if replace && !valueSet && name != "id" {
						out.Value = v
						valueSet = true
					}
					assign(out, name, v)
				}
				if !yield(types.Value(out), nil) {
					return
				}
			}
		}
	}
}

func evalSelect(ctx context.Context, c *EvalContext) types.Sequence {
	return projection(true)(ctx, c)
}

// evalAppend adds fields to clones; upstream records are left untouched.
func evalAppend(ctx context.Context, c *EvalContext) types.Sequence {
	return projection(false)(ctx, c)
}

// evalAlias renames its operand. In expand mode the operand node itself is
// aliased without being evaluated; otherwise every record is relabeled from
// a {@selector} template, a selector or an expression.
func evalAlias(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		src, spec := c.Arg(0), c.Arg(1)

		if c.Expanding() && spec.Types.Has(types.Text) {
			yield(types.Value(expandedRecord(src.WithAlias(spec.Text()))), nil)
			return
		}

		for el, err := range c.Eval(ctx, src) {
			if err != nil {
				yield(types.Pending, err)
				return
			}
			if !el.IsPending() {
				r := el.Record()
				var label string
				if spec.Types.Has(types.Text) {
					label = c.evaluator.formatTemplate(spec.Text(), r)
				} else {
					v, _, err := c.valueOf(ctx, spec, r)
					if err != nil {
						yield(types.Pending, err)
						return
					}
					label = toString(v)
				}
				out := r.Clone()
				out.Label = label
				el = types.Value(out)
			}
			if !yield(el, nil) {
				return
			}
		}
	}
}

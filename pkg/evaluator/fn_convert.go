package evaluator

import (
	"context"

	"github.com/sandrolain/searchexpr/pkg/types"
)

var placeholderRe = mustCompileRegex(`\{@([A-Za-z_][\w.]*)\}`)

// formatTemplate replaces {@selector} placeholders with values of r.
// Unresolved placeholders become empty.
func (e *Evaluator) formatTemplate(tmpl string, r *types.Record) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		v, _ := e.SelectValue(r, m[2:len(m)-1])
		return toString(v)
	})
}

// convertEach returns an evaluator mapping the (optionally selected) value
// of every record through conv. Records conv rejects are dropped.
func convertEach(conv func(interface{}) (interface{}, bool)) EvaluatorFunc {
	return func(ctx context.Context, c *EvalContext) types.Sequence {
		return func(yield func(types.Element, error) bool) {
			var sel *types.Node
			from := 0
			if c.Param(0).Kinds() == types.Selector {
				sel, from = c.Arg(0), 1
			}
			for _, a := range c.args[from:] {
				for el, err := range c.Eval(ctx, a) {
					if err != nil {
						yield(types.Pending, err)
						return
					}
					if !el.IsPending() {
						r := el.Record()
						v := r.Value
						found := true
						if sel != nil {
							if v, found, err = c.valueOf(ctx, sel, r); err != nil {
								yield(types.Pending, err)
								return
							}
						}
						el = types.Pending
						if found {
							if cv, ok := conv(v); ok {
								out := r.Clone()
								out.Value = cv
								el = types.Value(out)
							}
						}
					}
					if !yield(el, nil) {
						return
					}
				}
			}
		}
	}
}

func evalToNumber(ctx context.Context, c *EvalContext) types.Sequence {
	return convertEach(func(v interface{}) (interface{}, bool) {
		return toNumber(v)
	})(ctx, c)
}

func evalToBoolean(ctx context.Context, c *EvalContext) types.Sequence {
	return convertEach(func(v interface{}) (interface{}, bool) {
		return toBoolean(v)
	})(ctx, c)
}

// evalFormat turns each record into a text record, formatted with a
// {@selector} template or taken from a selector.
func evalFormat(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		spec := c.Arg(0)
		for _, a := range c.args[1:] {
			for el, err := range c.Eval(ctx, a) {
				if err != nil {
					yield(types.Pending, err)
					return
				}
				if !el.IsPending() {
					r := el.Record()
					var text string
					if spec.Types.Has(types.Text) {
						text = c.evaluator.formatTemplate(spec.Text(), r)
					} else {
						v, _, err := c.valueOf(ctx, spec, r)
						if err != nil {
							yield(types.Pending, err)
							return
						}
						text = toString(v)
					}
					out := r.Clone()
					out.Value = text
					out.Label = text
					el = types.Value(out)
				}
				if !yield(el, nil) {
					return
				}
			}
		}
	}
}

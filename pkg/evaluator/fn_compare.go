package evaluator

import (
	"context"
	"strconv"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// compareFilter returns an evaluator keeping the records whose selected
// value satisfies keep when compared with the literal argument. Dropped
// records surface as pending elements.
func compareFilter(keep func(int) bool) EvaluatorFunc {
	return func(ctx context.Context, c *EvalContext) types.Sequence {
		return func(yield func(types.Element, error) bool) {
			sel, lit := c.Arg(1), c.Arg(2).Value
			for el, err := range c.EvalArg(ctx, 0) {
				if err != nil {
					yield(types.Pending, err)
					return
				}
				if !el.IsPending() {
					v, found, err := c.valueOf(ctx, sel, el.Record())
					if err != nil {
						yield(types.Pending, err)
						return
					}
					if !found || !keep(compareValues(v, lit)) {
						el = types.Pending
					}
				}
				if !yield(el, nil) {
					return
				}
			}
		}
	}
}

// condition is one clause of a textual where condition.
type condition struct {
	path  string
	op    string
	value interface{}
	// join combines this clause with the result so far: "and" or "or".
	join string
}

var conditionRe = mustCompileRegex(`^\s*@([A-Za-z_][\w.]*)\s*(>=|<=|!=|==|=|<|>|:)\s*("[^"]*"|'[^']*'|[^\s]+)\s*`)
var joinRe = mustCompileRegex(`(?i)^(and|or)\s+`)

// parseCondition parses "@sel op value [and|or @sel op value ...]".
func parseCondition(text string) ([]condition, bool) {
	var out []condition
	join := "and"
	rest := text
	for {
		m := conditionRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, false
		}
		out = append(out, condition{path: m[1], op: m[2], value: parseLiteral(m[3]), join: join})
		rest = rest[len(m[0]):]
		if rest == "" {
			return out, true
		}
		j := joinRe.FindStringSubmatch(rest)
		if j == nil {
			return nil, false
		}
		join = strings.ToLower(j[1])
		rest = rest[len(j[0]):]
	}
}

// parseLiteral reads a condition operand as number, boolean or text.
func parseLiteral(s string) interface{} {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// match evaluates the conditions left to right against r.
func (e *Evaluator) match(conds []condition, r *types.Record) bool {
	result := true
	for i, cd := range conds {
		v, found := e.SelectValue(r, cd.path)
		ok := found && applyOp(cd.op, v, cd.value)
		switch {
		case i == 0:
			result = ok
		case cd.join == "or":
			result = result || ok
		default:
			result = result && ok
		}
	}
	return result
}

func applyOp(op string, v, want interface{}) bool {
	if op == ":" {
		return strings.Contains(strings.ToLower(toString(v)), strings.ToLower(toString(want)))
	}
	c := compareValues(v, want)
	switch op {
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case "!=":
		return c != 0
	}
	return c == 0
}

// evalWhere keeps the records matching a textual condition or a predicate
// expression evaluated with each record as current item.
func evalWhere(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		cond := c.Arg(1)
		var conds []condition
		if cond.Types.Has(types.Text) {
			var ok bool
			if conds, ok = parseCondition(cond.Text()); !ok {
				yield(types.Pending, c.Error(cond, types.ErrInvalidArgument, "Invalid where condition %s", cond.Outer))
				return
			}
		}

		for el, err := range c.EvalArg(ctx, 0) {
			if err != nil {
				yield(types.Pending, err)
				return
			}
			if !el.IsPending() {
				var keep bool
				if conds != nil {
					keep = c.evaluator.match(conds, el.Record())
				} else if keep, err = truthOf(c.EvalWith(ctx, cond, el.Record())); err != nil {
					yield(types.Pending, err)
					return
				}
				if !keep {
					el = types.Pending
				}
			}
			if !yield(el, nil) {
				return
			}
		}
	}
}

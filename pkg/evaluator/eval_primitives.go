package evaluator

import (
	"context"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// forward passes every element of seq to yield. It returns false when the
// consumer stopped or seq failed.
func forward(seq types.Sequence, yield func(types.Element, error) bool) bool {
	for el, err := range seq {
		if !yield(el, err) || err != nil {
			return false
		}
	}
	return true
}

// literalRecord builds the record of a literal value.
func literalRecord(v interface{}, alias string) *types.Record {
	r := types.NewRecord(toString(v), v)
	r.Label = alias
	return r
}

// numberArg returns the payload of a number literal.
func numberArg(n *types.Node) (float64, bool) {
	if n == nil || !n.Types.Has(types.Number) {
		return 0, false
	}
	f, ok := n.Value.(float64)
	return f, ok
}

func evalLiteral(_ context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		yield(types.Value(literalRecord(c.node.Value, c.node.Alias)), nil)
	}
}

// evalBoundLeaf replays a pre-computed sub-result.
func evalBoundLeaf(_ context.Context, c *EvalContext) types.Sequence {
	switch v := c.node.Value.(type) {
	case types.Sequence:
		return v
	case []*types.Record:
		return types.FromRecords(v)
	case nil:
		return types.Empty()
	}
	return types.Fail(c.Error(c.node, types.ErrInvalidArgument, "Bound value of %s is %T", c.node.Outer, c.node.Value))
}

func evalConstant(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		for el, err := range c.EvalArg(ctx, 0) {
			if err == nil && !el.IsPending() && c.node.Alias != "" {
				r := el.Record().Clone()
				r.Label = c.node.Alias
				el = types.Value(r)
			}
			if !yield(el, err) || err != nil {
				return
			}
		}
	}
}

// evalSet concatenates its arguments in order.
func evalSet(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		for _, a := range c.args {
			if !forward(c.Eval(ctx, a), yield) {
				return
			}
		}
	}
}

func evalText(_ context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		r := types.NewRecord(c.node.Outer, c.node.Inner)
		r.Label = c.node.Alias
		yield(types.Value(r), nil)
	}
}

// countedOperands splits the optional leading count from the operands.
func countedOperands(c *EvalContext) (int, int) {
	if n, ok := numberArg(c.Arg(0)); ok && c.Param(0).Kinds() == types.Number {
		return int(n), 1
	}
	return 1, 0
}

func evalFirst(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		n, from := countedOperands(c)
		if n < 0 {
			yield(types.Pending, c.Error(c.Arg(0), types.ErrInvalidArgument, "first expects a positive count, got %d", n))
			return
		}
		if n == 0 {
			return
		}
		for _, a := range c.args[from:] {
			taken := 0
			for el, err := range c.Eval(ctx, a) {
				if !yield(el, err) || err != nil {
					return
				}
				if !el.IsPending() {
					taken++
					if taken >= n {
						break
					}
				}
			}
		}
	}
}

func evalLast(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		n, from := countedOperands(c)
		if n < 0 {
			yield(types.Pending, c.Error(c.Arg(0), types.ErrInvalidArgument, "last expects a positive count, got %d", n))
			return
		}
		if n == 0 {
			return
		}
		for _, a := range c.args[from:] {
			ring := make([]*types.Record, 0, n)
			next := 0
			for el, err := range c.Eval(ctx, a) {
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
				if len(ring) < n {
					ring = append(ring, el.Record())
				} else {
					ring[next] = el.Record()
					next = (next + 1) % n
				}
			}
			for i := range ring {
				if !yield(types.Value(ring[(next+i)%len(ring)]), nil) {
					return
				}
			}
		}
	}
}

// evalRange yields start, start+step, ... up to end inclusive.
func evalRange(_ context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		start, _ := numberArg(c.Arg(0))
		end, _ := numberArg(c.Arg(1))
		step := 1.0
		if s, ok := numberArg(c.Arg(2)); ok {
			step = s
		}
		if step <= 0 {
			yield(types.Pending, c.Error(c.Arg(2), types.ErrInvalidRange, "range step must be positive, got %s", formatNumber(step)))
			return
		}
		if start > end {
			yield(types.Pending, c.Error(c.node, types.ErrInvalidRange,
				"range start %s is after end %s", formatNumber(start), formatNumber(end)))
			return
		}
		for i := 0; ; i++ {
			v := start + float64(i)*step
			if v > end {
				return
			}
			if !yield(types.Value(literalRecord(v, "")), nil) {
				return
			}
		}
	}
}

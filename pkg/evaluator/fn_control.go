package evaluator

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// truthOf folds the truthiness of seq with a logical OR, stopping at the
// first true record.
func truthOf(seq types.Sequence) (bool, error) {
	for el, err := range seq {
		if err != nil {
			return false, err
		}
		if !el.IsPending() && isTruthy(el.Record().Value) {
			return true, nil
		}
	}
	return false, nil
}

func boolRecord(c *EvalContext, v bool) *types.Record {
	r := types.NewRecord(c.node.String(), v)
	r.Label = c.node.Alias
	return r
}

// evalIf yields its second operand when the first is true, else the third.
func evalIf(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		cond, err := truthOf(c.EvalArg(ctx, 0))
		if err != nil {
			yield(types.Pending, err)
			return
		}
		branch := c.Arg(2)
		if cond {
			branch = c.Arg(1)
		}
		if branch == nil {
			return
		}
		forward(c.Eval(ctx, branch), yield)
	}
}

// evalEmpty yields true when none of its operands yields a record.
func evalEmpty(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		for _, a := range c.args {
			for el, err := range c.Eval(ctx, a) {
				if err != nil {
					yield(types.Pending, err)
					return
				}
				if !el.IsPending() {
					yield(types.Value(boolRecord(c, false)), nil)
					return
				}
			}
		}
		yield(types.Value(boolRecord(c, true)), nil)
	}
}

// evalIsTrue yields true when any record of any operand is truthy.
func evalIsTrue(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		for _, a := range c.args {
			ok, err := truthOf(c.Eval(ctx, a))
			if err != nil {
				yield(types.Pending, err)
				return
			}
			if ok {
				yield(types.Value(boolRecord(c, true)), nil)
				return
			}
		}
		yield(types.Value(boolRecord(c, false)), nil)
	}
}

// evalApply chains its function arguments: each stage receives the output of
// the previous one through a synthetic bound leaf, so that
// apply{src, f{a}, g{b}} runs as g{f{src, a}, b}. The leaf goes first when
// the stage accepts it there, last otherwise.
func evalApply(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		prev := types.NewBoundNode("stream-"+uuid.NewString(), c.EvalArg(ctx, 0))
		prev = prev.WithBinding(&binding{reg: boundLeaf}, nil)

		for _, stage := range c.args[1:] {
			next, err := c.chain(stage, prev)
			if err != nil {
				yield(types.Pending, err)
				return
			}
			prev = next
		}
		forward(c.Eval(ctx, prev), yield)
	}
}

// chain binds stage with input inserted as its first argument, falling back
// to the last position when no signature accepts it first.
func (c *EvalContext) chain(stage, input *types.Node) (*types.Node, error) {
	first := append([]*types.Node{input}, stage.Args...)
	bound, err := c.bindNode(stage.WithArgs(first...).WithAlias(stage.Alias))
	if err == nil {
		return bound, nil
	}
	var xe *types.Error
	if !errors.As(err, &xe) || xe.Code != types.ErrNoMatchingSignature || len(stage.Args) == 0 {
		return nil, err
	}
	last := append(append([]*types.Node{}, stage.Args...), input)
	return c.bindNode(stage.WithArgs(last...).WithAlias(stage.Alias))
}

// evalMap evaluates its second argument once per record of the first, with
// the record as current item.
func evalMap(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		expr := c.Arg(1)
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
			if !forward(c.EvalWith(ctx, expr, el.Record()), yield) {
				return
			}
		}
	}
}

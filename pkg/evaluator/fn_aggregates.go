package evaluator

import (
	"context"
	"math"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// aggregateRecord is the single result of folding one operand.
func aggregateRecord(c *EvalContext, op *types.Node, value float64) *types.Record {
	r := types.NewRecord(c.node.Name+":"+op.String(), value)
	r.Label = op.Alias
	if r.Label == "" {
		r.Label = c.evaluatorName()
	}
	r.Description = op.String()
	return r
}

// evaluatorName is the name of the running evaluator as registered.
func (c *EvalContext) evaluatorName() string {
	if b, ok := c.node.Evaluator.(*binding); ok {
		return b.reg.Name
	}
	return c.node.Name
}

// evalCount yields the number of records of each operand.
func evalCount(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		operands, err := c.OperandsFrom(ctx, 0)
		if err != nil {
			yield(types.Pending, err)
			return
		}
		for _, op := range operands {
			n := 0
			ok := drainInto(c.Eval(ctx, op), yield, func(*types.Record) error {
				n++
				return nil
			})
			if !ok {
				return
			}
			if !yield(types.Value(aggregateRecord(c, op, float64(n))), nil) {
				return
			}
		}
	}
}

// fold accumulates the numeric values of one operand.
type fold struct {
	n        int
	sum      float64
	min, max float64
}

func (f *fold) add(v float64) {
	if f.n == 0 {
		f.min, f.max = v, v
	}
	f.n++
	f.sum += v
	f.min = math.Min(f.min, v)
	f.max = math.Max(f.max, v)
}

// numericFold returns an evaluator folding each operand with result. When
// result reports false no record is emitted for the operand.
func numericFold(result func(f *fold) (float64, bool)) EvaluatorFunc {
	return func(ctx context.Context, c *EvalContext) types.Sequence {
		return func(yield func(types.Element, error) bool) {
			var sel *types.Node
			from := 0
			if c.Param(0).Kinds() == types.Selector {
				sel, from = c.Arg(0), 1
			}

			operands, err := c.OperandsFrom(ctx, from)
			if err != nil {
				yield(types.Pending, err)
				return
			}
			for _, op := range operands {
				var f fold
				ok := drainInto(c.Eval(ctx, op), yield, func(r *types.Record) error {
					v := r.Value
					if sel != nil {
						sv, found, err := c.valueOf(ctx, sel, r)
						if err != nil {
							return err
						}
						if !found {
							return nil
						}
						v = sv
					}
					if n, ok := toNumber(v); ok {
						f.add(n)
					}
					return nil
				})
				if !ok {
					return
				}
				v, emit := result(&f)
				if !emit {
					continue
				}
				if !yield(types.Value(aggregateRecord(c, op, v)), nil) {
					return
				}
			}
		}
	}
}

func evalSum(ctx context.Context, c *EvalContext) types.Sequence {
	return numericFold(func(f *fold) (float64, bool) { return f.sum, true })(ctx, c)
}

func evalMin(ctx context.Context, c *EvalContext) types.Sequence {
	return numericFold(func(f *fold) (float64, bool) { return f.min, f.n > 0 })(ctx, c)
}

func evalMax(ctx context.Context, c *EvalContext) types.Sequence {
	return numericFold(func(f *fold) (float64, bool) { return f.max, f.n > 0 })(ctx, c)
}

func evalAvg(ctx context.Context, c *EvalContext) types.Sequence {
	return numericFold(func(f *fold) (float64, bool) {
		if f.n == 0 {
			return 0, false
		}
		return f.sum / float64(f.n), true
	})(ctx, c)
}

// aggregateOptions are the trailing arguments of aggregate. The round
// number is stored in field, "iteration" unless a text argument names it.
type aggregateOptions struct {
	field  string
	keep   bool
	sorted bool
}

func parseAggregateOptions(c *EvalContext) (aggregateOptions, error) {
	opts := aggregateOptions{field: "iteration"}
	for _, a := range c.args[3:] {
		if a.Types.Has(types.Text) {
			opts.field = a.Text()
			continue
		}
		switch strings.ToLower(a.Inner) {
		case "keep":
			opts.keep = true
		case "sorted":
			opts.sorted = true
		default:
			return opts, c.Error(a, types.ErrInvalidArgument, "Unknown aggregate option %s, expected keep or sorted", a.Outer)
		}
	}
	return opts, nil
}

// evalAggregate expands a seed set by re-applying a template to each record
// of the previous round, for a bounded number of rounds. Records are
// deduplicated by identity across all rounds.
func evalAggregate(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		opts, err := parseAggregateOptions(c)
		if err != nil {
			yield(types.Pending, err)
			return
		}
		iterations, _ := numberArg(c.Arg(2))
		if iterations < 0 {
			yield(types.Pending, c.Error(c.Arg(2), types.ErrInvalidArgument, "aggregate needs a non-negative iteration count"))
			return
		}

		visited := mapset.NewThreadUnsafeSet[string]()
		score := 0
		emit := func(r *types.Record, round int) bool {
			r = r.Clone()
			r.SetField(opts.field, float64(round))
			if opts.sorted {
				r.Score = score
				score++
			}
			return yield(types.Value(r), nil)
		}

		var frontier []*types.Record
		for el, err := range c.EvalArg(ctx, 0) {
			if err != nil {
				yield(types.Pending, err)
				return
			}
			if el.IsPending() || !visited.Add(recordKey(el.Record())) {
				continue
			}
			frontier = append(frontier, el.Record())
			if opts.keep && !emit(el.Record(), 0) {
				return
			}
		}

		template := c.Arg(1)
		for round := 1; round <= int(iterations) && len(frontier) > 0; round++ {
			var next []*types.Record
			for _, item := range frontier {
				for el, err := range c.EvalWith(ctx, template, item) {
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
					if !visited.Add(recordKey(r)) {
						continue
					}
					next = append(next, r)
					if !emit(r, round) {
						return
					}
				}
			}
			frontier = next
		}
	}
}

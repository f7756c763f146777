package evaluator

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// evalUnion yields the records of all operands, dropping any record whose
// value hash was already seen. Records with equal values but different ids
// collapse into the first one.
func evalUnion(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		seen := mapset.NewThreadUnsafeSet[uint64]()
		for _, a := range c.args {
			for el, err := range c.Eval(ctx, a) {
				if err != nil {
					yield(types.Pending, err)
					return
				}
				if !el.IsPending() && !seen.Add(valueHash(el.Record().Value)) {
					continue
				}
				if !yield(el, nil) {
					return
				}
			}
		}
	}
}

// orderedSet is a membership set that remembers first-insertion order.
type orderedSet struct {
	keys    mapset.Set[string]
	order   []string
	records map[string]*types.Record
}

func newOrderedSet() *orderedSet {
	return &orderedSet{
		keys:    mapset.NewThreadUnsafeSet[string](),
		records: make(map[string]*types.Record),
	}
}

func (s *orderedSet) add(key string, r *types.Record) {
	if s.keys.Add(key) {
		s.order = append(s.order, key)
		s.records[key] = r
	}
}

// emit yields the members still in keep, in insertion order.
func (s *orderedSet) emit(keep mapset.Set[string], yield func(types.Element, error) bool) {
	for _, k := range s.order {
		if !keep.Contains(k) {
			continue
		}
		if !yield(types.Value(s.records[k]), nil) {
			return
		}
	}
}

// drainInto pulls seq completely, calling fn for each record and yielding a
// pending element for each pull. It returns false when the caller must stop.
func drainInto(seq types.Sequence, yield func(types.Element, error) bool, fn func(*types.Record) error) bool {
	for el, err := range seq {
		if err != nil {
			yield(types.Pending, err)
			return false
		}
		if !el.IsPending() {
			if err := fn(el.Record()); err != nil {
				yield(types.Pending, err)
				return false
			}
		}
		if !yield(types.Pending, nil) {
			return false
		}
	}
	return true
}

// evalExcept yields the distinct records of the first operand that no later
// operand contains.
func evalExcept(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		base := newOrderedSet()
		ok := drainInto(c.EvalArg(ctx, 0), yield, func(r *types.Record) error {
			base.add(recordKey(r), r)
			return nil
		})
		if !ok {
			return
		}

		remaining := base.keys.Clone()
		for _, a := range c.args[1:] {
			ok := drainInto(c.Eval(ctx, a), yield, func(r *types.Record) error {
				remaining.Remove(recordKey(r))
				return nil
			})
			if !ok {
				return
			}
		}
		base.emit(remaining, yield)
	}
}

// evalIntersect yields the distinct records of the first operand found in
// every other operand, compared by identity or by a trailing selector.
func evalIntersect(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		operands := c.args[1:]
		var sel *types.Node
		if last := c.args[len(c.args)-1]; c.Param(len(c.args)-1).Kinds() == types.Selector {
			sel = last
			operands = c.args[1 : len(c.args)-1]
		}

		keyOf := func(r *types.Record) (string, error) {
			if sel == nil {
				return recordKey(r), nil
			}
			v, _, err := c.valueOf(ctx, sel, r)
			return valueKey(v), err
		}

		base := newOrderedSet()
		ok := drainInto(c.EvalArg(ctx, 0), yield, func(r *types.Record) error {
			k, err := keyOf(r)
			if err == nil {
				base.add(k, r)
			}
			return err
		})
		if !ok {
			return
		}

		remaining := base.keys.Clone()
		for _, a := range operands {
			found := mapset.NewThreadUnsafeSet[string]()
			ok := drainInto(c.Eval(ctx, a), yield, func(r *types.Record) error {
				k, err := keyOf(r)
				if err == nil {
					found.Add(k)
				}
				return err
			})
			if !ok {
				return
			}
			remaining = remaining.Intersect(found)
		}
		base.emit(remaining, yield)
	}
}

// groupKey stringifies a grouping value. Values without a natural string
// form get a stable identifier derived from their hash.
func groupKey(v interface{}) string {
	switch v.(type) {
	case string, float64, bool:
		return toString(v)
	case nil:
		return "none"
	}
	if f, ok := toNumber(v); ok {
		return formatNumber(f)
	}
	return fmt.Sprintf("group_%016x", valueHash(v))
}

// evalGroupBy groups the records of its operand by a selector value. In
// expand mode it yields one deferred node per group; otherwise it yields the
// members group by group, re-tagged with the group provenance.
func evalGroupBy(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		sel := c.Arg(1)
		var keys []string
		groups := make(map[string][]*types.Record)

		ok := drainInto(c.EvalArg(ctx, 0), yield, func(r *types.Record) error {
			v := r.Value
			if sel != nil {
				var err error
				if v, _, err = c.valueOf(ctx, sel, r); err != nil {
					return err
				}
			}
			k := groupKey(v)
			if _, exists := groups[k]; !exists {
				keys = append(keys, k)
			}
			groups[k] = append(groups[k], r)
			return nil
		})
		if !ok {
			return
		}

		if c.Expanding() {
			for _, k := range keys {
				n := types.NewBoundNode("group:"+k, groups[k]).WithAlias(k)
				n = n.WithBinding(&binding{reg: boundLeaf}, nil)
				if !yield(types.Value(expandedRecord(n)), nil) {
					return
				}
			}
			return
		}

		score := 0
		for _, k := range keys {
			for _, r := range groups[k] {
				g := r.Clone()
				g.Provider = "group:" + k
				g.Score = score
				score++
				if !yield(types.Value(g), nil) {
					return
				}
			}
		}
	}
}

// evalRandom picks one record of each operand uniformly at random.
func evalRandom(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		operands, err := c.OperandsFrom(ctx, 0)
		if err != nil {
			yield(types.Pending, err)
			return
		}
		for _, op := range operands {
			var pool []*types.Record
			ok := drainInto(c.Eval(ctx, op), yield, func(r *types.Record) error {
				pool = append(pool, r)
				return nil
			})
			if !ok {
				return
			}
			if len(pool) == 0 {
				continue
			}
			pick := pool[c.evaluator.intN(len(pool))]
			if op.Alias != "" {
				pick = pick.Clone()
				pick.Label = op.Alias
			}
			if !yield(types.Value(pick), nil) {
				return
			}
		}
	}
}

package evaluator

import (
	"cmp"
	"context"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// sortKey orders records by their selected value, then by arrival so that
// equal values keep their input order.
type sortKey struct {
	value interface{}
	seq   int
}

// sortComparator returns a red-black tree comparator for sortKey.
func sortComparator(descending bool) func(a, b interface{}) int {
	return func(a, b interface{}) int {
		ka, kb := a.(sortKey), b.(sortKey)
		c := compareValues(ka.value, kb.value)
		if descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(ka.seq, kb.seq)
	}
}

// sortDirection reads the optional direction argument: true or desc sort
// descending, false or asc ascending.
func sortDirection(c *EvalContext, n *types.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	if b, ok := n.Value.(bool); ok && n.Types.Has(types.Boolean) {
		return b, nil
	}
	switch strings.ToLower(n.Inner) {
	case "desc", "descending":
		return true, nil
	case "asc", "ascending":
		return false, nil
	}
	return false, c.Error(n, types.ErrInvalidComparer, "Unknown sort direction %s, expected asc or desc", n.Outer)
}

// evalSort drains its operand into a red-black tree keyed by the selected
// value and re-emits the records in order with fresh ascending scores.
func evalSort(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		desc, err := sortDirection(c, c.Arg(2))
		if err != nil {
			yield(types.Pending, err)
			return
		}

		sel := c.Arg(1)
		tree := redblacktree.NewWith(sortComparator(desc))
		seq := 0
		ok := drainInto(c.EvalArg(ctx, 0), yield, func(r *types.Record) error {
			v, _, err := c.valueOf(ctx, sel, r)
			if err != nil {
				return err
			}
			tree.Put(sortKey{value: v, seq: seq}, r)
			seq++
			return nil
		})
		if !ok {
			return
		}

		score := 0
		it := tree.Iterator()
		for it.Next() {
			r := it.Value().(*types.Record).Clone()
			r.Score = score
			score++
			if !yield(types.Value(r), nil) {
				return
			}
		}
	}
}

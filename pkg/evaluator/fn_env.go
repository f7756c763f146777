package evaluator

import (
	"context"

	"github.com/sandrolain/searchexpr/pkg/mainthread"
	"github.com/sandrolain/searchexpr/pkg/types"
)

const (
	envSelection = mainthread.KeySelection
	envCurrent   = mainthread.KeyCurrent
	envProject   = mainthread.KeyProject
	envScene     = mainthread.KeyScene
	envDataPath  = mainthread.KeyDataPath
)

// readEnv reads key on the owning thread and yields one record per value.
// Missing keys yield nothing.
func readEnv(ctx context.Context, c *EvalContext, key string, yield func(types.Element, error) bool) {
	e := c.evaluator
	v, err := e.dispatcher.Invoke(ctx, func() (interface{}, error) {
		v, ok := e.env.Lookup(key)
		if !ok {
			return nil, nil
		}
		return v, nil
	})
	if err != nil {
		yield(types.Pending, c.Error(c.node, types.ErrInvalidArgument, "Reading %s failed: %v", key, err))
		return
	}

	emit := func(v interface{}) bool {
		r := types.NewRecord(key+":"+toString(v), v)
		r.Label = c.node.Alias
		r.Provider = "env"
		return yield(types.Value(r), nil)
	}
	switch vs := v.(type) {
	case nil:
	case []string:
		for _, s := range vs {
			if !emit(s) {
				return
			}
		}
	case []interface{}:
		for _, x := range vs {
			if !emit(x) {
				return
			}
		}
	default:
		emit(v)
	}
}

// evalEnv reads an arbitrary environment key: env{key}.
func evalEnv(ctx context.Context, c *EvalContext) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		a := c.Arg(0)
		if a == nil || len(c.args) > 1 {
			yield(types.Pending, c.Error(c.node, types.ErrArgumentCount, "env expects exactly one key, got %d arguments", len(c.args)))
			return
		}
		key := a.Inner
		if a.Types.Has(types.Text) {
			key = a.Text()
		}
		readEnv(ctx, c, key, yield)
	}
}

// envAccessor returns an evaluator reading a fixed environment key.
func envAccessor(key string) EvaluatorFunc {
	return func(ctx context.Context, c *EvalContext) types.Sequence {
		return func(yield func(types.Element, error) bool) {
			readEnv(ctx, c, key, yield)
		}
	}
}

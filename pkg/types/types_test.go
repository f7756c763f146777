package types_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandrolain/searchexpr/pkg/types"
)

func TestFieldsKeepOrder(t *testing.T) {
	f := types.NewFields()
	f.Set("zeta", 1.0)
	f.Set("alpha", "a")
	f.Set("zeta", 2.0)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	require.JSONEq(t, `{"zeta":2,"alpha":"a"}`, string(data))
	require.Equal(t, `{"zeta":2,"alpha":"a"}`, string(data))

	var back types.Fields
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":{"n":[1,2]},"c":"x"}`), &back))
	require.Equal(t, []string{"b", "a", "c"}, back.Keys)
	require.Equal(t, 1.0, back.Values["b"])
	require.Equal(t, map[string]interface{}{"n": []interface{}{1.0, 2.0}}, back.Values["a"])

	require.Error(t, json.Unmarshal([]byte(`[1]`), &back))
}

func TestFieldsClone(t *testing.T) {
	f := types.NewFields()
	f.Set("a", 1.0)
	c := f.Clone()
	c.Set("b", 2.0)
	require.Equal(t, 1, f.Len())
	require.Equal(t, 2, c.Len())

	var nilFields *types.Fields
	require.Nil(t, nilFields.Clone())
	require.Zero(t, nilFields.Len())
	_, ok := nilFields.Get("a")
	require.False(t, ok)
}

func TestRecordSelect(t *testing.T) {
	src := types.NewRecord("cube", 4.0)
	src.Label = "Cube"
	src.Score = 3
	src.SetField("type", "mesh")

	proj := &types.Record{ID: "cube", Value: "Cube", Ref: src}
	proj.SetField("name", "Cube")

	tests := []struct {
		name string
		want interface{}
	}{
		{"id", "cube"},
		{"value", "Cube"},
		{"name", "Cube"},
		{"label", "Cube"},
		{"type", "mesh"},
		{"score", 0.0},
	}
	for _, tt := range tests {
		v, ok := proj.Select(tt.name)
		require.True(t, ok, tt.name)
		require.Equal(t, tt.want, v, tt.name)
	}

	_, ok := proj.Select("missing")
	require.False(t, ok)
}

func TestRecordCloneAndString(t *testing.T) {
	r := types.NewRecord("a", 1.0)
	r.SetField("k", "v")
	c := r.Clone()
	c.SetField("k", "changed")
	v, _ := r.Field("k")
	require.Equal(t, "v", v)

	require.Equal(t, "1", r.String())
	r.Label = "A"
	require.Equal(t, "A(1)", r.String())
}

func TestRecordJSON(t *testing.T) {
	r := types.NewRecord("cube", 4.0)
	r.Label = "Cube"
	r.SetField("type", "mesh")
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"cube","value":4,"score":0,"label":"Cube","fields":{"type":"mesh"}}`, string(data))

	var back types.Record
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, "mesh", back.Fields.Values["type"])
}

func TestSequenceHelpers(t *testing.T) {
	ctx := context.Background()
	a, b := types.NewRecord("a", 1.0), types.NewRecord("b", 2.0)

	withPending := types.Sequence(func(yield func(types.Element, error) bool) {
		_ = yield(types.Value(a), nil) && yield(types.Pending, nil) && yield(types.Value(b), nil)
	})
	records, err := withPending.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, []*types.Record{a, b}, records)

	n, err := withPending.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var seen []*types.Record
	for r, err := range withPending.Records() {
		require.NoError(t, err)
		seen = append(seen, r)
		break
	}
	require.Len(t, seen, 1)

	boom := errors.New("boom")
	_, err = types.Fail(boom).Drain(ctx)
	require.ErrorIs(t, err, boom)

	n, err = types.Empty().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	records, err = types.FromRecords([]*types.Record{b, a}).Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, []*types.Record{b, a}, records)

	require.True(t, types.Value(nil).IsPending())
}

func TestNodeCopies(t *testing.T) {
	n := types.NewCall("Union", types.NewLiteral(types.Number, 1.0, "1", -1), types.NewLiteral(types.Number, 2.0, "2", -1))
	require.Equal(t, "union", n.Name)
	require.Equal(t, "Union{1, 2}", n.Outer)

	aliased := n.WithAlias("both")
	require.Empty(t, n.Alias)
	require.Equal(t, "Union{1, 2} as both", aliased.String())

	more := n.WithArgs(n.Args[0])
	require.Equal(t, "union{1}", more.Outer)
	require.Len(t, n.Args, 2)

	var visited int
	n.Walk(func(*types.Node) bool {
		visited++
		return true
	})
	require.Equal(t, 3, visited)
}

func TestErrors(t *testing.T) {
	n := types.NewNode(types.Function|types.Iterable, "nope", "nope{1}", "1", 4)
	err := types.NodeError(n, types.ErrUnknownEvaluator, "Unknown evaluator %s", "nope")
	require.Equal(t, 4, err.Position)
	require.Equal(t, len("nope{1}"), err.Length)
	require.Equal(t, "B0201 at position 4: Unknown evaluator nope", err.Error())
	require.True(t, err.Code.IsBindError())
	require.False(t, types.ErrInvalidRange.IsBindError())

	cause := errors.New("disk")
	wrapped := types.NewError(types.ErrInvalidArgument, "read failed", -1).WithCause(cause)
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "E0303: read failed", wrapped.Error())
}

func TestTypeFlags(t *testing.T) {
	f := types.Iterable | types.Variadic
	require.True(t, f.Has(types.Iterable))
	require.Equal(t, types.Iterable, f.Kinds())
	require.Equal(t, "Iterable|Variadic", f.String())
	require.Equal(t, "None", types.None.String())
	require.True(t, types.AnyExpression.Any(types.Selector))
}

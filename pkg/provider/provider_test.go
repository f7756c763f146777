package provider_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/provider"
	"github.com/sandrolain/searchexpr/pkg/types"
)

func assets() []*types.Record {
	cube := &types.Record{ID: "a1", Label: "Cube", Value: "Assets/Cube.prefab", Score: 3}
	cube.SetField("type", "prefab")
	cube.SetField("size", 10.0)
	tree := &types.Record{ID: "a2", Label: "Tree", Value: "Assets/Tree.prefab", Score: 1}
	tree.SetField("type", "prefab")
	tree.SetField("size", 40.0)
	mat := &types.Record{ID: "a3", Label: "Bark Material", Value: "Assets/Bark.mat", Score: 2}
	mat.SetField("type", "material")
	mat.SetField("size", 2.0)
	return []*types.Record{cube, tree, mat}
}

func ids(t *testing.T, seq types.Sequence) []string {
	t.Helper()
	records, err := seq.Drain(context.Background())
	require.NoError(t, err)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestMemoryFilters(t *testing.T) {
	m := provider.NewMemory("assets", assets()...)
	tests := []struct {
		query string
		want  []string
	}{
		{"*", []string{"a1", "a2", "a3"}},
		{"", []string{"a1", "a2", "a3"}},
		{"t:prefab", []string{"a1", "a2"}},
		{"type=material", []string{"a3"}},
		{"size>5", []string{"a1", "a2"}},
		{"size<=10", []string{"a1", "a3"}},
		{"t:prefab size<20", []string{"a1"}},
		{"cub", []string{"a1"}},
		{"brk", []string{"a3"}},
		{"-t:prefab", []string{"a3"}},
		{"missing:x", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ids(t, m.Query(context.Background(), tt.query, types.ExecNone))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryIsLazy(t *testing.T) {
	m := provider.NewMemory("assets", assets()...)
	seq := m.Query(context.Background(), "*", types.ExecNone)
	require.Equal(t, 0, m.Queries())

	for range seq {
		break
	}
	require.Equal(t, 1, m.Queries())
}

func TestMemoryYieldsCopies(t *testing.T) {
	m := provider.NewMemory("assets", assets()...)
	records, err := m.Query(context.Background(), "cube", types.ExecNone).Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	records[0].Label = "changed"

	again, err := m.Query(context.Background(), "cube", types.ExecNone).Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Cube", again[0].Label)
}

func TestSetRouting(t *testing.T) {
	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)
	scene := provider.NewMemory("scene", &types.Record{ID: "s1", Label: "Main Camera"})
	set := provider.NewSet([]provider.Provider{provider.NewMemory("assets", assets()...), scene}, provider.WithMetrics(mx))
	ctx := context.Background()

	require.Equal(t, []string{"assets", "scene"}, set.IDs())
	require.Equal(t, []string{"a1", "a2", "a3", "s1"}, ids(t, set.Query(ctx, nil, "*", types.ExecNone)))
	require.Equal(t, []string{"s1"}, ids(t, set.Query(ctx, nil, "scene:*", types.ExecNone)))
	require.Equal(t, []string{"s1"}, ids(t, set.Query(ctx, []string{"scene"}, "*", types.ExecNone)))
	// "t" is not a provider, so the prefix is a filter
	require.Equal(t, []string{"a1", "a2"}, ids(t, set.Query(ctx, nil, "t:prefab", types.ExecNone)))

	records, err := set.Query(ctx, nil, "scene:camera", types.ExecNone).Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, "scene", records[0].Provider)

	require.Equal(t, 5.0, testutil.ToFloat64(mx.ProviderQueries.WithLabelValues("scene", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(mx.ProviderQueries.WithLabelValues("assets", "ok")))
}

func TestSetStopsEarly(t *testing.T) {
	a := provider.NewMemory("a", assets()...)
	b := provider.NewMemory("b", assets()...)
	set := provider.NewSet([]provider.Provider{a, b})
	for range set.Query(context.Background(), nil, "*", types.ExecNone) {
		break
	}
	require.Equal(t, 1, a.Queries())
	require.Equal(t, 0, b.Queries())
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := provider.OpenSQLite("db", filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(ctx, assets()...))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.Equal(t, []string{"a1", "a2"}, ids(t, s.Query(ctx, "t:prefab", types.ExecNone)))

	records, err := s.Query(ctx, "tree", types.ExecNone).Drain(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	require.Equal(t, "Tree", r.Label)
	require.Equal(t, "Assets/Tree.prefab", r.Value)
	require.Equal(t, 1, r.Score)
	require.Equal(t, []string{"type", "size"}, r.Fields.Keys)
	v, ok := r.Field("size")
	require.True(t, ok)
	require.Equal(t, 40.0, v)

	updated := &types.Record{ID: "a2", Label: "Oak", Value: 7.0}
	require.NoError(t, s.Insert(ctx, updated))
	require.Equal(t, []string{"a2"}, ids(t, s.Query(ctx, "label=oak", types.ExecNone)))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestDatasetValidation(t *testing.T) {
	d, err := provider.NewDataset("")
	require.NoError(t, err)

	records, err := d.Read(strings.NewReader(`[
		{"id": "r1", "label": "One", "value": 1, "fields": {"z": 1, "a": "x"}},
		{"id": "r2", "value": "two", "score": 4}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 1.0, records[0].Value)
	require.Equal(t, []string{"z", "a"}, records[0].Fields.Keys)
	require.Equal(t, 4, records[1].Score)

	_, err = d.Read(strings.NewReader(`[{"label": "no id"}]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid against schema")

	_, err = d.Read(strings.NewReader(`{`))
	require.Error(t, err)

	_, err = provider.NewDataset(`{"type": `)
	require.Error(t, err)
}

func TestLoadDatasetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "x", "value": true}]`), 0o600))

	records, err := provider.LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, true, records[0].Value)

	_, err = provider.LoadDataset(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

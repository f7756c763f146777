package evaluator_test

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/mainthread"
	"github.com/sandrolain/searchexpr/pkg/types"
)

func TestQuerySpread(t *testing.T) {
	ev, mem := newTestEvaluator()
	got := ids(collect(t, ev, `t:mesh label={set{Cube, Plane}}`))
	if !reflect.DeepEqual(got, []string{"cube", "plane"}) {
		t.Fatalf("got %v", got)
	}
	if mem.Queries() != 2 {
		t.Fatalf("expected one provider query per variant, got %d", mem.Queries())
	}
}

func TestQueryVariables(t *testing.T) {
	ev, _ := newTestEvaluator(evaluator.WithBindings(map[string]interface{}{"kind": "mesh"}))
	node, err := ev.Compile(`t:$kind label=$name`)
	if err != nil {
		t.Fatal(err)
	}
	seq, err := ev.ExecuteWithBindings(context.Background(), node, map[string]interface{}{"name": "Plane"})
	if err != nil {
		t.Fatal(err)
	}
	records, err := seq.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(records); !reflect.DeepEqual(got, []string{"plane"}) {
		t.Fatalf("got %v", got)
	}
}

func TestQueryCurrentItemVariable(t *testing.T) {
	ev, _ := newTestEvaluator()
	got := ids(collect(t, ev, `map{set{"Cube", "Lamp"}, label=@value}`))
	if !reflect.DeepEqual(got, []string{"cube", "lamp"}) {
		t.Fatalf("got %v", got)
	}
}

func TestExplicitQueryCall(t *testing.T) {
	ev, _ := newTestEvaluator()
	got := ids(collect(t, ev, `query{"t:light"}`))
	if !reflect.DeepEqual(got, []string{"lamp"}) {
		t.Fatalf("got %v", got)
	}
}

func TestQueryAlias(t *testing.T) {
	ev, _ := newTestEvaluator()
	records := collect(t, ev, `count{t:mesh as meshes, t:light}`)
	if len(records) != 2 {
		t.Fatalf("expected 2 counts, got %d", len(records))
	}
	if records[0].Label != "meshes" || records[0].Value != 3.0 {
		t.Errorf("first count = %s", records[0])
	}
	if records[1].Label != "count" || records[1].Value != 1.0 {
		t.Errorf("second count = %s", records[1])
	}
}

func TestApplyChainsStages(t *testing.T) {
	ev, _ := newTestEvaluator()

	if got := values(collect(t, ev, `apply{t:mesh, first{1}, count{}}`)); !reflect.DeepEqual(got, []interface{}{1.0}) {
		t.Fatalf("got %v", got)
	}
	if got := ids(collect(t, ev, `apply{*, sort{@size, desc}, first{2}}`)); !reflect.DeepEqual(got, []string{"sphere", "cube"}) {
		t.Fatalf("got %v", got)
	}
	if _, err := ev.Compile(`apply{*, nope{1}}`); err == nil {
		t.Fatal("unknown stages must fail at compile time")
	}
}

func TestGroupBy(t *testing.T) {
	ev, _ := newTestEvaluator()

	counts := collect(t, ev, `count{groupBy{*, @type}}`)
	if len(counts) != 2 {
		t.Fatalf("expected one count per group, got %d", len(counts))
	}
	if counts[0].Label != "mesh" || counts[0].Value != 3.0 {
		t.Errorf("mesh group = %s", counts[0])
	}
	if counts[1].Label != "light" || counts[1].Value != 1.0 {
		t.Errorf("light group = %s", counts[1])
	}

	members := collect(t, ev, `groupBy{*, @type}`)
	var providers []string
	for _, r := range members {
		providers = append(providers, r.Provider)
	}
	want := []string{"group:mesh", "group:mesh", "group:mesh", "group:light"}
	if !reflect.DeepEqual(providers, want) {
		t.Fatalf("got %v, want %v", providers, want)
	}
}

func TestProjection(t *testing.T) {
	ev, _ := newTestEvaluator()

	selected := collect(t, ev, `select{t:mesh, @label as name}`)
	if len(selected) != 3 {
		t.Fatalf("expected 3 records, got %d", len(selected))
	}
	r := selected[0]
	if r.ID != "cube" || r.Value != "Cube" {
		t.Fatalf("unexpected projection %+v", r)
	}
	if v, ok := r.Field("name"); !ok || v != "Cube" {
		t.Fatalf("name field = %v", v)
	}
	if _, ok := r.Field("size"); ok {
		t.Fatal("select must drop fields that were not selected")
	}
	if v, ok := r.Select("size"); !ok || v != 4.0 {
		t.Fatalf("projected record should reach its source through Ref, got %v", v)
	}

	appended := collect(t, ev, `append{t:light, @size as bytes}`)
	if v, ok := appended[0].Field("bytes"); !ok || v != 1.0 {
		t.Fatalf("bytes field = %v", v)
	}
	if v, ok := appended[0].Field("type"); !ok || v != "light" {
		t.Fatal("append must keep existing fields")
	}

	aliased := collect(t, ev, `alias{t:mesh, "{@label}!"}`)
	if aliased[1].Label != "Sphere!" {
		t.Fatalf("label = %q", aliased[1].Label)
	}
}

func TestEnvironment(t *testing.T) {
	env := mainthread.MapEnvironment{
		mainthread.KeySelection: []string{"cube", "plane"},
		mainthread.KeyProject:   "demo",
	}
	ev, _ := newTestEvaluator(evaluator.WithEnvironment(env))

	if got := values(collect(t, ev, `selection{}`)); !reflect.DeepEqual(got, []interface{}{"cube", "plane"}) {
		t.Fatalf("selection = %v", got)
	}
	if got := values(collect(t, ev, `env{project}`)); !reflect.DeepEqual(got, []interface{}{"demo"}) {
		t.Fatalf("env = %v", got)
	}
	if got := collect(t, ev, `scene{}`); len(got) != 0 {
		t.Fatalf("missing keys yield nothing, got %v", values(got))
	}
}

func TestEnvironmentOnOwningGoroutine(t *testing.T) {
	loop := mainthread.NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	env := mainthread.MapEnvironment{mainthread.KeyDataPath: "/data"}
	ev, _ := newTestEvaluator(evaluator.WithEnvironment(env), evaluator.WithDispatcher(loop))
	if got := values(collect(t, ev, `datapath{}`)); !reflect.DeepEqual(got, []interface{}{"/data"}) {
		t.Fatalf("datapath = %v", got)
	}

	loop.Close()
	if err := <-done; err != nil {
		t.Fatalf("loop.Run: %v", err)
	}
	if xe := evalError(t, ev, `datapath{}`); xe.Code != types.ErrInvalidArgument {
		t.Fatalf("reading from a closed loop: got %s", xe.Code)
	}
}

func TestStream(t *testing.T) {
	ev, _ := newTestEvaluator()
	node, err := ev.Compile(`sort{t:mesh, @size}`)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := ev.Stream(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for res := range ch {
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		got = append(got, res.Record.ID)
	}
	if !reflect.DeepEqual(got, []string{"plane", "cube", "sphere"}) {
		t.Fatalf("got %v", got)
	}
}

func TestEvalLines(t *testing.T) {
	ev, _ := newTestEvaluator()
	input := strings.Join([]string{
		"count{t:mesh}",
		"# comment",
		"",
		"nope{1}",
		"first{*}",
	}, "\n")

	var results []evaluator.LineResult
	for res := range ev.EvalLines(context.Background(), strings.NewReader(input)) {
		results = append(results, res)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Line != 1 || results[0].Err != nil || results[0].Records[0].Value != 3.0 {
		t.Errorf("line 1: %+v", results[0])
	}
	if results[1].Line != 4 || results[1].Err == nil {
		t.Errorf("line 4 should fail: %+v", results[1])
	}
	if results[2].Line != 5 || len(results[2].Records) != 1 || results[2].Records[0].ID != "cube" {
		t.Errorf("line 5: %+v", results[2])
	}
}

func TestEvalLinesStopsWhenAbandoned(t *testing.T) {
	ev, _ := newTestEvaluator()
	ctx, cancel := context.WithCancel(context.Background())
	ch := ev.EvalLines(ctx, strings.NewReader(strings.Repeat("first{*}\n", 200)))

	deadline := time.Now().Add(time.Second)
	for len(ch) < cap(ch) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffer did not fill: %d/%d", len(ch), cap(ch))
	}
	cancel()

	n := 0
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if n > cap(ch)+1 {
					t.Fatalf("received %d results after cancel", n)
				}
				return
			}
			n++
		case <-timeout:
			t.Fatal("EvalLines did not stop after cancel")
		}
	}
}

package evaluator_test

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/functions"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// incEvaluator yields the value of the current item plus one.
var incEvaluator = functions.EvaluatorDef{
	Name:        "inc",
	Signatures:  []string{"<s>"},
	Category:    "Math",
	Description: "Adds one to the current value.",
	Fn: func(ctx context.Context, c functions.Context) types.Sequence {
		return func(yield func(types.Element, error) bool) {
			cur := c.Current()
			if cur == nil {
				yield(types.Pending, c.Error(nil, types.ErrNoCurrentItem, "inc needs a current item"))
				return
			}
			v, _ := cur.Select("value")
			n, _ := v.(float64)
			yield(types.Value(types.NewRecord(strconv.FormatFloat(n+1, 'f', -1, 64), n+1)), nil)
		}
	},
}

func TestAggregateKeepsSeedAndRounds(t *testing.T) {
	ev, _ := newTestEvaluator(evaluator.WithEvaluators(incEvaluator))

	records := collect(t, ev, `aggregate{set{1}, inc{@value}, 3, keep}`)
	if got := values(records); !reflect.DeepEqual(got, []interface{}{1.0, 2.0, 3.0, 4.0}) {
		t.Fatalf("got %v", got)
	}
	for i, r := range records {
		round, ok := r.Field("iteration")
		if !ok || round != float64(i) {
			t.Errorf("record %s: iteration = %v, want %d", r.ID, round, i)
		}
	}
}

func TestAggregateOptions(t *testing.T) {
	ev, _ := newTestEvaluator(evaluator.WithEvaluators(incEvaluator))

	if got := values(collect(t, ev, `aggregate{set{1}, inc{@value}, 3}`)); !reflect.DeepEqual(got, []interface{}{2.0, 3.0, 4.0}) {
		t.Fatalf("without keep: got %v", got)
	}
	if got := collect(t, ev, `aggregate{set{1}, inc{@value}, 0}`); len(got) != 0 {
		t.Fatalf("zero rounds without keep should yield nothing, got %v", values(got))
	}

	records := collect(t, ev, `aggregate{set{1}, inc{@value}, 2, "round", sorted}`)
	for i, r := range records {
		if r.Score != i {
			t.Errorf("record %s: score %d, want %d", r.ID, r.Score, i)
		}
		if _, ok := r.Field("round"); !ok {
			t.Errorf("record %s has no round field", r.ID)
		}
	}
}

func TestAggregateStopsOnRevisit(t *testing.T) {
	ev, _ := newTestEvaluator()
	// The template always yields the same record: the second round finds
	// nothing new and the expansion ends.
	got := values(collect(t, ev, `aggregate{set{1}, set{2}, 10, keep}`))
	if !reflect.DeepEqual(got, []interface{}{1.0, 2.0}) {
		t.Fatalf("got %v", got)
	}
}

func TestCustomEvaluatorShadowsBuiltin(t *testing.T) {
	answer := functions.EvaluatorDef{
		Name:       "count",
		Signatures: []string{"<i+>"},
		Fn: func(ctx context.Context, c functions.Context) types.Sequence {
			return types.Single(types.NewRecord("answer", 42.0))
		},
	}
	ev, mem := newTestEvaluator(evaluator.WithEvaluators(answer))
	if got := values(collect(t, ev, `count{*}`)); !reflect.DeepEqual(got, []interface{}{42.0}) {
		t.Fatalf("got %v", got)
	}
	if mem.Queries() != 0 {
		t.Fatalf("the shadowing evaluator never pulls its operand, got %d queries", mem.Queries())
	}
}

func TestCustomEvaluatorSignatures(t *testing.T) {
	twice := functions.EvaluatorDef{
		Name:       "twice",
		Signatures: []string{"<i-n>", "<i-s>"},
		Fn: func(ctx context.Context, c functions.Context) types.Sequence {
			return types.Empty()
		},
	}
	broken := functions.EvaluatorDef{
		Name:       "broken",
		Signatures: []string{"<i-z>"},
	}
	ev, _ := newTestEvaluator(evaluator.WithEvaluators(twice, broken))

	for _, q := range []string{`twice{*, 1}`, `broken{*}`} {
		_, err := ev.Compile(q)
		var xe *types.Error
		if !errors.As(err, &xe) || xe.Code != types.ErrAmbiguousSignature {
			t.Errorf("%s: expected %s, got %v", q, types.ErrAmbiguousSignature, err)
		}
	}
}

func TestEvaluatorsListing(t *testing.T) {
	builtins := evaluator.Evaluators()
	names := make(map[string]bool, len(builtins))
	for _, info := range builtins {
		names[info.Name] = true
	}
	for _, want := range []string{"union", "except", "sort", "count", "aggregate", "query", "selection"} {
		if !names[want] {
			t.Errorf("built-in %s missing from Evaluators()", want)
		}
	}

	ev, _ := newTestEvaluator(evaluator.WithEvaluators(incEvaluator))
	var inc *functions.Info
	for _, info := range ev.Evaluators() {
		if info.Name == "inc" {
			inc = &info
		}
	}
	if inc == nil {
		t.Fatal("custom evaluator missing from listing")
	}
	if !reflect.DeepEqual(inc.Signatures, []string{"<s>"}) || inc.Category != "Math" {
		t.Fatalf("unexpected info %+v", *inc)
	}
}

func TestRegisterAfterFirstUse(t *testing.T) {
	evaluator.New()
	if err := evaluator.Register(incEvaluator); err == nil {
		t.Fatal("expected Register to fail once the registry is built")
	}
	if err := evaluator.RegistryError(); err != nil {
		t.Fatalf("unexpected registry error %v", err)
	}
}

package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sandrolain/searchexpr/pkg/functions"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// EvaluatorFunc is the implementation of a built-in evaluator. It returns a
// lazy sequence; no work may happen before the sequence is ranged.
type EvaluatorFunc func(ctx context.Context, c *EvalContext) types.Sequence

// Registration is one named evaluator with its signatures.
type Registration struct {
	Name        string
	Category    string
	Description string
	Signatures  []*Signature
	Hints       functions.Hints
	Fn          EvaluatorFunc

	// check runs at bind time after a signature matched.
	check func(n *types.Node) error
	// stagesFrom is the index of the first argument bound as a partial
	// call, completed at evaluation time. Zero disables it.
	stagesFrom int
	// err is a deferred registration error, reported when a node binds to it.
	err error
}

// EvaluatorName implements types.Binding.
func (r *Registration) EvaluatorName() string {
	return r.Name
}

// Info describes the registration for tooling.
func (r *Registration) Info() functions.Info {
	sigs := make([]string, len(r.Signatures))
	for i, s := range r.Signatures {
		sigs[i] = s.Text
	}
	return functions.Info{
		Name:         r.Name,
		Category:     r.Category,
		Description:  r.Description,
		Signatures:   sigs,
		Expands:      r.Hints.Has(functions.SupportsExpand),
		Materializes: r.Hints.Has(functions.Materializes),
	}
}

// newRegistration parses and validates the signatures of an evaluator.
func newRegistration(name, category, description string, sigs []string, hints functions.Hints, fn EvaluatorFunc) (*Registration, error) {
	r := &Registration{
		Name:        name,
		Category:    category,
		Description: description,
		Hints:       hints,
		Fn:          fn,
	}
	for _, text := range sigs {
		s, err := ParseSignature(text)
		if err != nil {
			return nil, err
		}
		for _, prev := range r.Signatures {
			if prev.Text == s.Text {
				return nil, types.NewError(types.ErrAmbiguousSignature,
					fmt.Sprintf("Evaluator %s declares signature %s twice", name, s.Text), -1)
			}
		}
		r.Signatures = append(r.Signatures, s)
	}
	return r, nil
}

// builtin is one row of the built-in evaluator table.
type builtin struct {
	name        string
	category    string
	description string
	sigs        []string
	hints       functions.Hints
	fn          EvaluatorFunc
	check       func(n *types.Node) error
	stagesFrom  int
}

var (
	builtinEvaluators     map[string]*Registration
	builtinEvaluatorsOnce sync.Once

	pendingMu   sync.Mutex
	pendingDefs []functions.EvaluatorDef
	registryErr error
)

// Register adds a process-wide evaluator. It must be called before the first
// Evaluator is created, typically from an init function.
func Register(def functions.EvaluatorDef) error {
	pendingMu.Lock()
	defer pendingMu.Unlock()
	if builtinEvaluators != nil {
		return fmt.Errorf("evaluator: Register(%s) called after the registry was built", def.Name)
	}
	pendingDefs = append(pendingDefs, def)
	return nil
}

// initBuiltinEvaluators builds the evaluator registry once.
func initBuiltinEvaluators() {
	builtinEvaluatorsOnce.Do(func() {
		pendingMu.Lock()
		defer pendingMu.Unlock()

		table := builtinTable()
		reg := make(map[string]*Registration, len(table)+len(pendingDefs))
		for _, b := range table {
			r, err := newRegistration(b.name, b.category, b.description, b.sigs, b.hints, b.fn)
			if err != nil {
				panic("evaluator: invalid built-in " + b.name + ": " + err.Error())
			}
			r.check = b.check
			r.stagesFrom = b.stagesFrom
			reg[strings.ToLower(b.name)] = r
		}
		for _, def := range pendingDefs {
			r := customRegistration(def)
			if _, dup := reg[strings.ToLower(def.Name)]; dup {
				registryErr = fmt.Errorf("evaluator: %s is already registered", def.Name)
				continue
			}
			reg[strings.ToLower(def.Name)] = r
		}
		builtinEvaluators = reg
	})
}

// builtinTable lists every built-in evaluator in registration order.
func builtinTable() []builtin {
	return []builtin{
		// Primitives
		{name: "constant", category: "Primitives", description: "Yields its literal argument as a record.",
			sigs: []string{"<x>"}, fn: evalConstant},
		{name: "set", category: "Primitives", description: "Concatenates its arguments; bare words are text.",
			sigs: []string{"<*?+>"}, hints: functions.ImplicitLiterals, fn: evalSet},
		{name: "text", category: "Primitives", description: "Yields the raw inner text of the call.",
			hints: functions.NoSignatureValidation, fn: evalText},
		{name: "first", category: "Primitives", description: "Yields the first n records of each operand.",
			sigs: []string{"<n?-i+>"}, fn: evalFirst},
		{name: "last", category: "Primitives", description: "Yields the last n records of each operand.",
			sigs: []string{"<n?-i+>"}, hints: functions.Materializes, fn: evalLast},
		{name: "range", category: "Primitives", description: "Yields numbers from start to end by step.",
			sigs: []string{"<n-n-n?>"}, fn: evalRange},

		// Converters
		{name: "toNumber", category: "Converters", description: "Converts values to numbers, dropping the unconvertible.",
			sigs: []string{"<s?-i+>"}, fn: evalToNumber},
		{name: "toBoolean", category: "Converters", description: "Converts values to booleans.",
			sigs: []string{"<s?-i+>"}, fn: evalToBoolean},
		{name: "format", category: "Converters", description: "Formats each record with a template or selector.",
			sigs: []string{"<(ts)-i+>"}, fn: evalFormat},

		// Set algebra
		{name: "union", category: "Sets", description: "Yields distinct values of all operands, first occurrence wins.",
			sigs: []string{"<i+>"}, fn: evalUnion},
		{name: "distinct", category: "Sets", description: "Alias of union.",
			sigs: []string{"<i+>"}, fn: evalUnion},
		{name: "except", category: "Sets", description: "Yields the records of the first operand missing from the others.",
			sigs: []string{"<i-i+>"}, hints: functions.Materializes, fn: evalExcept},
		{name: "intersect", category: "Sets", description: "Yields the records of the first operand present in all others.",
			sigs: []string{"<i-i+>", "<i-i-s>"}, hints: functions.Materializes, fn: evalIntersect},
		{name: "groupBy", category: "Sets", description: "Groups records by a selector value.",
			sigs: []string{"<i-s?>"}, hints: functions.SupportsExpand | functions.Materializes, fn: evalGroupBy},
		{name: "sort", category: "Sets", description: "Sorts records by a selector value.",
			sigs: []string{"<i-s-(bk)?>"}, hints: functions.Materializes, fn: evalSort},
		{name: "random", category: "Sets", description: "Picks one record at random from each operand.",
			sigs: []string{"<i!+>"}, hints: functions.Materializes, fn: evalRandom},

		// Aggregates
		{name: "count", category: "Aggregates", description: "Counts the records of each operand.",
			sigs: []string{"<i!+>"}, hints: functions.Materializes, fn: evalCount},
		{name: "min", category: "Aggregates", description: "Minimum numeric value of each operand.",
			sigs: []string{"<s?-i!+>"}, hints: functions.Materializes, fn: evalMin},
		{name: "max", category: "Aggregates", description: "Maximum numeric value of each operand.",
			sigs: []string{"<s?-i!+>"}, hints: functions.Materializes, fn: evalMax},
		{name: "avg", category: "Aggregates", description: "Average numeric value of each operand.",
			sigs: []string{"<s?-i!+>"}, hints: functions.Materializes, fn: evalAvg},
		{name: "sum", category: "Aggregates", description: "Sum of the numeric values of each operand.",
			sigs: []string{"<s?-i!+>"}, hints: functions.Materializes, fn: evalSum},
		{name: "aggregate", category: "Aggregates", description: "Expands a seed set by re-applying a template.",
			sigs: []string{"<i-*-n-(tk)?+>"}, fn: evalAggregate},

		// Control flow
		{name: "if", category: "Control", description: "Yields the second operand when the first is true, else the third.",
			sigs: []string{"<i-i-i?>"}, fn: evalIf},
		{name: "empty", category: "Control", description: "Yields true when no operand yields a record.",
			sigs: []string{"<i+>"}, fn: evalEmpty},
		{name: "isTrue", category: "Control", description: "Yields true when any record of any operand is truthy.",
			sigs: []string{"<i+>"}, fn: evalIsTrue},
		{name: "apply", category: "Control", description: "Chains functions, feeding each the previous output.",
			sigs: []string{"<i-f+>"}, fn: evalApply, stagesFrom: 1},
		{name: "map", category: "Control", description: "Evaluates an expression once per record.",
			sigs: []string{"<i-*>"}, fn: evalMap},

		// Comparison filters
		{name: "gt", category: "Filters", description: "Keeps records whose selected value is greater.",
			sigs: []string{"<i-s-x>"}, fn: compareFilter(func(c int) bool { return c > 0 })},
		{name: "gte", category: "Filters", description: "Keeps records whose selected value is greater or equal.",
			sigs: []string{"<i-s-x>"}, fn: compareFilter(func(c int) bool { return c >= 0 })},
		{name: "lt", category: "Filters", description: "Keeps records whose selected value is lower.",
			sigs: []string{"<i-s-x>"}, fn: compareFilter(func(c int) bool { return c < 0 })},
		{name: "lte", category: "Filters", description: "Keeps records whose selected value is lower or equal.",
			sigs: []string{"<i-s-x>"}, fn: compareFilter(func(c int) bool { return c <= 0 })},
		{name: "eq", category: "Filters", description: "Keeps records whose selected value is equal.",
			sigs: []string{"<i-s-x>"}, fn: compareFilter(func(c int) bool { return c == 0 })},
		{name: "neq", category: "Filters", description: "Keeps records whose selected value differs.",
			sigs: []string{"<i-s-x>"}, fn: compareFilter(func(c int) bool { return c != 0 })},
		{name: "where", category: "Filters", description: "Keeps records matching a condition.",
			sigs: []string{"<i-(tf)>"}, fn: evalWhere},

		// Projection
		{name: "select", category: "Projection", description: "Projects records onto the selected fields.",
			sigs: []string{"<i-(stfk)+>"}, fn: evalSelect, check: checkSelectors},
		{name: "append", category: "Projection", description: "Adds the selected fields to each record.",
			sigs: []string{"<i-(stfk)+>"}, fn: evalAppend, check: checkSelectors},
		{name: "alias", category: "Projection", description: "Renames an operand or relabels its records.",
			sigs: []string{"<i-(ts)>", "<i-f>"}, hints: functions.SupportsExpand, fn: evalAlias},

		// Query
		{name: "query", category: "Query", description: "Runs query text against the record providers.",
			hints: functions.NoSignatureValidation | functions.SupportsExpand, fn: evalQuery},

		// Environment
		{name: "env", category: "Environment", description: "Reads an environment value by key.",
			hints: functions.NoSignatureValidation, fn: evalEnv},
		{name: "selection", category: "Environment", description: "Yields the current selection.", fn: envAccessor(envSelection)},
		{name: "current", category: "Environment", description: "Yields the current object.", fn: envAccessor(envCurrent)},
		{name: "project", category: "Environment", description: "Yields the project name.", fn: envAccessor(envProject)},
		{name: "scene", category: "Environment", description: "Yields the scene name.", fn: envAccessor(envScene)},
		{name: "datapath", category: "Environment", description: "Yields the data path.", fn: envAccessor(envDataPath)},
	}
}

// customRegistration adapts a user definition. Signature errors are kept and
// reported when a node binds to the evaluator.
func customRegistration(def functions.EvaluatorDef) *Registration {
	fn := def.Fn
	impl := func(ctx context.Context, c *EvalContext) types.Sequence {
		if fn == nil {
			return types.Empty()
		}
		return fn(ctx, c)
	}
	r, err := newRegistration(def.Name, def.Category, def.Description, def.Signatures, def.Hints, impl)
	if err != nil {
		return &Registration{Name: def.Name, Category: def.Category, Description: def.Description, Fn: impl, err: err}
	}
	for i, a := range r.Signatures {
		for _, b := range r.Signatures[i+1:] {
			if sameShape(a, b) {
				r.err = types.NewError(types.ErrAmbiguousSignature,
					fmt.Sprintf("Signatures %s and %s of %s cannot be told apart", a.Text, b.Text, def.Name), -1)
			}
		}
	}
	return r
}

// lookup returns the registration for name, custom evaluators first.
func (e *Evaluator) lookup(name string) (*Registration, bool) {
	key := strings.ToLower(name)
	if r, ok := e.custom[key]; ok {
		return r, true
	}
	initBuiltinEvaluators()
	r, ok := builtinEvaluators[key]
	return r, ok
}

// Evaluators lists the built-in and process-wide evaluators sorted by name.
func Evaluators() []functions.Info {
	initBuiltinEvaluators()
	out := make([]functions.Info, 0, len(builtinEvaluators))
	for _, r := range builtinEvaluators {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Evaluators lists every evaluator visible to e, custom ones included.
func (e *Evaluator) Evaluators() []functions.Info {
	var out []functions.Info
	for _, info := range Evaluators() {
		if _, shadowed := e.custom[strings.ToLower(info.Name)]; !shadowed {
			out = append(out, info)
		}
	}
	for _, r := range e.custom {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegistryError reports a conflict found while building the process-wide
// registry, such as a Register call reusing a built-in name.
func RegistryError() error {
	initBuiltinEvaluators()
	return registryErr
}

// Package evaluator implements the search expression evaluation engine.
//
// The evaluator binds parsed expression nodes to registered evaluators and
// runs them lazily over streams of result records. It supports:
//   - Signature-checked overload resolution at bind time
//   - Pull-based lazy sequences with pending placeholders
//   - A current-item stack for selector and per-record evaluation
//   - Deferred sub-expressions (expand mode) for set algebra
//   - Timeout and cancellation via context.Context
//
// # Example
//
//	ev := evaluator.New(evaluator.WithSource(provider.NewMemory("mem", records)))
//	seq, err := ev.EvalString(ctx, `sort{t:mesh, @label}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for rec, err := range seq.Records() {
//	    ...
//	}
package evaluator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sandrolain/searchexpr/pkg/cache"
	"github.com/sandrolain/searchexpr/pkg/functions"
	"github.com/sandrolain/searchexpr/pkg/mainthread"
	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/parser"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// SelectorFunc resolves a named selector against a record.
type SelectorFunc func(r *types.Record) (interface{}, bool)

// Evaluator binds and evaluates search expressions.
type Evaluator struct {
	opts       EvalOptions
	logger     *slog.Logger
	cache      *cache.Cache // non-nil when Caching is enabled
	custom     map[string]*Registration
	selectors  map[string]SelectorFunc
	source     types.RecordSource
	env        mainthread.Environment
	dispatcher mainthread.Dispatcher
	metrics    *metrics.Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// Caching enables caching of compiled and bound expressions by source
	// text. The default cache holds up to 256 entries with LRU eviction.
	Caching bool
	// CacheSize sets the maximum number of cached expressions.
	// Only used when Caching is true and no explicit Cache is provided.
	CacheSize int
	// Cache is a custom expression cache. If non-nil, Caching is implicitly enabled.
	Cache *cache.Cache
	// MaxDepth limits evaluation nesting depth.
	MaxDepth int
	// Timeout bounds one evaluation, measured from the first pull.
	Timeout time.Duration
	// Debug enables debug logging.
	Debug bool
	// Logger for structured logging.
	Logger *slog.Logger
	// Source produces base records for query strings.
	Source types.RecordSource
	// Environment answers the environment evaluators.
	Environment mainthread.Environment
	// Dispatcher runs environment reads on the owning thread.
	Dispatcher mainthread.Dispatcher
	// Metrics receives evaluator call and error counts. Optional.
	Metrics *metrics.Metrics
	// Seed makes random reproducible when non-zero.
	Seed uint64
	// Bindings are the values of $name variables in query text.
	Bindings map[string]interface{}
	// Evaluators holds user-defined evaluators.
	Evaluators []functions.EvaluatorDef
	// Selectors holds named selectors checked before the built-in ones.
	Selectors map[string]SelectorFunc
}

// New creates a new Evaluator with default options.
func New(opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		MaxDepth: 1000,
		Timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Dispatcher == nil {
		options.Dispatcher = mainthread.Inline{}
	}
	if options.Environment == nil {
		options.Environment = mainthread.MapEnvironment{}
	}

	var c *cache.Cache
	if options.Cache != nil {
		c = options.Cache
	} else if options.Caching {
		c = cache.New(options.CacheSize)
	}

	custom := make(map[string]*Registration, len(options.Evaluators))
	for _, def := range options.Evaluators {
		custom[strings.ToLower(def.Name)] = customRegistration(def)
	}

	seed := options.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	initBuiltinEvaluators()

	return &Evaluator{
		opts:       options,
		logger:     options.Logger,
		cache:      c,
		custom:     custom,
		selectors:  options.Selectors,
		source:     options.Source,
		env:        options.Environment,
		dispatcher: options.Dispatcher,
		metrics:    options.Metrics,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Cache returns the expression cache, or nil if caching is disabled.
func (e *Evaluator) Cache() *cache.Cache {
	return e.cache
}

// Logger returns the evaluator logger.
func (e *Evaluator) Logger() *slog.Logger {
	return e.logger
}

// Compile parses and binds query, going through the cache when enabled.
func (e *Evaluator) Compile(query string) (*types.Node, error) {
	compile := func(q string) (*types.Node, error) {
		n, err := parser.Parse(q)
		if err != nil {
			return nil, err
		}
		return e.Bind(n)
	}
	if e.cache != nil {
		return e.cache.GetOrCompile(query, compile)
	}
	return compile(query)
}

// Execute binds node (unless already bound) and returns its lazy result
// sequence. Bind errors are returned immediately; evaluation errors
// terminate the sequence.
func (e *Evaluator) Execute(ctx context.Context, node *types.Node) (types.Sequence, error) {
	return e.ExecuteWithBindings(ctx, node, nil)
}

// ExecuteWithBindings is like Execute with extra $name bindings layered over
// the evaluator's own.
func (e *Evaluator) ExecuteWithBindings(ctx context.Context, node *types.Node, bindings map[string]interface{}) (types.Sequence, error) {
	if node == nil {
		return nil, types.NewError(types.ErrEmptyExpression, "invalid expression", -1)
	}
	if !node.IsBound() {
		var err error
		if node, err = e.Bind(node); err != nil {
			return nil, err
		}
	}

	root := e.rootContext(bindings)

	return func(yield func(types.Element, error) bool) {
		if e.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
		}

		pulls := 0
		for el, err := range e.evalNode(ctx, root, node, types.ExecNone) {
			if err == nil && pulls&1023 == 0 {
				err = ctx.Err()
			}
			pulls++
			if !yield(el, err) || err != nil {
				return
			}
		}
	}, nil
}

// EvalString compiles query and executes it.
func (e *Evaluator) EvalString(ctx context.Context, query string) (types.Sequence, error) {
	node, err := e.Compile(query)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, node)
}

// Collect executes node and drains the result.
func (e *Evaluator) Collect(ctx context.Context, node *types.Node) ([]*types.Record, error) {
	seq, err := e.Execute(ctx, node)
	if err != nil {
		return nil, err
	}
	return seq.Drain(ctx)
}

func (e *Evaluator) rootContext(bindings map[string]interface{}) *EvalContext {
	merged := e.opts.Bindings
	if len(bindings) > 0 {
		merged = make(map[string]interface{}, len(e.opts.Bindings)+len(bindings))
		for k, v := range e.opts.Bindings {
			merged[k] = v
		}
		for k, v := range bindings {
			merged[k] = v
		}
	}
	return &EvalContext{evaluator: e, bindings: merged}
}

// evalNode runs the evaluator bound to n in a child context of parent.
func (e *Evaluator) evalNode(ctx context.Context, parent *EvalContext, n *types.Node, flags types.ExecFlags) types.Sequence {
	b, ok := n.Evaluator.(*binding)
	if !ok {
		return types.Fail(types.NodeError(n, types.ErrUnknownEvaluator, "Expression %s is not bound", n.Outer))
	}

	c := &EvalContext{
		evaluator: e,
		node:      n,
		args:      n.Args,
		params:    b.params,
		flags:     flags,
		scope:     parent.scope,
		bindings:  parent.bindings,
		depth:     parent.depth + 1,
	}
	if !b.reg.Hints.Has(functions.SupportsExpand) {
		c.flags &^= types.Expand
	}
	if e.opts.MaxDepth > 0 && c.depth > e.opts.MaxDepth {
		return types.Fail(types.NodeError(n, types.ErrMaxDepthExceeded, "Evaluation nested deeper than %d", e.opts.MaxDepth))
	}

	seq := b.reg.Fn(ctx, c)
	if e.metrics == nil && !e.opts.Debug {
		return seq
	}
	return e.instrument(b.reg.Name, n, seq)
}

// instrument reports calls, errors and durations of one evaluator run.
func (e *Evaluator) instrument(name string, n *types.Node, seq types.Sequence) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		e.metrics.ObserveCall(name)
		start := time.Now()
		count := 0
		defer func() {
			e.metrics.ObserveDuration(name, time.Since(start))
			if e.opts.Debug {
				e.logger.Debug("evaluator finished",
					"evaluator", name,
					"expression", n.String(),
					"records", count,
					"elapsed", time.Since(start))
			}
		}()

		for el, err := range seq {
			if err != nil {
				code := "unknown"
				if xe, ok := err.(*types.Error); ok {
					code = string(xe.Code)
				}
				e.metrics.ObserveError(name, code)
				yield(types.Pending, err)
				return
			}
			if !el.IsPending() {
				count++
			}
			if !yield(el, nil) {
				return
			}
		}
	}
}

// intN returns a random number in [0, n).
func (e *Evaluator) intN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

// EvalOption configures evaluation behavior.
type EvalOption func(*EvalOptions)

// WithCaching enables or disables expression compilation caching.
// When enabled, a default LRU cache of 256 entries is created.
func WithCaching(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Caching = enabled
	}
}

// WithCacheSize sets the maximum number of cached expressions.
// Only effective when combined with WithCaching(true).
func WithCacheSize(size int) EvalOption {
	return func(opts *EvalOptions) {
		opts.CacheSize = size
	}
}

// WithCache attaches an external expression cache.
func WithCache(c *cache.Cache) EvalOption {
	return func(opts *EvalOptions) {
		opts.Cache = c
	}
}

// WithTimeout sets the evaluation timeout.
func WithTimeout(timeout time.Duration) EvalOption {
	return func(opts *EvalOptions) {
		opts.Timeout = timeout
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Debug = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// WithMaxDepth sets the maximum evaluation nesting depth.
func WithMaxDepth(depth int) EvalOption {
	return func(opts *EvalOptions) {
		opts.MaxDepth = depth
	}
}

// WithSource sets the record provider used by query strings.
func WithSource(src types.RecordSource) EvalOption {
	return func(opts *EvalOptions) {
		opts.Source = src
	}
}

// WithEnvironment sets the environment read by env, selection, current and
// the other environment evaluators.
func WithEnvironment(env mainthread.Environment) EvalOption {
	return func(opts *EvalOptions) {
		opts.Environment = env
	}
}

// WithDispatcher sets the primitive used to read the environment on its
// owning thread. Defaults to running inline.
func WithDispatcher(d mainthread.Dispatcher) EvalOption {
	return func(opts *EvalOptions) {
		opts.Dispatcher = d
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) EvalOption {
	return func(opts *EvalOptions) {
		opts.Metrics = m
	}
}

// WithSeed makes random deterministic.
func WithSeed(seed uint64) EvalOption {
	return func(opts *EvalOptions) {
		opts.Seed = seed
	}
}

// WithBindings sets the values of $name variables.
func WithBindings(bindings map[string]interface{}) EvalOption {
	return func(opts *EvalOptions) {
		opts.Bindings = bindings
	}
}

// WithEvaluators registers user-defined evaluators with the evaluator.
// They shadow built-ins of the same name.
//
// Example:
//
//	evaluator.New(evaluator.WithEvaluators(functions.EvaluatorDef{
//	    Name:       "twice",
//	    Signatures: []string{"<i>"},
//	    Fn:         twice,
//	}))
func WithEvaluators(defs ...functions.EvaluatorDef) EvalOption {
	return func(opts *EvalOptions) {
		opts.Evaluators = append(opts.Evaluators, defs...)
	}
}

// WithSelector registers a named selector, usable as @name.
func WithSelector(name string, fn SelectorFunc) EvalOption {
	return func(opts *EvalOptions) {
		if opts.Selectors == nil {
			opts.Selectors = make(map[string]SelectorFunc)
		}
		opts.Selectors[name] = fn
	}
}

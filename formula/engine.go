package formula

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/hriskit/formulas/expr"
)

// EvaluationResult is the outcome of running one formula against a set of
// payroll inputs.
type EvaluationResult struct {
	Key   string
	Value float64
	Err   error
}

// Engine compiles stored formulas into programs over the field catalog and
// evaluates them. Every create/update goes through compilation first, so a
// formula that cannot be parsed or type-checked is rejected before it is
// persisted. Thread-safe for concurrent evaluation.
type Engine struct {
	env      *cel.Env
	store    FormulaStore
	cache    FormulaCache
	codec    *expr.Codec
	programs map[string]cel.Program // formula key -> compiled program
	known    map[string]bool        // catalog identifiers
	mu       sync.RWMutex
}

// NewEngine builds an engine over the default field catalog and compiles
// every active formula already in the store.
func NewEngine(store FormulaStore) (*Engine, error) {
	return NewEngineWithCache(store, NewInMemoryFormulaCache(DefaultCacheConfig()))
}

// NewEngineWithCache builds an engine over the default catalog using
// the provided formula cache, for callers that configure a TTL.
func NewEngineWithCache(store FormulaStore, cache FormulaCache) (*Engine, error) {
	en, err := NewEngineWithIdentifiers(store, FieldIdentifiers())
	if err != nil {
		return nil, err
	}
	en.cache = cache
	return en, nil
}

// NewEngineWithIdentifiers builds an engine whose expressions may
// reference the given identifiers. Useful for tests with a reduced
// catalog.
func NewEngineWithIdentifiers(store FormulaStore, identifiers []string) (*Engine, error) {
	env, err := newEnv(identifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	known := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		known[id] = true
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryFormulaCache(DefaultCacheConfig()),
		codec:    expr.NewCodec(),
		programs: make(map[string]cel.Program),
		known:    known,
	}

	if err := en.CompileAll(); err != nil {
		return nil, fmt.Errorf("failed to compile formulas: %w", err)
	}

	return en, nil
}

// newEnv declares every catalog identifier as a numeric variable and
// registers the three rounding functions.
func newEnv(identifiers []string) (*cel.Env, error) {
	opts := []cel.EnvOption{
		roundingFunc("floor", math.Floor),
		roundingFunc("ceil", math.Ceil),
		roundingFunc("round", math.Round),
	}
	for _, id := range identifiers {
		opts = append(opts, cel.Variable(id, cel.DoubleType))
	}
	return cel.NewEnv(opts...)
}

func roundingFunc(name string, impl func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				d, ok := v.(types.Double)
				if !ok {
					return types.NewErr("%s expects a number, got %v", name, v.Type())
				}
				return types.Double(impl(float64(d)))
			}),
		),
	)
}

// Compile validates and compiles a single formula expression. The stored
// grammar is first normalized to the evaluation form, so coercion wrappers
// and record prefixes never reach the type checker.
func (en *Engine) Compile(key, expression string) error {
	evalForm, err := en.codec.EvalForm(expression)
	if err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}

	ast, issues := en.env.Compile(evalForm)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}

	// cost limit guards against pathological expressions
	prog, err := en.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}

	en.mu.Lock()
	en.programs[key] = prog
	en.mu.Unlock()

	return nil
}

// CompileAll compiles every active formula and primes the cache.
func (en *Engine) CompileAll() error {
	formulas, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, f := range formulas {
		if err := en.Compile(f.Key, f.Expression); err != nil {
			return fmt.Errorf("failed to compile formula %s: %w", f.Key, err)
		}
	}

	en.cache.Set(formulas)
	return nil
}

// Add validates the key, compiles the expression and persists the formula.
// If the store rejects it the compiled program is discarded again.
func (en *Engine) Add(f *Formula) error {
	if err := ValidateKey(f.Key); err != nil {
		return err
	}
	if _, err := en.store.Get(f.Key); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, f.Key)
	}

	if err := en.Compile(f.Key, f.Expression); err != nil {
		return fmt.Errorf("formula validation failed: %w", err)
	}

	if err := en.store.Add(f); err != nil {
		en.mu.Lock()
		delete(en.programs, f.Key)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()
	return nil
}

// Update recompiles the new expression before persisting it.
func (en *Engine) Update(f *Formula) error {
	if err := en.Compile(f.Key, f.Expression); err != nil {
		return fmt.Errorf("formula validation failed: %w", err)
	}

	if err := en.store.Update(f); err != nil {
		return err
	}

	en.cache.Invalidate()
	return nil
}

// Delete removes the formula and its compiled program.
func (en *Engine) Delete(key string) error {
	if err := en.store.Delete(key); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, key)
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// Evaluate runs one formula against the inputs. Catalog fields absent from
// inputs evaluate as zero, matching the zero-default idiom the stored
// grammar encodes.
func (en *Engine) Evaluate(key string, inputs map[string]float64) (*EvaluationResult, error) {
	f, err := en.store.Get(key)
	if err != nil {
		return nil, err
	}

	en.mu.RLock()
	prog, exists := en.programs[f.Key]
	en.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("formula %s is not compiled", f.Key)
	}

	activation, err := en.activation(inputs)
	if err != nil {
		return nil, err
	}

	return en.run(f.Key, prog, activation), nil
}

// EvaluateAll runs every active formula against one input set: a payroll
// computation pass. Per-formula failures are reported in the results, not
// returned.
func (en *Engine) EvaluateAll(inputs map[string]float64) ([]*EvaluationResult, error) {
	formulas := en.cache.Get()
	if formulas == nil {
		var err error
		formulas, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(formulas)
	}

	activation, err := en.activation(inputs)
	if err != nil {
		return nil, err
	}

	results := make([]*EvaluationResult, 0, len(formulas))
	for _, f := range formulas {
		en.mu.RLock()
		prog, exists := en.programs[f.Key]
		en.mu.RUnlock()

		if !exists {
			results = append(results, &EvaluationResult{
				Key: f.Key,
				Err: fmt.Errorf("formula %s is not compiled", f.Key),
			})
			continue
		}

		results = append(results, en.run(f.Key, prog, activation))
	}

	return results, nil
}

func (en *Engine) run(key string, prog cel.Program, activation map[string]any) *EvaluationResult {
	out, _, err := prog.Eval(activation)
	if err != nil {
		return &EvaluationResult{Key: key, Err: err}
	}

	switch v := out.Value().(type) {
	case float64:
		return &EvaluationResult{Key: key, Value: v}
	case int64:
		return &EvaluationResult{Key: key, Value: float64(v)}
	default:
		return &EvaluationResult{Key: key, Err: fmt.Errorf("formula %s produced %T, want a number", key, v)}
	}
}

// activation builds the evaluation input: every catalog field defaults to
// zero, inputs override. Unknown field names are rejected rather than
// silently dropped.
func (en *Engine) activation(inputs map[string]float64) (map[string]any, error) {
	vars := make(map[string]any, len(en.known))
	for id := range en.known {
		vars[id] = 0.0
	}
	for name, value := range inputs {
		if !en.known[name] {
			return nil, fmt.Errorf("unknown payroll field %q", name)
		}
		vars[name] = value
	}
	return vars, nil
}

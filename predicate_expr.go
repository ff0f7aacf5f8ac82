package pytree

import (
	"fmt"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEngineOption configures an expr predicate engine instance.
type ExprEngineOption func(*exprEngine)

// ExprWithProgramCache wires a ProgramCache into the expr engine.
func ExprWithProgramCache(cache ProgramCache) ExprEngineOption {
	return func(e *exprEngine) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr engine.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEngineOption {
	return func(e *exprEngine) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// ExprWithLogger attaches a predicate logger to the expr engine.
func ExprWithLogger(logger PredicateLogger) ExprEngineOption {
	return func(e *exprEngine) {
		if logger == nil {
			e.logger = noopPredicateLogger{}
			return
		}
		e.logger = logger
	}
}

// exprEngine compiles predicates using github.com/expr-lang/expr.
type exprEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
	logger   PredicateLogger
}

// NewExprEngine constructs a PredicateEngine backed by expr-lang/expr.
func NewExprEngine(opts ...ExprEngineOption) PredicateEngine {
	e := &exprEngine{logger: noopPredicateLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// CompilePredicate compiles expression once and returns a predicate that
// evaluates it against each visited node, bound as "value".
func (e *exprEngine) CompilePredicate(expression string) (LeafPredicate, error) {
	if expression == "" {
		return nil, wrapEngineError("expr", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return func(value any) (bool, error) {
		start := time.Now()
		result, err := exprlang.Run(program, e.environment(value))
		if err != nil {
			err = wrapPredicateError("expr", expression, err)
			e.logger.LogPredicate(PredicateLogEvent{Engine: "expr", Expr: expression, Duration: time.Since(start), Err: err})
			return false, err
		}
		leaf, err := predicateResult("expr", expression, result)
		e.logger.LogPredicate(PredicateLogEvent{Engine: "expr", Expr: expression, Duration: time.Since(start), Err: err})
		return leaf, err
	}, nil
}

func (e *exprEngine) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		fn := e.registryFunction(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapPredicateError("expr", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *exprEngine) environment(value any) map[string]any {
	env := map[string]any{
		"value": value,
	}
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			env[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return env
}

func (e *exprEngine) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprEngine) registryFunction(name string) func(...any) (any, error) {
	if e == nil || e.registry == nil {
		return nil
	}
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

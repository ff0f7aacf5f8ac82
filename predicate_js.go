//go:build js_eval

package pytree

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
	logger   PredicateLogger
}

// NewJSEngine constructs a PredicateEngine backed by goja.
func NewJSEngine(opts ...JSEngineOption) PredicateEngine {
	cfg := applyJSEngineOptions(opts)
	return &jsEngine{
		cache:    cfg.cache,
		registry: cfg.registry,
		logger:   cfg.loggerOrNoop(),
	}
}

// CompilePredicate compiles expression once; the returned predicate runs it
// in a fresh runtime per node with "value" injected.
func (e *jsEngine) CompilePredicate(expression string) (LeafPredicate, error) {
	if expression == "" {
		return nil, wrapEngineError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return func(value any) (bool, error) {
		start := time.Now()
		result, err := e.run(value, program)
		if err != nil {
			err = wrapPredicateError("js", expression, err)
			e.logger.LogPredicate(PredicateLogEvent{Engine: "js", Expr: expression, Duration: time.Since(start), Err: err})
			return false, err
		}
		leaf, err := predicateResult("js", expression, result)
		e.logger.LogPredicate(PredicateLogEvent{Engine: "js", Expr: expression, Duration: time.Since(start), Err: err})
		return leaf, err
	}, nil
}

func (e *jsEngine) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", e.wrapExpression(expression), false)
	if err != nil {
		return nil, wrapPredicateError("js", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *jsEngine) run(value any, program *goja.Program) (any, error) {
	vm := goja.New()
	e.injectContext(vm, value)
	result, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return result.Export(), nil
}

func (e *jsEngine) injectContext(vm *goja.Runtime, value any) {
	vm.Set("value", value)
	if e.registry != nil {
		vm.Set("call", func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		})
		for _, name := range e.registry.Names() {
			fn := name
			vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
}

func (e *jsEngine) wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

func jsEngineAvailable() bool {
	return true
}

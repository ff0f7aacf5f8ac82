package pytree

import (
	"errors"
	"reflect"
	"testing"
)

var predicateEngineFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) PredicateEngine
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) PredicateEngine {
			opts := []ExprEngineOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEngine(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) PredicateEngine {
			opts := []CELEngineOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEngine(opts...)
		},
	},
}

func TestEnginesRejectEmptyExpression(t *testing.T) {
	for _, factory := range predicateEngineFactories {
		t.Run(factory.name, func(t *testing.T) {
			engine := factory.new(nil, nil)
			if _, err := engine.CompilePredicate(""); err == nil {
				t.Fatalf("expected empty expression to fail compilation")
			}
		})
	}
}

func TestEnginesRejectNonBoolResult(t *testing.T) {
	for _, factory := range predicateEngineFactories {
		t.Run(factory.name, func(t *testing.T) {
			engine := factory.new(nil, nil)
			predicate, err := engine.CompilePredicate("1 + 1")
			if err != nil {
				t.Fatalf("unexpected compile error: %v", err)
			}
			_, err = predicate(nil)
			var predErr *PredicateError
			if !errors.As(err, &predErr) {
				t.Fatalf("expected PredicateError, got %v", err)
			}
			if predErr.Engine != factory.name {
				t.Fatalf("expected engine %q on error, got %q", factory.name, predErr.Engine)
			}
		})
	}
}

func TestEnginesCallRegistryFunctions(t *testing.T) {
	for _, factory := range predicateEngineFactories {
		t.Run(factory.name, func(t *testing.T) {
			registry := NewFunctionRegistry()
			err := registry.Register("is_marker", func(args ...any) (any, error) {
				if len(args) != 1 {
					return false, nil
				}
				return args[0] == "marker", nil
			})
			if err != nil {
				t.Fatalf("unexpected register error: %v", err)
			}
			engine := factory.new(nil, registry)
			predicate, err := engine.CompilePredicate(`call("is_marker", value)`)
			if err != nil {
				t.Fatalf("unexpected compile error: %v", err)
			}
			if leaf, err := predicate("marker"); err != nil || !leaf {
				t.Fatalf("expected marker to match, got %v, %v", leaf, err)
			}
			if leaf, err := predicate(42); err != nil || leaf {
				t.Fatalf("expected non-marker to miss, got %v, %v", leaf, err)
			}
		})
	}
}

func TestEnginesUseProgramCache(t *testing.T) {
	for _, factory := range predicateEngineFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := NewMemoryProgramCache()
			engine := factory.new(cache, nil)
			if _, err := engine.CompilePredicate("true"); err != nil {
				t.Fatalf("unexpected compile error: %v", err)
			}
			if _, err := engine.CompilePredicate("true"); err != nil {
				t.Fatalf("unexpected compile error: %v", err)
			}
			if cache.Len() != 1 {
				t.Fatalf("expected one cached program, got %d", cache.Len())
			}
		})
	}
}

func TestEnginesRejectInvalidExpression(t *testing.T) {
	for _, factory := range predicateEngineFactories {
		t.Run(factory.name, func(t *testing.T) {
			engine := factory.new(nil, nil)
			_, err := engine.CompilePredicate("value ===== 1")
			var predErr *PredicateError
			if !errors.As(err, &predErr) {
				t.Fatalf("expected PredicateError, got %v", err)
			}
		})
	}
}

func TestExprPredicateDrivesFlatten(t *testing.T) {
	engine := NewExprEngine()
	predicate, err := engine.CompilePredicate(`type(value) == "array"`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	leaves, _, err := Flatten(map[string]any{"a": 1, "b": []any{2, 3}}, WithLeafPredicate(predicate))
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, []any{2, 3}}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected arrays to flatten as leaves, got %v", leaves)
	}
}

func TestCELPredicateDrivesFlatten(t *testing.T) {
	engine := NewCELEngine()
	predicate, err := engine.CompilePredicate("type(value) == list")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	leaves, _, err := Flatten(map[string]any{"a": 1, "b": []any{2, 3}}, WithLeafPredicate(predicate))
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if len(leaves) != 2 {
		t.Fatalf("expected two leaves, got %v", leaves)
	}
}

func TestExprEngineLogsPredicateEvents(t *testing.T) {
	var events []PredicateLogEvent
	engine := NewExprEngine(ExprWithLogger(PredicateLoggerFunc(func(event PredicateLogEvent) {
		events = append(events, event)
	})))
	predicate, err := engine.CompilePredicate("value == 1")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if _, err := predicate(1); err != nil {
		t.Fatalf("unexpected predicate error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one logged event, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Expr != "value == 1" {
		t.Fatalf("unexpected event payload: %+v", events[0])
	}
}

func TestJSEngineAvailability(t *testing.T) {
	engine := NewJSEngine()
	if jsEngineAvailable() {
		if engine == nil {
			t.Fatalf("expected a JS engine when the js_eval tag is enabled")
		}
		predicate, err := engine.CompilePredicate("Array.isArray(value)")
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		if leaf, err := predicate([]any{1}); err != nil || !leaf {
			t.Fatalf("expected array detection, got %v, %v", leaf, err)
		}
		return
	}
	if engine != nil {
		t.Fatalf("expected nil JS engine without the js_eval tag")
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if err := registry.Register("double", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := registry.Register("nilfn", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}

	result, err := registry.Call("DOUBLE", 21)
	if err != nil {
		t.Fatalf("unexpected call error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected case-insensitive call to yield 42, got %v", result)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function to fail")
	}

	clone := registry.Clone()
	if !reflect.DeepEqual(clone.Names(), registry.Names()) {
		t.Fatalf("expected clone to keep names, got %v", clone.Names())
	}
	if err := clone.Register("extra", func(...any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("unexpected clone register error: %v", err)
	}
	if len(registry.Names()) == len(clone.Names()) {
		t.Fatalf("expected clone to be independent of the original")
	}
}

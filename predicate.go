package pytree

import "fmt"

// PredicateEngine compiles a boolean expression into a LeafPredicate. The
// compiled predicate receives each visited node bound as "value" and must
// produce a bool.
type PredicateEngine interface {
	CompilePredicate(expression string) (LeafPredicate, error)
}

// predicateResult coerces an engine's raw evaluation result into a bool.
// Anything other than a bool is a predicate contract violation.
func predicateResult(engine, expression string, result any) (bool, error) {
	leaf, ok := result.(bool)
	if !ok {
		return false, wrapPredicateError(engine, expression,
			fmt.Errorf("predicate returned %T, want bool", result))
	}
	return leaf, nil
}

package pytree

import (
	"errors"
	"fmt"
	"strings"
)

// PredicateError captures engine metadata alongside the originating error.
type PredicateError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *PredicateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("pytree: %s predicate %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *PredicateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEngineError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var predErr *PredicateError
	if errors.As(err, &predErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "pytree:") {
		return err
	}
	return fmt.Errorf("pytree: %s predicate engine: %w", engine, err)
}

func wrapPredicateError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var predErr *PredicateError
	if errors.As(err, &predErr) {
		if predErr.Engine == "" {
			predErr.Engine = engine
		}
		if predErr.Expr == "" {
			predErr.Expr = expr
		}
		return predErr
	}

	return &PredicateError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}

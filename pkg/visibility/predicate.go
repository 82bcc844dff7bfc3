package visibility

import (
	"fmt"
	"strings"
)

// Predicate decides visibility for a driver context.
type Predicate interface {
	Visible(ctx Context) (bool, error)
}

// PredicateFunc adapts a function into a Predicate.
type PredicateFunc func(ctx Context) (bool, error)

// Visible delegates to the underlying function.
func (fn PredicateFunc) Visible(ctx Context) (bool, error) {
	return fn(ctx)
}

// Rule evaluates an expression with the given evaluator.
func Rule(evaluator Evaluator, path, rule string) Predicate {
	return PredicateFunc(func(ctx Context) (bool, error) {
		if evaluator == nil {
			return false, fmt.Errorf("visibility: no evaluator for rule %q", rule)
		}
		return evaluator.Eval(path, rule, ctx)
	})
}

// LevelRequiresSpecialty is visible for grades 10, 11 and 12.
func LevelRequiresSpecialty() Predicate {
	return PredicateFunc(func(ctx Context) (bool, error) {
		level, ok := ctx.Values[KeyLevel].(int)
		return ok && RequiresSpecialty(level), nil
	})
}

// ValueIn is visible when the driver value is one of values.
func ValueIn(values ...string) Predicate {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[strings.TrimSpace(v)] = struct{}{}
	}
	return PredicateFunc(func(ctx Context) (bool, error) {
		value, _ := ctx.Values[KeyValue].(string)
		_, ok := allowed[strings.TrimSpace(value)]
		return ok, nil
	})
}

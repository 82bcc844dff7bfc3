// Package visibility decides whether a dependent form section is shown.
//
// Rules are evaluated against a Context built from the driver field: its
// value, the label of the selected option and, for grade selectors, the grade
// number parsed from that label.
package visibility

import (
	"strconv"
	"strings"
)

// Evaluator determines whether a section should be visible based on a rule
// string and the driver context.
type Evaluator interface {
	Eval(fieldPath, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values holds the driver snapshot
// (value, label, level) and any other field values; Extras carries caller
// supplied data such as the active institution.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldPath, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldPath, rule string, ctx Context) (bool, error) {
	return fn(fieldPath, rule, ctx)
}

// Context keys filled by DriverContext.
const (
	KeyValue = "value"
	KeyLabel = "label"
	KeyLevel = "level"
)

// DriverContext builds the evaluation context for a driver snapshot. fields
// are exposed under their own names so rules can reference other inputs.
func DriverContext(value, label string, fields map[string]string) Context {
	values := make(map[string]any, len(fields)+3)
	for name, v := range fields {
		values[name] = v
	}
	values[KeyValue] = value
	values[KeyLabel] = label
	if level, ok := LevelFromLabel(label); ok {
		values[KeyLevel] = level
	} else if level, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && label == "" {
		values[KeyLevel] = level
	}
	return Context{Values: values}
}

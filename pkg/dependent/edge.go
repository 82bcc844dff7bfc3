package dependent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
)

// Edge connects driver fields to dependent fields.
//
// With a Fetcher the dependents' options are refetched whenever a driver
// changes; an empty driver resets them to the placeholder only. Without a
// Fetcher the edge only clears the dependents' values, subject to Policy.
type Edge struct {
	Name    string
	Drivers []form.Pattern
	// Optional drivers join Drivers only when the form has them, like an
	// institution select shown to administrators of several institutions.
	Optional   []form.Pattern
	Dependents []form.Pattern
	Fetcher    options.Fetcher
	// Policy decides whether dependent values are cleared as soon as a driver
	// changes. Fetch edges default to ClearNever (a selection survives when
	// the new list still contains it); clear-only edges default to
	// ClearAlways.
	Policy ClearPolicy
	// AllowPartial fetches even when some drivers are empty. By default every
	// driver must have a value.
	AllowPartial bool
}

func (e Edge) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("dependent: edge name is required")
	}
	if len(e.Drivers) == 0 {
		return fmt.Errorf("dependent: edge %s: at least one driver is required", e.Name)
	}
	if len(e.Dependents) == 0 {
		return fmt.Errorf("dependent: edge %s: at least one dependent is required", e.Name)
	}
	return nil
}

func (e Edge) policy() ClearPolicy {
	if e.Policy != nil {
		return e.Policy
	}
	if e.Fetcher == nil {
		return ClearAlways
	}
	return ClearNever
}

// View is a read-only view of the form scoped to the row an edge is bound to.
type View interface {
	Value(p form.Pattern) string
	Label(p form.Pattern) string
	Visible(p form.Pattern) bool
}

// ClearPolicy decides whether a driver change clears the dependents.
type ClearPolicy interface {
	ShouldClear(view View, change form.Change) bool
}

// ClearPolicyFunc adapts a function into a ClearPolicy.
type ClearPolicyFunc func(view View, change form.Change) bool

// ShouldClear delegates to the underlying function.
func (fn ClearPolicyFunc) ShouldClear(view View, change form.Change) bool {
	return fn(view, change)
}

var (
	// ClearAlways clears dependents on every driver change.
	ClearAlways ClearPolicy = ClearPolicyFunc(func(View, form.Change) bool { return true })
	// ClearNever leaves dependent values alone.
	ClearNever ClearPolicy = ClearPolicyFunc(func(View, form.Change) bool { return false })
)

// ClearWhen clears only when pred holds for the current form.
func ClearWhen(pred func(View) bool) ClearPolicy {
	return ClearPolicyFunc(func(view View, _ form.Change) bool {
		return pred != nil && pred(view)
	})
}

// SkipFirst wraps policy so the first driver change observed by each binding
// never clears. Used for drivers whose first change is the form filling in a
// saved value.
func SkipFirst(policy ClearPolicy) ClearPolicy {
	return &skipFirst{next: policy}
}

type skipFirst struct {
	next ClearPolicy
}

func (s *skipFirst) ShouldClear(view View, change form.Change) bool {
	if first, ok := view.(interface{ firstObservation() bool }); ok && first.firstObservation() {
		return false
	}
	return s.next.ShouldClear(view, change)
}

type scopeView struct {
	form  *form.Form
	row   *form.Row
	first bool
}

func (v scopeView) field(p form.Pattern) (*form.Field, bool) {
	return v.form.LocateIn(v.row, p)
}

func (v scopeView) Value(p form.Pattern) string {
	if field, ok := v.field(p); ok {
		return field.Value()
	}
	return ""
}

func (v scopeView) Label(p form.Pattern) string {
	if field, ok := v.field(p); ok {
		return field.Label()
	}
	return ""
}

func (v scopeView) Visible(p form.Pattern) bool {
	if field, ok := v.field(p); ok {
		return field.Visible()
	}
	return false
}

func (v scopeView) firstObservation() bool { return v.first }

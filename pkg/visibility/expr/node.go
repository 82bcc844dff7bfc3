package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-matricula/pkg/visibility"
)

type node interface {
	eval(ctx visibility.Context) (bool, error)
}

type operand struct {
	ident     string
	literal   any
	isLiteral bool
}

func (o operand) resolve(ctx visibility.Context) any {
	if o.isLiteral {
		return o.literal
	}
	if key, ok := strings.CutPrefix(o.ident, "extras."); ok {
		return ctx.Extras[key]
	}
	return ctx.Values[o.ident]
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(ctx)
}

type andNode struct{ left, right node }

func (n andNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(ctx)
}

type notNode struct{ inner node }

func (n notNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	return !ok, err
}

type truthyNode struct{ value operand }

func (n truthyNode) eval(ctx visibility.Context) (bool, error) {
	return truthy(n.value.resolve(ctx)), nil
}

type inNode struct {
	value operand
	list  []operand
}

func (n inNode) eval(ctx visibility.Context) (bool, error) {
	v := n.value.resolve(ctx)
	for _, item := range n.list {
		if c, ok := compare(v, item.resolve(ctx)); ok && c == 0 {
			return true, nil
		}
	}
	return false, nil
}

type cmpNode struct {
	op          string
	left, right operand
}

func (n cmpNode) eval(ctx visibility.Context) (bool, error) {
	l, r := n.left.resolve(ctx), n.right.resolve(ctx)
	c, ok := compare(l, r)
	switch n.op {
	case "==":
		return ok && c == 0, nil
	case "!=":
		return !ok || c != 0, nil
	}
	if !ok {
		return false, nil
	}
	switch n.op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("expr: unknown operator %q", n.op)
}

// compare orders two values. Numbers compare numerically, strings that both
// parse as numbers do too, everything else compares as text. nil only equals
// nil or the empty string.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		if isEmpty(a) && isEmpty(b) {
			return 0, true
		}
		return 0, false
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			bb = truthy(b)
		}
		if ab == bb {
			return 0, true
		}
		return 1, true
	}
	if _, ok := b.(bool); ok {
		return compare(b, a)
	}
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return strings.Compare(text(a), text(b)), true
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		return s != "" && s != "false" && s != "0"
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}

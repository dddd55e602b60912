package eval

import (
	"context"
	"reflect"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/interp/resolver"
)

func init() {
	Register(ast.DirectiveWhen, ast.SubtypeWhenMatch, evalWhen)
}

// evalWhen implements spec.md §4.3's when: "Conditional with pattern
// arms; first matching arm's action runs. Patterns include equality,
// truthiness, and wildcard." Grounded on cli/internal/builtins/when.go's
// pattern-branch matching idiom, adapted from decorator pattern schemas
// to directly-evaluated conditions/actions node pairs.
func evalWhen(ctx context.Context, ec *Context, d *ast.Directive) error {
	conds := d.Slot("conditions")
	actions := d.Slot("actions")
	for i, cond := range conds {
		matched, err := evalWhenCondition(ec, cond)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}
		if i >= len(actions) {
			return nil
		}
		return evalWhenAction(ctx, ec, actions[i])
	}
	return nil
}

// evalWhenCondition reports whether cond matches spec.md §4.3's three
// pattern kinds: the bare wildcard identifier `*` always matches; an
// `==` node compares its two resolved sides for equality; anything else
// resolves and is matched by truthiness.
func evalWhenCondition(ec *Context, cond ast.Node) (bool, error) {
	if ref, ok := cond.(*ast.VariableRef); ok && ref.Name == "*" {
		return true, nil
	}
	if eq, ok := cond.(*ast.EqualityExpr); ok {
		left, err := ec.Resolver.Resolve(eq.Left, ec.Env, resolver.DataStructure)
		if err != nil {
			return false, err
		}
		right, err := ec.Resolver.Resolve(eq.Right, ec.Env, resolver.DataStructure)
		if err != nil {
			return false, err
		}
		return valuesEqual(left, right), nil
	}
	resolved, err := ec.Resolver.Resolve(cond, ec.Env, resolver.DataStructure)
	if err != nil {
		return false, err
	}
	return isTruthy(resolved), nil
}

// valuesEqual compares two resolved values for the when directive's
// equality pattern, normalizing numeric comparisons the same way JSON
// decoding already normalizes every number to float64.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return reflect.DeepEqual(a, b)
	}
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// evalWhenAction renders the matched arm's action value and appends it
// to the document output.
func evalWhenAction(ctx context.Context, ec *Context, action ast.Node) error {
	text, err := ec.renderShowValue(ctx, action)
	if err != nil {
		return err
	}
	ec.Out.WriteString(text)
	return nil
}

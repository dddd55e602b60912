package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/collection"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/interp/variable"
)

func init() {
	Register(ast.DirectiveVar, ast.SubtypeVar, evalVar)
}

// evalVar implements spec.md §4.3's var: "Bind name to the evaluated
// right-hand side. Value preserves its inferred type."
func evalVar(ctx context.Context, ec *Context, d *ast.Directive) error {
	name := d.Slot("name")[0].(*ast.Text).Value
	valNode := d.Slot("value")[0]
	v, err := evalValueNode(ctx, ec, valNode, name, variable.OriginLiteral)
	if err != nil {
		return err
	}
	ec.Env.Set(name, v)
	return nil
}

// evalValueNode binds a var value node to a *variable.Variable,
// special-casing the two shapes package resolver does not itself cover:
// a nested inline `run` directive (the parser's literal-scenario-1
// accommodation) and object/array literals, which must go through
// package collection for spec.md §4.2's error-isolation contract rather
// than the resolver's error-propagating literal path.
func evalValueNode(ctx context.Context, ec *Context, node ast.Node, name string, origin variable.Origin) (*variable.Variable, error) {
	if rd, ok := node.(*ast.Directive); ok {
		if rd.Kind_D != ast.DirectiveRun {
			return nil, errs.New(errs.KindTypeMismatch, "unsupported nested directive %s in value position", rd.Kind_D)
		}
		out, err := evalRunValue(ctx, ec, rd)
		if err != nil {
			return nil, err
		}
		return variable.NewText(name, out, origin), nil
	}
	if lit, ok := node.(*ast.Literal); ok {
		switch lit.LitKind {
		case ast.LiteralObject:
			return variable.NewData(name, collection.EvaluateObject(ec.Resolver, lit, ec.Env), nil, origin)
		case ast.LiteralArray:
			return variable.NewData(name, collection.EvaluateArray(ec.Resolver, lit, ec.Env), nil, origin)
		}
	}
	resolved, err := ec.Resolver.Resolve(node, ec.Env, resolver.DataStructure)
	if err != nil {
		return nil, err
	}
	return valueToVariable(name, resolved, origin)
}

func valueToVariable(name string, resolved any, origin variable.Origin) (*variable.Variable, error) {
	switch v := resolved.(type) {
	case *variable.Variable:
		return variable.NewAlias(name, v, origin), nil
	case string:
		return variable.NewText(name, v, origin), nil
	default:
		return variable.NewData(name, v, nil, origin)
	}
}

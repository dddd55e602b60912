package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/resolver"
)

func init() {
	Register(ast.DirectiveFor, ast.SubtypeForIterate, evalFor)
}

// evalFor implements spec.md §4.3's for: "Iterate over an array, binding
// each element to a loop variable, evaluating the body, collecting
// results." Body directives run in a child scope per iteration; any
// Text nodes in the body are appended to the parent's output.
func evalFor(ctx context.Context, ec *Context, d *ast.Directive) error {
	itemSlot := d.Slot("item")
	iterableSlot := d.Slot("iterable")
	if len(itemSlot) == 0 || len(iterableSlot) == 0 {
		return errs.New(errs.KindTypeMismatch, "for directive is missing its item or iterable").At(ec.Env.CurrentFilePath, d.Location())
	}
	itemText, ok := itemSlot[0].(*ast.Text)
	if !ok {
		return errs.New(errs.KindTypeMismatch, "for directive's item is not a name").At(ec.Env.CurrentFilePath, d.Location())
	}
	itemName := itemText.Value
	iterableNode := iterableSlot[0]

	resolved, err := ec.Resolver.Resolve(iterableNode, ec.Env, resolver.DataStructure)
	if err != nil {
		return err
	}
	arr, ok := resolved.([]any)
	if !ok {
		return errs.New(errs.KindTypeMismatch, "for loop iterable is not an array").At(ec.Env.CurrentFilePath, iterableNode.Location())
	}

	body := d.Slot("body")
	for _, elem := range arr {
		iterEnv := ec.Env.CreateChild()
		iterEnv.Set(itemName, scalarToVariable(itemName, elem))
		iterEC := ec.child(iterEnv)
		for _, n := range body {
			switch node := n.(type) {
			case *ast.Text:
				iterEC.Out.WriteString(node.Value)
			case *ast.Directive:
				if err := dispatch(ctx, iterEC, node); err != nil {
					return err
				}
			}
		}
		ec.Out.WriteString(iterEC.Out.String())
	}
	return nil
}

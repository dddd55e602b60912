package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
)

func init() {
	Register(ast.DirectiveExport, ast.Subtype(""), evalExport)
}

// evalExport marks each named binding as exported (spec.md §4.2's
// merge_child_into, Environment.MergeChildInto, copies only marked
// names upward). The import directive does not consult these marks.
func evalExport(ctx context.Context, ec *Context, d *ast.Directive) error {
	for _, n := range d.Slot("names") {
		ref, ok := n.(*ast.VariableRef)
		if !ok {
			continue
		}
		if ec.Env.Get(ref.Name) == nil {
			return errs.New(errs.KindVariableNotFound, "cannot export undefined variable @%s", ref.Name).
				At(ec.Env.CurrentFilePath, ref.Location()).SuggestName(ref.Name, ec.Env.Names())
		}
		ec.Env.MarkExported(ref.Name)
	}
	return nil
}

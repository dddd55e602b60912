package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
)

// Interpret walks prog's top-level nodes in document order (spec.md §5
// "Directives run in document order"), writing Text nodes verbatim and
// dispatching Directive nodes to their registered Handler. The caller is
// responsible for checking parser.Result.Errors first — parse errors
// abort the whole run (spec.md §7) and Interpret assumes a clean parse.
func Interpret(ctx context.Context, prog *ast.Program, ec *Context) (string, error) {
	for _, n := range prog.Nodes {
		switch node := n.(type) {
		case *ast.Text:
			ec.Out.WriteString(node.Value)
		case *ast.Directive:
			if err := dispatch(ctx, ec, node); err != nil {
				return "", err
			}
		case *ast.ErrorNode:
			return "", errs.New(errs.KindParseError, "%s", node.Message).At(ec.Env.CurrentFilePath, node.Location())
		default:
			// Comment/PathSeparator/DotSeparator never appear at top level.
		}
	}
	return ec.Out.String(), nil
}

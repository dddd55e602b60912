package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
)

func init() {
	Register(ast.DirectiveRun, ast.SubtypeRunCommand, evalRun)
	Register(ast.DirectiveRun, ast.SubtypeRunCode, evalRun)
	Register(ast.DirectiveRun, ast.SubtypeRunExec, evalRun)
}

// evalRun implements spec.md §4.3's run: runCommand/runCode execute
// inline and may produce document output; runExec invokes a named
// executable.
func evalRun(ctx context.Context, ec *Context, d *ast.Directive) error {
	out, err := evalRunValue(ctx, ec, d)
	if err != nil {
		return err
	}
	ec.Out.WriteString(out)
	return nil
}

// evalRunValue evaluates a run directive to its final output string,
// including any attached pipeline. Shared by evalRun (top-level run
// directive) and evalVar (a run used as a var's right-hand side).
func evalRunValue(ctx context.Context, ec *Context, d *ast.Directive) (string, error) {
	body := d.Slot("body")[0]

	invoke := func() (any, error) {
		switch d.Subtype {
		case ast.SubtypeRunExec:
			ref, ok := body.(*ast.VariableRef)
			if !ok {
				return nil, errs.New(errs.KindTypeMismatch, "run exec body is not a variable reference")
			}
			return ec.invokeByName(ctx, ref.Name, nil, ec.Env)
		case ast.SubtypeRunCode:
			return ec.runCodeBody(ctx, body, ec.Env)
		default: // SubtypeRunCommand
			return ec.runShellBody(ctx, body, ec.Env)
		}
	}

	raw, err := invoke()
	if err != nil {
		return "", err
	}
	base := toOutputString(raw)

	var with *ast.WithClause
	if w, ok := d.Meta["with"].(*ast.WithClause); ok {
		with = w
	}
	if with == nil || len(with.Pipeline) == 0 {
		return base, nil
	}

	source := func(context.Context) (string, error) {
		r, err := invoke()
		if err != nil {
			return "", err
		}
		return toOutputString(r), nil
	}
	return ec.runPipeline(ctx, with, base, source)
}

package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/interp/variable"
)

func init() {
	Register(ast.DirectiveExe, ast.SubtypeExecCommand, evalExe)
	Register(ast.DirectiveExe, ast.SubtypeExecCode, evalExe)
	Register(ast.DirectiveExe, ast.SubtypeExecTemplate, evalExe)
}

// evalExe implements spec.md §4.3's exe: "Define a named executable
// closure with ordered parameters and a body... Body is stored
// un-evaluated; free variables are captured lexically."
func evalExe(ctx context.Context, ec *Context, d *ast.Directive) error {
	name := d.Slot("name")[0].(*ast.Text).Value

	var params []string
	if p, ok := d.Meta["params"].([]string); ok {
		params = p
	}

	var bodyKind variable.ExecutableBodyKind
	switch d.Subtype {
	case ast.SubtypeExecCommand:
		bodyKind = variable.BodyCommand
	case ast.SubtypeExecCode:
		bodyKind = variable.BodyCode
	case ast.SubtypeExecTemplate:
		bodyKind = variable.BodyTemplate
	}

	var with *ast.WithClause
	if w, ok := d.Meta["with"].(*ast.WithClause); ok {
		with = w
	}

	exec := &variable.Executable{
		ParamNames: params,
		BodyKind:   bodyKind,
		Body:       d.Slot("body")[0],
		With:       with,
		// Closure captures the defining environment by reference (spec.md
		// §9): mutations to bindings visible from here after this point are
		// visible at invocation time too, since Closure is the live scope,
		// not a snapshot.
		Closure: ec.Env,
	}
	ec.Env.DefineExec(name, exec, variable.OriginLiteral)
	return nil
}

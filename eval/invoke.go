package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/interp/variable"
	"github.com/mlld-lang/mlld-core/pipeline"
)

// ParamNames implements pipeline.Invoker: it reports target's declared
// parameter names, or ok=false when target isn't a known executable
// (spec.md §4.5's smart parameter binding needs this to decide 0/1/many).
func (ec *Context) ParamNames(target string) ([]string, bool) {
	v := ec.Env.Get(target)
	if v == nil {
		return nil, false
	}
	u := v.Unwrap()
	if u.Kind != variable.KindExecutable {
		return nil, false
	}
	return u.Exec.ParamNames, true
}

// Invoke implements pipeline.Invoker: runs target inside stageEnv, which
// already carries @input and @ctx.
func (ec *Context) Invoke(ctx context.Context, target string, args []any, stageEnv *env.Environment) (any, error) {
	v := stageEnv.Get(target)
	if v == nil {
		return nil, errs.New(errs.KindUnknownExecutable, "unknown pipeline stage %q", target).SuggestName(target, stageEnv.Names())
	}
	return ec.invokeExecutable(ctx, v.Unwrap(), args, stageEnv)
}

// invokeByName looks up and invokes name in callerEnv — the path a
// `runExec` or stage target without a resolved Variable already in hand
// takes.
func (ec *Context) invokeByName(ctx context.Context, name string, args []any, callerEnv *env.Environment) (any, error) {
	v := callerEnv.Get(name)
	if v == nil {
		return nil, errs.New(errs.KindUnknownExecutable, "unknown executable %q", name).SuggestName(name, callerEnv.Names())
	}
	u := v.Unwrap()
	if u.Kind != variable.KindExecutable {
		return nil, errs.New(errs.KindTypeMismatch, "%q is not an executable", name)
	}
	return ec.invokeExecutable(ctx, u, args, callerEnv)
}

// invokeExecutable is spec.md §4.4's invocation contract: bind
// parameters in a child of the executable's closure, run the body, then
// apply any attached pipeline.
func (ec *Context) invokeExecutable(ctx context.Context, v *variable.Variable, args []any, callerEnv *env.Environment) (any, error) {
	exec := v.Exec
	if len(args) > len(exec.ParamNames) {
		return nil, errs.New(errs.KindArityMismatch, "%s expects %d argument(s), got %d", v.Name, len(exec.ParamNames), len(args))
	}
	base, _ := exec.Closure.(*env.Environment)
	if base == nil {
		base = callerEnv.Root()
	}
	child := base.CreateChild()
	for i, pname := range exec.ParamNames {
		var val any
		if i < len(args) {
			val = args[i]
		}
		child.Set(pname, scalarToVariable(pname, val))
	}

	var raw any
	var err error
	switch exec.BodyKind {
	case variable.BodyTemplate:
		raw, err = ec.interpolateTemplateBody(exec.Body, child)
	case variable.BodyCommand:
		raw, err = ec.runShellBody(ctx, exec.Body, child)
	case variable.BodyCode:
		raw, err = ec.runCodeBody(ctx, exec.Body, child)
	default:
		return nil, errs.New(errs.KindInternalInvariant, "executable %q has unknown body kind %q", v.Name, exec.BodyKind)
	}
	if err != nil {
		return nil, err
	}

	if exec.With != nil && len(exec.With.Pipeline) > 0 {
		s := toOutputString(raw)
		source := func(context.Context) (string, error) { return s, nil }
		return ec.runPipeline(ctx, exec.With, s, source)
	}
	return raw, nil
}

func scalarToVariable(name string, v any) *variable.Variable {
	switch t := v.(type) {
	case nil:
		return variable.NewText(name, "", variable.OriginTransformation)
	case string:
		return variable.NewText(name, t, variable.OriginTransformation)
	case *variable.Variable:
		return variable.NewAlias(name, t, variable.OriginTransformation)
	default:
		vv, err := variable.NewData(name, t, nil, variable.OriginTransformation)
		if err != nil {
			return variable.NewText(name, fmt.Sprintf("%v", t), variable.OriginTransformation)
		}
		return vv
	}
}

func (ec *Context) interpolateTemplateBody(body ast.Node, e *env.Environment) (string, error) {
	lit, ok := body.(*ast.Literal)
	if !ok || lit.LitKind != ast.LiteralString {
		return "", errs.New(errs.KindTypeMismatch, "template body is not a string literal")
	}
	if lit.Style == ast.StringSingle {
		return lit.Str, nil
	}
	regime := resolver.RegimeDouble
	if lit.Style == ast.StringBacktick {
		regime = resolver.RegimeBacktick
	}
	return ec.Resolver.Interpolate(lit.Interp, e, regime)
}

// resolveBodyText interpolates a command/code body's text and reports
// the runtime language key it should run under (spec.md §4.4).
func (ec *Context) resolveBodyText(body ast.Node, e *env.Environment) (text, langKey string, err error) {
	switch n := body.(type) {
	case *ast.Literal:
		if n.LitKind != ast.LiteralString {
			return "", "", errs.New(errs.KindTypeMismatch, "command body is not a string")
		}
		if n.Style == ast.StringSingle {
			return n.Str, "sh", nil
		}
		regime := resolver.RegimeDouble
		if n.Style == ast.StringBacktick {
			regime = resolver.RegimeBacktick
		}
		text, err = ec.Resolver.Interpolate(n.Interp, e, regime)
		return text, "sh", err
	case *ast.CodeFence:
		text, err = ec.Resolver.Interpolate(n.Content, e, resolver.RegimeBacktick)
		langKey = n.Language
		if langKey == "" {
			langKey = "sh"
		}
		return text, langKey, err
	default:
		return "", "", errs.New(errs.KindTypeMismatch, "unsupported command/code body node %s", body.NodeKind())
	}
}

func (ec *Context) runShellBody(ctx context.Context, body ast.Node, e *env.Environment) (any, error) {
	text, langKey, err := ec.resolveBodyText(body, e)
	if err != nil {
		return nil, err
	}
	return ec.execute(ctx, langKey, text, e)
}

func (ec *Context) runCodeBody(ctx context.Context, body ast.Node, e *env.Environment) (any, error) {
	fence, ok := body.(*ast.CodeFence)
	if !ok {
		return nil, errs.New(errs.KindTypeMismatch, "code body is not a code fence")
	}
	text, err := ec.Resolver.Interpolate(fence.Content, e, resolver.RegimeBacktick)
	if err != nil {
		return nil, err
	}
	langKey := fence.Language
	if langKey == "" {
		langKey = "sh"
	}
	out, err := ec.execute(ctx, langKey, text, e)
	if err != nil {
		return nil, err
	}
	s, _ := out.(string)
	var decoded any
	if json.Unmarshal([]byte(s), &decoded) == nil {
		if _, isMap := decoded.(map[string]any); isMap {
			return decoded, nil
		}
	}
	return s, nil
}

func (ec *Context) execute(ctx context.Context, langKey, body string, e *env.Environment) (any, error) {
	result, err := ec.Runtimes.Run(ctx, langKey, body, envVarsFromEnv(e), "", "", 0)
	if err != nil {
		return nil, errs.New(errs.KindExecutionFailure, "%s: %v", langKey, err).Because(err)
	}
	if result.ExitCode != 0 {
		return nil, errs.New(errs.KindExecutionFailure, "%s exited %d: %s", langKey, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return strings.TrimRight(result.Stdout, "\n"), nil
}

func envVarsFromEnv(e *env.Environment) map[string]string {
	out := make(map[string]string)
	for _, name := range e.Names() {
		v := e.Get(name)
		if v == nil {
			continue
		}
		if text, err := v.AsText(); err == nil {
			out[name] = text
		}
	}
	return out
}

// runPipeline wires a withClause.pipeline into package pipeline,
// supplying ec itself as the Invoker (spec.md §4.6).
func (ec *Context) runPipeline(ctx context.Context, with *ast.WithClause, baseInput string, source pipeline.SourceFunc) (string, error) {
	pl := &pipeline.Pipeline{
		Stages:  with.Pipeline,
		Source:  source,
		Invoker: ec,
		BaseEnv: ec.Env,
		Mode:    ec.Resolver.Mode,
	}
	return pl.Run(ctx, baseInput)
}

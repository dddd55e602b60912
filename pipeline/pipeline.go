// Package pipeline implements spec.md §4.5's pipeline executor: given an
// ordered list of stages and an initial input, drives package
// pipeline/state's pure machine to a final output, invoking each
// commanded stage through an injected Invoker (executable invocation
// itself belongs to package eval, which supplies the Invoker to avoid an
// import cycle — this package never calls into eval directly).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/interp/variable"
	"github.com/mlld-lang/mlld-core/pipeline/state"
)

// StageContext is the rich per-stage context spec.md §3 describes,
// exposed to stage code as `@ctx`.
type StageContext struct {
	Stage           int
	Attempt         int
	ContextAttempt  int
	History         []string
	PreviousOutputs map[int]string
	Outputs         map[int]string
	ContextID       string
	Hint            any
	Hints           []any
	TotalStages     int
}

// AsMap renders the StageContext as the structured value `@ctx` resolves
// to inside a stage's environment.
func (c StageContext) AsMap() map[string]any {
	prev := make(map[string]any, len(c.PreviousOutputs))
	for k, v := range c.PreviousOutputs {
		prev[strconv.Itoa(k)] = v
	}
	outs := make(map[string]any, len(c.Outputs))
	for k, v := range c.Outputs {
		outs[strconv.Itoa(k)] = v
	}
	hist := make([]any, len(c.History))
	for i, h := range c.History {
		hist[i] = h
	}
	return map[string]any{
		"stage":           c.Stage,
		"attempt":         c.Attempt,
		"contextAttempt":  c.ContextAttempt,
		"history":         hist,
		"previousOutputs": prev,
		"outputs":         outs,
		"contextId":       c.ContextID,
		"hint":            c.Hint,
		"totalStages":     c.TotalStages,
	}
}

// Invoker dispatches one pipeline stage to either a user executable or a
// built-in transformer (spec.md §4.6's "role-registry pattern... for
// dispatching a pipeline stage").
type Invoker interface {
	// ParamNames reports the declared parameter names of target, and
	// whether target is a known invocable (an executable or transformer)
	// at all — a false ok means UnknownExecutable.
	ParamNames(target string) (params []string, ok bool)
	// Invoke runs target with positional args inside stageEnv (which
	// already carries @input and @ctx) and returns its raw, un-normalised
	// result.
	Invoke(ctx context.Context, target string, args []any, stageEnv *env.Environment) (any, error)
}

// SourceFunc re-invokes the call a pipeline was built from, for a retry
// targeting stage 0 (spec.md §4.5 "Source re-execution"). A nil
// SourceFunc means the pipeline is not retryable.
type SourceFunc func(ctx context.Context) (string, error)

// Pipeline is one ordered chain of stages plus its originating source.
type Pipeline struct {
	Stages  []ast.PipelineStageSpec
	Source  SourceFunc
	Invoker Invoker
	BaseEnv *env.Environment
	Mode    resolver.Mode
}

// Run drives the pipeline to completion, returning the final output
// string or an errs.Error (KindPipelineAbort / KindPipelineStageError).
func (p *Pipeline) Run(ctx context.Context, baseInput string) (string, error) {
	m := state.New(len(p.Stages), p.Source != nil)
	r := resolver.New(p.Mode)
	globalAttempt := make(map[int]int)

	action := m.Start(baseInput)
	for {
		switch action.Kind {
		case state.Complete:
			return action.Output, nil
		case state.Abort:
			return "", errs.New(errs.KindPipelineAbort, "%s", action.Reason)
		case state.ActionError:
			return "", errs.New(errs.KindPipelineStageError, "stage %d failed", action.Stage).Because(action.Err)
		case state.ExecuteStage:
			globalAttempt[action.Stage]++
			var result state.StageResult
			if action.Stage == 0 {
				result = p.runSource(ctx, action)
			} else {
				result = p.runStage(ctx, m, r, action, globalAttempt[action.Stage])
			}
			action = m.Advance(result)
		default:
			return "", fmt.Errorf("pipeline: unhandled action kind %q", action.Kind)
		}
	}
}

func (p *Pipeline) runSource(ctx context.Context, action state.Action) state.StageResult {
	if p.Source == nil {
		return state.StageResult{Stage: 0, Kind: state.Error, Err: fmt.Errorf("pipeline source is not re-invocable")}
	}
	out, err := p.Source(ctx)
	if err != nil {
		return state.StageResult{Stage: 0, Kind: state.Error, Err: err}
	}
	return state.StageResult{Stage: 0, Kind: state.Success, Output: out}
}

func (p *Pipeline) runStage(ctx context.Context, m *state.Machine, r *resolver.Resolver, action state.Action, globalAttempt int) state.StageResult {
	spec := p.Stages[action.Stage-1]
	input := m.Outputs[action.Stage-1]

	sc := StageContext{
		Stage:           action.Stage,
		Attempt:         globalAttempt,
		ContextAttempt:  action.ContextAttempt,
		History:         m.History(action.Stage),
		PreviousOutputs: m.PreviousOutputs(action.Stage),
		Outputs:         copyOutputs(m.Outputs),
		Hint:            action.Hint,
		TotalStages:     len(p.Stages),
	}
	if m.Active != nil {
		sc.ContextID = m.Active.ID
		sc.Hints = m.Active.Hints
	}

	stageEnv := p.BaseEnv.CreateChild()
	stageEnv.Set("input", variable.NewText("input", input, variable.OriginTransformation))
	stageEnv.Set("ctx", variable.NewStructured("ctx", sc.AsMap(), variable.OriginTransformation))

	args, err := p.bindArgs(spec, input, stageEnv, r)
	if err != nil {
		return state.StageResult{Stage: action.Stage, Kind: state.Error, Err: err}
	}

	raw, err := p.Invoker.Invoke(ctx, spec.Target, args, stageEnv)
	if err != nil {
		return state.StageResult{Stage: action.Stage, Kind: state.Error, Err: err}
	}

	kind, output, retryFrom, hint, err := interpretResult(raw)
	if err != nil {
		return state.StageResult{Stage: action.Stage, Kind: state.Error, Err: err}
	}
	return state.StageResult{Stage: action.Stage, Kind: kind, Output: output, RetryFrom: retryFrom, Hint: hint}
}

// bindArgs implements spec.md §4.5's smart parameter binding when a
// stage is invoked without explicit arguments, and otherwise resolves
// the stage's explicit argument nodes (rejecting an explicit @input
// argument, since it is implicit).
func (p *Pipeline) bindArgs(spec ast.PipelineStageSpec, input string, stageEnv *env.Environment, r *resolver.Resolver) ([]any, error) {
	if len(spec.Args) > 0 {
		out := make([]any, 0, len(spec.Args))
		for _, a := range spec.Args {
			if ref, ok := a.(*ast.VariableRef); ok && ref.Name == "input" && len(ref.Fields) == 0 {
				return nil, fmt.Errorf("pipeline stage %q: explicit @input argument is not allowed; it is passed implicitly", spec.Target)
			}
			v, err := r.Resolve(a, stageEnv, resolver.PipelineInput)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	params, ok := p.Invoker.ParamNames(spec.Target)
	if !ok {
		return nil, errs.New(errs.KindUnknownExecutable, "unknown pipeline stage %q", spec.Target)
	}
	switch len(params) {
	case 0:
		return nil, nil
	case 1:
		return []any{input}, nil
	default:
		if obj, ok := parseJSONObject(input); ok {
			matches := true
			for _, name := range params {
				if _, present := obj[name]; !present {
					matches = false
					break
				}
			}
			if matches {
				out := make([]any, len(params))
				for i, name := range params {
					out[i] = obj[name]
				}
				return out, nil
			}
		}
		out := make([]any, len(params))
		out[0] = input
		for i := 1; i < len(params); i++ {
			out[i] = ""
		}
		return out, nil
	}
}

func parseJSONObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// interpretResult implements spec.md §4.5 step 3: classify a stage's raw
// return value into a retry signal, early-terminating empty string, or a
// normalised success output.
func interpretResult(raw any) (kind state.ResultKind, output string, retryFrom *int, hint any, err error) {
	switch v := raw.(type) {
	case nil:
		return state.Success, "", nil, nil, nil
	case string:
		if v == "retry" {
			return state.Retry, "", nil, nil, nil
		}
		return state.Success, v, nil, nil, nil
	case map[string]any:
		if val, ok := v["value"].(string); ok && val == "retry" {
			var from *int
			if f, ok := v["from"]; ok {
				n, cerr := toInt(f)
				if cerr != nil {
					return "", "", nil, nil, cerr
				}
				from = &n
			}
			return state.Retry, "", from, v["hint"], nil
		}
		return state.Success, normalizeObject(v), nil, nil, nil
	default:
		return state.Success, toStringValue(v), nil, nil, nil
	}
}

// normalizeObject implements spec.md §4.5's Normalisation rule: a
// {content, filename} object unwraps to its content; any other object
// JSON-stringifies.
func normalizeObject(v map[string]any) string {
	if content, ok := v["content"]; ok {
		if _, hasFilename := v["filename"]; hasFilename {
			return toStringValue(content)
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func toStringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("cannot interpret %T as a stage index", v)
	}
}

func copyOutputs(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

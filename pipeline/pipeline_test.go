package pipeline

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
)

// stubInvoker is a minimal pipeline.Invoker backed by Go closures, used
// to drive the executor without package eval's real executable
// invocation machinery (spec.md §9: "keep the state machine pure... so
// tests can drive it synthetically").
type stubInvoker struct {
	params map[string][]string
	fns    map[string]func(args []any, stageEnv *env.Environment) (any, error)
}

func (s *stubInvoker) ParamNames(target string) ([]string, bool) {
	p, ok := s.params[target]
	return p, ok
}

func (s *stubInvoker) Invoke(ctx context.Context, target string, args []any, stageEnv *env.Environment) (any, error) {
	fn, ok := s.fns[target]
	if !ok {
		return nil, errUnknown(target)
	}
	return fn(args, stageEnv)
}

type unknownStageError struct{ target string }

func (e unknownStageError) Error() string { return "unknown stage " + e.target }
func errUnknown(target string) error      { return unknownStageError{target} }

// TestBasicPipelineUppercases drives spec.md §6 scenario 1: a
// single-stage pipeline piping run output through @upper.
func TestBasicPipelineUppercases(t *testing.T) {
	inv := &stubInvoker{
		params: map[string][]string{"upper": {"s"}},
		fns: map[string]func([]any, *env.Environment) (any, error){
			"upper": func(args []any, _ *env.Environment) (any, error) {
				s, _ := args[0].(string)
				return strings.ToUpper(s), nil
			},
		},
	}
	p := &Pipeline{
		Stages:  []ast.PipelineStageSpec{{Target: "upper"}},
		Invoker: inv,
		BaseEnv: env.New("/doc.mld", nil, nil, nil),
		Mode:    resolver.Strict,
	}
	got, err := p.Run(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "HELLO WORLD" {
		t.Fatalf("Run() = %q, want %q", got, "HELLO WORLD")
	}
}

// TestSmartDestructuringBindsByParamName drives spec.md §6 scenario 2: a
// multi-param stage invoked with no explicit args destructures a JSON
// object input by matching declared parameter names.
func TestSmartDestructuringBindsByParamName(t *testing.T) {
	inv := &stubInvoker{
		params: map[string][]string{"process": {"items", "filter"}},
		fns: map[string]func([]any, *env.Environment) (any, error){
			"process": func(args []any, _ *env.Environment) (any, error) {
				return "Processing " + toStr(args[0]) + " with filter " + toStr(args[1]), nil
			},
		},
	}
	p := &Pipeline{
		Stages:  []ast.PipelineStageSpec{{Target: "process"}},
		Invoker: inv,
		BaseEnv: env.New("/doc.mld", nil, nil, nil),
		Mode:    resolver.Strict,
	}
	got, err := p.Run(context.Background(), `{"items":[1,2,3],"filter":"active"}`)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "Processing [1,2,3] with filter active"
	if got != want {
		t.Fatalf("Run() = %q, want %q", got, want)
	}
}

func toStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if f, ok := e.(float64); ok {
				parts[i] = strconv.FormatInt(int64(f), 10)
			}
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return ""
	}
}

// TestEmptyStageOutputTerminatesEarly drives spec.md §8's boundary: an
// empty string from any stage completes the pipeline immediately with
// "".
func TestEmptyStageOutputTerminatesEarly(t *testing.T) {
	inv := &stubInvoker{
		params: map[string][]string{"s1": {"s"}, "s2": {"s"}},
		fns: map[string]func([]any, *env.Environment) (any, error){
			"s1": func(args []any, _ *env.Environment) (any, error) { return "", nil },
			"s2": func(args []any, _ *env.Environment) (any, error) { return "unreachable", nil },
		},
	}
	p := &Pipeline{
		Stages:  []ast.PipelineStageSpec{{Target: "s1"}, {Target: "s2"}},
		Invoker: inv,
		BaseEnv: env.New("/doc.mld", nil, nil, nil),
		Mode:    resolver.Strict,
	}
	got, err := p.Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Run() = %q, want empty string (early termination)", got)
	}
}

// TestRetryStructuredResultDrivesRetry exercises the { value: "retry" }
// structured retry signal end to end through the executor.
func TestRetryStructuredResultDrivesRetry(t *testing.T) {
	calls := 0
	inv := &stubInvoker{
		params: map[string][]string{"src": {}, "flaky": {"s"}},
		fns: map[string]func([]any, *env.Environment) (any, error){
			"src": func(args []any, _ *env.Environment) (any, error) { return "base", nil },
			"flaky": func(args []any, _ *env.Environment) (any, error) {
				calls++
				if calls < 2 {
					return map[string]any{"value": "retry"}, nil
				}
				return "done", nil
			},
		},
	}
	p := &Pipeline{
		Stages:  []ast.PipelineStageSpec{{Target: "src"}, {Target: "flaky"}},
		Invoker: inv,
		BaseEnv: env.New("/doc.mld", nil, nil, nil),
		Mode:    resolver.Strict,
	}
	got, err := p.Run(context.Background(), "base")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "done" {
		t.Fatalf("Run() = %q, want %q", got, "done")
	}
	if calls != 2 {
		t.Fatalf("flaky stage invoked %d times, want 2", calls)
	}
}

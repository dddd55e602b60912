// Package resolver implements spec.md §4.2's value resolver and
// interpolation engine: reference → value, ordered field access, and
// per-regime template interpolation. Resolution is polymorphic over the
// env.Environment's injected collaborators so it can be mocked in tests,
// per spec.md §4.2's resolver contract.
package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/variable"
)

// Context is the resolution context flag spec.md §4.2 requires: the same
// VariableReference resolves differently depending on where it appears.
type Context string

const (
	PipelineInput Context = "PipelineInput"
	FieldAccess   Context = "FieldAccess"
	DataStructure Context = "DataStructure"
	Interpolation Context = "Interpolation"
)

// Mode selects strict vs permissive resolution (spec.md §4.2
// interpolation: "Undefined reference in strict mode → VariableNotFound;
// in permissive mode → empty string").
type Mode int

const (
	Permissive Mode = iota
	Strict
)

// Resolver resolves ast.Node values against an env.Environment.
type Resolver struct {
	Mode Mode
}

// New builds a Resolver in the given mode.
func New(mode Mode) *Resolver {
	return &Resolver{Mode: mode}
}

// Resolve resolves a node to either a primitive/structured Go value, or —
// when ctx allows lazy execution and the node is an executable reference
// — the *variable.Variable itself (spec.md §4.2's "in executable
// contexts, return the Variable itself for lazy execution").
func (r *Resolver) Resolve(node ast.Node, e *env.Environment, ctx Context) (any, error) {
	switch n := node.(type) {
	case *ast.Text:
		return n.Value, nil
	case *ast.VariableRef:
		return r.resolveRef(n, e, ctx)
	case *ast.Literal:
		return r.resolveLiteral(n, e, ctx)
	case *ast.CodeFence:
		return n.Raw, nil
	default:
		return nil, errs.New(errs.KindTypeMismatch, "cannot resolve node of kind %s", node.NodeKind()).At(e.CurrentFilePath, node.Location())
	}
}

func (r *Resolver) resolveRef(ref *ast.VariableRef, e *env.Environment, ctx Context) (any, error) {
	v := e.Get(ref.Name)
	if v == nil {
		if r.Mode == Strict || ctx != Interpolation {
			return nil, errs.New(errs.KindVariableNotFound, "undefined variable @%s", ref.Name).
				At(e.CurrentFilePath, ref.Location()).SuggestName(ref.Name, e.Names())
		}
		return "", nil
	}
	val, err := r.fieldAccess(v, ref.Fields, e, ref)
	if err != nil {
		return nil, err
	}
	// A lazy executable reference in an invocation-capable context (the
	// executable itself, not one of its fields) is returned as the
	// Variable so the caller can invoke it (spec.md §4.2).
	if vv, ok := val.(*variable.Variable); ok {
		u := vv.Unwrap()
		if u.Kind == variable.KindExecutable && len(ref.Fields) == 0 {
			return u, nil
		}
		val, err = valueOf(u)
		if err != nil {
			return nil, err
		}
	}
	return val, nil
}

// fieldAccess walks ref's ordered field-access tail against v's value,
// resolving intermediate VariableReference values recursively under
// FieldAccess context (spec.md §4.2).
func (r *Resolver) fieldAccess(v *variable.Variable, tail []ast.FieldAccess, e *env.Environment, ref *ast.VariableRef) (any, error) {
	if len(tail) == 0 {
		return v, nil
	}
	cur, err := valueOf(v.Unwrap())
	if err != nil {
		return nil, err
	}
	for _, step := range tail {
		cur, err = r.stepInto(cur, step, e, ref)
		if err != nil {
			return nil, err
		}
		if nested, ok := cur.(*ast.VariableRef); ok {
			resolved, err := r.Resolve(nested, e, FieldAccess)
			if err != nil {
				return nil, err
			}
			cur = resolved
		}
	}
	return cur, nil
}

func (r *Resolver) stepInto(cur any, step ast.FieldAccess, e *env.Environment, ref *ast.VariableRef) (any, error) {
	switch step.Kind {
	case ast.FieldDot:
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, errs.New(errs.KindFieldNotFound, "cannot access .%s: %v is not an object", step.Name, describeType(cur)).At(e.CurrentFilePath, ref.Location())
		}
		val, ok := obj[step.Name]
		if !ok {
			if r.Mode == Strict {
				return nil, errs.New(errs.KindFieldNotFound, "field %q not found", step.Name).At(e.CurrentFilePath, ref.Location())
			}
			return nil, nil
		}
		return val, nil
	case ast.FieldIndex:
		arr, ok := cur.([]any)
		if !ok {
			return nil, errs.New(errs.KindFieldNotFound, "cannot index [%d]: %v is not an array", step.Index, describeType(cur)).At(e.CurrentFilePath, ref.Location())
		}
		if step.Index < 0 || step.Index >= len(arr) {
			if r.Mode == Strict {
				return nil, errs.New(errs.KindFieldNotFound, "index %d out of range (len %d)", step.Index, len(arr)).At(e.CurrentFilePath, ref.Location())
			}
			return nil, nil
		}
		return arr[step.Index], nil
	case ast.FieldDynamic:
		key, err := r.Resolve(step.Var, e, FieldAccess)
		if err != nil {
			return nil, err
		}
		keyStr := toKeyString(key)
		if arr, ok := cur.([]any); ok {
			idx, convErr := strconv.Atoi(keyStr)
			if convErr != nil {
				return nil, errs.New(errs.KindTypeMismatch, "dynamic index @%s did not resolve to an integer for array access", step.Var.Name).At(e.CurrentFilePath, ref.Location())
			}
			if idx < 0 || idx >= len(arr) {
				if r.Mode == Strict {
					return nil, errs.New(errs.KindFieldNotFound, "index %d out of range (len %d)", idx, len(arr)).At(e.CurrentFilePath, ref.Location())
				}
				return nil, nil
			}
			return arr[idx], nil
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, errs.New(errs.KindFieldNotFound, "cannot access [@%s]: %v is not an object or array", step.Var.Name, describeType(cur)).At(e.CurrentFilePath, ref.Location())
		}
		val, ok := obj[keyStr]
		if !ok && r.Mode == Strict {
			return nil, errs.New(errs.KindFieldNotFound, "field %q not found", keyStr).At(e.CurrentFilePath, ref.Location())
		}
		return val, nil
	default:
		return nil, fmt.Errorf("unknown field access kind %q", step.Kind)
	}
}

func toKeyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func describeType(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

func valueOf(v *variable.Variable) (any, error) {
	switch v.Kind {
	case variable.KindText:
		return v.Text, nil
	case variable.KindPath:
		return v.Path.Resolved, nil
	case variable.KindData:
		return v.Data, nil
	case variable.KindStructured:
		return anyMap(v.Structured), nil
	case variable.KindExecutable:
		return v, nil
	default:
		return nil, fmt.Errorf("variable %q has unresolvable kind %q", v.Name, v.Kind)
	}
}

func anyMap(m map[string]any) map[string]any { return m }

// resolveLiteral evaluates a parsed literal node. Objects/arrays are
// resolved element by element here, and the first failing element's
// error is returned for the whole literal; the error-isolating
// evaluation of spec.md §4.2 is package collection's.
func (r *Resolver) resolveLiteral(l *ast.Literal, e *env.Environment, ctx Context) (any, error) {
	switch l.LitKind {
	case ast.LiteralString:
		if l.Style == ast.StringSingle {
			return l.Str, nil
		}
		return r.Interpolate(l.Interp, e, interpRegimeFor(l.Style))
	case ast.LiteralNumber:
		return l.Number, nil
	case ast.LiteralBool:
		return l.Bool, nil
	case ast.LiteralNull:
		return nil, nil
	case ast.LiteralArray:
		out := make([]any, len(l.Array))
		for i, item := range l.Array {
			v, err := r.Resolve(item, e, DataStructure)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case ast.LiteralObject:
		out := make(map[string]any, len(l.Object))
		for _, prop := range l.Object {
			v, err := r.Resolve(prop.Value, e, DataStructure)
			if err != nil {
				return nil, err
			}
			out[prop.Key] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown literal kind %q", l.LitKind)
	}
}

// Regime names the three interpolation rule sets spec.md §4.1 describes.
type Regime string

const (
	RegimeBacktick Regime = "backtick" // @var style
	RegimeDouble   Regime = "double"   // :: triple-delimiter, @var style
	RegimeTriple   Regime = "triple"   // ::: triple-delimiter, {{var}} style
)

func interpRegimeFor(style ast.StringStyle) Regime {
	if style == ast.StringBacktick {
		return RegimeBacktick
	}
	return RegimeDouble
}

// Interpolate walks a node sequence and concatenates Text verbatim with
// VariableReference resolved textual form, collecting SecurityDescriptors
// along the way (spec.md §4.2). The regime only matters for the parser
// (which delimiter/variable syntax to recognise); by the time nodes
// reach here they are already Text/VariableRef segments, so Interpolate
// is regime-agnostic except for which ledger entries it records.
func (r *Resolver) Interpolate(segs []ast.Node, e *env.Environment, regime Regime) (string, error) {
	var b strings.Builder
	for _, seg := range segs {
		switch n := seg.(type) {
		case *ast.Text:
			b.WriteString(n.Value)
		case *ast.VariableRef:
			v := e.Get(n.Name)
			if v == nil {
				if r.Mode == Strict {
					return "", errs.New(errs.KindVariableNotFound, "undefined variable @%s", n.Name).
						At(e.CurrentFilePath, n.Location()).SuggestName(n.Name, e.Names())
				}
				continue
			}
			resolved, err := r.fieldAccess(v, n.Fields, e, n)
			if err != nil {
				return "", err
			}
			text, err := textOf(resolved)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
			e.Security.Record(n.Name, string(regime), string(v.Metadata.Origin))
		default:
			return "", fmt.Errorf("unexpected interpolation segment kind %s", seg.NodeKind())
		}
	}
	return b.String(), nil
}

func textOf(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case *variable.Variable:
		return t.AsText()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

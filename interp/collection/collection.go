// Package collection implements spec.md §4.2's collection evaluation
// contract: recursively evaluating an object/array literal's properties
// in turn, isolating a single property's failure as typed error data
// rather than aborting the whole collection. This is a deliberate
// contract for data evaluation only (spec.md §4.2) — everywhere else,
// errors propagate normally (see package resolver's generic literal
// path, used inside templates and field-access chains).
package collection

import (
	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
)

// FieldError describes the error data stored in place of a property or
// element that failed to evaluate (spec.md §4.2). EvaluateObject and
// EvaluateArray store that data as a map[string]any with these same
// keys, not as a FieldError value.
type FieldError struct {
	Error    bool   `json:"__error"`
	Message  string `json:"__message"`
	Property string `json:"__property,omitempty"`
	Index    *int   `json:"__index,omitempty"`
}

func propertyError(name string, err error) map[string]any {
	return map[string]any{"__error": true, "__message": err.Error(), "__property": name}
}

func indexError(i int, err error) map[string]any {
	return map[string]any{"__error": true, "__message": err.Error(), "__index": i}
}

// EvaluateObject evaluates an object literal's properties in source
// order. A property whose value node fails to resolve gets FieldError-
// shaped error data (__error, __message, __property) in its slot;
// sibling properties still evaluate (spec.md §4.2).
func EvaluateObject(r *resolver.Resolver, lit *ast.Literal, e *env.Environment) map[string]any {
	out := make(map[string]any, len(lit.Object))
	for _, prop := range lit.Object {
		v, err := r.Resolve(prop.Value, e, resolver.DataStructure)
		if err != nil {
			out[prop.Key] = propertyError(prop.Key, err)
			continue
		}
		out[prop.Key] = recurse(r, v, e)
	}
	return out
}

// EvaluateArray evaluates an array literal's elements in source order,
// with the same per-element error isolation as EvaluateObject.
func EvaluateArray(r *resolver.Resolver, lit *ast.Literal, e *env.Environment) []any {
	out := make([]any, len(lit.Array))
	for i, item := range lit.Array {
		v, err := r.Resolve(item, e, resolver.DataStructure)
		if err != nil {
			out[i] = indexError(i, err)
			continue
		}
		out[i] = recurse(r, v, e)
	}
	return out
}

// recurse re-evaluates a nested object/array node (the resolver already
// materialised plain nested literals to Go values; this only matters
// when a nested slot's resolution yielded a still-unresolved literal
// node, e.g. from a dynamic field access returning raw AST).
func recurse(r *resolver.Resolver, v any, e *env.Environment) any {
	if lit, ok := v.(*ast.Literal); ok {
		switch lit.LitKind {
		case ast.LiteralObject:
			return EvaluateObject(r, lit, e)
		case ast.LiteralArray:
			return EvaluateArray(r, lit, e)
		}
	}
	return v
}

package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/variable"
	"github.com/mlld-lang/mlld-core/internal/location"
)

func newRef(name string, fields ...ast.FieldAccess) *ast.VariableRef {
	r := ast.NewVariableRef("var", name, location.Span{})
	r.Fields = fields
	return r
}

// TestFieldAccessDynamicIndex drives spec.md §6 scenario 5: given
// @user = {"name":"Alice","contacts":[{"email":"a@x"},{"email":"b@y"}]}
// and @i = 1, @user.contacts[@i].email resolves to "b@y".
func TestFieldAccessDynamicIndex(t *testing.T) {
	e := env.New("/doc.mld", nil, nil, nil)
	user := map[string]any{
		"name": "Alice",
		"contacts": []any{
			map[string]any{"email": "a@x"},
			map[string]any{"email": "b@y"},
		},
	}
	uv, err := variable.NewData("user", user, nil, variable.OriginLiteral)
	if err != nil {
		t.Fatalf("NewData() error = %v", err)
	}
	e.Set("user", uv)
	iv, err := variable.NewData("i", 1.0, nil, variable.OriginLiteral)
	if err != nil {
		t.Fatalf("NewData() error = %v", err)
	}
	e.Set("i", iv)

	ref := newRef("user",
		ast.FieldAccess{Kind: ast.FieldDot, Name: "contacts"},
		ast.FieldAccess{Kind: ast.FieldDynamic, Var: newRef("i")},
		ast.FieldAccess{Kind: ast.FieldDot, Name: "email"},
	)

	r := New(Strict)
	got, err := r.Resolve(ref, e, FieldAccess)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "b@y" {
		t.Fatalf("Resolve() = %v, want b@y", got)
	}
}

func TestFieldAccessUndefinedStrictErrors(t *testing.T) {
	e := env.New("/doc.mld", nil, nil, nil)
	r := New(Strict)
	_, err := r.Resolve(newRef("missing"), e, FieldAccess)
	if err == nil {
		t.Fatal("expected VariableNotFound, got nil")
	}
	if !errs.IsKind(err, errs.KindVariableNotFound) {
		t.Fatalf("error = %v, want KindVariableNotFound", err)
	}
}

func TestInterpolationUndefinedPermissiveIsEmpty(t *testing.T) {
	e := env.New("/doc.mld", nil, nil, nil)
	r := New(Permissive)
	segs := []ast.Node{
		ast.NewText("t1", "Hello, ", location.Span{}),
		newRef("missing"),
		ast.NewText("t2", "!", location.Span{}),
	}
	got, err := r.Interpolate(segs, e, RegimeDouble)
	if err != nil {
		t.Fatalf("Interpolate() error = %v", err)
	}
	if got != "Hello, !" {
		t.Fatalf("Interpolate() = %q, want %q", got, "Hello, !")
	}
}

func TestInterpolationUndefinedStrictErrors(t *testing.T) {
	e := env.New("/doc.mld", nil, nil, nil)
	r := New(Strict)
	segs := []ast.Node{newRef("missing")}
	if _, err := r.Interpolate(segs, e, RegimeDouble); err == nil {
		t.Fatal("expected VariableNotFound in strict mode, got nil")
	}
}

func TestInterpolationWithNoVariablesIsUnchanged(t *testing.T) {
	e := env.New("/doc.mld", nil, nil, nil)
	r := New(Permissive)
	segs := []ast.Node{ast.NewText("t1", "plain text, no refs", location.Span{})}
	got, err := r.Interpolate(segs, e, RegimeBacktick)
	if err != nil {
		t.Fatalf("Interpolate() error = %v", err)
	}
	if got != "plain text, no refs" {
		t.Fatalf("Interpolate() = %q, want unchanged text", got)
	}
}

func TestResolveArrayLiteralMatchesManualWalk(t *testing.T) {
	e := env.New("/doc.mld", nil, nil, nil)
	lit := ast.NewArrayLiteral("arr", []ast.Node{
		ast.NewNumberLiteral("n1", 1, location.Span{}),
		ast.NewNumberLiteral("n2", 2, location.Span{}),
	}, location.Span{})

	r := New(Strict)
	got, err := r.Resolve(lit, e, DataStructure)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []any{1.0, 2.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/internal/location"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
)

// newTestContext builds a root Context over a fresh document environment,
// the way cmd/mlld wires one for a real run, minus config/runtime
// collaborators the tests below don't exercise.
func newTestContext(mode resolver.Mode) *Context {
	e := env.New("/doc.mld", nil, nil, nil)
	return NewContext(e, mode, nil, nil, nil)
}

func textDir(name, value string) *ast.Directive {
	d := ast.NewDirective("d1", ast.DirectiveVar, ast.SubtypeVar, location.Span{})
	d.SetSlot("name", []ast.Node{ast.NewText("n1", name, location.Span{})}, name)
	d.SetSlot("value", []ast.Node{ast.NewStringLiteral("v1", value, ast.StringSingle, nil, location.Span{})}, value)
	return d
}

// TestVarBindsTextLiteral drives eval/var.go's simplest path directly on
// a hand-built directive, bypassing the parser (which parser_test.go
// covers on its own).
func TestVarBindsTextLiteral(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	d := textDir("greeting", "hello")
	if err := evalVar(context.Background(), ec, d); err != nil {
		t.Fatalf("evalVar() error = %v", err)
	}
	v := ec.Env.Get("greeting")
	if v == nil {
		t.Fatal("greeting was not bound")
	}
	text, err := v.AsText()
	if err != nil {
		t.Fatalf("AsText() error = %v", err)
	}
	if text != "hello" {
		t.Fatalf("AsText() = %q, want %q", text, "hello")
	}
}

// TestVarBindsObjectLiteralThroughCollection exercises the object-
// literal branch of evalValueNode, which must route through package
// collection rather than the resolver's error-propagating path.
func TestVarBindsObjectLiteralThroughCollection(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	obj := ast.NewObjectLiteral("o1", []ast.ObjectProperty{
		{Key: "a", Value: ast.NewNumberLiteral("n1", 1, location.Span{})},
	}, location.Span{})
	d := ast.NewDirective("d1", ast.DirectiveVar, ast.SubtypeVar, location.Span{})
	d.SetSlot("name", []ast.Node{ast.NewText("n0", "config", location.Span{})}, "config")
	d.SetSlot("value", []ast.Node{obj}, "{a: 1}")

	if err := evalVar(context.Background(), ec, d); err != nil {
		t.Fatalf("evalVar() error = %v", err)
	}
	v := ec.Env.Get("config")
	if v == nil {
		t.Fatal("config was not bound")
	}
	m, ok := v.Unwrap().Data.(map[string]any)
	if !ok {
		t.Fatalf("Unwrap().Data = %#v, want map[string]any", v.Unwrap().Data)
	}
	if m["a"] != 1.0 {
		t.Fatalf("m[\"a\"] = %v, want 1.0", m["a"])
	}
}

// TestShowAppendsVariableText drives show's variable-reference path and
// checks it writes the resolved text to ec.Out.
func TestShowAppendsVariableText(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	if err := evalVar(context.Background(), ec, textDir("name", "world")); err != nil {
		t.Fatalf("evalVar() error = %v", err)
	}
	ref := ast.NewVariableRef("r1", "name", location.Span{})
	d := ast.NewDirective("d2", ast.DirectiveShow, ast.SubtypeShowVariable, location.Span{})
	d.SetSlot("value", []ast.Node{ref}, "@name")

	if err := evalShow(context.Background(), ec, d); err != nil {
		t.Fatalf("evalShow() error = %v", err)
	}
	if got := ec.Out.String(); got != "world" {
		t.Fatalf("Out = %q, want %q", got, "world")
	}
}

// TestShowMissingValueSlotReturnsError guards against the empty-slot
// panic a malformed parse could otherwise trigger.
func TestShowMissingValueSlotReturnsError(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	d := ast.NewDirective("d3", ast.DirectiveShow, ast.SubtypeShowVariable, location.Span{})
	if err := evalShow(context.Background(), ec, d); err == nil {
		t.Fatal("evalShow() with an empty value slot should return an error, not panic")
	}
}

// TestShowHeaderShiftRewritesAtxHeaders exercises spec.md §4.3's
// header-level shift modifier on a show/add operand.
func TestShowHeaderShiftRewritesAtxHeaders(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	lit := ast.NewStringLiteral("s1", "# Title\ntext\n## Sub", ast.StringSingle, nil, location.Span{})
	d := ast.NewDirective("d4", ast.DirectiveShow, ast.SubtypeShowTemplate, location.Span{})
	d.SetSlot("value", []ast.Node{lit}, lit.Str)
	d.Meta["with"] = &ast.WithClause{HeaderShift: 2}

	if err := evalShow(context.Background(), ec, d); err != nil {
		t.Fatalf("evalShow() error = %v", err)
	}
	got := ec.Out.String()
	if !strings.Contains(got, "### Title") || !strings.Contains(got, "#### Sub") {
		t.Fatalf("Out = %q, want headers shifted by 2 levels", got)
	}
}

// TestWhenEqualityPatternMatchesArm drives spec.md §4.3's equality
// pattern kind end to end, including the wildcard fallback arm.
func TestWhenEqualityPatternMatchesArm(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	if err := evalVar(context.Background(), ec, textDir("status", "ok")); err != nil {
		t.Fatalf("evalVar() error = %v", err)
	}

	status := ast.NewVariableRef("r1", "status", location.Span{})
	okLit := ast.NewStringLiteral("l1", "ok", ast.StringSingle, nil, location.Span{})
	eq := ast.NewEqualityExpr("eq1", status, okLit, location.Span{})
	matchAction := ast.NewStringLiteral("a1", "matched", ast.StringSingle, nil, location.Span{})
	wildcard := ast.NewVariableRef("r2", "*", location.Span{})
	fallbackAction := ast.NewStringLiteral("a2", "fallback", ast.StringSingle, nil, location.Span{})

	d := ast.NewDirective("d5", ast.DirectiveWhen, ast.SubtypeWhenMatch, location.Span{})
	d.SetSlot("conditions", []ast.Node{eq, wildcard}, "@status == \"ok\", *")
	d.SetSlot("actions", []ast.Node{matchAction, fallbackAction}, "\"matched\", \"fallback\"")

	if err := evalWhen(context.Background(), ec, d); err != nil {
		t.Fatalf("evalWhen() error = %v", err)
	}
	if got := ec.Out.String(); got != "matched" {
		t.Fatalf("Out = %q, want %q (equality arm should win over the wildcard)", got, "matched")
	}
}

// TestWhenEqualityPatternFallsThroughToWildcard confirms a non-matching
// equality arm does not short-circuit the wildcard fallback.
func TestWhenEqualityPatternFallsThroughToWildcard(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	if err := evalVar(context.Background(), ec, textDir("status", "error")); err != nil {
		t.Fatalf("evalVar() error = %v", err)
	}

	status := ast.NewVariableRef("r1", "status", location.Span{})
	okLit := ast.NewStringLiteral("l1", "ok", ast.StringSingle, nil, location.Span{})
	eq := ast.NewEqualityExpr("eq1", status, okLit, location.Span{})
	matchAction := ast.NewStringLiteral("a1", "matched", ast.StringSingle, nil, location.Span{})
	wildcard := ast.NewVariableRef("r2", "*", location.Span{})
	fallbackAction := ast.NewStringLiteral("a2", "fallback", ast.StringSingle, nil, location.Span{})

	d := ast.NewDirective("d5", ast.DirectiveWhen, ast.SubtypeWhenMatch, location.Span{})
	d.SetSlot("conditions", []ast.Node{eq, wildcard}, "@status == \"ok\", *")
	d.SetSlot("actions", []ast.Node{matchAction, fallbackAction}, "\"matched\", \"fallback\"")

	if err := evalWhen(context.Background(), ec, d); err != nil {
		t.Fatalf("evalWhen() error = %v", err)
	}
	if got := ec.Out.String(); got != "fallback" {
		t.Fatalf("Out = %q, want %q", got, "fallback")
	}
}

// TestGuardDeniesAbortsWithReason exercises the guard directive's
// object-form denial path.
func TestGuardDeniesAbortsWithReason(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	policy := ast.NewObjectLiteral("p1", []ast.ObjectProperty{
		{Key: "allow", Value: ast.NewBoolLiteral("b1", false, location.Span{})},
		{Key: "reason", Value: ast.NewStringLiteral("s1", "no writes outside /tmp", ast.StringSingle, nil, location.Span{})},
	}, location.Span{})
	d := ast.NewDirective("d6", ast.DirectiveGuard, ast.SubtypeGuardPolicy, location.Span{})
	d.SetSlot("name", []ast.Node{ast.NewText("n1", "writeGuard", location.Span{})}, "writeGuard")
	d.SetSlot("policy", []ast.Node{policy}, "{allow: false, reason: \"no writes outside /tmp\"}")

	err := evalGuard(context.Background(), ec, d)
	if err == nil {
		t.Fatal("evalGuard() should return an error on denial")
	}
	if !strings.Contains(err.Error(), "no writes outside /tmp") {
		t.Fatalf("error = %v, want it to carry the policy's reason", err)
	}
}

// TestForBindsEachElementAndCollectsText drives spec.md §4.3's for:
// iterate over an array, binding each element, collecting body output.
func TestForBindsEachElementAndCollectsText(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	arr := ast.NewArrayLiteral("arr1", []ast.Node{
		ast.NewStringLiteral("s1", "a", ast.StringSingle, nil, location.Span{}),
		ast.NewStringLiteral("s2", "b", ast.StringSingle, nil, location.Span{}),
	}, location.Span{})
	d := ast.NewDirective("d7", ast.DirectiveFor, ast.SubtypeForIterate, location.Span{})
	d.SetSlot("item", []ast.Node{ast.NewText("n1", "x", location.Span{})}, "x")
	d.SetSlot("iterable", []ast.Node{arr}, `["a","b"]`)
	show := ast.NewDirective("d7s", ast.DirectiveShow, ast.SubtypeShowVariable, location.Span{})
	show.SetSlot("value", []ast.Node{ast.NewVariableRef("r7", "x", location.Span{})}, "@x")
	d.SetSlot("body", []ast.Node{ast.NewText("t1", "-item-", location.Span{}), show}, "-item-/show @x")

	if err := evalFor(context.Background(), ec, d); err != nil {
		t.Fatalf("evalFor() error = %v", err)
	}
	if got := ec.Out.String(); got != "-item-a-item-b" {
		t.Fatalf("Out = %q, want %q", got, "-item-a-item-b")
	}
}

// TestForMissingSlotsReturnsError guards against the empty-slot panic a
// malformed parse could otherwise trigger.
func TestForMissingSlotsReturnsError(t *testing.T) {
	ec := newTestContext(resolver.Strict)
	d := ast.NewDirective("d8", ast.DirectiveFor, ast.SubtypeForIterate, location.Span{})
	if err := evalFor(context.Background(), ec, d); err == nil {
		t.Fatal("evalFor() with empty slots should return an error, not panic")
	}
}

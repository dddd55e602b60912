package parser

import (
	"testing"

	"github.com/mlld-lang/mlld-core/ast"
)

// TestParseVarCapturesVerbatimRaw exercises spec.md §4.1/§6's raw-capture
// invariant on the simplest directive: the value slot's Raw entry must be
// the exact source substring, not a re-rendering of the parsed node.
func TestParseVarCapturesVerbatimRaw(t *testing.T) {
	src := `/var @greeting = "hello world"` + "\n"
	res := Parse([]byte(src))
	if len(res.Errors) != 0 {
		t.Fatalf("Parse() errors = %v", res.Errors)
	}
	dirs := res.Program.Directives()
	if len(dirs) != 1 {
		t.Fatalf("Directives() = %d, want 1", len(dirs))
	}
	d := dirs[0]
	if raw := d.RawSlot("value"); raw != `"hello world"` {
		t.Fatalf("RawSlot(value) = %q, want %q", raw, `"hello world"`)
	}
	if raw := d.RawSlot("name"); raw != "greeting" {
		t.Fatalf("RawSlot(name) = %q, want %q", raw, "greeting")
	}
}

// TestParseExeCapturesBodyRaw checks the exe directive's body slot, one of
// the slots the review named as previously stored with an empty raw.
func TestParseExeCapturesBodyRaw(t *testing.T) {
	src := "/exe @greet() = `hi`\n"
	res := Parse([]byte(src))
	if len(res.Errors) != 0 {
		t.Fatalf("Parse() errors = %v", res.Errors)
	}
	dirs := res.Program.Directives()
	if len(dirs) != 1 {
		t.Fatalf("Directives() = %d, want 1", len(dirs))
	}
	if raw := dirs[0].RawSlot("body"); raw == "" {
		t.Fatal("RawSlot(body) is empty, want the verbatim template text")
	}
}

// TestParseImportCapturesNamesAndPathRaw checks the two slots the review
// named for import: the selected-names list and the source path.
func TestParseImportCapturesNamesAndPathRaw(t *testing.T) {
	src := `/import { a, b } from "./lib.mld"` + "\n"
	res := Parse([]byte(src))
	if len(res.Errors) != 0 {
		t.Fatalf("Parse() errors = %v", res.Errors)
	}
	dirs := res.Program.Directives()
	if len(dirs) != 1 {
		t.Fatalf("Directives() = %d, want 1", len(dirs))
	}
	d := dirs[0]
	if raw := d.RawSlot("names"); raw != "a, b" {
		t.Fatalf("RawSlot(names) = %q, want %q", raw, "a, b")
	}
	if raw := d.RawSlot("path"); raw != `"./lib.mld"` {
		t.Fatalf("RawSlot(path) = %q, want %q", raw, `"./lib.mld"`)
	}
}

// TestParseWhenEqualityConditionProducesEqualityExpr checks the new `==`
// pattern kind tokenizes and parses into an ast.EqualityExpr, not a bare
// truthiness condition.
func TestParseWhenEqualityConditionProducesEqualityExpr(t *testing.T) {
	src := "/when {\n  @status == \"ok\" => \"matched\"\n  * => \"fallback\"\n}\n"
	res := Parse([]byte(src))
	if len(res.Errors) != 0 {
		t.Fatalf("Parse() errors = %v", res.Errors)
	}
	dirs := res.Program.Directives()
	if len(dirs) != 1 {
		t.Fatalf("Directives() = %d, want 1", len(dirs))
	}
	conds := dirs[0].Slot("conditions")
	if len(conds) != 2 {
		t.Fatalf("conditions slot has %d nodes, want 2", len(conds))
	}
	if _, ok := conds[0].(*ast.EqualityExpr); !ok {
		t.Fatalf("conditions[0] = %T, want *ast.EqualityExpr", conds[0])
	}
	if raw := dirs[0].RawSlot("conditions"); raw == "" {
		t.Fatal("RawSlot(conditions) is empty, want the verbatim arm text")
	}
}

// TestParseForCapturesIterableAndBodyRaw checks the two slots the review
// named for for: the iterable expression and the loop body block.
func TestParseForCapturesIterableAndBodyRaw(t *testing.T) {
	src := "/for @x in @items {\nrender item\n}\n"
	res := Parse([]byte(src))
	if len(res.Errors) != 0 {
		t.Fatalf("Parse() errors = %v", res.Errors)
	}
	dirs := res.Program.Directives()
	if len(dirs) != 1 {
		t.Fatalf("Directives() = %d, want 1", len(dirs))
	}
	d := dirs[0]
	if raw := d.RawSlot("iterable"); raw != "@items" {
		t.Fatalf("RawSlot(iterable) = %q, want %q", raw, "@items")
	}
	if raw := d.RawSlot("body"); raw == "" {
		t.Fatal("RawSlot(body) is empty, want the verbatim loop body text")
	}
}

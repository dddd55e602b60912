package variable

import (
	"encoding/json"
	"testing"
)

func TestAsTextRendersEachKind(t *testing.T) {
	cases := []struct {
		name string
		v    *Variable
		want string
	}{
		{"text", NewText("greeting", "hello", OriginLiteral), "hello"},
		{"path", NewPath("p", PathValue{Resolved: "/abs/file.md", Token: "~/file.md"}, OriginLiteral), "/abs/file.md"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.v.AsText()
			if err != nil {
				t.Fatalf("AsText() error = %v", err)
			}
			if got != c.want {
				t.Fatalf("AsText() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestAsTextDataRendersAsJSON(t *testing.T) {
	v, err := NewData("user", map[string]any{"name": "Alice"}, nil, OriginLiteral)
	if err != nil {
		t.Fatalf("NewData() error = %v", err)
	}
	got, err := v.AsText()
	if err != nil {
		t.Fatalf("AsText() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("AsText() did not produce valid JSON: %v", err)
	}
	if decoded["name"] != "Alice" {
		t.Fatalf("decoded = %v, want name=Alice", decoded)
	}
}

func TestAsTextExecutableIsUnresolvable(t *testing.T) {
	v := NewExecutable("greet", &Executable{ParamNames: []string{"name"}, BodyKind: BodyTemplate}, OriginLiteral)
	if _, err := v.AsText(); err == nil {
		t.Fatal("AsText() on an executable should error, got nil")
	}
}

func TestUnwrapFollowsImportedChain(t *testing.T) {
	src := NewText("setting", "value", OriginLiteral)
	imported := NewImported("x", src)
	alias := NewAlias("y", imported, OriginTransformation)

	if got := alias.Unwrap(); got != src {
		t.Fatalf("Unwrap() = %v, want %v", got, src)
	}
	text, err := alias.AsText()
	if err != nil {
		t.Fatalf("AsText() error = %v", err)
	}
	if text != "value" {
		t.Fatalf("AsText() = %q, want %q", text, "value")
	}
}

func TestNewDataSchemaValidationRejectsMismatch(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	if _, err := NewData("user", map[string]any{"name": "Alice"}, schema, OriginLiteral); err != nil {
		t.Fatalf("NewData() with a matching value errored: %v", err)
	}
	if _, err := NewData("user", map[string]any{"age": 3}, schema, OriginLiteral); err == nil {
		t.Fatal("NewData() with a schema-violating value should error, got nil")
	}
}

func TestNewImportedPreservesFullType(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	src, err := NewData("cfg", map[string]any{"a": 1}, schema, OriginLiteral)
	if err != nil {
		t.Fatalf("NewData() error = %v", err)
	}
	imported := NewImported("cfg", src)
	if imported.Kind != KindImported {
		t.Fatalf("imported.Kind = %v, want KindImported", imported.Kind)
	}
	u := imported.Unwrap()
	if u.Kind != KindData {
		t.Fatalf("unwrapped.Kind = %v, want KindData (not collapsed to text)", u.Kind)
	}
}

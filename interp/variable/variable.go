// Package variable implements spec.md §3's Variable: a tagged union over
// text, path, data, executable, imported, and structured values. Uses an
// exhaustive-switch tagged union rather than an interface hierarchy per
// spec.md §9's design note ("avoid inheritance").
package variable

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/interp/security"
)

// Kind is the tag of the Variable union.
type Kind string

const (
	KindText       Kind = "text"
	KindPath       Kind = "path"
	KindData       Kind = "data"
	KindExecutable Kind = "executable"
	KindImported   Kind = "imported"
	KindStructured Kind = "structured"
)

// ExecutableBodyKind distinguishes what an executable Variable invokes.
type ExecutableBodyKind string

const (
	BodyCommand  ExecutableBodyKind = "command"
	BodyCode     ExecutableBodyKind = "code"
	BodyTemplate ExecutableBodyKind = "template"
)

// Origin records how a Variable came to be bound, for diagnostics and for
// the "imported variables preserve full type" invariant.
type Origin string

const (
	OriginLiteral        Origin = "literal"
	OriginImport         Origin = "import"
	OriginTransformation Origin = "transformation"
)

// Metadata is the non-value-bearing bookkeeping every Variable carries.
type Metadata struct {
	Origin         Origin
	DefinitionSite ast.Kind // best-effort: the AST kind of the defining node
	// Schema is an optional JSON Schema document validating a data
	// Variable's Value (spec.md §3 "optional schema"). Only meaningful
	// when Kind == KindData.
	Schema json.RawMessage
}

// PathValue is the resolved-plus-original form spec.md §3 requires: "Path
// variables carry a resolved absolute form plus the original token for
// error display."
type PathValue struct {
	Resolved string // absolute, normalised
	Token    string // original source token, e.g. "~/proj/@name/file.md"
}

// Executable is the un-evaluated body plus fixed-arity parameter list of
// an `exe` definition (spec.md §4.3 exe, §3 "fixed arity").
type Executable struct {
	ParamNames []string
	BodyKind   ExecutableBodyKind
	Body       ast.Node
	// With is the optional withClause attached at definition time (e.g. a
	// default output pipeline for every invocation).
	With *ast.WithClause
	// Closure is the *env.Environment an exe definition captured by
	// reference (spec.md §9 "Closures: capture by reference to the
	// defining environment"). Typed any to avoid an import cycle (package
	// env already imports this package); package eval type-asserts it
	// back to *env.Environment when invoking.
	Closure any
}

// Variable is one binding in an Environment (spec.md §3).
type Variable struct {
	Name     string
	Kind     Kind
	Text     string      // KindText
	Path     PathValue   // KindPath
	Data     any         // KindData: map[string]any / []any / structured scalar
	Exec     *Executable // KindExecutable
	Imported *Variable   // KindImported: the full original Variable, preserved
	// Structured wraps a value that also carries out-of-band metadata
	// (e.g. a pipeline stage's {content, filename} object) rather than a
	// bare scalar/collection.
	Structured map[string]any

	Metadata Metadata
	// Security is the accumulated provenance descriptor set for this
	// Variable's value, non-nil only once something has flowed through
	// interpolation to produce it.
	Security []security.Descriptor
}

// NewText builds a KindText Variable.
func NewText(name, value string, origin Origin) *Variable {
	return &Variable{Name: name, Kind: KindText, Text: value, Metadata: Metadata{Origin: origin}}
}

// NewPath builds a KindPath Variable.
func NewPath(name string, pv PathValue, origin Origin) *Variable {
	return &Variable{Name: name, Kind: KindPath, Path: pv, Metadata: Metadata{Origin: origin}}
}

// NewData builds a KindData Variable, validating against schema when one
// is supplied (spec.md §3's "optional schema", domain stack: jsonschema/v5
// validates a data Variable's schema exactly as core/types/validation.go
// validates decorator parameter schemas).
func NewData(name string, value any, schema json.RawMessage, origin Origin) (*Variable, error) {
	if len(schema) > 0 {
		if err := validateAgainstSchema(schema, value); err != nil {
			return nil, fmt.Errorf("variable %q: schema validation: %w", name, err)
		}
	}
	return &Variable{Name: name, Kind: KindData, Data: value, Metadata: Metadata{Origin: origin, Schema: schema}}, nil
}

func validateAgainstSchema(schema json.RawMessage, value any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("variable-schema.json", jsonDecode(schema)); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	sch, err := compiler.Compile("variable-schema.json")
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	// jsonschema validates decoded JSON values (map[string]interface{},
	// []interface{}, float64, ...); round-trip through JSON so Go-native
	// values (e.g. built by a collection evaluator) match that shape.
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value for validation: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("decoding value for validation: %w", err)
	}
	return sch.Validate(decoded)
}

func jsonDecode(raw json.RawMessage) any {
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}

// NewExecutable builds a KindExecutable Variable.
func NewExecutable(name string, exec *Executable, origin Origin) *Variable {
	return &Variable{Name: name, Kind: KindExecutable, Exec: exec, Metadata: Metadata{Origin: origin}}
}

// NewImported wraps src as a KindImported Variable bound under a
// (possibly aliased) local name, preserving src's full type per spec.md
// §3's invariant: "Imported variables preserve the source variable's
// full type and metadata; they are not collapsed to text."
func NewImported(localName string, src *Variable) *Variable {
	return &Variable{Name: localName, Kind: KindImported, Imported: src, Metadata: Metadata{Origin: OriginImport}}
}

// NewAlias rebinds src under a new local name, preserving its full type —
// the same "preserve full type" rule NewImported applies to cross-module
// imports (spec.md §3), used when one local variable is bound directly to
// another's current value (e.g. `var @b = @a`).
func NewAlias(localName string, src *Variable, origin Origin) *Variable {
	return &Variable{Name: localName, Kind: KindImported, Imported: src, Metadata: Metadata{Origin: origin}}
}

// NewStructured builds a KindStructured Variable.
func NewStructured(name string, value map[string]any, origin Origin) *Variable {
	return &Variable{Name: name, Kind: KindStructured, Structured: value, Metadata: Metadata{Origin: origin}}
}

// Unwrap follows an imported-variable chain to the underlying Variable
// that actually carries a value (KindImported never itself holds data).
func (v *Variable) Unwrap() *Variable {
	for v != nil && v.Kind == KindImported {
		v = v.Imported
	}
	return v
}

// AsText renders the Variable's textual form for interpolation (spec.md
// §4.2): strings unchanged, objects/arrays as JSON, paths as their
// resolved string.
func (v *Variable) AsText() (string, error) {
	u := v.Unwrap()
	switch u.Kind {
	case KindText:
		return u.Text, nil
	case KindPath:
		return u.Path.Resolved, nil
	case KindData:
		return jsonText(u.Data)
	case KindStructured:
		return jsonText(u.Structured)
	case KindExecutable:
		return "", fmt.Errorf("variable %q is an executable and has no textual form", u.Name)
	default:
		return "", fmt.Errorf("variable %q has unresolved kind %q", u.Name, u.Kind)
	}
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Package ast defines mlld's typed, location-tracked syntax tree. A parsed
// source file is a flat sequence of top-level Nodes in document order;
// Directive nodes carry their semantic sub-parts as three parallel maps
// (Values, Raw, Meta) rather than positional fields, so new directive
// slots can be added without breaking existing consumers (spec.md §3/§6).
package ast

import (
	"fmt"
	"strings"

	"github.com/mlld-lang/mlld-core/internal/location"
)

// Kind is the broad category of an AST node.
type Kind string

const (
	KindText             Kind = "Text"
	KindVariableRef      Kind = "VariableReference"
	KindLiteral          Kind = "Literal"
	KindCodeFence        Kind = "CodeFence"
	KindComment          Kind = "Comment"
	KindPathSeparator    Kind = "PathSeparator"
	KindDotSeparator     Kind = "DotSeparator"
	KindErrorNode        Kind = "Error"
	KindDirective        Kind = "Directive"
	KindEquality         Kind = "Equality"
)

// DirectiveKind is the directive's keyword-level kind.
type DirectiveKind string

const (
	DirectiveVar        DirectiveKind = "var"
	DirectiveExe        DirectiveKind = "exe"
	DirectiveShow       DirectiveKind = "show"
	DirectiveRun        DirectiveKind = "run"
	DirectiveImport     DirectiveKind = "import"
	DirectiveExport     DirectiveKind = "export"
	DirectivePath       DirectiveKind = "path"
	DirectiveFor        DirectiveKind = "for"
	DirectiveWhen       DirectiveKind = "when"
	DirectiveCheckpoint DirectiveKind = "checkpoint"
	DirectiveGuard      DirectiveKind = "guard"
)

// Subtype further distinguishes a directive within its Kind.
type Subtype string

const (
	SubtypeVar             Subtype = "var"
	SubtypeAddPath         Subtype = "addPath"
	SubtypeExecCommand     Subtype = "execCommand"
	SubtypeExecCode        Subtype = "execCode"
	SubtypeExecTemplate    Subtype = "execTemplate"
	SubtypeImportAll       Subtype = "importAll"
	SubtypeImportSelected  Subtype = "importSelected"
	SubtypeRunCommand      Subtype = "runCommand"
	SubtypeRunCode         Subtype = "runCode"
	SubtypeRunExec         Subtype = "runExec"
	SubtypeShowVariable    Subtype = "showVariable"
	SubtypeShowTemplate    Subtype = "showTemplate"
	SubtypeShowSection     Subtype = "showSection"
	SubtypeForIterate      Subtype = "forIterate"
	SubtypeWhenMatch       Subtype = "whenMatch"
	SubtypeCheckpointMark  Subtype = "checkpointMark"
	SubtypeGuardPolicy     Subtype = "guardPolicy"
)

// Node is any element of the syntax tree. Every node carries a stable
// NodeID (unique within one parse) and, when location tracking is
// enabled, a source Span.
type Node interface {
	NodeKind() Kind
	ID() string
	Location() location.Span
	String() string
}

// base is embedded by every concrete node to provide the common fields.
type base struct {
	Kind_ Kind
	NodeID string
	Span   location.Span
}

func (b *base) NodeKind() Kind           { return b.Kind_ }
func (b *base) ID() string               { return b.NodeID }
func (b *base) Location() location.Span  { return b.Span }

// Text is verbatim markdown prose between directives.
type Text struct {
	base
	Value string
}

func NewText(id, value string, span location.Span) *Text {
	return &Text{base: base{Kind_: KindText, NodeID: id, Span: span}, Value: value}
}

func (t *Text) String() string { return t.Value }

// FieldAccessKind distinguishes the three tail operation forms.
type FieldAccessKind string

const (
	FieldDot      FieldAccessKind = "dot"      // .name
	FieldIndex    FieldAccessKind = "index"    // [integer]
	FieldDynamic  FieldAccessKind = "dynamic"  // [@var]
)

// FieldAccess is one element of a VariableReference's field-access tail,
// evaluated left to right (spec.md §4.2).
type FieldAccess struct {
	Kind  FieldAccessKind
	Name  string // for FieldDot
	Index int    // for FieldIndex
	Var   *VariableRef // for FieldDynamic
}

// PipelineStageSpec is one stage of a withClause.pipeline.
type PipelineStageSpec struct {
	// Target is either a bare executable reference or a built-in
	// transformer name; Args are the explicit call arguments, if any.
	Target string
	Args   []Node
	Span   location.Span
}

// WithClause holds the modifiers that may trail a variable reference or
// executable invocation: an output pipeline, a format hint, and any other
// parser-recognised modifier.
type WithClause struct {
	Pipeline []PipelineStageSpec
	Format   string
	Trust    string
	// HeaderShift is a show/add modifier (spec.md §4.3's "optional
	// header-level shift"): every Markdown ATX header in the rendered
	// operand is shifted by this many levels (e.g. 2 turns `#` into
	// `###`), clamped so a header never goes below level 1.
	HeaderShift int
}

// VariableRef is a reference to a bound name, with an ordered field-access
// tail and an optional withClause.
type VariableRef struct {
	base
	Name   string
	Fields []FieldAccess
	With   *WithClause
}

func NewVariableRef(id, name string, span location.Span) *VariableRef {
	return &VariableRef{base: base{Kind_: KindVariableRef, NodeID: id, Span: span}, Name: name}
}

func (v *VariableRef) String() string {
	var b strings.Builder
	b.WriteString("@")
	b.WriteString(v.Name)
	for _, f := range v.Fields {
		switch f.Kind {
		case FieldDot:
			fmt.Fprintf(&b, ".%s", f.Name)
		case FieldIndex:
			fmt.Fprintf(&b, "[%d]", f.Index)
		case FieldDynamic:
			fmt.Fprintf(&b, "[@%s]", f.Var.Name)
		}
	}
	return b.String()
}

// LiteralKind is the kind of a parsed literal value.
type LiteralKind string

const (
	LiteralString  LiteralKind = "string"
	LiteralNumber  LiteralKind = "number"
	LiteralBool    LiteralKind = "bool"
	LiteralObject  LiteralKind = "object"
	LiteralArray   LiteralKind = "array"
	LiteralNull    LiteralKind = "null"
)

// StringStyle records which of the three quoting flavours produced a
// string literal, since that governs interpolation (spec.md §4.1).
type StringStyle string

const (
	StringSingle    StringStyle = "single"    // fully literal
	StringDouble    StringStyle = "double"    // interpolated
	StringBacktick  StringStyle = "backtick"  // interpolated + multiline
)

// Literal is a parsed JSON-like value: string/number/bool/null, or an
// object/array whose children are themselves already-parsed Nodes keyed
// by property name or index (spec.md §4.2 collections).
type Literal struct {
	base
	LitKind LiteralKind
	Str     string      // LiteralString
	Style   StringStyle // set when LitKind == LiteralString
	Number  float64     // LiteralNumber
	Bool    bool        // LiteralBool
	// Interp holds the already-parsed interpolation segments of a
	// double/backtick string — Text and VariableRef nodes in order.
	Interp []Node
	Object []ObjectProperty // LiteralObject, in source order
	Array  []Node           // LiteralArray
}

// ObjectProperty is one key/value pair of an object literal.
type ObjectProperty struct {
	Key   string
	Value Node
}

func NewStringLiteral(id, raw string, style StringStyle, interp []Node, span location.Span) *Literal {
	return &Literal{base: base{Kind_: KindLiteral, NodeID: id, Span: span}, LitKind: LiteralString, Str: raw, Style: style, Interp: interp}
}

func NewObjectLiteral(id string, props []ObjectProperty, span location.Span) *Literal {
	return &Literal{base: base{Kind_: KindLiteral, NodeID: id, Span: span}, LitKind: LiteralObject, Object: props}
}

func NewArrayLiteral(id string, items []Node, span location.Span) *Literal {
	return &Literal{base: base{Kind_: KindLiteral, NodeID: id, Span: span}, LitKind: LiteralArray, Array: items}
}

func NewNumberLiteral(id string, n float64, span location.Span) *Literal {
	return &Literal{base: base{Kind_: KindLiteral, NodeID: id, Span: span}, LitKind: LiteralNumber, Number: n}
}

func NewBoolLiteral(id string, b bool, span location.Span) *Literal {
	return &Literal{base: base{Kind_: KindLiteral, NodeID: id, Span: span}, LitKind: LiteralBool, Bool: b}
}

func (l *Literal) String() string {
	switch l.LitKind {
	case LiteralString:
		return l.Str
	case LiteralNumber:
		return fmt.Sprintf("%v", l.Number)
	case LiteralBool:
		return fmt.Sprintf("%v", l.Bool)
	case LiteralNull:
		return "null"
	default:
		return fmt.Sprintf("<%s>", l.LitKind)
	}
}

// CodeFence is a fenced code block used as an exe/run body.
type CodeFence struct {
	base
	Language string
	Content  []Node // Text/VariableRef segments (interpolated per language rules)
	Raw      string
}

func (c *CodeFence) String() string { return c.Raw }

func NewCodeFence(id, language string, content []Node, raw string, span location.Span) *CodeFence {
	return &CodeFence{base: base{Kind_: KindCodeFence, NodeID: id, Span: span}, Language: language, Content: content, Raw: raw}
}

// Comment is an inline or block comment, preserved for round-trip and
// surfaced in meta for the directive it trails.
type Comment struct {
	base
	Text string
}

func (c *Comment) String() string { return c.Text }

// PathSeparator and DotSeparator are structural tokens kept as nodes so a
// path expression's raw form reproduces exactly (spec.md §8 round-trip).
type PathSeparator struct{ base }
type DotSeparator struct{ base }

func (p *PathSeparator) String() string { return "/" }
func (d *DotSeparator) String() string  { return "." }

// ErrorNode stands in for a syntactically invalid region so the rest of
// the file can still be parsed (permissive mode).
type ErrorNode struct {
	base
	Message string
}

func (e *ErrorNode) String() string { return "<error: " + e.Message + ">" }

// EqualityExpr is a `left == right` when-condition pattern (spec.md
// §4.3's "equality" pattern kind, alongside bare truthiness and the `*`
// wildcard).
type EqualityExpr struct {
	base
	Left  Node
	Right Node
}

func NewEqualityExpr(id string, left, right Node, span location.Span) *EqualityExpr {
	return &EqualityExpr{base: base{Kind_: KindEquality, NodeID: id, Span: span}, Left: left, Right: right}
}

func (e *EqualityExpr) String() string { return e.Left.String() + " == " + e.Right.String() }

// Directive is one directive occurrence. Values holds already-parsed
// child nodes per semantic slot; Raw holds the verbatim source substring
// per slot; Meta holds derived flags. Every key in Values has a matching
// key in Raw and vice versa, except meta-only keys (spec.md §8 invariant).
type Directive struct {
	base
	Kind_D  DirectiveKind
	Subtype Subtype
	Values  map[string][]Node
	Raw     map[string]string
	Meta    map[string]any
}

func NewDirective(id string, kind DirectiveKind, subtype Subtype, span location.Span) *Directive {
	return &Directive{
		base:    base{Kind_: KindDirective, NodeID: id, Span: span},
		Kind_D:  kind,
		Subtype: subtype,
		Values:  make(map[string][]Node),
		Raw:     make(map[string]string),
		Meta:    make(map[string]any),
	}
}

// Slot returns the parsed child nodes for a semantic slot, or nil.
func (d *Directive) Slot(name string) []Node { return d.Values[name] }

// RawSlot returns the verbatim source text for a semantic slot, or "".
func (d *Directive) RawSlot(name string) string { return d.Raw[name] }

// SetSlot records both the parsed nodes and raw text for a semantic slot.
func (d *Directive) SetSlot(name string, nodes []Node, raw string) {
	d.Values[name] = nodes
	d.Raw[name] = raw
}

func (d *Directive) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "/%s", d.Kind_D)
	if raw, ok := d.Raw["name"]; ok {
		fmt.Fprintf(&b, " %s", raw)
	}
	return b.String()
}

// Program is the full parsed source: top-level nodes in document order.
type Program struct {
	Nodes []Node
}

// Directives returns every top-level Directive node, in document order.
func (p *Program) Directives() []*Directive {
	var out []*Directive
	for _, n := range p.Nodes {
		if d, ok := n.(*Directive); ok {
			out = append(out, d)
		}
	}
	return out
}

// Package errs defines mlld's error taxonomy: a small set of kinded error
// types that every parser, resolver, evaluator, and pipeline failure maps
// into, each carrying a source location and, when a pattern matcher
// recognises the situation, a one-line remediation hint.
//
// User-visible failures always include a kind label, a source span with
// file path, the offending substring when available, and the hint. See
// (*Error).Error.
package errs

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mlld-lang/mlld-core/internal/location"
)

// Kind identifies one of the taxonomy's error categories (spec §7).
type Kind string

const (
	KindParseError        Kind = "ParseError"
	KindVariableNotFound   Kind = "VariableNotFound"
	KindFieldNotFound      Kind = "FieldNotFound"
	KindTypeMismatch       Kind = "TypeMismatch"
	KindArityMismatch      Kind = "ArityMismatch"
	KindUnknownExecutable  Kind = "UnknownExecutable"
	KindCircularImport     Kind = "CircularImport"
	KindImportResolution   Kind = "ImportResolution"
	KindExecutionFailure   Kind = "ExecutionFailure"
	KindExecutionTimeout   Kind = "ExecutionTimeout"
	KindPipelineAbort      Kind = "PipelineAbort"
	KindPipelineStageError Kind = "PipelineStageError"
	KindGuardDenied        Kind = "GuardDenied"
	KindInternalInvariant  Kind = "InternalInvariant"
)

// Error is the common shape every mlld error implements. Evaluators attach
// a directive's location; the taxonomy never leaves a Kind unset.
type Error struct {
	ErrKind  Kind
	Message  string
	File     string
	Span     location.Span
	Offender string // offending substring, when available
	Hint     string // remediation hint, when a pattern matcher finds one

	// Wrapped is the underlying collaborator error (e.g. an os.Exec error),
	// kept for %w-style unwrapping but never shown raw to the user.
	Wrapped error
}

func (e *Error) Error() string {
	var b strings.Builder
	loc := "?"
	if e.File != "" {
		loc = fmt.Sprintf("%s:%s", e.File, e.Span.Start)
	} else if !e.Span.IsZero() {
		loc = e.Span.Start.String()
	}
	fmt.Fprintf(&b, "%s: %s: %s", loc, e.ErrKind, e.Message)
	if e.Offender != "" {
		fmt.Fprintf(&b, " (near %q)", e.Offender)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n  hint: %s", e.Hint)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Wrapped }

// KindOf reports the error's taxonomy kind.
func (e *Error) KindOf() Kind { return e.ErrKind }

// New builds a bare Error of the given kind. Use the With* helpers to
// attach location/hint/offender before returning it from an evaluator.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{ErrKind: kind, Message: fmt.Sprintf(format, args...)}
}

// At attaches a source file and span, returning e for chaining.
func (e *Error) At(file string, span location.Span) *Error {
	e.File = file
	e.Span = span
	return e
}

// Because wraps a collaborator error, returning e for chaining.
func (e *Error) Because(cause error) *Error {
	e.Wrapped = cause
	return e
}

// Near sets the offending substring, returning e for chaining.
func (e *Error) Near(text string) *Error {
	e.Offender = text
	return e
}

// WithHint attaches an explicit remediation hint, returning e for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// SuggestName attaches a "did you mean X?" hint by fuzzy-matching name
// against candidates, when a close-enough match exists. Used for
// VariableNotFound and UnknownExecutable — the one pattern-matched hint
// mechanism spec.md calls for beyond syntax hints.
func (e *Error) SuggestName(name string, candidates []string) *Error {
	best := ""
	bestRank := -1
	for _, c := range candidates {
		r := fuzzy.RankMatchFold(name, c)
		if r < 0 {
			continue
		}
		if bestRank == -1 || r < bestRank {
			bestRank = r
			best = c
		}
	}
	if best != "" {
		e.Hint = fmt.Sprintf("did you mean %q?", best)
	}
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.ErrKind == kind
}

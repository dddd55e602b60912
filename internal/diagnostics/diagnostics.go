// Package diagnostics defines the leveled, structured diagnostic event
// shape, grounded on runtime/decorators/diagnostics.go's DiagnosticLevel
// and runtime/executor/executor.go's DebugLevel/TelemetryLevel pair: a
// development-only tracing knob kept separate from a production-safe
// counter knob. The CLI builds one Emitter and passes it to package
// eval's Context; the parser and pipeline packages take no Emitter.
package diagnostics

import "fmt"

// Level is the diagnostic verbosity a package honours.
type Level int

const (
	Basic Level = iota
	Detailed
	Verbose
)

// ParseLevel maps a config string ("basic"|"detailed"|"verbose") to a
// Level, defaulting to Basic for anything else.
func ParseLevel(s string) Level {
	switch s {
	case "detailed":
		return Detailed
	case "verbose":
		return Verbose
	default:
		return Basic
	}
}

// Event is one structured diagnostic occurrence: a named event plus
// freeform fields, emitted only when the owning package's Level admits it.
type Event struct {
	Name   string
	Level  Level
	Fields map[string]any
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s %v", levelName(e.Level), e.Name, e.Fields)
}

func levelName(l Level) string {
	switch l {
	case Detailed:
		return "detailed"
	case Verbose:
		return "verbose"
	default:
		return "basic"
	}
}

// Sink receives Events a package emits. Tests and CLI wiring supply one;
// the zero value (nil) means diagnostics are discarded.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Emitter is embedded by packages that want leveled diagnostics without
// repeating the nil-check/level-check boilerplate at every call site.
type Emitter struct {
	Level Level
	Sink  Sink
}

// Emit reports ev.Name/fields when ev.Level is at or below the emitter's
// configured Level and a Sink is attached. Never panics on a nil Sink.
func (e *Emitter) Emit(level Level, name string, fields map[string]any) {
	if e == nil || e.Sink == nil || level > e.Level {
		return
	}
	e.Sink.Emit(Event{Name: name, Level: level, Fields: fields})
}

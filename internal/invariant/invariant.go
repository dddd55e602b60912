// Package invariant guards internal assumptions that should never be false
// at runtime. It is not for validating user input — callers that receive
// bad source, arguments, or config must return an errs value instead.
// A tripped invariant means a bug in this codebase.
package invariant

import "fmt"

// Precondition panics if cond is false. Use at the top of a function to
// state what the caller must have already guaranteed.
func Precondition(cond bool, format string, args ...any) {
	if !cond {
		panic("precondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Postcondition panics if cond is false. Use before returning to state
// what this function guarantees to its caller.
func Postcondition(cond bool, format string, args ...any) {
	if !cond {
		panic("postcondition violated: " + fmt.Sprintf(format, args...))
	}
}

// NotNil panics if v is nil. A thin wrapper over Precondition for the
// common "this pointer must be set" case.
func NotNil(v any, name string) {
	if v == nil {
		panic("precondition violated: " + name + " must not be nil")
	}
}

// Unreachable panics unconditionally. Use in a switch's default case over
// an exhaustively-handled enum.
func Unreachable(format string, args ...any) {
	panic("unreachable: " + fmt.Sprintf(format, args...))
}

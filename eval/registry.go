// Package eval implements spec.md §4.3's directive evaluators: one
// handler per (kind, subtype) pair, dispatched through a registry,
// grounded on core/decorator/registry.go's database/sql-style
// registration (Register/Lookup), simplified here to a bare map since
// directive handlers carry no auto-inferred roles.
package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/mlld-lang/mlld-core/ast"
)

// Handler evaluates one directive occurrence against the shared Context,
// mutating ec.Env and/or appending to ec.Out.
type Handler func(ctx context.Context, ec *Context, d *ast.Directive) error

type handlerKey struct {
	kind    ast.DirectiveKind
	subtype ast.Subtype
}

var (
	registryMu sync.RWMutex
	handlers   = make(map[handlerKey]Handler)
)

// Register binds a Handler to a (kind, subtype) pair. Called from each
// evaluator file's init(), mirroring the teacher's "decorators register
// themselves" pattern.
func Register(kind ast.DirectiveKind, subtype ast.Subtype, h Handler) {
	registryMu.Lock()
	defer registryMu.Unlock()
	handlers[handlerKey{kind, subtype}] = h
}

func lookup(kind ast.DirectiveKind, subtype ast.Subtype) (Handler, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	h, ok := handlers[handlerKey{kind, subtype}]
	return h, ok
}

func dispatch(ctx context.Context, ec *Context, d *ast.Directive) error {
	h, ok := lookup(d.Kind_D, d.Subtype)
	if !ok {
		return fmt.Errorf("eval: no handler registered for %s/%s", d.Kind_D, d.Subtype)
	}
	return h(ctx, ec, d)
}

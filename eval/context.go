package eval

import (
	"strings"

	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/internal/config"
	"github.com/mlld-lang/mlld-core/internal/diagnostics"
	"github.com/mlld-lang/mlld-core/runtime/lang"
)

// Context is the collaborator bundle every directive handler and the
// pipeline Invoker operate against: the current scope, the resolver,
// the pluggable command/code runtime registry, diagnostics, config, and
// the accumulating document output (spec.md §4.3's shared evaluator
// contract, generalized from one (node, env) pair to a small struct so
// handlers don't each thread five parameters).
type Context struct {
	Env      *env.Environment
	Resolver *resolver.Resolver
	Runtimes *lang.Registry
	Config   *config.Config
	Diag     *diagnostics.Emitter
	Out      *strings.Builder
}

// NewContext builds a root Context ready to interpret one file.
func NewContext(e *env.Environment, mode resolver.Mode, runtimes *lang.Registry, cfg *config.Config, diag *diagnostics.Emitter) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	if diag == nil {
		diag = &diagnostics.Emitter{}
	}
	return &Context{
		Env:      e,
		Resolver: resolver.New(mode),
		Runtimes: runtimes,
		Config:   cfg,
		Diag:     diag,
		Out:      &strings.Builder{},
	}
}

// child returns a Context sharing every collaborator except Env, used
// when a handler needs to evaluate something (an imported file, a for
// body) in a nested scope without disturbing the parent's output.
func (ec *Context) child(e *env.Environment) *Context {
	return &Context{
		Env:      e,
		Resolver: ec.Resolver,
		Runtimes: ec.Runtimes,
		Config:   ec.Config,
		Diag:     ec.Diag,
		Out:      &strings.Builder{},
	}
}

// Package env implements spec.md §3/§4.2's Environment: a lexically
// nested scope tree holding variable bindings, the current file path, and
// accumulated security descriptors, plus file-system / resolver
// collaborators injected so resolution can be mocked in tests. Grounded
// on runtime/execution/context.go's ExecutionContext (captures an
// immutable environment, tracks working dir, holds injected lookup
// closures to avoid import cycles) generalized from devcmd's
// single-context shape into a real parent-child scope tree.
package env

import (
	"context"
	"fmt"
	"sync"

	"github.com/mlld-lang/mlld-core/interp/security"
	"github.com/mlld-lang/mlld-core/interp/variable"
)

// FileSystem is the narrow collaborator interface the core consumes
// (spec.md §6): exists/read/write/stat, all paths absolute and
// normalised. Only a minimal local implementation ships in this repo;
// network/resolver filesystems are external.
type FileSystem interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Stat(path string) (size int64, isDir bool, err error)
}

// ModuleResolver resolves an import reference (a URL, gist id, local
// path, or `@org/name` registry prefix) to content (spec.md §6). It is an
// external collaborator; this core only defines the interface it calls
// through.
type ModuleResolver interface {
	Resolve(ctx context.Context, reference string) (content []byte, origin string, integrityHash string, err error)
}

// CommandRuntime executes a command or code block in a named language
// (spec.md §6, §4.4). Package runtime/lang's per-language registry has
// its own Runtime interface (with a timeout and a Result return) and
// does not implement this one.
type CommandRuntime interface {
	Run(ctx context.Context, body string, envVars map[string]string, stdin, cwd string) (stdout, stderr string, exitCode int, err error)
}

// Environment is one node of the lexical scope tree.
type Environment struct {
	parent *Environment

	mu       sync.RWMutex
	bindings map[string]*variable.Variable

	// exported names are the ones `merge_child_into` copies upward for a
	// plain child-run (not importAll, which copies everything — spec.md
	// §4.2/§4.3 import).
	exported map[string]bool

	CurrentFilePath string
	Security        *security.Ledger

	FS       FileSystem
	Resolver ModuleResolver
	Runtime  CommandRuntime

	// inProgress tracks resolved module identities currently being
	// imported, for CircularImport detection (spec.md §9).
	inProgress map[string]bool
}

// New creates a root Environment.
func New(filePath string, fs FileSystem, resolver ModuleResolver, rt CommandRuntime) *Environment {
	return &Environment{
		bindings:        make(map[string]*variable.Variable),
		exported:        make(map[string]bool),
		CurrentFilePath: filePath,
		Security:        security.NewLedger([]byte(filePath)),
		FS:              fs,
		Resolver:        resolver,
		Runtime:         rt,
		inProgress:      make(map[string]bool),
	}
}

// CreateChild makes a new scope whose parent pointer is this Environment,
// matching spec.md §4.2's `create_child()`. Collaborators and the
// in-progress import set are shared with the parent; bindings are not.
func (e *Environment) CreateChild() *Environment {
	return &Environment{
		parent:          e,
		bindings:        make(map[string]*variable.Variable),
		exported:        make(map[string]bool),
		CurrentFilePath: e.CurrentFilePath,
		Security:        e.Security,
		FS:              e.FS,
		Resolver:        e.Resolver,
		Runtime:         e.Runtime,
		inProgress:      e.inProgress,
	}
}

// Get walks parent links and returns the first binding found, or nil
// (spec.md §4.2's `get_variable(name)`).
func (e *Environment) Get(name string) *variable.Variable {
	for s := e; s != nil; s = s.parent {
		s.mu.RLock()
		v, ok := s.bindings[name]
		s.mu.RUnlock()
		if ok {
			return v
		}
	}
	return nil
}

// Set binds name in the current scope only (spec.md §4.2's
// `set_variable(name, v)`), overwriting a same-scope binding but never a
// parent's.
func (e *Environment) Set(name string, v *variable.Variable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bindings[name] = v
}

// Names returns every name bound directly in this scope (not parents),
// used by `importAll` on the source module's root environment.
func (e *Environment) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.bindings))
	for n := range e.bindings {
		out = append(out, n)
	}
	return out
}

// MarkExported records that name is visible to MergeChildInto, the plain
// merge from a child scope back into its parent. The import directive
// does not consult export marks: `importAll` copies every binding
// (spec.md §4.3).
func (e *Environment) MarkExported(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exported[name] = true
}

// MergeChildInto copies child's exported bindings into e (spec.md
// §4.2's `merge_child_into(parent)`). It never touches the child's own
// scope. The import directive does not call it; eval/import.go copies
// bindings from the module scope itself.
func (e *Environment) MergeChildInto(child *Environment) {
	child.mu.RLock()
	defer child.mu.RUnlock()
	for name := range child.exported {
		if v, ok := child.bindings[name]; ok {
			e.Set(name, v)
		}
	}
}

// EnterImport registers moduleID as in-progress and returns a leave func
// that unregisters it. If moduleID is already being imported (a cycle),
// cycle is true and nothing is registered. Call leave when the import
// completes, successfully or not.
func (e *Environment) EnterImport(moduleID string) (leave func(), cycle bool) {
	e.mu.Lock()
	if e.inProgress[moduleID] {
		e.mu.Unlock()
		return func() {}, true
	}
	e.inProgress[moduleID] = true
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.inProgress, moduleID)
		e.mu.Unlock()
	}, false
}

// DefineExec is a thin convenience over Set for binding a named
// executable closure (spec.md §4.2's `define_exec(name, params, body)`).
func (e *Environment) DefineExec(name string, exec *variable.Executable, origin variable.Origin) {
	e.Set(name, variable.NewExecutable(name, exec, origin))
}

// Root returns the outermost ancestor of e.
func (e *Environment) Root() *Environment {
	s := e
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// String is a debugging aid, not used for interpolation.
func (e *Environment) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("Environment{file=%s, bindings=%d}", e.CurrentFilePath, len(e.bindings))
}

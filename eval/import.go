package eval

import (
	"context"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/interp/variable"
	"github.com/mlld-lang/mlld-core/parser"
)

func init() {
	Register(ast.DirectiveImport, ast.SubtypeImportAll, evalImport)
	Register(ast.DirectiveImport, ast.SubtypeImportSelected, evalImport)
}

// evalImport implements spec.md §4.3's import: load a module via the
// resolver, interpret it in a child of the root environment, then copy
// either every binding of the module's scope (`*`; export marks are not
// consulted) or a selected/aliased subset into the current scope.
// Circular imports are detected and rejected.
func evalImport(ctx context.Context, ec *Context, d *ast.Directive) error {
	pathNode := d.Slot("path")[0]
	refVal, err := ec.Resolver.Resolve(pathNode, ec.Env, resolver.DataStructure)
	if err != nil {
		return err
	}
	refStr, err := anyToText(refVal)
	if err != nil {
		return errs.New(errs.KindImportResolution, "import path did not resolve to text").At(ec.Env.CurrentFilePath, pathNode.Location())
	}

	base, version := splitImportVersion(refStr)
	if version != "" && !semver.IsValid(version) {
		return errs.New(errs.KindImportResolution, "invalid import version %q", version).At(ec.Env.CurrentFilePath, pathNode.Location())
	}
	if strings.HasPrefix(base, "@") && ec.Config != nil {
		if !ec.Config.AllowsPrefix(importPrefix(base)) {
			return errs.New(errs.KindImportResolution, "import prefix %q is not in the resolver allowlist", importPrefix(base)).At(ec.Env.CurrentFilePath, pathNode.Location())
		}
	}
	if ec.Env.Resolver == nil {
		return errs.New(errs.KindImportResolution, "no module resolver configured for %q", base).At(ec.Env.CurrentFilePath, pathNode.Location())
	}

	leave, cycle := ec.Env.EnterImport(base)
	if cycle {
		return errs.New(errs.KindCircularImport, "circular import of %q", base).At(ec.Env.CurrentFilePath, pathNode.Location())
	}
	defer leave()

	content, origin, _, err := ec.Env.Resolver.Resolve(ctx, base)
	if err != nil {
		return errs.New(errs.KindImportResolution, "resolving %q: %v", base, err).At(ec.Env.CurrentFilePath, pathNode.Location()).Because(err)
	}

	result := parser.Parse(content, parser.WithFilePath(origin))
	if len(result.Errors) > 0 {
		return errs.New(errs.KindImportResolution, "module %q failed to parse: %s", base, result.Errors[0].Error()).At(ec.Env.CurrentFilePath, pathNode.Location()).Because(result.Errors[0])
	}

	moduleEnv := ec.Env.Root().CreateChild()
	moduleEnv.CurrentFilePath = origin
	moduleEC := ec.child(moduleEnv)
	if _, err := Interpret(ctx, result.Program, moduleEC); err != nil {
		return errs.New(errs.KindImportResolution, "module %q failed to interpret: %v", base, err).At(ec.Env.CurrentFilePath, pathNode.Location()).Because(err)
	}

	if d.Subtype == ast.SubtypeImportAll {
		for _, name := range moduleEnv.Names() {
			ec.Env.Set(name, variable.NewImported(name, moduleEnv.Get(name)))
		}
		return nil
	}

	aliases, _ := d.Meta["aliases"].(map[string]string)
	for _, n := range d.Slot("names") {
		ref, ok := n.(*ast.VariableRef)
		if !ok {
			continue
		}
		src := moduleEnv.Get(ref.Name)
		if src == nil {
			return errs.New(errs.KindVariableNotFound, "module %q has no export %q", base, ref.Name).At(ec.Env.CurrentFilePath, ref.Location()).SuggestName(ref.Name, moduleEnv.Names())
		}
		localName := ref.Name
		if alias, ok := aliases[ref.Name]; ok && alias != "" {
			localName = alias
		}
		ec.Env.Set(localName, variable.NewImported(localName, src))
	}
	return nil
}

// splitImportVersion separates an optional trailing "@vX.Y.Z" version
// suffix from an import reference, e.g. "@org/name@v1.2.0" ->
// ("@org/name", "v1.2.0").
func splitImportVersion(ref string) (base, version string) {
	idx := strings.LastIndex(ref, "@v")
	if idx <= 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}

// importPrefix extracts the "@org" prefix from an "@org/name" style
// import reference for resolver-allowlist checks.
func importPrefix(ref string) string {
	ref = strings.TrimPrefix(ref, "@")
	if i := strings.Index(ref, "/"); i >= 0 {
		return "@" + ref[:i]
	}
	return "@" + ref
}

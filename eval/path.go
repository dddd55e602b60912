package eval

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/interp/variable"
)

func init() {
	Register(ast.DirectivePath, ast.SubtypeAddPath, evalPath)
}

// evalPath implements spec.md §4.3's path: "Assign a filesystem-or-URL
// path variable, resolving ~, project-root tokens, and embedded
// variables."
func evalPath(ctx context.Context, ec *Context, d *ast.Directive) error {
	nameSlot := d.Slot("name")
	valueSlot := d.Slot("value")
	if len(nameSlot) == 0 || len(valueSlot) == 0 {
		return errs.New(errs.KindTypeMismatch, "path directive is missing its name or value").At(ec.Env.CurrentFilePath, d.Location())
	}
	nameText, ok := nameSlot[0].(*ast.Text)
	if !ok {
		return errs.New(errs.KindTypeMismatch, "path directive's name is not a name").At(ec.Env.CurrentFilePath, d.Location())
	}
	name := nameText.Value
	valNode := valueSlot[0]

	token, err := ec.pathTokenText(valNode)
	if err != nil {
		return err
	}
	resolved := ec.resolvePathToken(token)
	ec.Env.Set(name, variable.NewPath(name, variable.PathValue{Resolved: resolved, Token: token}, variable.OriginLiteral))
	return nil
}

// pathTokenText renders a path directive's value node to its original
// (pre-substitution) token form by interpolating embedded variables but
// leaving `~` and `@.` markers untouched for resolvePathToken to expand.
func (ec *Context) pathTokenText(valNode ast.Node) (string, error) {
	lit, ok := valNode.(*ast.Literal)
	if !ok || lit.LitKind != ast.LiteralString {
		resolved, err := ec.Resolver.Resolve(valNode, ec.Env, resolver.DataStructure)
		if err != nil {
			return "", err
		}
		return toOutputString(resolved), nil
	}
	if lit.Style == ast.StringSingle {
		return lit.Str, nil
	}
	regime := resolver.RegimeDouble
	if lit.Style == ast.StringBacktick {
		regime = resolver.RegimeBacktick
	}
	return ec.Resolver.Interpolate(lit.Interp, ec.Env, regime)
}

// resolvePathToken expands the two path markers spec.md §4.3 names: a
// leading `~` (home directory, via the OS) and a leading `@.` (the
// configured project root).
func (ec *Context) resolvePathToken(token string) string {
	switch {
	case strings.HasPrefix(token, "~/") || token == "~":
		home, err := os.UserHomeDir()
		if err != nil {
			return token
		}
		return filepath.Join(home, strings.TrimPrefix(token, "~"))
	case strings.HasPrefix(token, "@."):
		root := "."
		if ec.Config != nil && ec.Config.ProjectRoot != "" {
			root = ec.Config.ProjectRoot
		}
		return filepath.Join(root, strings.TrimPrefix(token, "@."))
	default:
		return token
	}
}

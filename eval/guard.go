package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/guard"
	"github.com/mlld-lang/mlld-core/interp/resolver"
)

func init() {
	Register(ast.DirectiveGuard, ast.SubtypeGuardPolicy, evalGuard)
}

// evalGuard implements spec.md §4.3's guard: "Evaluate a policy
// predicate before a labelled operation... and either allow or deny
// with a message." This core has no separate "guarded operation"
// directive to wrap, so the guard directive itself is the checkpoint:
// its policy expression is evaluated immediately, and a denial aborts
// the run with GuardDenied, carrying the policy's reason.
func evalGuard(ctx context.Context, ec *Context, d *ast.Directive) error {
	policySlot := d.Slot("policy")
	if len(policySlot) == 0 {
		return errs.New(errs.KindTypeMismatch, "guard directive is missing its policy").At(ec.Env.CurrentFilePath, d.Location())
	}
	policyNode := policySlot[0]
	resolved, err := ec.Resolver.Resolve(policyNode, ec.Env, resolver.DataStructure)
	if err != nil {
		return err
	}
	decision := guard.Evaluate(resolved)
	if !decision.Allowed {
		reason := decision.Reason
		if reason == "" {
			reason = "denied"
		}
		return errs.New(errs.KindGuardDenied, "%s", reason).At(ec.Env.CurrentFilePath, d.Location())
	}
	return nil
}

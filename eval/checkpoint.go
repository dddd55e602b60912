package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/internal/diagnostics"
)

func init() {
	Register(ast.DirectiveCheckpoint, ast.SubtypeCheckpointMark, evalCheckpoint)
}

// evalCheckpoint implements spec.md §4.3's checkpoint: "Record a named
// point in the run for later inspection/tooling." A checkpoint has no
// environment or output effect; it only emits a diagnostic event so an
// observer (tests, LSP, tracing) can reconstruct where in the run it
// occurred, the same observer role spec.md §4.6 assigns the pipeline
// event log.
func evalCheckpoint(ctx context.Context, ec *Context, d *ast.Directive) error {
	name := ""
	if nameSlot := d.Slot("name"); len(nameSlot) > 0 {
		name = nameSlot[0].(*ast.Text).Value
	}
	ec.Diag.Emit(diagnostics.Basic, "checkpoint", map[string]any{"name": name})
	return nil
}

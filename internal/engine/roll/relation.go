package roll

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/table"
)

// resolveRelationships follows tbl's declared relationships and attaches
// each passing link's outcome to result.Linked. Enrichment is strictly
// additive: the primary description, roll, and table are never touched.
// Chaining shares the placeholder resolver's depth budget, so a cycle of
// linked tables terminates instead of expanding forever.
func (r *Roller) resolveRelationships(tbl *table.Table, ctx *Context, result *TableResult) {
	if ctx.Depth+1 >= r.maxDepth {
		r.logger.Warn("relationship chain depth limit reached",
			zap.String("table", tbl.Name),
			zap.Int("depth", ctx.Depth),
		)
		return
	}

	vars := ctx.evalVariables()
	for _, rel := range tbl.Relationships {
		if rel.Condition != "" && !r.evalCondition(rel.Condition, vars) {
			continue
		}

		target, ok := r.registry.Find(rel.TargetTable)
		if !ok {
			r.logger.Warn("relationship target not found",
				zap.String("table", tbl.Name),
				zap.String("target", rel.TargetTable),
			)
			continue
		}

		child := ctx.child()
		child.Record(result)
		linked, err := r.RollWithModifiers(target, child, nil)
		if err != nil {
			r.logger.Warn("relationship roll failed",
				zap.String("table", tbl.Name),
				zap.String("target", rel.TargetTable),
				zap.Error(err),
			)
			continue
		}
		result.Linked = append(result.Linked, linked)
	}
}

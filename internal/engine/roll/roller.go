package roll

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/consume"
	"github.com/cory-johannsen/fable/internal/engine/dice"
	"github.com/cory-johannsen/fable/internal/engine/expr"
	"github.com/cory-johannsen/fable/internal/engine/perf"
	"github.com/cory-johannsen/fable/internal/engine/table"
)

// ErrNoEligibleEntries is returned when conditional filtering removes
// every entry. Distinct from not-found: the table exists but nothing in
// it is currently eligible, and the engine never invents content.
var ErrNoEligibleEntries = errors.New("no eligible entries after conditional filtering")

// DefaultMaxDepth bounds relationship chaining, shared with placeholder
// expansion.
const DefaultMaxDepth = 10

// Roller performs weighted rolls over tables. It owns no global state:
// registry, evaluator, tracker, caches, and metrics are injected.
type Roller struct {
	registry  *table.Registry
	evaluator *expr.Evaluator
	tracker   *consume.Tracker
	results   *perf.Cache[*TableResult]
	metrics   *perf.Metrics
	src       dice.Source
	logger    *zap.Logger
	maxDepth  int
}

// NewRoller creates a Roller.
//
// Precondition: every argument must be non-nil. maxDepth >= 0;
// 0 uses DefaultMaxDepth.
func NewRoller(
	registry *table.Registry,
	evaluator *expr.Evaluator,
	tracker *consume.Tracker,
	results *perf.Cache[*TableResult],
	metrics *perf.Metrics,
	src dice.Source,
	logger *zap.Logger,
	maxDepth int,
) *Roller {
	if registry == nil || evaluator == nil || tracker == nil || results == nil ||
		metrics == nil || src == nil || logger == nil {
		panic("roll: NewRoller requires non-nil collaborators")
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Roller{
		registry:  registry,
		evaluator: evaluator,
		tracker:   tracker,
		results:   results,
		metrics:   metrics,
		src:       src,
		logger:    logger,
		maxDepth:  maxDepth,
	}
}

// RollWithModifiers performs a full advanced roll on tbl: conditional
// filtering, weight computation, the configured roll strategy, bonus and
// multiplier adjustment, selection, consumption, and relationship
// enrichment. Results are cached per (table, variables, story).
//
// Error contract: a table with zero entries and a fully filtered-out
// table are the only error returns. Any unexpected internal failure
// degrades to a basic uniform roll; it never propagates.
//
// Precondition: tbl and ctx must be non-nil.
func (r *Roller) RollWithModifiers(tbl *table.Table, ctx *Context, opts *table.RollOptions) (result *TableResult, err error) {
	start := time.Now()

	if len(tbl.Entries) == 0 {
		return nil, fmt.Errorf("table %q: %w", tbl.Name, table.ErrNoEntries)
	}

	key := cacheKey(tbl.Name, ctx)
	if cached, ok := r.results.Get(key); ok {
		r.metrics.CacheHit()
		return cached, nil
	}
	r.metrics.CacheMiss()

	// Unexpected failures during weighting/selection degrade to a basic
	// uniform roll rather than reaching the caller.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("roll failed, degrading to uniform roll",
				zap.String("table", tbl.Name),
				zap.Any("panic", rec),
			)
			result = r.rollBasic(tbl, ctx)
			err = nil
			r.metrics.AddRollTime(time.Since(start))
		}
	}()

	merged := table.DefaultRollOptions().Merged(tbl.DefaultRollOptions).Merged(opts)
	vars := ctx.evalVariables()

	eligible := r.filterEligible(tbl, vars)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("table %q: %w", tbl.Name, ErrNoEligibleEntries)
	}

	raw := r.produceRoll(merged, vars)
	adjusted := adjustRoll(raw, merged)

	pos, entry := r.selectEntry(tbl, eligible, adjusted, vars)
	description := entry.Description()

	result = &TableResult{
		ID:          newResultID(),
		Description: description,
		Roll:        raw,
		TableID:     tbl.Name,
		EntryID:     pos,
		Metadata:    entry.Meta,
		Options:     merged,
		Variables:   copyVariables(ctx.Variables),
	}

	if linked, ok := entry.FirstModifier(table.ModifierLinked); ok {
		result.LinkedTable = linked.DependencyTable
	}

	if entry.HasModifier(table.ModifierUnique) {
		r.tracker.MarkConsumed(tbl.Name, ctx.StoryID, description)
	}

	if tbl.Enhanced() && len(tbl.Relationships) > 0 {
		r.resolveRelationships(tbl, ctx, result)
	}

	r.results.Put(key, result)
	r.metrics.AddRollTime(time.Since(start))

	r.logger.Debug("advanced roll",
		zap.String("table", tbl.Name),
		zap.String("story", ctx.StoryID),
		zap.Int("roll", raw),
		zap.Int("adjusted", adjusted),
		zap.Int("entry", pos),
		zap.String("roll_type", string(merged.Type)),
	)
	return result, nil
}

// eligibleEntry pairs an entry with its table position and computed weight.
type eligibleEntry struct {
	pos    int
	entry  *table.Entry
	weight float64
}

// filterEligible drops entries whose Conditional modifier evaluates
// false and computes each survivor's weight. The table itself is never
// mutated; filtering reads into a fresh slice.
func (r *Roller) filterEligible(tbl *table.Table, vars map[string]any) []eligibleEntry {
	out := make([]eligibleEntry, 0, len(tbl.Entries))
	for pos, e := range tbl.Entries {
		if cond, ok := e.FirstModifier(table.ModifierConditional); ok {
			if !r.evalCondition(cond.Expression, vars) {
				continue
			}
		}
		out = append(out, eligibleEntry{pos: pos, entry: e, weight: r.entryWeight(e, vars)})
	}
	return out
}

// entryWeight computes an entry's selection weight: 1 by default; a
// Weighted modifier's base weight otherwise, replaced by the first
// conditional weight whose expression holds.
func (r *Roller) entryWeight(e *table.Entry, vars map[string]any) float64 {
	m, ok := e.WeightModifier()
	if !ok {
		return 1
	}
	for _, cw := range m.ConditionalWeights {
		if r.evalCondition(cw.When, vars) {
			return cw.Weight
		}
	}
	return m.Weight
}

// produceRoll generates the raw roll per the configured strategy.
func (r *Roller) produceRoll(opts table.RollOptions, vars map[string]any) int {
	switch opts.Type {
	case table.RollAdvantage:
		count := opts.AdvantageCount
		if count < 2 {
			count = 2
		}
		best := 0
		for i := 0; i < count; i++ {
			if v := dice.Percentile(r.src); v > best {
				best = v
			}
		}
		return best

	case table.RollDisadvantage:
		a, b := dice.Percentile(r.src), dice.Percentile(r.src)
		if a < b {
			return a
		}
		return b

	case table.RollExploding:
		total := 0
		for {
			v := dice.Percentile(r.src)
			total += v
			if v != 100 {
				break
			}
		}
		// Clamped so the total still addresses the [1,100] range space.
		if total > 100 {
			total = 100
		}
		return total

	case table.RollReroll:
		v := dice.Percentile(r.src)
		if opts.RerollCondition == "" {
			return v
		}
		for rerolls := 0; rerolls < opts.MaxRerolls; rerolls++ {
			rollVars := make(map[string]any, len(vars)+2)
			for k, val := range vars {
				rollVars[k] = val
			}
			rollVars["roll_value"] = v
			rollVars["reroll_count"] = rerolls
			if !r.evalCondition(opts.RerollCondition, rollVars) {
				break
			}
			v = dice.Percentile(r.src)
		}
		return v

	default:
		return dice.Percentile(r.src)
	}
}

// adjustRoll applies the bonus, then the multiplier, then the threshold
// floor.
func adjustRoll(raw int, opts table.RollOptions) int {
	mult := opts.Multiplier
	if mult == 0 {
		mult = 1
	}
	adjusted := int(float64(raw+opts.Bonus) * mult)
	if opts.Threshold > 0 && adjusted < opts.Threshold {
		adjusted = opts.Threshold
	}
	return adjusted
}

// selectEntry picks an eligible entry for the adjusted roll. When any
// eligible entry declares a Weighted modifier, selection runs in
// cumulative-weight space: the roll is normalized by roll/100 *
// totalWeight and the first entry whose cumulative weight meets it wins,
// in table order. Otherwise selection is range-based, defaulting to the
// first eligible entry when no range matches.
func (r *Roller) selectEntry(tbl *table.Table, eligible []eligibleEntry, adjusted int, vars map[string]any) (int, *table.Entry) {
	anyWeighted := false
	totalWeight := 0.0
	for _, e := range eligible {
		totalWeight += e.weight
		if _, ok := e.entry.WeightModifier(); ok {
			anyWeighted = true
		}
	}

	if anyWeighted && totalWeight > 0 {
		target := float64(adjusted) / 100.0 * totalWeight
		if target > totalWeight {
			target = totalWeight
		}
		cumulative := 0.0
		for _, e := range eligible {
			cumulative += e.weight
			if cumulative >= target {
				return e.pos, e.entry
			}
		}
		last := eligible[len(eligible)-1]
		return last.pos, last.entry
	}

	for _, e := range eligible {
		if e.entry.InRange(adjusted) {
			return e.pos, e.entry
		}
	}
	return eligible[0].pos, eligible[0].entry
}

// rollBasic is the degraded path: a uniform roll over the raw table with
// no filtering, weighting, or enrichment.
func (r *Roller) rollBasic(tbl *table.Table, ctx *Context) *TableResult {
	raw := dice.Percentile(r.src)
	pos := r.src.Intn(len(tbl.Entries))
	entry := tbl.Entries[pos]
	return &TableResult{
		ID:          newResultID(),
		Description: entry.Description(),
		Roll:        raw,
		TableID:     tbl.Name,
		EntryID:     pos,
		Metadata:    entry.Meta,
		Options:     table.DefaultRollOptions(),
		Variables:   copyVariables(ctx.Variables),
	}
}

// evalCondition evaluates expression, feeding timing into the metrics.
// Evaluation failures count as false; the evaluator logs the diagnostic.
func (r *Roller) evalCondition(expression string, vars map[string]any) bool {
	res := r.evaluator.Evaluate(expression, vars)
	r.metrics.AddEvalTime(res.Elapsed)
	return res.Value
}

func copyVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

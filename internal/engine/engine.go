// Package engine assembles the table-resolution components behind a
// single facade: registry, conditional evaluator, weighted roll engine,
// placeholder resolver, consumption tracker, caches, and the Lua script
// manager. The Engine holds every piece of state explicitly; there are
// no package-level singletons.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/consume"
	"github.com/cory-johannsen/fable/internal/engine/dice"
	"github.com/cory-johannsen/fable/internal/engine/expr"
	"github.com/cory-johannsen/fable/internal/engine/perf"
	"github.com/cory-johannsen/fable/internal/engine/resolve"
	"github.com/cory-johannsen/fable/internal/engine/roll"
	"github.com/cory-johannsen/fable/internal/engine/script"
	"github.com/cory-johannsen/fable/internal/engine/table"
)

// Options configures an Engine. The zero value is usable: every field
// falls back to the package default.
type Options struct {
	// CacheTTL is the lifetime of cached tables, results, and indices.
	CacheTTL time.Duration
	// CacheMaxSize caps each cache independently.
	CacheMaxSize int
	// MaxDepth bounds placeholder recursion and relationship chaining.
	MaxDepth int
	// Source overrides the random source. Nil uses the crypto source.
	Source dice.Source
	// ScriptInstructionLimit caps Lua opcodes per generator call.
	ScriptInstructionLimit int
}

// Engine is the resolution facade. Safe for concurrent use: the
// registry and caches are read-write locked, the consumption tracker is
// mutex-guarded, and Preload runs without blocking readers.
type Engine struct {
	registry  *table.Registry
	tracker   *consume.Tracker
	evaluator *expr.Evaluator
	scripts   *script.Manager
	roller    *roll.Roller
	resolver  *resolve.Resolver
	metrics   *perf.Metrics
	logger    *zap.Logger

	tables  *perf.Cache[*table.Table]
	results *perf.Cache[*roll.TableResult]
	indices *perf.Cache[*perf.Index]
}

// New creates an Engine.
//
// Precondition: logger must be non-nil.
func New(logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		panic("engine: New requires a non-nil logger")
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = perf.DefaultTTL
	}
	if opts.CacheMaxSize <= 0 {
		opts.CacheMaxSize = perf.DefaultMaxSize
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = roll.DefaultMaxDepth
	}
	if opts.Source == nil {
		opts.Source = dice.NewCryptoSource()
	}

	registry := table.NewRegistry()
	tracker := consume.NewTracker()
	evaluator := expr.NewEvaluator(logger)
	metrics := perf.NewMetrics()
	results := perf.NewCache[*roll.TableResult](opts.CacheTTL, opts.CacheMaxSize)

	return &Engine{
		registry:  registry,
		tracker:   tracker,
		evaluator: evaluator,
		scripts:   script.NewManager(logger, opts.ScriptInstructionLimit),
		roller: roll.NewRoller(registry, evaluator, tracker, results,
			metrics, opts.Source, logger, opts.MaxDepth),
		resolver: resolve.NewResolver(registry, tracker, opts.Source,
			logger, opts.MaxDepth),
		metrics: metrics,
		logger:  logger,
		tables:  perf.NewCache[*table.Table](opts.CacheTTL, opts.CacheMaxSize),
		results: results,
		indices: perf.NewCache[*perf.Index](opts.CacheTTL, opts.CacheMaxSize),
	}
}

// Registry exposes the table registry for the persistence collaborator.
// The engine never mutates it except through LoadContent.
func (e *Engine) Registry() *table.Registry {
	return e.registry
}

// LoadContent loads generator scripts from scriptDir (optional, may be
// empty) and table definitions from tableDir, registering every table.
// Scripts load first so tables can bind generators.
func (e *Engine) LoadContent(tableDir, scriptDir string) error {
	if scriptDir != "" {
		if err := e.scripts.LoadDirectory(scriptDir); err != nil {
			return fmt.Errorf("loading scripts: %w", err)
		}
	}
	tables, err := table.LoadTablesFromDir(tableDir, e.scripts)
	if err != nil {
		return fmt.Errorf("loading tables: %w", err)
	}
	for _, t := range tables {
		e.registry.Register(t)
		e.metrics.TableLoaded()
	}
	e.logger.Info("content loaded",
		zap.String("tables", tableDir),
		zap.Int("count", len(tables)),
	)
	return nil
}

// ResolveTemplate expands every placeholder in text under ctx. Never
// fails: unresolvable placeholders remain verbatim.
func (e *Engine) ResolveTemplate(text string, ctx *roll.Context) string {
	return e.resolver.Resolve(text, ctx)
}

// Roll performs an advanced roll on the named table.
func (e *Engine) Roll(tableName string, ctx *roll.Context, opts *table.RollOptions) (*roll.TableResult, error) {
	tbl, ok := e.lookupTable(tableName)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", tableName, table.ErrTableNotFound)
	}
	return e.roller.RollWithModifiers(tbl, ctx, opts)
}

// lookupTable resolves tableName through the definitions cache, falling
// back to the registry and populating the cache on a miss. Lookups after
// a Preload (or a prior lookup) skip the registry's case-insensitive
// scan entirely.
func (e *Engine) lookupTable(tableName string) (*table.Table, bool) {
	key := strings.ToLower(tableName)
	if tbl, ok := e.tables.Get(key); ok {
		return tbl, true
	}
	tbl, ok := e.registry.Find(tableName)
	if !ok {
		return nil, false
	}
	e.tables.Put(key, tbl)
	return tbl, true
}

// Preload warms the table and index caches for every registered table.
// It returns immediately; the returned channel closes when warming
// finishes or ctx is cancelled. Concurrent readers are never blocked:
// they may miss the cache and recompute while warming is in flight.
func (e *Engine) Preload(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		start := time.Now()
		warmed := 0
		for _, tbl := range e.registry.Snapshot() {
			select {
			case <-ctx.Done():
				e.logger.Warn("preload cancelled",
					zap.Int("warmed", warmed),
					zap.Error(ctx.Err()),
				)
				return
			default:
			}
			key := strings.ToLower(tbl.Name)
			e.tables.Put(key, tbl)
			e.indices.Put(key, buildTableIndex(tbl))
			warmed++
		}
		e.logger.Info("preload complete",
			zap.Int("tables", warmed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()
	return done
}

// Search queries a table's inverted index, building and caching it on
// first use. Returns matching entry positions in ascending order.
func (e *Engine) Search(tableName, query string, filter perf.Filter) ([]int, error) {
	tbl, ok := e.lookupTable(tableName)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", tableName, table.ErrTableNotFound)
	}
	key := strings.ToLower(tbl.Name)
	idx, ok := e.indices.Get(key)
	if !ok {
		idx = buildTableIndex(tbl)
		e.indices.Put(key, idx)
	}
	return idx.Search(query, filter), nil
}

// buildTableIndex projects a table's entries into the index shape.
// Generated descriptions index their static text only; a deferred
// description has no stable token stream to index.
func buildTableIndex(tbl *table.Table) *perf.Index {
	entries := make([]perf.IndexedEntry, len(tbl.Entries))
	for i, en := range tbl.Entries {
		entries[i] = perf.IndexedEntry{
			Position: i,
			Text:     en.Text,
			Tags:     en.Meta.Tags,
			Category: en.Meta.Category,
			Rarity:   en.Meta.Rarity,
		}
	}
	return perf.BuildIndex(entries)
}

// MetricsSnapshot returns the cumulative performance counters.
func (e *Engine) MetricsSnapshot() perf.MetricsSnapshot {
	return e.metrics.Snapshot()
}

// CacheStats reports size and hit rate per cache.
func (e *Engine) CacheStats() map[string]perf.CacheStats {
	return map[string]perf.CacheStats{
		"tables":  e.tables.Stats(),
		"results": e.results.Stats(),
		"indices": e.indices.Stats(),
	}
}

// InvalidateCaches purges all three caches. Used after Restore and by
// hosts that mutate tables through the registry.
func (e *Engine) InvalidateCaches() {
	e.tables.Purge()
	e.results.Purge()
	e.indices.Purge()
}

// Snapshot captures the engine's reconstructible state: every
// registered table and the consumption record. Caches and metrics are
// derived state and are not part of the snapshot.
type Snapshot struct {
	Tables   []*table.Table
	Consumed map[string][]string
}

// Snapshot returns the engine's persistence-boundary state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Tables:   e.registry.Snapshot(),
		Consumed: e.tracker.Snapshot(),
	}
}

// Restore replaces the engine's state with snap: tables are registered
// over the current set, the consumption record is replaced wholesale,
// and all caches are invalidated.
func (e *Engine) Restore(snap Snapshot) {
	for _, tbl := range snap.Tables {
		e.registry.Register(tbl)
		e.metrics.TableLoaded()
	}
	e.tracker.Restore(snap.Consumed)
	e.InvalidateCaches()
}

// Close releases the script manager's Lua state.
func (e *Engine) Close() {
	e.scripts.Close()
}
